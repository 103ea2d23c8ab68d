package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ventline/ventline-api/internal/middleware"
	"github.com/ventline/ventline-api/internal/model"
	"github.com/ventline/ventline-api/internal/repository"
)

// ReportHandler accepts abuse reports from anonymous users.
type ReportHandler struct {
	Reports *repository.ReportRepo
	Stats   *repository.StatsRepo
}

func NewReportHandler(reports *repository.ReportRepo, stats *repository.StatsRepo) *ReportHandler {
	return &ReportHandler{Reports: reports, Stats: stats}
}

type createReportReq struct {
	TargetType string `json:"targetType"` // MESSAGE | RESPONSE
	TargetID   string `json:"targetId"`
	Reason     string `json:"reason"`
}

// Create files a report against a message or response for operator review.
func (h *ReportHandler) Create(c echo.Context) error {
	var req createReportReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.TargetType = strings.ToUpper(strings.TrimSpace(req.TargetType))
	if req.TargetType != model.ReportTargetMessage && req.TargetType != model.ReportTargetResponse {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "targetType must be MESSAGE or RESPONSE"})
	}
	if strings.TrimSpace(req.TargetID) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "targetId required"})
	}
	res := middleware.ResolutionFrom(c)

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	rep := model.Report{
		ID:           uuid.NewString(),
		TargetType:   req.TargetType,
		TargetID:     req.TargetID,
		Reason:       strings.TrimSpace(req.Reason),
		ReporterHash: res.EffectiveDeviceHash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.Reports.Insert(ctx, rep); err != nil {
		return identityErrorResponse(c, err)
	}
	if err := h.Stats.Touch(ctx, res.EffectiveDeviceHash, rep.CreatedAt); err != nil {
		c.Logger().Warnf("activity touch failed for report %s: %v", rep.ID, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": rep.ID})
}
