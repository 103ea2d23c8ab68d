package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ventline/ventline-api/internal/config"
	"github.com/ventline/ventline-api/internal/model"
	"github.com/ventline/ventline-api/internal/repository"
	"github.com/ventline/ventline-api/internal/utils"
)

// AdminHandler serves the operator surface: login, the report queue and
// message moderation decisions.
type AdminHandler struct {
	Cfg     config.Config
	Reports *repository.ReportRepo
	Content *repository.ContentRepo
}

func NewAdminHandler(cfg config.Config, reports *repository.ReportRepo, content *repository.ContentRepo) *AdminHandler {
	return &AdminHandler{Cfg: cfg, Reports: reports, Content: content}
}

type adminLoginReq struct {
	Token string `json:"token"`
}

type setStatusReq struct {
	Status string `json:"status"`
}

// Login exchanges the static operator credential for a short-lived admin
// session token.
func (h *AdminHandler) Login(c echo.Context) error {
	var req adminLoginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if subtle.ConstantTimeCompare([]byte(req.Token), []byte(h.Cfg.AdminToken)) != 1 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid operator token"})
	}

	tok, err := utils.NewAdminToken(h.Cfg.AdminJWTSecret, h.Cfg.AdminTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"token": tok.Token, "expires": tok.Exp})
}

// OpenReports lists the unresolved report queue, oldest first.
func (h *AdminHandler) OpenReports(c echo.Context) error {
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	reports, err := h.Reports.ListOpen(ctx, listLimit(c))
	if err != nil {
		return identityErrorResponse(c, err)
	}
	if reports == nil {
		reports = []model.Report{}
	}
	return c.JSON(http.StatusOK, echo.Map{"reports": reports})
}

// ResolveReport marks one report handled.
func (h *AdminHandler) ResolveReport(c echo.Context) error {
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	err := h.Reports.Resolve(ctx, c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "report not found"})
	}
	if err != nil {
		return identityErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"resolved": true})
}

// SetMessageStatus applies a moderation decision to a message.
func (h *AdminHandler) SetMessageStatus(c echo.Context) error {
	var req setStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	switch req.Status {
	case model.MessageStatusApproved, model.MessageStatusRejected, model.MessageStatusRemoved:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be APPROVED, REJECTED or REMOVED"})
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	err := h.Content.SetMessageStatus(ctx, c.Param("id"), req.Status)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "message not found"})
	}
	if err != nil {
		return identityErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "status": req.Status})
}
