package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ventline/ventline-api/internal/middleware"
	"github.com/ventline/ventline-api/internal/moderation"
	"github.com/ventline/ventline-api/internal/model"
	"github.com/ventline/ventline-api/internal/queue"
	"github.com/ventline/ventline-api/internal/repository"
	queue_publisher "github.com/ventline/ventline-api/internal/service"
)

const (
	maxBodyLen    = 2000
	maxFeelingLen = 32

	defaultListLimit = 50
	maxListLimit     = 200
)

// MessageHandler bundles dependencies for the venting endpoints.  All
// ownership is recorded under the caller's effective identity hash, so
// content posted from a merged device lands on the journey's primary.
type MessageHandler struct {
	Content *repository.ContentRepo
	Stats   *repository.StatsRepo
	Mod     *moderation.Client
}

func NewMessageHandler(content *repository.ContentRepo, stats *repository.StatsRepo, mod *moderation.Client) *MessageHandler {
	return &MessageHandler{Content: content, Stats: stats, Mod: mod}
}

// ----- DTOs -----

type createMessageReq struct {
	Feeling string `json:"feeling"`
	Body    string `json:"body"`
}

type createResponseReq struct {
	Body string `json:"body"`
}

type messagePart struct {
	ID        string    `json:"id"`
	Feeling   string    `json:"feeling"`
	Body      string    `json:"body"`
	Status    string    `json:"status,omitempty"`
	Mine      bool      `json:"mine,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type responsePart struct {
	ID        string    `json:"id"`
	MessageID string    `json:"messageId"`
	Body      string    `json:"body"`
	Mine      bool      `json:"mine,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Create accepts a new vent.  The text is screened before it is stored;
// accepted messages enter the review queue as PENDING.
func (h *MessageHandler) Create(c echo.Context) error {
	var req createMessageReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Feeling = strings.TrimSpace(req.Feeling)
	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "body required"})
	}
	if len(req.Body) > maxBodyLen || len(req.Feeling) > maxFeelingLen {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "content too long"})
	}
	res := middleware.ResolutionFrom(c)

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	if v := h.Mod.Check(ctx, req.Body); !v.Allowed {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":   "CONTENT_REJECTED",
			"message": "this message can't be posted, please rephrase it",
			"reason":  v.Reason,
		})
	}

	now := time.Now().UTC()
	m := model.Message{
		ID:         uuid.NewString(),
		DeviceHash: res.EffectiveDeviceHash,
		Feeling:    req.Feeling,
		Body:       req.Body,
		Status:     model.MessageStatusPending,
		CreatedAt:  now,
	}
	if err := h.Content.InsertMessage(ctx, m); err != nil {
		return identityErrorResponse(c, err)
	}
	if err := h.Stats.BumpMessageSent(ctx, res.EffectiveDeviceHash, now); err != nil {
		c.Logger().Warnf("stats bump failed for message %s: %v", m.ID, err)
	}

	event := queue.MessageCreatedEvent{
		MessageID:  m.ID,
		DeviceHash: m.DeviceHash,
		Feeling:    m.Feeling,
		Status:     m.Status,
		CreatedAt:  now.Format(time.RFC3339),
	}
	go func() {
		pubCtx, pubCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer pubCancel()
		_ = queue_publisher.PublishMessageCreated(pubCtx, event)
	}()

	return c.JSON(http.StatusCreated, messagePart{
		ID: m.ID, Feeling: m.Feeling, Body: m.Body, Status: m.Status, CreatedAt: m.CreatedAt,
	})
}

// List returns recent approved vents for the public feed.
func (h *MessageHandler) List(c echo.Context) error {
	limit := listLimit(c)

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	msgs, err := h.Content.ListApprovedMessages(ctx, limit)
	if err != nil {
		return identityErrorResponse(c, err)
	}

	var mineHash string
	if res := middleware.ResolutionFrom(c); res != nil {
		mineHash = res.EffectiveDeviceHash
	}
	out := make([]messagePart, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messagePart{
			ID: m.ID, Feeling: m.Feeling, Body: m.Body,
			Mine: mineHash != "" && m.DeviceHash == mineHash, CreatedAt: m.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": out})
}

// Mine returns every vent owned by the caller's identity, in any
// moderation state, matched under both ownership schemes.  After a merge
// this list spans everything written from every attached device.
func (h *MessageHandler) Mine(c echo.Context) error {
	res := middleware.ResolutionFrom(c)

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	msgs, err := h.Content.ListMessagesByOwner(ctx, res.EffectiveDeviceHash, res.EffectiveDeviceID)
	if err != nil {
		return identityErrorResponse(c, err)
	}
	out := make([]messagePart, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messagePart{
			ID: m.ID, Feeling: m.Feeling, Body: m.Body, Status: m.Status,
			Mine: true, CreatedAt: m.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": out})
}

// CreateResponse leaves a supportive reply on an approved vent and credits
// both sides' counters.
func (h *MessageHandler) CreateResponse(c echo.Context) error {
	var req createResponseReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "body required"})
	}
	if len(req.Body) > maxBodyLen {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "content too long"})
	}
	res := middleware.ResolutionFrom(c)

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	msg, err := h.Content.GetMessage(ctx, c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "message not found"})
	}
	if err != nil {
		return identityErrorResponse(c, err)
	}
	if msg.Status != model.MessageStatusApproved {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "message not found"})
	}

	if v := h.Mod.Check(ctx, req.Body); !v.Allowed {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":   "CONTENT_REJECTED",
			"message": "this reply can't be posted, please rephrase it",
			"reason":  v.Reason,
		})
	}

	now := time.Now().UTC()
	resp := model.Response{
		ID:         uuid.NewString(),
		MessageID:  msg.ID,
		DeviceHash: res.EffectiveDeviceHash,
		Body:       req.Body,
		CreatedAt:  now,
	}
	if err := h.Content.InsertResponse(ctx, resp); err != nil {
		return identityErrorResponse(c, err)
	}
	if err := h.Stats.BumpReply(ctx, res.EffectiveDeviceHash, msg.DeviceHash, now); err != nil {
		c.Logger().Warnf("reply stats bump failed for response %s: %v", resp.ID, err)
	}

	return c.JSON(http.StatusCreated, responsePart{
		ID: resp.ID, MessageID: resp.MessageID, Body: resp.Body, Mine: true, CreatedAt: resp.CreatedAt,
	})
}

// ListResponses returns all replies to one vent, oldest first.  When the
// caller owns the vent, reading the thread marks the replies as seen.
func (h *MessageHandler) ListResponses(c echo.Context) error {
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	msg, err := h.Content.GetMessage(ctx, c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "message not found"})
	}
	if err != nil {
		return identityErrorResponse(c, err)
	}

	responses, err := h.Content.ListResponses(ctx, msg.ID)
	if err != nil {
		return identityErrorResponse(c, err)
	}

	var mineHash string
	if res := middleware.ResolutionFrom(c); res != nil {
		mineHash = res.EffectiveDeviceHash
		if msg.DeviceHash == mineHash {
			if err := h.Stats.MarkRepliesSeen(ctx, mineHash, time.Now().UTC()); err != nil {
				c.Logger().Warnf("mark replies seen failed: %v", err)
			}
		}
	}
	out := make([]responsePart, 0, len(responses))
	for _, r := range responses {
		out = append(out, responsePart{
			ID: r.ID, MessageID: r.MessageID, Body: r.Body,
			Mine: mineHash != "" && r.DeviceHash == mineHash, CreatedAt: r.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"responses": out})
}

// MyStats returns the caller's activity counters.
func (h *MessageHandler) MyStats(c echo.Context) error {
	res := middleware.ResolutionFrom(c)

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	s, err := h.Stats.GetWithLegacyFallback(ctx, res.EffectiveDeviceHash, res.EffectiveDeviceID)
	if errors.Is(err, repository.ErrNotFound) {
		s = model.DeviceStats{DeviceHash: res.EffectiveDeviceHash}
	} else if err != nil {
		return identityErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"messagesSent":    s.MessagesSent,
		"repliesGiven":    s.RepliesGiven,
		"repliesReceived": s.RepliesReceived,
		"karma":           s.Karma,
	})
}

func listLimit(c echo.Context) int {
	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit
}
