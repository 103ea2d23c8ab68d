package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ventline/ventline-api/internal/journey"
	"github.com/ventline/ventline-api/internal/middleware"
	"github.com/ventline/ventline-api/internal/queue"
	queue_publisher "github.com/ventline/ventline-api/internal/service"
)

// JourneyHandler bundles dependencies for backup-key and journey endpoints.
type JourneyHandler struct {
	Svc      *journey.Service
	Resolver *journey.Resolver
}

func NewJourneyHandler(svc *journey.Service, resolver *journey.Resolver) *JourneyHandler {
	return &JourneyHandler{Svc: svc, Resolver: resolver}
}

// ----- DTOs -----

type attachReq struct {
	Key string `json:"key"`
}

type createdKeyResp struct {
	Key       string `json:"key"` // plaintext, shown exactly once
	Preview   string `json:"preview"`
	JourneyID string `json:"journeyId"`
}

type mergePart struct {
	ContentUpdated int  `json:"contentUpdated"`
	StatsMerged    bool `json:"statsMerged"`
	Complete       bool `json:"complete"`
}

type attachResp struct {
	JourneyID         string    `json:"journeyId"`
	EffectiveDeviceID string    `json:"effectiveDeviceId"`
	AlreadyAttached   bool      `json:"alreadyAttached"`
	AttachedDevices   int       `json:"attachedDevices"`
	Merge             mergePart `json:"merge"`
}

// CreateKey issues a backup key for the caller's journey.  The plaintext
// key appears in this response and nowhere else, ever again.
func (h *JourneyHandler) CreateKey(c echo.Context) error {
	res := middleware.ResolutionFrom(c)

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	created, err := h.Svc.CreateKey(ctx, res.EffectiveDeviceID)
	if err != nil {
		return identityErrorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, createdKeyResp{
		Key:       created.Plaintext,
		Preview:   created.Preview,
		JourneyID: created.JourneyID,
	})
}

// Attach redeems a backup key, linking this device into the key's journey
// and folding its history into the journey's primary identity.
func (h *JourneyHandler) Attach(c echo.Context) error {
	var req attachReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	res := middleware.ResolutionFrom(c)

	ctx, cancel := contextWithTimeout(c, 10*time.Second)
	defer cancel()

	result, err := h.Svc.Attach(ctx, req.Key, res.RawDeviceID)
	if err != nil {
		return identityErrorResponse(c, err)
	}

	// Steer this device toward the journey's primary identifier from the
	// very next request.
	middleware.SetDeviceCookie(c, result.Journey.PrimaryDeviceID)

	if !result.AlreadyAttached {
		event := queue.JourneyMergedEvent{
			JourneyID:          result.Journey.ID,
			PrimaryDeviceHash:  result.Journey.PrimaryDeviceHash,
			AttachedDeviceHash: h.Svc.Hash(res.RawDeviceID),
			ContentUpdated:     result.Merge.ContentUpdated,
			StatsMerged:        result.Merge.StatsMerged,
			MergeComplete:      result.MergeComplete,
			MergedAt:           time.Now().UTC().Format(time.RFC3339),
		}
		go func() {
			pubCtx, pubCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer pubCancel()
			_ = queue_publisher.PublishJourneyMerged(pubCtx, event)
		}()
	}

	return c.JSON(http.StatusOK, attachResp{
		JourneyID:         result.Journey.ID,
		EffectiveDeviceID: result.Journey.PrimaryDeviceID,
		AlreadyAttached:   result.AlreadyAttached,
		AttachedDevices:   len(result.Journey.DeviceHashes),
		Merge: mergePart{
			ContentUpdated: result.Merge.ContentUpdated,
			StatsMerged:    result.Merge.StatsMerged,
			Complete:       result.MergeComplete,
		},
	})
}

// Status reports the caller's journey membership.
func (h *JourneyHandler) Status(c echo.Context) error {
	res := middleware.ResolutionFrom(c)

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	st, err := h.Svc.StatusForDevice(ctx, h.Resolver, res.RawDeviceID)
	if err != nil {
		return identityErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Detach removes this device from its journey.  Content and stats stay
// with the journey's primary identity.
func (h *JourneyHandler) Detach(c echo.Context) error {
	res := middleware.ResolutionFrom(c)

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	if err := h.Svc.Detach(ctx, res.RawDeviceID); err != nil {
		return identityErrorResponse(c, err)
	}
	// The device is standalone again; stop steering it to the old primary.
	middleware.SetDeviceCookie(c, res.RawDeviceID)
	return c.JSON(http.StatusOK, echo.Map{"detached": true})
}

// Purge detaches the device and expires its identifier cookie.  The next
// visit starts from a blank identity.
func (h *JourneyHandler) Purge(c echo.Context) error {
	res := middleware.ResolutionFrom(c)

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	if err := h.Svc.Detach(ctx, res.RawDeviceID); err != nil {
		return identityErrorResponse(c, err)
	}
	middleware.ClearDeviceCookie(c)
	return c.JSON(http.StatusOK, echo.Map{"purged": true})
}

// DebugIdentity dumps the request's full identity resolution: every source
// seen, the winner, conflicts and the journey lookup.  Registered only
// when identity debugging is enabled in config.
func (h *JourneyHandler) DebugIdentity(c echo.Context) error {
	res := middleware.ResolutionFrom(c)
	if res == nil {
		return c.JSON(http.StatusOK, echo.Map{"resolved": false})
	}
	return c.JSON(http.StatusOK, res)
}
