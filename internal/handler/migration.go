package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ventline/ventline-api/internal/journey"
	"github.com/ventline/ventline-api/internal/middleware"
)

// MigrationHandler serves the device-to-device identity handoff: the old
// device mints a short-lived single-use token, the new device redeems it
// and adopts the old device's identity.
type MigrationHandler struct {
	Svc *journey.Service
}

func NewMigrationHandler(svc *journey.Service) *MigrationHandler {
	return &MigrationHandler{Svc: svc}
}

type redeemReq struct {
	Token string `json:"token"`
}

type createdTokenResp struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CreateToken mints a migration token for the caller's effective identity.
// Whoever redeems it is recognized as this identity from then on.
func (h *MigrationHandler) CreateToken(c echo.Context) error {
	res := middleware.ResolutionFrom(c)

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	created, err := h.Svc.CreateMigrationToken(ctx, res.EffectiveDeviceID)
	if err != nil {
		return identityErrorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, createdTokenResp{
		Token:     created.Plaintext,
		ExpiresAt: created.ExpiresAt,
	})
}

// Redeem consumes a migration token.  On success the response cookie is
// set to the historical identifier so the new device is recognized as the
// old one immediately.  Redemption does not require an existing identity:
// a factory-fresh device is exactly the expected caller.
func (h *MigrationHandler) Redeem(c echo.Context) error {
	var req redeemReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	deviceID, err := h.Svc.RedeemMigrationToken(ctx, req.Token)
	if err != nil {
		return identityErrorResponse(c, err)
	}

	middleware.SetDeviceCookie(c, deviceID)
	return c.JSON(http.StatusOK, echo.Map{"deviceId": deviceID})
}
