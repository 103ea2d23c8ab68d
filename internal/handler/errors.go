package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ventline/ventline-api/internal/identity"
)

// identityErrorResponse maps the tagged identity error kinds onto HTTP
// responses.  Each failure mode keeps its own status and message because
// the user's remedy differs: a mistyped key is retyped, an expired token
// is reissued, a busy store is retried.
func identityErrorResponse(c echo.Context, err error) error {
	switch identity.KindOf(err) {
	case identity.KindDeviceUnidentified:
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":   "DEVICE_UNIDENTIFIED",
			"message": "we couldn't recognize your device, try refreshing",
		})
	case identity.KindKeyNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{
			"error":   "KEY_NOT_FOUND",
			"message": "that key doesn't match any journey, check it for typos",
		})
	case identity.KindJourneyNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{
			"error":   "JOURNEY_NOT_FOUND",
			"message": "we couldn't find the journey for that key, it may have been removed",
		})
	case identity.KindTokenNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{
			"error":   "TOKEN_NOT_FOUND",
			"message": "that migration token doesn't exist, generate a new one on your old device",
		})
	case identity.KindTokenAlreadyUsed:
		return c.JSON(http.StatusConflict, echo.Map{
			"error":   "TOKEN_ALREADY_USED",
			"message": "that migration token was already redeemed, generate a new one",
		})
	case identity.KindTokenExpired:
		return c.JSON(http.StatusGone, echo.Map{
			"error":   "TOKEN_EXPIRED",
			"message": "that migration token expired, generate a new one on your old device",
		})
	case identity.KindTokenInvalidFormat:
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":   "TOKEN_INVALID",
			"message": "that doesn't look like a migration token, copy it again",
		})
	case identity.KindStoreBusy:
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"error":   "STORE_BUSY",
			"message": "your data is temporarily unavailable, please retry shortly",
		})
	default:
		c.Logger().Errorf("unhandled error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":   "INTERNAL",
			"message": "something went wrong on our side",
		})
	}
}
