package middleware

// deviceid.go implements per-request device identity resolution.  A request
// may carry the device identifier in up to four places: the X-Device-Id
// header, the device cookie, the deviceId query parameter and (on write
// methods) a deviceId field in the JSON body.  The first non-empty source
// in that fixed precedence order wins; disagreements between present
// sources are recorded and logged but never block the request.  After the
// winning raw identifier is resolved through the journey resolver, the
// response cookie is rewritten to the effective identifier so merged
// devices self-heal toward presenting the primary id directly.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ventline/ventline-api/internal/identity"
	"github.com/ventline/ventline-api/internal/journey"
)

const (
	// HeaderDeviceID is the transport header set by the client-side resolver.
	HeaderDeviceID = "X-Device-Id"
	// CookieDeviceID is the durable identifier cookie.
	CookieDeviceID = "vl_device_id"
	// QueryDeviceID is the query-string fallback, kept for debug and legacy clients.
	QueryDeviceID = "deviceId"

	cookieMaxAge = 365 * 24 * 60 * 60 // one year

	resolutionKey = "device_resolution"

	maxBodyPeek = 1 << 20 // cap on body bytes read while peeking for deviceId
)

// Source names one transport location an identifier can arrive in.
type Source string

const (
	SourceHeader Source = "header"
	SourceCookie Source = "cookie"
	SourceQuery  Source = "query"
	SourceBody   Source = "body"
)

// Resolution is the per-request identity record.  It is never persisted;
// it backs the response-cookie refresh, the debug endpoint and every
// handler's notion of "who is this".
type Resolution struct {
	Sources             map[Source]string    `json:"sources"`
	Winner              Source               `json:"winner"`
	RawDeviceID         string               `json:"rawDeviceId"`
	Conflicts           []string             `json:"conflicts"`
	Journey             *journey.Resolution  `json:"journey"`
	EffectiveDeviceID   string               `json:"effectiveDeviceId"`
	EffectiveDeviceHash string               `json:"effectiveDeviceHash"`
}

// ResolutionFrom returns the request's identity resolution, or nil when no
// identifier was found in any source.
func ResolutionFrom(c echo.Context) *Resolution {
	if v := c.Get(resolutionKey); v != nil {
		if r, ok := v.(*Resolution); ok {
			return r
		}
	}
	return nil
}

// ResolveDevice builds the identity-resolution middleware.  It never fails
// a request itself: routes that require an identity stack RequireDevice on
// top.
func ResolveDevice(resolver *journey.Resolver, hasher *identity.Hasher) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			res := gatherSources(c)
			if res == nil {
				return next(c)
			}

			for _, conflict := range res.Conflicts {
				c.Logger().Warnf("device id source conflict: %s", conflict)
			}

			jr, err := resolver.Resolve(c.Request().Context(), res.RawDeviceID)
			if err != nil {
				if identity.KindOf(err) == identity.KindStoreBusy {
					return c.JSON(http.StatusServiceUnavailable, echo.Map{
						"error":   "store_busy",
						"message": "your data is temporarily unavailable, please retry shortly",
					})
				}
				// A dangling journey link is a server defect; resolution
				// falls back to the raw identity so the request still works.
				c.Logger().Warnf("journey resolution failed for request: %v", err)
			}
			res.Journey = jr
			res.EffectiveDeviceID = res.RawDeviceID
			if jr != nil {
				res.EffectiveDeviceID = jr.EffectiveDeviceID
			}
			res.EffectiveDeviceHash = hasher.Hash(res.EffectiveDeviceID)
			c.Set(resolutionKey, res)

			// Self-heal: steer the client toward presenting the effective
			// identifier on future requests.
			SetDeviceCookie(c, res.EffectiveDeviceID)

			return next(c)
		}
	}
}

// RequireDevice rejects requests that carry no device identifier in any
// source.  All anonymous identity depends on the client sending one.
func RequireDevice(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if ResolutionFrom(c) == nil {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error":   "DEVICE_UNIDENTIFIED",
				"message": "we couldn't recognize your device, try refreshing",
			})
		}
		return next(c)
	}
}

// gatherSources reads all transport sources, picks the winner by precedence
// (header > cookie > query > body) and records every pairwise disagreement
// between present sources.  Returns nil when no source is present.
func gatherSources(c echo.Context) *Resolution {
	ordered := []Source{SourceHeader, SourceCookie, SourceQuery, SourceBody}
	values := map[Source]string{}

	if v := c.Request().Header.Get(HeaderDeviceID); v != "" {
		values[SourceHeader] = v
	}
	if cookie, err := c.Cookie(CookieDeviceID); err == nil && cookie.Value != "" {
		values[SourceCookie] = cookie.Value
	}
	if v := c.QueryParam(QueryDeviceID); v != "" {
		values[SourceQuery] = v
	}
	if v := peekBodyDeviceID(c); v != "" {
		values[SourceBody] = v
	}
	if len(values) == 0 {
		return nil
	}

	res := &Resolution{Sources: values, Conflicts: []string{}}
	for _, s := range ordered {
		if v, ok := values[s]; ok {
			res.Winner = s
			res.RawDeviceID = v
			break
		}
	}
	for i := 0; i < len(ordered); i++ {
		a, aOK := values[ordered[i]]
		if !aOK {
			continue
		}
		for j := i + 1; j < len(ordered); j++ {
			b, bOK := values[ordered[j]]
			if bOK && a != b {
				res.Conflicts = append(res.Conflicts,
					fmt.Sprintf("%s vs %s: %s ≠ %s", ordered[i], ordered[j], a, b))
			}
		}
	}
	return res
}

// peekBodyDeviceID extracts deviceId from a JSON body on write methods,
// restoring the body so handlers can still bind it.
func peekBodyDeviceID(c echo.Context) string {
	req := c.Request()
	switch req.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return ""
	}
	if req.Body == nil {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(req.Body, maxBodyPeek))
	req.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var probe struct {
		DeviceID string `json:"deviceId"`
	}
	if json.Unmarshal(raw, &probe) != nil {
		return ""
	}
	return probe.DeviceID
}

// SetDeviceCookie writes the identifier cookie: path /, SameSite=Lax,
// readable by client script (the client-side resolver mirrors it into
// local storage), long-lived.
func SetDeviceCookie(c echo.Context, deviceID string) {
	// Replace, never stack, Set-Cookie headers for this cookie.
	c.Response().Header().Del(echo.HeaderSetCookie)
	c.SetCookie(&http.Cookie{
		Name:     CookieDeviceID,
		Value:    deviceID,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		SameSite: http.SameSiteLaxMode,
		HttpOnly: false,
	})
}

// ClearDeviceCookie expires the identifier cookie, used by the purge flow.
func ClearDeviceCookie(c echo.Context) {
	c.Response().Header().Del(echo.HeaderSetCookie)
	c.SetCookie(&http.Cookie{
		Name:     CookieDeviceID,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
		HttpOnly: false,
	})
}
