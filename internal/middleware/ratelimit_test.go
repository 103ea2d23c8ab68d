package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ventline/ventline-api/internal/config"
)

func setupLimiter(t *testing.T, limit int) (echo.MiddlewareFunc, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	cfg := config.RateLimitConfig{
		Enabled: true,
		Limit:   limit,
		Window:  time.Minute,
		TTL:     2 * time.Minute,
		Prefix:  "rl",
	}
	return RateLimit(cfg, rdb, "message.create"), s
}

func doLimited(t *testing.T, mw echo.MiddlewareFunc, deviceHash string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(resolutionKey, &Resolution{
		RawDeviceID:         "raw",
		EffectiveDeviceID:   "effective",
		EffectiveDeviceHash: deviceHash,
	})
	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	require.NoError(t, handler(c))
	return rec
}

func TestRateLimitAllowsWithinWindow(t *testing.T) {
	mw, _ := setupLimiter(t, 3)
	for i := 0; i < 3; i++ {
		rec := doLimited(t, mw, "hash-1")
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimitBlocksOverLimit(t *testing.T) {
	mw, _ := setupLimiter(t, 2)
	doLimited(t, mw, "hash-1")
	doLimited(t, mw, "hash-1")

	rec := doLimited(t, mw, "hash-1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitKeyedPerIdentity(t *testing.T) {
	mw, _ := setupLimiter(t, 1)
	assert.Equal(t, http.StatusOK, doLimited(t, mw, "hash-1").Code)
	assert.Equal(t, http.StatusOK, doLimited(t, mw, "hash-2").Code, "budgets are per identity hash")
	assert.Equal(t, http.StatusTooManyRequests, doLimited(t, mw, "hash-1").Code)
}

func TestRateLimitSharedAcrossMergedDevices(t *testing.T) {
	// Two raw devices resolving to the same effective hash share a budget.
	mw, _ := setupLimiter(t, 1)
	assert.Equal(t, http.StatusOK, doLimited(t, mw, "primary-hash").Code)
	assert.Equal(t, http.StatusTooManyRequests, doLimited(t, mw, "primary-hash").Code)
}

func TestRateLimitDisabledWithoutRedis(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Limit: 1, Window: time.Minute, TTL: 2 * time.Minute, Prefix: "rl"}
	mw := RateLimit(cfg, nil, "message.create")
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, doLimited(t, mw, "hash-1").Code)
	}
}

func TestRateLimitFailsOpenOnRedisOutage(t *testing.T) {
	mw, s := setupLimiter(t, 1)
	s.Close()
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doLimited(t, mw, "hash-1").Code, "limiter must not take the service down")
	}
}
