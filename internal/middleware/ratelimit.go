package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/ventline/ventline-api/internal/config"
)

// RateLimit returns a counted fixed-window limiter for one named action.
// The counter key is (action, effective identity hash, window start), so a
// device that merged into a journey shares its budget with the journey's
// primary identity.  When Redis is unavailable the limiter lets requests
// through rather than taking the service down with it.
func RateLimit(cfg config.RateLimitConfig, rdb *redis.Client, action string) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			res := ResolutionFrom(c)
			if res == nil {
				// Identity-less requests are rejected by RequireDevice;
				// nothing sensible to count here.
				return next(c)
			}

			now := time.Now()
			windowStart := now.Truncate(cfg.Window)
			key := fmt.Sprintf("%s:%s:%s:%d", cfg.Prefix, action, res.EffectiveDeviceHash, windowStart.Unix())

			ctx := c.Request().Context()
			pipe := rdb.TxPipeline()
			count := pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, cfg.TTL)
			if _, err := pipe.Exec(ctx); err != nil {
				if cfg.Debug {
					c.Logger().Warnf("[ratelimit] redis error for key=%s: %v", key, err)
				}
				return next(c)
			}

			used := count.Val()
			remaining := int64(cfg.Limit) - used
			if remaining < 0 {
				remaining = 0
			}
			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if used > int64(cfg.Limit) {
				retry := int(windowStart.Add(cfg.Window).Sub(now).Seconds()) + 1
				c.Response().Header().Set("Retry-After", strconv.Itoa(retry))
				if cfg.Debug {
					c.Logger().Infof("[ratelimit] block action=%s key=%s used=%d", action, key, used)
				}
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded, slow down a little",
					"retry_after": retry,
				})
			}
			return next(c)
		}
	}
}
