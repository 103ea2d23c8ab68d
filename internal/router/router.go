package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4" // Echo web framework for routing
	"github.com/redis/go-redis/v9"

	"github.com/ventline/ventline-api/internal/config"
	"github.com/ventline/ventline-api/internal/handler"
	"github.com/ventline/ventline-api/internal/middleware"
)

// RegisterRoutes registers routes that require no device identity on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	// Used by load balancers and monitoring to verify the service is up.
	e.GET("/healthz", handler.Health(db))
}

// RegisterIdentity registers the journey and migration endpoints.  Every
// route here assumes the ResolveDevice middleware already ran; routes that
// act on the caller's identity additionally stack RequireDevice, and the
// write operations carry per-action rate limits keyed by effective
// identity hash.
func RegisterIdentity(e *echo.Echo, j *handler.JourneyHandler, m *handler.MigrationHandler, cfg config.Config, rl config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1/journey")
	// Issue a backup key for this device's journey.  The plaintext key is
	// returned once and never again.
	g.POST("/key", j.CreateKey, middleware.RequireDevice, middleware.RateLimit(rl, rdb, "journey.key"))
	// Redeem a backup key: link this device into the key's journey and
	// merge its history into the journey primary.
	g.POST("/attach", j.Attach, middleware.RequireDevice, middleware.RateLimit(rl, rdb, "journey.attach"))
	// Report this device's journey membership.
	g.GET("/status", j.Status, middleware.RequireDevice)
	// Remove this device from its journey.
	g.POST("/detach", j.Detach, middleware.RequireDevice)

	// Full local identity reset: detach and expire the cookie.
	e.POST("/v1/identity/purge", j.Purge, middleware.RequireDevice)

	mg := e.Group("/v1/migration")
	// Mint a single-use migration token on the old device.
	mg.POST("/token", m.CreateToken, middleware.RequireDevice, middleware.RateLimit(rl, rdb, "migration.token"))
	// Redeem a token on the new device.  No existing identity is required;
	// a factory-fresh device is the expected caller.
	mg.POST("/redeem", m.Redeem)

	if cfg.DebugIdentity {
		// Dumps the request's identity resolution.  Never registered in
		// production configs.
		e.GET("/v1/debug/identity", j.DebugIdentity)
	}
}

// RegisterContent registers the venting, response, stats and report
// endpoints.
func RegisterContent(e *echo.Echo, msg *handler.MessageHandler, rep *handler.ReportHandler, rl config.RateLimitConfig, rdb *redis.Client) {
	// The public feed works without an identity; everything else needs one.
	e.GET("/v1/messages", msg.List)
	e.GET("/v1/messages/:id/responses", msg.ListResponses)

	e.POST("/v1/messages", msg.Create, middleware.RequireDevice, middleware.RateLimit(rl, rdb, "message.create"))
	e.GET("/v1/messages/mine", msg.Mine, middleware.RequireDevice)
	e.POST("/v1/messages/:id/responses", msg.CreateResponse, middleware.RequireDevice, middleware.RateLimit(rl, rdb, "response.create"))
	e.GET("/v1/stats/me", msg.MyStats, middleware.RequireDevice)

	e.POST("/v1/reports", rep.Create, middleware.RequireDevice, middleware.RateLimit(rl, rdb, "report.create"))
}

// RegisterAdmin registers the operator surface.  Login exchanges the
// static operator credential for a session token; everything else sits
// behind the AdminAuth middleware.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	e.POST("/v1/admin/login", a.Login)

	g := e.Group("/v1/admin")
	g.Use(middleware.AdminAuth(jwtSecret))
	g.GET("/reports", a.OpenReports)
	g.POST("/reports/:id/resolve", a.ResolveReport)
	g.POST("/messages/:id/status", a.SetMessageStatus)
}
