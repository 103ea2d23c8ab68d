package handler

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health reports liveness plus database reachability.
func Health(db *sql.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := contextWithTimeout(c, 2*time.Second)
		defer cancel()

		status := http.StatusOK
		dbState := "up"
		if err := db.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			dbState = "down"
		}
		return c.JSON(status, echo.Map{"status": "ok", "db": dbState})
	}
}
