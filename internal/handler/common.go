package handler

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
)

// contextWithTimeout derives a bounded context from the request. Every
// handler caps its store work so a wedged database cannot pin goroutines.
func contextWithTimeout(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), d)
}
