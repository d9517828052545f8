// Package middleware provides Echo middleware for logging, metrics, CORS and
// security headers.
package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
)

// RouteKey is the echo.Context key under which the gateway handler stores the
// name of the matched route.
const RouteKey = "route"

// RouteName returns the matched route name, or "" when the request did not
// resolve to a gateway route.
func RouteName(c echo.Context) string {
	name, _ := c.Get(RouteKey).(string)
	return name
}

// RequestLogger returns an Echo middleware that logs each request with slog.
// Request headers are never logged.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			logger.Info("request",
				"method", req.Method,
				"path", req.URL.Path,
				"route", RouteName(c),
				"status", res.Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", res.Header().Get(echo.HeaderXRequestID),
				"remote_ip", c.RealIP(),
				"bytes_out", res.Size,
			)

			return err
		}
	}
}
