package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"merweb-gateway/internal/config"
	"merweb-gateway/internal/route"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	table   *route.Table
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, table *route.Table, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, table: table, version: v}
}

// Healthz returns a simple OK response for liveness probes. It does not
// contact the backend.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// statusResponse is the body of GET /gateway/status.
type statusResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	BackendURL string `json:"backend_url"`
	Routes     int    `json:"routes"`
}

// Status returns gateway status information.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Status:     "ok",
		Version:    string(h.version),
		BackendURL: h.cfg.Backend.BaseURL,
		Routes:     len(h.table.Endpoints()),
	})
}
