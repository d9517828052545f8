package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"merweb-gateway/internal/middleware"
	"merweb-gateway/internal/model"
	"merweb-gateway/internal/route"
	"merweb-gateway/internal/service"
)

// GatewayHandler serves every /api route from the route table.
type GatewayHandler struct {
	table     *route.Table
	forwarder *service.Forwarder
	logger    *slog.Logger
}

// NewGatewayHandler creates a GatewayHandler.
func NewGatewayHandler(table *route.Table, fwd *service.Forwarder, logger *slog.Logger) *GatewayHandler {
	return &GatewayHandler{
		table:     table,
		forwarder: fwd,
		logger:    logger.With("component", "gateway_handler"),
	}
}

// Handle resolves the request against the route table, forwards it and
// writes the reply. Requests that match no route get Echo's 404.
func (h *GatewayHandler) Handle(c echo.Context) error {
	req := c.Request()

	m, ok := h.table.Lookup(req.Method, req.URL.EscapedPath())
	if !ok {
		return echo.ErrNotFound
	}
	c.Set(middleware.RouteKey, m.Endpoint.Name)

	in := &model.InboundRequest{
		Method: req.Method,
		Query:  req.URL.Query(),
		Header: req.Header,
	}

	if m.Endpoint.Body == route.BodyForward {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return h.bodyError(c, m.Endpoint, err)
		}
		in.Body = body
	}

	reply := h.forwarder.Forward(req.Context(), m, in)

	if reply.Location != "" {
		c.Response().Header().Set(echo.HeaderLocation, reply.Location)
	}
	if len(reply.Body) == 0 {
		return c.NoContent(reply.Status)
	}
	return c.Blob(reply.Status, reply.ContentType, reply.Body)
}

// bodyError maps a failure to read the inbound body. The body limit
// middleware reports oversized bodies as an *echo.HTTPError.
func (h *GatewayHandler) bodyError(c echo.Context, ep *route.Endpoint, err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	h.logger.Warn("reading request body",
		"route", ep.Name,
		"err", err,
	)
	return c.JSON(http.StatusBadRequest, model.Envelope{
		Error:   true,
		Message: ep.Operation + " failed: unreadable request body",
	})
}
