// Package service implements the core forwarding logic: building the backend
// request, dispatching it, and translating the outcome for the caller.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"merweb-gateway/internal/client"
	"merweb-gateway/internal/config"
	"merweb-gateway/internal/metrics"
	"merweb-gateway/internal/model"
	"merweb-gateway/internal/route"
)

var (
	// ErrInvalidParam is returned when a path variable or query parameter does
	// not parse as its declared kind.
	ErrInvalidParam = errors.New("invalid parameter")
	// ErrInvalidBody is returned when a bodied route receives no JSON object.
	ErrInvalidBody = errors.New("request body must be a JSON object")
)

// Forwarder turns one inbound request into one backend call and one reply.
// It holds no per-request state and is safe for concurrent use.
type Forwarder struct {
	client  *client.BackendClient
	baseURL string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewForwarder creates a Forwarder targeting cfg.Backend.BaseURL.
// The metrics parameter is optional.
func NewForwarder(c *client.BackendClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Forwarder {
	return &Forwarder{
		client:  c,
		baseURL: strings.TrimRight(cfg.Backend.BaseURL, "/"),
		logger:  logger.With("component", "forwarder"),
		metrics: m,
	}
}

// Forward resolves, dispatches and translates a matched request. It always
// returns a reply; failures are expressed as JSON envelopes.
//
// The backend call is detached from ctx cancellation: a caller that hangs up
// does not abort it. The client timeout still bounds it.
func (f *Forwarder) Forward(ctx context.Context, m route.Match, in *model.InboundRequest) model.Reply {
	ep := m.Endpoint

	target, resolved, err := f.BuildURL(ep, m.Params, in.Query)
	if err != nil {
		return f.reject(ep, err)
	}

	body, err := outboundBody(ep, in.Body)
	if err != nil {
		return f.reject(ep, err)
	}

	out := &model.OutboundRequest{
		Method: ep.Method,
		URL:    target,
		Header: propagateHeaders(in.Header, ep.HasBody()),
		Body:   body,
	}

	f.logger.Debug("forwarding request",
		"route", ep.Name,
		"method", out.Method,
	)

	outcome := f.client.Dispatch(context.WithoutCancel(ctx), out)
	f.record(ep, outcome)

	return f.Translate(ep, resolved, outcome)
}

func (f *Forwarder) record(ep *route.Endpoint, o model.Outcome) {
	if f.metrics != nil {
		f.metrics.Outcomes.WithLabelValues(ep.Name, o.Kind.String()).Inc()
	}

	switch o.Kind {
	case model.OutcomeServerFailure:
		f.logger.Warn("backend server failure",
			"route", ep.Name,
			"status", o.Status,
			"policy", ep.Policy.String(),
		)
	case model.OutcomeTransportFailure:
		f.logger.Error("backend unavailable",
			"route", ep.Name,
			"err", o.Cause,
		)
	}
}

// reject answers a request that was refused before dispatch.
func (f *Forwarder) reject(ep *route.Endpoint, err error) model.Reply {
	f.logger.Debug("request rejected", "route", ep.Name, "err", err)
	return envelopeReply(http.StatusBadRequest, model.Envelope{
		Error:   true,
		Message: fmt.Sprintf("%s failed: %v", ep.Operation, err),
	})
}

func outboundBody(ep *route.Endpoint, inbound []byte) ([]byte, error) {
	switch ep.Body {
	case route.BodyForward:
		if !isJSONObject(inbound) {
			return nil, ErrInvalidBody
		}
		return inbound, nil
	case route.BodyEmptyObject:
		return []byte("{}"), nil
	default:
		return nil, nil
	}
}
