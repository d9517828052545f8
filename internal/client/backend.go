// Package client provides the pooled HTTP client used to call the backend API.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"merweb-gateway/internal/config"
	"merweb-gateway/internal/metrics"
	"merweb-gateway/internal/model"
)

// BackendClient sends requests to the backend API. It is built once at
// startup and shared by every request handler.
type BackendClient struct {
	httpClient *http.Client
	transport  *http.Transport
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewBackendClient creates a BackendClient with a bounded connection pool.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewBackendClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *BackendClient {
	transport := &http.Transport{
		MaxIdleConns:        cfg.Backend.IdleConnections,
		MaxIdleConnsPerHost: cfg.Backend.IdleConnections,
		MaxConnsPerHost:     cfg.Backend.MaxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &BackendClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
			// Redirects are relayed to the caller, not followed.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		transport: transport,
		logger:    logger.With("component", "backend_client"),
		metrics:   m,
	}
}

// Dispatch sends exactly one request to the backend and classifies the result.
// It never retries. The response body is fully read and closed before returning,
// so the connection goes back to the pool whatever the outcome.
func (c *BackendClient) Dispatch(ctx context.Context, out *model.OutboundRequest) model.Outcome {
	var body io.Reader
	if out.Body != nil {
		body = bytes.NewReader(out.Body)
	}

	req, err := http.NewRequestWithContext(ctx, out.Method, out.URL, body)
	if err != nil {
		return transportFailure(fmt.Errorf("build backend request: %w", err))
	}
	req.Header = out.Header

	c.logger.Debug("backend request",
		"method", req.Method,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	method := metrics.NormalizeMethod(req.Method)

	if err != nil {
		c.observe(method, "", start)
		return transportFailure(fmt.Errorf("backend request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	c.observe(method, strconv.Itoa(resp.StatusCode), start)
	if err != nil {
		return transportFailure(fmt.Errorf("read backend response: %w", err))
	}

	outcome := model.Outcome{
		Kind:        model.Classify(resp.StatusCode),
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		outcome.Location = resp.Header.Get("Location")
	}
	return outcome
}

func (c *BackendClient) observe(method, status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if status != "" {
		c.metrics.UpstreamResponses.WithLabelValues(method, status).Inc()
	}
}

// Close releases idle pooled connections. It is called once at shutdown.
func (c *BackendClient) Close() {
	c.transport.CloseIdleConnections()
}

func transportFailure(err error) model.Outcome {
	return model.Outcome{Kind: model.OutcomeTransportFailure, Cause: err}
}
