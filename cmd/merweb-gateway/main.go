package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"

	"merweb-gateway/internal/client"
	"merweb-gateway/internal/config"
	"merweb-gateway/internal/handler"
	"merweb-gateway/internal/metrics"
	"merweb-gateway/internal/middleware"
	"merweb-gateway/internal/route"
	"merweb-gateway/internal/service"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("merweb-gateway"),
		kong.Description("HTTP gateway forwarding the Merweb API to its backend."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			metrics.New,
			newRouteTable,
			newEcho,
			client.NewBackendClient,
			service.NewForwarder,
			handler.NewGatewayHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(handler.RegisterRoutes, startServer),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

func newRouteTable(cfg *config.Config, logger *slog.Logger) (*route.Table, error) {
	table, err := route.NewTable(cfg.RoutePolicies)
	if err != nil {
		return nil, fmt.Errorf("route table: %w", err)
	}
	for _, ep := range table.Endpoints() {
		if ep.Policy != route.PolicyDefault {
			logger.Info("route policy", "route", ep.Name, "policy", ep.Policy.String())
		}
	}
	return table, nil
}

func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.ReadTimeout = 30 * time.Second
	// Bounded by the backend client timeout plus headroom for writing the reply.
	e.Server.WriteTimeout = time.Duration(cfg.Backend.TimeoutSeconds+10) * time.Second
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.MetricsMiddleware(m))
	if len(cfg.CORS.AllowedOrigins) > 0 {
		e.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
		logger.Info("cors enabled", "origins", cfg.CORS.AllowedOrigins)
	}
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))
	e.Use(middleware.SecurityHeaders())

	return e
}

func startServer(lc fx.Lifecycle, e *echo.Echo, bc *client.BackendClient, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting server",
				"addr", addr,
				"config", cfg.FilePath(),
				"backend", cfg.Backend.BaseURL,
				"timeout_seconds", cfg.Backend.TimeoutSeconds,
			)
			go func() {
				if err := e.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			err := e.Shutdown(ctx)
			bc.Close()
			return err
		},
	})
}
