// Package config handles TOML configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	toml "github.com/pelletier/go-toml/v2"

	"merweb-gateway/internal/route"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/merweb-gateway/config.toml",
	"configs/config.toml",
}

// reservedPaths are route prefixes the metrics endpoint must not shadow.
var reservedPaths = []string{"/api", "/healthz", "/gateway/status"}

func init() {
	validation.ErrorTag = "toml"
}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config     string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host       string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port       int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	BackendURL string `kong:"help='Backend base URL (overrides config).',env='BACKEND_URL'"`
	LogLevel   string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server        ServerConfig      `toml:"server"`
	Backend       BackendConfig     `toml:"backend"`
	CORS          CORSConfig        `toml:"cors"`
	RoutePolicies map[string]string `toml:"route_policies"`
	Log           LogConfig         `toml:"log"`
	Metrics       MetricsConfig     `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"` // 0 means "use default" (8001); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64  `toml:"body_max_bytes"`
}

// BackendConfig holds the backend address and outbound pool settings.
type BackendConfig struct {
	BaseURL         string `toml:"base_url"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	IdleConnections int    `toml:"idle_connections"`
	MaxConnsPerHost int    `toml:"max_conns_per_host"` // 0 means unlimited
}

// CORSConfig lists browser origins allowed to call the gateway cross-origin.
type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/merweb-gateway/config.toml then configs/config.toml.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path == "" {
		return nil, fmt.Errorf("config: no config file found (searched %v)", configSearchPaths)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.filePath = path
	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.BackendURL != "" {
		c.Backend.BaseURL = cli.BackendURL
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	if err := validation.ValidateStruct(&c.Server,
		validation.Field(&c.Server.Port, validation.Min(0), validation.Max(65535)),
		validation.Field(&c.Server.BodyMaxBytes, validation.Min(int64(0))),
	); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := validation.ValidateStruct(&c.Backend,
		validation.Field(&c.Backend.BaseURL, validation.Required, validation.By(httpScheme)),
		validation.Field(&c.Backend.TimeoutSeconds, validation.Min(0)),
		validation.Field(&c.Backend.IdleConnections, validation.Min(0)),
		validation.Field(&c.Backend.MaxConnsPerHost, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("backend: %w", err)
	}

	if err := validation.ValidateStruct(&c.CORS,
		validation.Field(&c.CORS.AllowedOrigins, validation.Each(validation.By(origin))),
	); err != nil {
		return fmt.Errorf("cors: %w", err)
	}

	if err := validation.Validate(c.RoutePolicies, validation.Each(validation.By(policy))); err != nil {
		return fmt.Errorf("route_policies: %w", err)
	}

	level := strings.ToLower(c.Log.Level)
	format := strings.ToLower(c.Log.Format)
	logErrs := validation.Errors{
		"level":  validation.Validate(level, validation.In("debug", "info", "warn", "error")),
		"format": validation.Validate(format, validation.In("json", "text")),
	}
	if err := logErrs.Filter(); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	if c.Metrics.Enabled {
		if err := validation.ValidateStruct(&c.Metrics,
			validation.Field(&c.Metrics.Path, validation.By(metricsPath)),
		); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	return nil
}

func httpScheme(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "must use http or https")
	}
	if u.Host == "" {
		return validation.NewError("validation_missing_host", "must have a host")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return validation.NewError("validation_invalid_url", "must not carry a query or fragment")
	}
	return nil
}

func origin(value any) error {
	s, _ := value.(string)
	if s == "*" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return validation.NewError("validation_invalid_origin", "must be \"*\" or scheme://host[:port]")
	}
	if u.Path != "" && u.Path != "/" {
		return validation.NewError("validation_invalid_origin", "must not contain a path")
	}
	return nil
}

func policy(value any) error {
	s, _ := value.(string)
	if _, err := route.ParsePolicy(s); err != nil {
		return validation.NewError("validation_invalid_policy", err.Error())
	}
	return nil
}

func metricsPath(value any) error {
	p, _ := value.(string)
	if p == "" {
		return nil
	}
	if p[0] != '/' {
		return errors.New("must start with '/'")
	}
	for _, reserved := range reservedPaths {
		if p == reserved || strings.HasPrefix(p, reserved+"/") {
			return fmt.Errorf("conflicts with reserved route %q", reserved)
		}
	}
	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields, zero means "unset" because TOML cannot distinguish between
// an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8001
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")
	if c.Backend.TimeoutSeconds == 0 {
		c.Backend.TimeoutSeconds = 30
	}
	if c.Backend.IdleConnections == 0 {
		c.Backend.IdleConnections = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// FilePath returns the config file Load read from.
func (c *Config) FilePath() string {
	return c.filePath
}
