package authclient

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds every tunable of a Client.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	HTTP      HTTPConfig
	Endpoints EndpointsConfig
	Refresh   RefreshConfig
	Session   SessionConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
HTTP CONFIG
====================================
*/

// HTTPConfig controls the base requester.
type HTTPConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// RequestIDHeader names the header carrying the per-call request ID.
	// Empty disables the header.
	RequestIDHeader string
}

/*
====================================
ENDPOINTS CONFIG
====================================
*/

// EndpointsConfig lists the backend auth paths, relative to BaseURL.
type EndpointsConfig struct {
	Login   string
	Refresh string
	Me      string
	Logout  string
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls the refresh coordinator.
type RefreshConfig struct {
	// Timeout bounds one refresh call. Zero disables the bound.
	Timeout time.Duration
	// ExpiresInMins is sent with login and refresh bodies when positive.
	ExpiresInMins int
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session persistence defaults used by the CLI and
// Redis persister construction.
type SessionConfig struct {
	RedisPrefix string
	PersistTTL  time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls asynchronous audit dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls the in-process metrics registry.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration used by New.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			BaseURL:         "https://dummyjson.com",
			Timeout:         15 * time.Second,
			UserAgent:       "authclient/1",
			RequestIDHeader: "X-Request-Id",
		},
		Endpoints: EndpointsConfig{
			Login:   "/auth/login",
			Refresh: "/auth/refresh",
			Me:      "/auth/me",
			Logout:  "/auth/logout",
		},
		Refresh: RefreshConfig{
			Timeout: 30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix: "authclient",
			PersistTTL:  7 * 24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("nil config")
	}

	base := strings.TrimSpace(c.HTTP.BaseURL)
	if base == "" {
		return errors.New("HTTP.BaseURL required")
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("HTTP.BaseURL must be an absolute http(s) URL")
	}
	if c.HTTP.Timeout < 0 {
		return errors.New("HTTP.Timeout must be >= 0")
	}
	if c.HTTP.RequestIDHeader != "" && http.CanonicalHeaderKey(c.HTTP.RequestIDHeader) == "Authorization" {
		return errors.New("HTTP.RequestIDHeader cannot be Authorization")
	}

	for name, path := range map[string]string{
		"Endpoints.Login":   c.Endpoints.Login,
		"Endpoints.Refresh": c.Endpoints.Refresh,
		"Endpoints.Me":      c.Endpoints.Me,
		"Endpoints.Logout":  c.Endpoints.Logout,
	} {
		if !strings.HasPrefix(path, "/") {
			return errors.New(name + " must start with /")
		}
	}

	if c.Refresh.Timeout < 0 {
		return errors.New("Refresh.Timeout must be >= 0")
	}
	if c.Refresh.ExpiresInMins < 0 {
		return errors.New("Refresh.ExpiresInMins must be >= 0")
	}

	if c.Session.PersistTTL < 0 {
		return errors.New("Session.PersistTTL must be >= 0")
	}
	if strings.ContainsAny(c.Session.RedisPrefix, " \t\r\n") {
		return errors.New("Session.RedisPrefix cannot contain whitespace")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit.BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics.EnableLatencyHistograms requires Metrics.Enabled")
	}

	return nil
}
