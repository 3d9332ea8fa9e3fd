package authclient

import (
	"errors"
	"io"
	"net/http"

	"github.com/MrEthical07/authclient/internal/audit"
	"github.com/MrEthical07/authclient/refresh"
	"github.com/MrEthical07/authclient/session"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Builder assembles a Client. A Builder can be built once.
type Builder struct {
	config Config

	redis     redis.UniversalClient
	sessionID string
	persister session.Persister

	httpClient *http.Client
	logger     logrus.FieldLogger
	auditSink  AuditSink

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration. Later With* calls still
// override single fields.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL overrides Config.HTTP.BaseURL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.HTTP.BaseURL = baseURL
	return b
}

// WithRedis persists the session in Redis under
// "<Session.RedisPrefix>:cs:<sessionID>". WithPersister takes precedence.
func (b *Builder) WithRedis(client redis.UniversalClient, sessionID string) *Builder {
	b.redis = client
	b.sessionID = sessionID
	return b
}

// WithPersister sets the session persistence backend. Without one the
// session lives in memory only.
func (b *Builder) WithPersister(p session.Persister) *Builder {
	b.persister = p
	return b
}

// WithHTTPClient sets the underlying transport client.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithLogger sets the logger; by default logs are discarded.
func (b *Builder) WithLogger(logger logrus.FieldLogger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets where audit events go when Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process metrics registry.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles request latency buckets. Requires metrics.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the client.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	// -------- SESSION --------
	persister := b.persister
	if persister == nil && b.redis != nil {
		persister = session.NewRedisPersister(b.redis, cfg.Session.RedisPrefix, b.sessionID, cfg.Session.PersistTTL)
	}
	store := session.NewStore()
	controller := session.NewController(store, persister, logger.WithField("component", "session"))

	c := &Client{
		config:     cfg,
		controller: controller,
		logger:     logger,
		metrics:    NewMetrics(cfg.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}
	c.requester = newRequester(cfg.HTTP, b.httpClient, store, logger.WithField("component", "requester"))

	// -------- REFRESH --------
	coordinator, err := refresh.NewCoordinator(refresh.Config{
		Tokens:         store,
		Endpoint:       refresh.EndpointFunc(c.refreshTokens),
		Committer:      controller,
		IsUnauthorized: isUnauthorized,
		Timeout:        cfg.Refresh.Timeout,
		Observer:       refreshObserver{c: c},
		Logger:         logger.WithField("component", "refresh"),
	})
	if err != nil {
		c.audit.Close()
		return nil, err
	}
	c.coordinator = coordinator

	b.built = true

	return c, nil
}
