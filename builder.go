package vzauth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vocalizeai/vzauth/api"
	"github.com/vocalizeai/vzauth/credential"
	"github.com/vocalizeai/vzauth/internal/flows"
	"github.com/vocalizeai/vzauth/internal/notify"
	"github.com/vocalizeai/vzauth/internal/rate"
	"github.com/vocalizeai/vzauth/profile"
	"github.com/vocalizeai/vzauth/schedule"
	"github.com/vocalizeai/vzauth/token"
	"go.uber.org/zap"
)

// Builder assembles a [Manager].
//
// Builder instances are configured during initialization and used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	logger *zap.Logger

	httpClient *http.Client
	backend    Backend
	reach      profile.Reachability
	sink       NotificationSink

	now       func() time.Time
	newTicker schedule.TickerFactory

	built bool
}

// New returns a builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets the backend base URL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.API.BaseURL = baseURL
	return b
}

// WithRedis sets the Redis-protocol client backing the credential store
// and the profile cache. It is required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the structured logger. Nil means no logging.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithHTTPClient sets the client used by the default backend.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithBackend replaces the HTTP backend entirely. When set, API config is
// only validated, not used.
func (b *Builder) WithBackend(backend Backend) *Builder {
	b.backend = backend
	return b
}

// WithReachability overrides the connectivity probe used by the profile
// cache. By default the backend's own probe is used.
func (b *Builder) WithReachability(r profile.Reachability) *Builder {
	b.reach = r
	return b
}

// WithNotificationSink sets where user-visible notifications go. The
// default writes them to the logger.
func (b *Builder) WithNotificationSink(sink NotificationSink) *Builder {
	b.sink = sink
	return b
}

// WithMetricsEnabled toggles metric collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithClock sets the time source used for expiry and cache freshness.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithTickerFactory replaces the refresh schedule's ticker.
func (b *Builder) WithTickerFactory(f schedule.TickerFactory) *Builder {
	b.newTicker = f
	return b
}

// Build validates the configuration and wires the manager. The manager
// starts in StateCheckingToken; call [Manager.CheckToken] next.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- BACKEND --------
	backend := b.backend
	if backend == nil {
		client, err := api.NewClient(api.Config{
			BaseURL:          cfg.API.BaseURL,
			Timeout:          cfg.API.Timeout,
			ReachableTimeout: cfg.API.ReachableTimeout,
			UserAgent:        cfg.API.UserAgent,
		}, b.httpClient, logger.Named("api"))
		if err != nil {
			return nil, err
		}
		backend = client
	}

	// -------- TOKEN CODEC --------
	codec, err := token.NewCodec(token.VerifyConfig{
		SigningMethod: token.SigningMethod(cfg.Token.VerifySigningMethod),
		Key:           cfg.Token.VerifyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}

	// -------- STORES --------
	store := credential.NewStore(b.redis, cfg.Store.KeyPrefix)

	reach := b.reach
	if reach == nil {
		reach = backend
	}
	profiles := profile.NewCache(b.redis, store, backend, reach, profile.Options{
		TTL:    cfg.Profile.TTL,
		Prefix: cfg.Store.KeyPrefix,
		Logger: logger.Named("profile"),
		Now:    now,
	})

	// -------- SCHEDULER --------
	scheduler := schedule.New(schedule.Options{
		Period:      cfg.Refresh.Interval,
		TickTimeout: cfg.Refresh.TickTimeout,
		Logger:      logger.Named("schedule"),
		NewTicker:   b.newTicker,
	})

	// -------- NOTIFICATIONS --------
	sink := b.sink
	if sink == nil {
		sink = notify.LoggerSink{Logger: logger.Named("notify")}
	}
	notifier := notify.NewDispatcher(notify.Config{
		Enabled:    cfg.Notifications.Enabled,
		BufferSize: cfg.Notifications.BufferSize,
		DropIfFull: cfg.Notifications.DropIfFull,
	}, sink)

	m := &Manager{
		config:    cfg,
		logger:    logger,
		backend:   backend,
		store:     store,
		profiles:  profiles,
		scheduler: scheduler,
		notifier:  notifier,
		metrics:   NewMetrics(cfg.Metrics),
		state:     StateCheckingToken,
	}

	// -------- FLOWS --------
	loginDeps := flows.LoginDeps{
		Backend: backend,
		Codec:   codec,
		Store:   store,
		Commit:  m.commit,
		Logger:  logger.Named("login"),
	}
	if cfg.LoginThrottle.Enabled {
		loginDeps.Throttle = rate.New(b.redis, rate.Config{
			Prefix:           cfg.Store.KeyPrefix,
			MaxLoginAttempts: cfg.LoginThrottle.MaxAttempts,
			LoginCooldown:    cfg.LoginThrottle.Cooldown,
		})
	}
	refreshDeps := flows.RefreshDeps{
		Backend: backend,
		Codec:   codec,
		Store:   store,
		Commit:  m.commit,
	}
	m.flows = flows.New(flows.Deps{
		Login:   loginDeps,
		Refresh: refreshDeps,
		Launch: flows.LaunchDeps{
			Store:   store,
			Refresh: refreshDeps,
			Now:     now,
		},
		Logout: flows.LogoutDeps{
			Advance:       m.advance,
			StopScheduler: scheduler.Stop,
			Store:         store,
			Commit:        m.commit,
		},
		Register: flows.RegisterDeps{
			Backend: backend,
			Login:   loginDeps,
		},
	})

	b.built = true
	return m, nil
}
