package vzauth

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/vocalizeai/vzauth/token"
)

// Config holds everything a [Manager] needs apart from its collaborators.
//
// Config instances are configured during initialization and then treated
// as immutable.
type Config struct {
	API           APIConfig
	Store         StoreConfig
	Refresh       RefreshConfig
	Profile       ProfileConfig
	Token         TokenConfig
	LoginThrottle LoginThrottleConfig
	Notifications NotificationConfig
	Metrics       MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig points the manager at the backend.
type APIConfig struct {
	BaseURL          string
	Timeout          time.Duration
	ReachableTimeout time.Duration
	UserAgent        string
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig controls the key layout of the credential and profile stores.
type StoreConfig struct {
	KeyPrefix string
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls the refresh schedule. Interval is fixed; it is
// not derived from the token's expiry.
type RefreshConfig struct {
	Interval    time.Duration
	TickTimeout time.Duration
}

// ProfileConfig controls profile cache freshness.
type ProfileConfig struct {
	TTL time.Duration
}

// TokenConfig optionally enables signature verification of issued tokens.
// With no VerifyKey tokens are decoded without verification.
type TokenConfig struct {
	VerifySigningMethod string // "ed25519" or "hs256"
	VerifyKey           []byte
}

// LoginThrottleConfig limits repeated rejected logins per email. After
// MaxAttempts rejections inside Cooldown, further logins for that email
// fail locally until the window ends.
type LoginThrottleConfig struct {
	Enabled     bool
	MaxAttempts int
	Cooldown    time.Duration
}

// NotificationConfig controls the user-visible notification dispatcher.
type NotificationConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull evicts the oldest queued notification when the buffer is
	// full rather than blocking the caller.
	DropIfFull bool
}

// MetricsConfig toggles the in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultRefreshInterval is the fixed period between scheduled refreshes.
const DefaultRefreshInterval = 15 * time.Minute

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			Timeout:          15 * time.Second,
			ReachableTimeout: 3 * time.Second,
			UserAgent:        "vzauth",
		},
		Store: StoreConfig{
			KeyPrefix: "vz",
		},
		Refresh: RefreshConfig{
			Interval:    DefaultRefreshInterval,
			TickTimeout: time.Minute,
		},
		Profile: ProfileConfig{
			TTL: 24 * time.Hour,
		},
		LoginThrottle: LoginThrottleConfig{
			MaxAttempts: 5,
			Cooldown:    15 * time.Minute,
		},
		Notifications: NotificationConfig{
			Enabled:    true,
			BufferSize: 64,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// DefaultConfig returns the configuration used by [New]. BaseURL is empty
// and must be set.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.VerifyKey = cloneBytes(cfg.Token.VerifyKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	// API
	base := strings.TrimSpace(c.API.BaseURL)
	if base == "" {
		return errors.New("API BaseURL is required")
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("API BaseURL must be an absolute http(s) URL")
	}
	if c.API.Timeout <= 0 {
		return errors.New("API Timeout must be > 0")
	}
	if c.API.ReachableTimeout <= 0 {
		return errors.New("API ReachableTimeout must be > 0")
	}

	// Store
	if strings.TrimSpace(c.Store.KeyPrefix) == "" {
		return errors.New("Store KeyPrefix must not be blank")
	}
	if strings.ContainsAny(c.Store.KeyPrefix, " \t\n") {
		return errors.New("Store KeyPrefix must not contain whitespace")
	}

	// Refresh
	if c.Refresh.Interval <= 0 {
		return errors.New("Refresh Interval must be > 0")
	}
	if c.Refresh.TickTimeout <= 0 {
		return errors.New("Refresh TickTimeout must be > 0")
	}
	if c.Refresh.TickTimeout > c.Refresh.Interval {
		return errors.New("Refresh TickTimeout must not exceed Interval")
	}

	// Profile
	if c.Profile.TTL <= 0 {
		return errors.New("Profile TTL must be > 0")
	}

	// Token
	if len(c.Token.VerifyKey) > 0 {
		switch token.SigningMethod(c.Token.VerifySigningMethod) {
		case token.MethodEd25519, token.MethodHS256:
		default:
			return errors.New("unsupported Token VerifySigningMethod")
		}
	}

	// Login throttle
	if c.LoginThrottle.Enabled {
		if c.LoginThrottle.MaxAttempts <= 0 {
			return errors.New("LoginThrottle MaxAttempts must be > 0 when enabled")
		}
		if c.LoginThrottle.Cooldown <= 0 {
			return errors.New("LoginThrottle Cooldown must be > 0 when enabled")
		}
	}

	// Notifications
	if c.Notifications.Enabled && c.Notifications.BufferSize <= 0 {
		return errors.New("Notifications BufferSize must be > 0 when enabled")
	}

	return nil
}
