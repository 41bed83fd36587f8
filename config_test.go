package vzauth

import (
	"testing"
	"time"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.API.BaseURL = "https://api.example.com"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with base url",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "missing base url",
			mutate: func(c *Config) {
				c.API.BaseURL = "  "
			},
			wantValid: false,
		},
		{
			name: "relative base url",
			mutate: func(c *Config) {
				c.API.BaseURL = "/api"
			},
			wantValid: false,
		},
		{
			name: "non http scheme",
			mutate: func(c *Config) {
				c.API.BaseURL = "ftp://api.example.com"
			},
			wantValid: false,
		},
		{
			name: "zero timeout",
			mutate: func(c *Config) {
				c.API.Timeout = 0
			},
			wantValid: false,
		},
		{
			name: "blank key prefix",
			mutate: func(c *Config) {
				c.Store.KeyPrefix = " "
			},
			wantValid: false,
		},
		{
			name: "key prefix with whitespace",
			mutate: func(c *Config) {
				c.Store.KeyPrefix = "vz app"
			},
			wantValid: false,
		},
		{
			name: "custom refresh interval",
			mutate: func(c *Config) {
				c.Refresh.Interval = 5 * time.Minute
				c.Refresh.TickTimeout = 30 * time.Second
			},
			wantValid: true,
		},
		{
			name: "tick timeout longer than interval",
			mutate: func(c *Config) {
				c.Refresh.Interval = time.Second
				c.Refresh.TickTimeout = time.Minute
			},
			wantValid: false,
		},
		{
			name: "zero profile ttl",
			mutate: func(c *Config) {
				c.Profile.TTL = 0
			},
			wantValid: false,
		},
		{
			name: "verify key with hs256",
			mutate: func(c *Config) {
				c.Token.VerifySigningMethod = "hs256"
				c.Token.VerifyKey = []byte("k")
			},
			wantValid: true,
		},
		{
			name: "verify key with unknown method",
			mutate: func(c *Config) {
				c.Token.VerifySigningMethod = "rs256"
				c.Token.VerifyKey = []byte("k")
			},
			wantValid: false,
		},
		{
			name: "notifications without buffer",
			mutate: func(c *Config) {
				c.Notifications.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "disabled notifications ignore buffer",
			mutate: func(c *Config) {
				c.Notifications.Enabled = false
				c.Notifications.BufferSize = 0
			},
			wantValid: true,
		},
		{
			name: "throttle enabled with defaults",
			mutate: func(c *Config) {
				c.LoginThrottle.Enabled = true
			},
			wantValid: true,
		},
		{
			name: "throttle without attempts",
			mutate: func(c *Config) {
				c.LoginThrottle.Enabled = true
				c.LoginThrottle.MaxAttempts = 0
			},
			wantValid: false,
		},
		{
			name: "throttle without cooldown",
			mutate: func(c *Config) {
				c.LoginThrottle = LoginThrottleConfig{Enabled: true, MaxAttempts: 3}
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected invalid config")
			}
		})
	}
}

func TestDefaultRefreshIntervalIsFifteenMinutes(t *testing.T) {
	if got := DefaultConfig().Refresh.Interval; got != 15*time.Minute {
		t.Fatalf("default interval = %v", got)
	}
}

func TestCloneConfigCopiesVerifyKey(t *testing.T) {
	cfg := validConfig()
	cfg.Token.VerifyKey = []byte("secret")

	clone := cloneConfig(cfg)
	clone.Token.VerifyKey[0] = 'X'
	if string(cfg.Token.VerifyKey) != "secret" {
		t.Fatalf("clone shares key bytes: %q", cfg.Token.VerifyKey)
	}
}
