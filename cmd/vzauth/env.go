package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	vzauth "github.com/vocalizeai/vzauth"
)

// envConfig is the process environment relevant to the CLI.
type envConfig struct {
	APIBaseURL      string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	KeyPrefix       string
	RefreshInterval time.Duration
	ProfileTTL      time.Duration
	MetricsAddr     string
	VerifyMethod    string
	VerifyKey       string
	LoginAttempts   int
	LoginCooldown   time.Duration
}

// loadEnv reads the optional env files and then the environment. Values
// already set in the environment win over the files.
func loadEnv(files ...string) (envConfig, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return envConfig{}, fmt.Errorf("load env file: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return envConfig{}, fmt.Errorf("load .env: %w", err)
	}

	defaults := vzauth.DefaultConfig()

	interval, err := getDuration("VZ_REFRESH_INTERVAL", defaults.Refresh.Interval)
	if err != nil {
		return envConfig{}, err
	}
	ttl, err := getDuration("VZ_PROFILE_TTL", defaults.Profile.TTL)
	if err != nil {
		return envConfig{}, err
	}
	db, err := strconv.Atoi(getEnv("VZ_REDIS_DB", "0"))
	if err != nil {
		return envConfig{}, fmt.Errorf("VZ_REDIS_DB: %w", err)
	}
	attempts, err := strconv.Atoi(getEnv("VZ_LOGIN_MAX_ATTEMPTS", strconv.Itoa(defaults.LoginThrottle.MaxAttempts)))
	if err != nil {
		return envConfig{}, fmt.Errorf("VZ_LOGIN_MAX_ATTEMPTS: %w", err)
	}
	cooldown, err := getDuration("VZ_LOGIN_COOLDOWN", defaults.LoginThrottle.Cooldown)
	if err != nil {
		return envConfig{}, err
	}

	return envConfig{
		APIBaseURL:      getEnv("VZ_API_BASE_URL", "http://localhost:8090"),
		RedisAddr:       getEnv("VZ_REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("VZ_REDIS_PASSWORD", ""),
		RedisDB:         db,
		KeyPrefix:       getEnv("VZ_KEY_PREFIX", defaults.Store.KeyPrefix),
		RefreshInterval: interval,
		ProfileTTL:      ttl,
		MetricsAddr:     getEnv("VZ_METRICS_ADDR", ""),
		VerifyMethod:    strings.ToLower(getEnv("VZ_TOKEN_VERIFY_METHOD", "")),
		VerifyKey:       getEnv("VZ_TOKEN_VERIFY_KEY", ""),
		LoginAttempts:   attempts,
		LoginCooldown:   cooldown,
	}, nil
}

// managerConfig maps the environment onto a manager configuration.
func (e envConfig) managerConfig() (vzauth.Config, error) {
	cfg := vzauth.DefaultConfig()
	cfg.API.BaseURL = e.APIBaseURL
	cfg.Store.KeyPrefix = e.KeyPrefix
	cfg.Refresh.Interval = e.RefreshInterval
	if cfg.Refresh.TickTimeout > e.RefreshInterval {
		cfg.Refresh.TickTimeout = e.RefreshInterval
	}
	cfg.Profile.TTL = e.ProfileTTL

	// A zero attempt budget turns the throttle off.
	if e.LoginAttempts > 0 {
		cfg.LoginThrottle = vzauth.LoginThrottleConfig{
			Enabled:     true,
			MaxAttempts: e.LoginAttempts,
			Cooldown:    e.LoginCooldown,
		}
	}

	if e.VerifyKey != "" {
		cfg.Token.VerifySigningMethod = e.VerifyMethod
		switch e.VerifyMethod {
		case "hs256":
			cfg.Token.VerifyKey = []byte(e.VerifyKey)
		case "ed25519":
			// The key is a path to a PEM encoded public key.
			pem, err := os.ReadFile(e.VerifyKey)
			if err != nil {
				return vzauth.Config{}, fmt.Errorf("read verify key: %w", err)
			}
			cfg.Token.VerifyKey = pem
		default:
			return vzauth.Config{}, fmt.Errorf("VZ_TOKEN_VERIFY_METHOD must be hs256 or ed25519, got %q", e.VerifyMethod)
		}
	}
	return cfg, cfg.Validate()
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
