// Command vzauth signs a device in to the Vocalize backend and keeps the
// session alive from the terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	vzauth "github.com/vocalizeai/vzauth"
	"go.uber.org/zap"
)

const (
	Version = "0.1.0"
	appName = "vzauth"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	envFiles  []string
	logLevel  string
	ephemeral bool
	redisAddr string
	baseURL   string
}

func rootCmd(out io.Writer) *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Device session manager for the Vocalize backend",
		Long: `vzauth logs a device in, persists its bearer token in Redis,
refreshes it on a fixed schedule and serves the cached user profile.

Configuration is read from the environment (VZ_*) and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)

	flags := cmd.PersistentFlags()
	flags.StringSliceVar(&g.envFiles, "env-file", nil, "Env files to load (default .env if present)")
	flags.StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flags.BoolVar(&g.ephemeral, "ephemeral", false, "Use an in-memory Redis that is discarded on exit")
	flags.StringVar(&g.redisAddr, "redis-addr", "", "Redis address (overrides VZ_REDIS_ADDR)")
	flags.StringVar(&g.baseURL, "api-base-url", "", "Backend base URL (overrides VZ_API_BASE_URL)")

	cmd.AddCommand(
		loginCmd(g),
		logoutCmd(g),
		statusCmd(g),
		profileCmd(g),
		watchCmd(g),
		registerCmd(g),
		confirmCmd(g),
		resendCmd(g),
		resetCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)

	return cmd
}

// session is a built manager plus everything that must be released with it.
type session struct {
	manager *vzauth.Manager
	env     envConfig
	logger  *zap.Logger
	closers []func()
}

func (s *session) Close() {
	s.manager.Close()
	s.runClosers()
}

type sessionOption func(*vzauth.Builder)

func (g *globals) open(opts ...sessionOption) (*session, error) {
	var files []string
	if len(g.envFiles) > 0 {
		files = g.envFiles
	}
	env, err := loadEnv(files...)
	if err != nil {
		return nil, err
	}
	if g.redisAddr != "" {
		env.RedisAddr = g.redisAddr
	}
	if g.baseURL != "" {
		env.APIBaseURL = g.baseURL
	}

	cfg, err := env.managerConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(g.logLevel)
	if err != nil {
		return nil, err
	}
	s := &session{env: env, logger: logger}
	s.closers = append(s.closers, func() { _ = logger.Sync() })

	var client *redis.Client
	if g.ephemeral {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start in-memory redis: %w", err)
		}
		s.closers = append(s.closers, mr.Close)
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:     env.RedisAddr,
			Password: env.RedisPassword,
			DB:       env.RedisDB,
		})
	}
	s.closers = append(s.closers, func() { _ = client.Close() })

	if err := client.Ping(context.Background()).Err(); err != nil {
		s.runClosers()
		return nil, fmt.Errorf("redis %s: %w", env.RedisAddr, err)
	}

	b := vzauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(logger)
	for _, opt := range opts {
		opt(b)
	}
	m, err := b.Build()
	if err != nil {
		s.runClosers()
		return nil, err
	}
	s.manager = m
	return s, nil
}

func (s *session) runClosers() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	return cfg.Build()
}
