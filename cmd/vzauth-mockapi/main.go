// Command vzauth-mockapi serves an in-memory stand-in for the Vocalize
// backend so the CLI and the load test can run without the real service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vocalizeai/vzauth/internal/mockapi"
	"github.com/vocalizeai/vzauth/token"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: load .env: %v\n", err)
		os.Exit(1)
	}
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	addr      string
	secret    string
	tokenTTL  time.Duration
	seedEmail string
	seedPass  string
	seedAdmin bool
	logLevel  string
}

func rootCmd() *cobra.Command {
	o := options{}
	cmd := &cobra.Command{
		Use:          "vzauth-mockapi",
		Short:        "Fake Vocalize backend for local development",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), o)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&o.addr, "addr", envOr("VZ_MOCK_ADDR", ":8090"), "Listen address")
	flags.StringVar(&o.secret, "secret", envOr("VZ_MOCK_SECRET", "dev-secret"), "HS256 signing secret")
	flags.DurationVar(&o.tokenTTL, "token-ttl", time.Hour, "Lifetime of issued tokens")
	flags.StringVar(&o.seedEmail, "seed-email", "demo@vocalize.dev", "Email of the seeded account (empty to skip)")
	flags.StringVar(&o.seedPass, "seed-password", "demo123", "Password of the seeded account")
	flags.BoolVar(&o.seedAdmin, "seed-admin", false, "Give the seeded account the admin role")
	flags.StringVar(&o.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	return cmd
}

func run(ctx context.Context, o options) error {
	lvl, err := zap.ParseAtomicLevel(o.logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", o.logLevel, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	backend, err := mockapi.New(mockapi.Options{
		Secret:   []byte(o.secret),
		TokenTTL: o.tokenTTL,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	if o.seedEmail != "" {
		role := token.RoleUser
		if o.seedAdmin {
			role = token.RoleAdmin
		}
		id, err := backend.AddUser(o.seedEmail, o.seedPass, role, true)
		if err != nil {
			return fmt.Errorf("seed account: %w", err)
		}
		logger.Info("seeded account", zap.String("email", o.seedEmail), zap.String("user_id", id), zap.String("role", string(role)))
	}

	srv := &http.Server{
		Addr:              o.addr,
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mock api listening", zap.String("addr", o.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	logger.Info("shutting down mock api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
