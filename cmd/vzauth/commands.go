package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	vzauth "github.com/vocalizeai/vzauth"
	"github.com/vocalizeai/vzauth/credential"
	"github.com/vocalizeai/vzauth/metrics/export/prometheus"
	"go.uber.org/zap"
)

func loginCmd(g *globals) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := passwordOrStdin(cmd, password)
			if err != nil {
				return err
			}
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()

			return printLogin(cmd, s.manager.Login(cmd.Context(), email, pw))
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (read from stdin when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.manager.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func statusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Validate the stored session and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()

			checkErr := s.manager.CheckToken(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "state:   %s\n", s.manager.State())
			if checkErr != nil {
				fmt.Fprintf(out, "reason:  %v\n", checkErr)
				return nil
			}
			printSession(cmd, s.manager.Session())
			return nil
		},
	}
}

func profileCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Print the current user's profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.manager.CheckToken(cmd.Context()); err != nil {
				return fmt.Errorf("not logged in: %w", err)
			}
			p, source, err := s.manager.Profile(cmd.Context())
			if err != nil {
				return err
			}

			var pretty bytes.Buffer
			if err := json.Indent(&pretty, p.Raw, "", "  "); err != nil {
				pretty.Reset()
				pretty.Write(p.Raw)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "source: %s\n", source)
			fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
			return nil
		},
	}
}

func watchCmd(g *globals) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the session refreshed until interrupted",
		Long: `watch restores the stored session and refreshes it on the configured
interval. Notifications are written to stdout as JSON lines. The command
exits when interrupted or when the session ends and a new login is needed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sink := newWatchSink(cmd.OutOrStdout())
			s, err := g.open(func(b *vzauth.Builder) { b.WithNotificationSink(sink) })
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := s.manager.CheckToken(ctx); err != nil {
				return fmt.Errorf("not logged in: %w", err)
			}
			printSession(cmd, s.manager.Session())

			if metricsAddr == "" {
				metricsAddr = s.env.MetricsAddr
			}
			if metricsAddr != "" {
				shutdown := serveMetrics(s, metricsAddr)
				defer shutdown()
			}

			select {
			case <-ctx.Done():
				s.logger.Info("watch interrupted")
				return nil
			case <-sink.relogin:
				return errors.New("session ended; log in again")
			}
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides VZ_METRICS_ADDR)")
	return cmd
}

func registerCmd(g *globals) *cobra.Command {
	var reg vzauth.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in to it",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := passwordOrStdin(cmd, reg.Password)
			if err != nil {
				return err
			}
			reg.Password = pw
			if reg.ConfirmPassword == "" {
				reg.ConfirmPassword = pw
			}

			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.manager.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			return printLogin(cmd, res)
		},
	}
	cmd.Flags().StringVar(&reg.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&reg.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&reg.Password, "password", "", "Password (read from stdin when omitted)")
	cmd.Flags().StringVar(&reg.ConfirmPassword, "confirm-password", "", "Password confirmation (defaults to --password)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func confirmCmd(g *globals) *cobra.Command {
	var email, code string
	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Confirm a new account with the emailed code",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.manager.ConfirmRegistration(cmd.Context(), email, code); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "account confirmed")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&code, "code", "", "Confirmation code")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func resendCmd(g *globals) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "resend",
		Short: "Send the confirmation code again",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.manager.ResendConfirmationCode(cmd.Context(), email); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "confirmation code sent")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func resetCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset a forgotten password",
	}

	var email string
	request := &cobra.Command{
		Use:   "request",
		Short: "Email a password reset code",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.manager.RequestPasswordReset(cmd.Context(), email); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reset code sent")
			return nil
		},
	}
	request.Flags().StringVar(&email, "email", "", "Account email")
	_ = request.MarkFlagRequired("email")

	var confirmEmail, code, newPassword string
	confirm := &cobra.Command{
		Use:   "confirm",
		Short: "Set a new password with the emailed code",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := passwordOrStdin(cmd, newPassword)
			if err != nil {
				return err
			}
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.manager.ConfirmPasswordReset(cmd.Context(), confirmEmail, code, pw); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password changed")
			return nil
		},
	}
	confirm.Flags().StringVar(&confirmEmail, "email", "", "Account email")
	confirm.Flags().StringVar(&code, "code", "", "Reset code")
	confirm.Flags().StringVar(&newPassword, "new-password", "", "New password (read from stdin when omitted)")
	_ = confirm.MarkFlagRequired("email")
	_ = confirm.MarkFlagRequired("code")

	cmd.AddCommand(request, confirm)
	return cmd
}

/* ==================================== */

func passwordOrStdin(cmd *cobra.Command, password string) (string, error) {
	if password != "" {
		return password, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return "", errors.New("password is required")
	}
	return line, nil
}

func printLogin(cmd *cobra.Command, res vzauth.LoginResult) error {
	switch r := res.(type) {
	case vzauth.LoginSucceeded:
		fmt.Fprintln(cmd.OutOrStdout(), "logged in")
		printSession(cmd, r.Session)
		return nil
	case vzauth.LoginUnverified:
		return fmt.Errorf("account %s is not confirmed; run %s confirm", r.Email, appName)
	case vzauth.LoginFailed:
		return r
	default:
		return fmt.Errorf("unexpected login result %T", res)
	}
}

func printSession(cmd *cobra.Command, sess *credential.Session) {
	if sess == nil {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "user:    %s\n", sess.UserID)
	fmt.Fprintf(out, "role:    %s\n", sess.Role)
	fmt.Fprintf(out, "expires: %s\n", time.UnixMilli(sess.ExpiresAt).UTC().Format(time.RFC3339))
}

// watchSink prints notifications and signals when a new login is needed.
type watchSink struct {
	json    vzauth.NotificationSink
	relogin chan struct{}
}

func newWatchSink(w io.Writer) *watchSink {
	return &watchSink{
		json:    vzauth.NewJSONNotificationSink(w),
		relogin: make(chan struct{}, 1),
	}
}

func (s *watchSink) Emit(ctx context.Context, event vzauth.Notification) {
	s.json.Emit(ctx, event)
	if event.Kind == vzauth.NotifyReloginRequired {
		select {
		case s.relogin <- struct{}{}:
		default:
		}
	}
}

func serveMetrics(s *session, addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", prometheus.NewCollector(s.manager).Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	s.logger.Info("serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
