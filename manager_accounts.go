package vzauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vocalizeai/vzauth/api"
	"github.com/vocalizeai/vzauth/internal/flows"
	"go.uber.org/zap"
)

// Registration is the account creation form.
type Registration struct {
	Name            string
	Email           string
	Phone           string
	Password        string
	ConfirmPassword string
}

// Register validates the form, creates the account and logs in with the
// same credentials. A freshly created account usually yields
// [LoginUnverified] until its confirmation code is submitted.
//
// The returned error is non-nil when the account was not created; the
// LoginResult is then nil.
func (m *Manager) Register(ctx context.Context, reg Registration) (LoginResult, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}

	in := flows.RegisterInput{
		Name:            reg.Name,
		Email:           reg.Email,
		Phone:           reg.Phone,
		Password:        reg.Password,
		ConfirmPassword: reg.ConfirmPassword,
	}
	if err := flows.ValidateRegistration(in); err != nil {
		m.metrics.Inc(MetricRegisterInvalid)
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	epoch, prev := m.beginLogin()
	start := time.Now()
	res := m.flows.Register(withSessionEpoch(ctx, epoch), in)
	if !res.Created {
		m.restoreAfterRegister(epoch, prev)
		m.logger.Info("registration rejected", zap.Error(res.Err))
		return nil, backendError(res.Err)
	}
	m.metrics.Inc(MetricRegisterSuccess)
	m.metrics.Observe(MetricLoginLatency, time.Since(start))

	return m.finishLogin(ctx, epoch, prev, strings.TrimSpace(reg.Email), res.Login), nil
}

func (m *Manager) restoreAfterRegister(epoch uint64, prev State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch.Load() != epoch || m.state != StateLoginInFlight {
		return
	}
	if m.session != nil && (prev == StateAuthenticated || prev == StateRefreshInFlight) {
		m.state = StateAuthenticated
		return
	}
	m.state = StateLoggedOut
}

// ResendConfirmationCode asks the backend to email a new confirmation code.
func (m *Manager) ResendConfirmationCode(ctx context.Context, email string) error {
	email, err := m.accountEmail(email)
	if err != nil {
		return err
	}
	return backendError(m.backend.ResendConfirmationCode(ctx, email))
}

// ConfirmRegistration submits the emailed confirmation code. The account
// can log in afterwards.
func (m *Manager) ConfirmRegistration(ctx context.Context, email, code string) error {
	email, err := m.accountEmail(email)
	if err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: confirmation code required", ErrInvalidRequest)
	}
	return backendError(m.backend.ConfirmRegistration(ctx, email, code))
}

// RequestPasswordReset starts the password reset flow.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) error {
	email, err := m.accountEmail(email)
	if err != nil {
		return err
	}
	return backendError(m.backend.RequestPasswordReset(ctx, email))
}

// ConfirmPasswordReset sets a new password with the emailed code. It does
// not sign in.
func (m *Manager) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	email, err := m.accountEmail(email)
	if err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" || newPassword == "" {
		return fmt.Errorf("%w: code and new password required", ErrInvalidRequest)
	}
	return backendError(m.backend.ConfirmPasswordReset(ctx, email, code, newPassword))
}

func (m *Manager) accountEmail(email string) (string, error) {
	if err := m.ready(); err != nil {
		return "", err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("%w: email required", ErrInvalidRequest)
	}
	return email, nil
}

// backendError maps api errors for the pass-through calls.
func backendError(err error) error {
	if err == nil {
		return nil
	}
	var status *api.StatusError
	switch {
	case errors.Is(err, api.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	case errors.Is(err, api.ErrUnauthorized):
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	case errors.Is(err, api.ErrUnverified):
		return fmt.Errorf("%w: %v", ErrUnverifiedAccount, err)
	case errors.Is(err, api.ErrServer):
		return fmt.Errorf("%w: %v", ErrServer, err)
	case errors.As(err, &status) && status.Status >= 400 && status.Status < 500:
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	default:
		return fmt.Errorf("%w: %v", ErrServer, err)
	}
}
