package vzauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vocalizeai/vzauth/api"
	"github.com/vocalizeai/vzauth/credential"
	"github.com/vocalizeai/vzauth/internal/flows"
	"github.com/vocalizeai/vzauth/internal/notify"
	"github.com/vocalizeai/vzauth/profile"
	"github.com/vocalizeai/vzauth/schedule"
	"go.uber.org/zap"
)

// State is the Session Manager's lifecycle state.
type State int

const (
	StateCheckingToken State = iota
	StateLoggedOut
	StateLoginInFlight
	StateAuthenticated
	StateRefreshInFlight
)

func (s State) String() string {
	switch s {
	case StateCheckingToken:
		return "checking_token"
	case StateLoggedOut:
		return "logged_out"
	case StateLoginInFlight:
		return "login_in_flight"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshInFlight:
		return "refresh_in_flight"
	default:
		return "unknown"
	}
}

// Backend is the HTTP collaborator the manager depends on. [api.Client]
// implements it.
type Backend interface {
	Login(ctx context.Context, email, password string) (string, error)
	Refresh(ctx context.Context, current string) (string, error)
	FetchProfile(ctx context.Context, bearer, userID string) ([]byte, error)
	Reachable(ctx context.Context) bool
	Register(ctx context.Context, req api.RegisterRequest) error
	ResendConfirmationCode(ctx context.Context, email string) error
	ConfirmRegistration(ctx context.Context, email, code string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error
}

// Manager owns the signed-in session: it persists credentials, renews
// them on a fixed schedule and serves the user's profile.
//
// All methods are safe for concurrent use. The state mutex is never held
// across network or storage I/O.
type Manager struct {
	config  Config
	logger  *zap.Logger
	backend Backend

	store     *credential.Store
	profiles  *profile.Cache
	scheduler *schedule.Scheduler
	flows     flows.Service
	notifier  *notify.Dispatcher
	metrics   *Metrics

	epoch    atomic.Uint64
	commitMu sync.Mutex

	mu      sync.RWMutex
	state   State
	session *credential.Session
	closed  bool
	// clearing counts logouts whose store clear has not landed yet.
	clearing int
}

/*
====================================
LAUNCH
====================================
*/

// CheckToken decides the initial state. A stored session that has not
// expired is used as is; otherwise one refresh is attempted. It returns
// nil when the manager ends up Authenticated.
func (m *Manager) CheckToken(ctx context.Context) error {
	if err := m.ready(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.clearing > 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: logout in progress", ErrSuperseded)
	}
	epoch := m.epoch.Load()
	m.state = StateCheckingToken
	m.mu.Unlock()

	res := m.flows.Launch(withSessionEpoch(ctx, epoch))

	m.mu.Lock()
	if m.epoch.Load() != epoch {
		m.mu.Unlock()
		return ErrSuperseded
	}
	var started bool
	if res.Outcome == flows.LaunchLoggedOut {
		m.state = StateLoggedOut
		m.session = nil
		m.scheduler.Stop()
	} else {
		m.state = StateAuthenticated
		m.session = res.Session.Clone()
		started = m.scheduler.Start(m.tick)
	}
	m.mu.Unlock()

	switch res.Outcome {
	case flows.LaunchStoredValid:
		m.metrics.Inc(MetricLaunchStoredValid)
	case flows.LaunchRefreshed:
		m.metrics.Inc(MetricLaunchRefreshed)
	default:
		m.metrics.Inc(MetricLaunchLoggedOut)
	}
	if started {
		m.metrics.Inc(MetricSchedulerStarted)
	}

	if res.Outcome != flows.LaunchLoggedOut {
		m.logger.Info("session restored",
			zap.String("user_id", res.Session.UserID),
			zap.Bool("refreshed", res.Outcome == flows.LaunchRefreshed),
		)
		return nil
	}

	err := launchError(res)
	if res.Refresh != nil && res.Refresh.Cleared {
		m.metrics.Inc(MetricSessionCleared)
	}
	if res.HadCredential {
		m.reloginRequired(ctx, "", err)
	}
	m.logger.Info("no usable session at launch", zap.Error(err))
	return err
}

func launchError(res flows.LaunchResult) error {
	if errors.Is(res.Err, flows.ErrExpiredOnArrival) {
		return fmt.Errorf("%w: %v", ErrServer, res.Err)
	}
	if res.Refresh != nil {
		return refreshError(*res.Refresh)
	}
	return fmt.Errorf("%w: %v", ErrNoStoredCredential, res.Err)
}

/*
====================================
LOGIN
====================================
*/

// Login exchanges email and password for a session. On success the
// session is persisted together with the email and the refresh schedule
// is started. Unverified and failed logins store nothing and leave the
// scheduler alone.
func (m *Manager) Login(ctx context.Context, email, password string) LoginResult {
	if err := m.ready(); err != nil {
		return LoginFailed{Reason: LoginReasonInvalidRequest, Err: err}
	}
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		m.metrics.Inc(MetricLoginFailure)
		return LoginFailed{
			Reason: LoginReasonInvalidRequest,
			Err:    fmt.Errorf("%w: email and password are required", ErrInvalidRequest),
		}
	}

	epoch, prev := m.beginLogin()
	start := time.Now()
	res := m.flows.Login(withSessionEpoch(ctx, epoch), email, password)
	m.metrics.Observe(MetricLoginLatency, time.Since(start))

	return m.finishLogin(ctx, epoch, prev, email, res)
}

func (m *Manager) beginLogin() (uint64, State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	epoch := m.epoch.Add(1)
	prev := m.state
	m.state = StateLoginInFlight
	return epoch, prev
}

func (m *Manager) finishLogin(ctx context.Context, epoch uint64, prev State, email string, res flows.LoginResult) LoginResult {
	m.mu.Lock()
	if m.epoch.Load() != epoch {
		m.mu.Unlock()
		m.metrics.Inc(MetricLoginFailure)
		return LoginFailed{Reason: LoginReasonSuperseded, Err: ErrSuperseded}
	}

	if res.Failure == flows.LoginFailureNone {
		m.session = res.Session.Clone()
		m.state = StateAuthenticated
		started := m.scheduler.Start(m.tick)
		m.mu.Unlock()

		m.metrics.Inc(MetricLoginSuccess)
		if started {
			m.metrics.Inc(MetricSchedulerStarted)
		} else {
			m.metrics.Inc(MetricSchedulerAlreadyRunning)
		}
		m.logger.Info("login succeeded", zap.String("user_id", res.Session.UserID))
		return LoginSucceeded{Session: res.Session.Clone()}
	}

	// A failed attempt does not discard a session that was already active.
	if m.session != nil && (prev == StateAuthenticated || prev == StateRefreshInFlight) {
		m.state = StateAuthenticated
	} else {
		m.state = StateLoggedOut
	}
	m.mu.Unlock()

	if res.Failure == flows.LoginFailureUnverified {
		m.metrics.Inc(MetricLoginUnverified)
		m.emit(ctx, notify.KindUnverified, "", "account requires confirmation", nil)
		m.logger.Info("login rejected: account not confirmed")
		return LoginUnverified{Email: email}
	}

	failed := loginFailure(res)
	m.metrics.Inc(MetricLoginFailure)
	m.emit(ctx, notify.KindLoginFailed, "", failed.Reason.String(), failed.Err)
	m.logger.Info("login failed", zap.Stringer("reason", failed.Reason), zap.Error(res.Err))
	return failed
}

func loginFailure(res flows.LoginResult) LoginFailed {
	switch res.Failure {
	case flows.LoginFailureInvalidCredentials:
		return LoginFailed{Reason: LoginReasonInvalidCredentials, Err: fmt.Errorf("%w: %v", ErrInvalidCredentials, res.Err)}
	case flows.LoginFailureNetwork:
		return LoginFailed{Reason: LoginReasonNetwork, Err: fmt.Errorf("%w: %v", ErrNetworkUnavailable, res.Err)}
	case flows.LoginFailureDecode:
		return LoginFailed{Reason: LoginReasonMalformedToken, Err: fmt.Errorf("%w: %v", ErrMalformedToken, res.Err)}
	case flows.LoginFailureStorage:
		return LoginFailed{Reason: LoginReasonStorage, Err: fmt.Errorf("%w: %v", ErrStorageUnavailable, res.Err)}
	case flows.LoginFailureSuperseded:
		return LoginFailed{Reason: LoginReasonSuperseded, Err: ErrSuperseded}
	case flows.LoginFailureRateLimited:
		return LoginFailed{Reason: LoginReasonRateLimited, Err: ErrRateLimited}
	default:
		return LoginFailed{Reason: LoginReasonServer, Err: fmt.Errorf("%w: %v", ErrServer, res.Err)}
	}
}

/*
====================================
REFRESH
====================================
*/

// Refresh renews the stored token. Any failure clears the credential
// store, stops the schedule and moves to LoggedOut; it is not retried
// before the next tick. A result that resolves after a logout or a newer
// login is discarded with ErrSuperseded. Once logged out, Refresh does
// nothing until a login or launch check brings a session back.
func (m *Manager) Refresh(ctx context.Context) error {
	if err := m.ready(); err != nil {
		return err
	}

	m.mu.Lock()
	switch m.state {
	case StateLoginInFlight:
		m.mu.Unlock()
		return fmt.Errorf("%w: login in progress", ErrSuperseded)
	case StateLoggedOut:
		m.mu.Unlock()
		return fmt.Errorf("%w: logged out", ErrNoStoredCredential)
	}
	epoch := m.epoch.Load()
	prev := m.state
	if m.state == StateAuthenticated {
		m.state = StateRefreshInFlight
	}
	m.mu.Unlock()

	start := time.Now()
	res := m.flows.Refresh(withSessionEpoch(ctx, epoch))
	m.metrics.Observe(MetricRefreshLatency, time.Since(start))

	m.mu.Lock()
	if m.epoch.Load() != epoch || res.Failure == flows.RefreshFailureSuperseded {
		m.mu.Unlock()
		m.metrics.Inc(MetricRefreshSuperseded)
		m.logger.Debug("refresh result discarded")
		return ErrSuperseded
	}

	if res.Failure == flows.RefreshFailureNone {
		m.session = res.Session.Clone()
		m.state = StateAuthenticated
		started := m.scheduler.Start(m.tick)
		m.mu.Unlock()

		m.metrics.Inc(MetricRefreshSuccess)
		if started {
			m.metrics.Inc(MetricSchedulerStarted)
		}
		m.logger.Debug("session refreshed", zap.String("user_id", res.Session.UserID))
		return nil
	}

	userID := ""
	if m.session != nil {
		userID = m.session.UserID
	}
	m.state = StateLoggedOut
	m.session = nil
	m.scheduler.Stop()
	m.mu.Unlock()

	err := refreshError(res)
	m.metrics.Inc(MetricRefreshFailure)
	if res.Cleared {
		m.metrics.Inc(MetricSessionCleared)
	}
	if prev == StateAuthenticated || prev == StateRefreshInFlight || prev == StateCheckingToken {
		m.reloginRequired(ctx, userID, err)
	}
	m.logger.Warn("refresh failed, session cleared",
		zap.String("user_id", userID),
		zap.Bool("cleared", res.Cleared),
		zap.Error(err),
	)
	return err
}

func refreshError(res flows.RefreshResult) error {
	switch res.Failure {
	case flows.RefreshFailureNone:
		return nil
	case flows.RefreshFailureNoCredential:
		return ErrNoStoredCredential
	case flows.RefreshFailureStorage:
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, res.Err)
	case flows.RefreshFailureUnauthorized:
		return fmt.Errorf("%w: token rejected: %v", ErrInvalidCredentials, res.Err)
	case flows.RefreshFailureNetwork:
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, res.Err)
	case flows.RefreshFailureDecode:
		return fmt.Errorf("%w: %v", ErrMalformedToken, res.Err)
	case flows.RefreshFailureSuperseded:
		return ErrSuperseded
	default:
		return fmt.Errorf("%w: %v", ErrServer, res.Err)
	}
}

// tick is the scheduler callback. It never propagates errors.
func (m *Manager) tick(ctx context.Context) {
	if err := m.Refresh(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		m.logger.Debug("scheduled refresh ended session", zap.Error(err))
	}
}

/*
====================================
LOGOUT
====================================
*/

// Logout stops the refresh schedule and clears every stored credential
// field. In-flight login and refresh results are discarded. Logout is
// safe to call in any state and more than once.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.ready(); err != nil {
		return err
	}

	m.mu.Lock()
	m.clearing++
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.clearing--
		m.mu.Unlock()
	}()

	if err := m.flows.Logout(ctx); err != nil {
		m.logger.Error("logout could not clear stored credentials", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	m.metrics.Inc(MetricLogout)
	m.emit(ctx, notify.KindLoggedOut, "", "signed out", nil)
	m.logger.Info("logged out")
	return nil
}

// advance invalidates in-flight work. Holding mu while bumping the epoch
// orders it against result application in Login, Refresh and CheckToken.
func (m *Manager) advance() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch.Add(1)
	m.state = StateLoggedOut
	m.session = nil
}

// commit runs write under the commit lock if ctx carries the current
// epoch. Contexts without an epoch always commit.
func (m *Manager) commit(ctx context.Context, write func(context.Context) error) (bool, error) {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	if epoch, ok := sessionEpochFromContext(ctx); ok && epoch != m.epoch.Load() {
		return false, ErrSuperseded
	}
	return true, write(ctx)
}

/*
====================================
ACCESSORS
====================================
*/

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Session returns a copy of the in-memory session, or nil when signed out.
func (m *Manager) Session() *credential.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Clone()
}

// RefreshScheduled reports whether the renewal timer is active.
func (m *Manager) RefreshScheduled() bool {
	return m.scheduler.Running()
}

// Profile returns the signed-in user's profile. It prefers a fresh fetch
// and falls back to the cached copy when the backend cannot be reached.
func (m *Manager) Profile(ctx context.Context) (profile.Profile, profile.Source, error) {
	if err := m.ready(); err != nil {
		return profile.Profile{}, 0, err
	}

	p, src, err := m.profiles.Current(ctx)
	if err != nil {
		m.metrics.Inc(MetricProfileUnavailable)
		return profile.Profile{}, 0, fmt.Errorf("%w: %v", ErrProfileUnavailable, err)
	}

	switch src {
	case profile.SourceNetwork:
		m.metrics.Inc(MetricProfileNetwork)
	case profile.SourceCache:
		m.metrics.Inc(MetricProfileCache)
	case profile.SourceStale:
		m.metrics.Inc(MetricProfileStale)
		m.emit(ctx, notify.KindProfileOffline, p.ID, "showing cached profile", nil)
	}
	return p, src, nil
}

// MetricsSnapshot returns a point-in-time copy of the manager's counters.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	return m.metrics.Snapshot()
}

// NotificationsDropped reports how many notifications were discarded
// because the queue was full.
func (m *Manager) NotificationsDropped() uint64 {
	return m.notifier.Dropped()
}

// Close stops the refresh schedule and flushes pending notifications.
// Stored credentials are kept so that the next launch can restore them.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.scheduler.Stop()
	m.notifier.Close()
}

func (m *Manager) ready() error {
	if m == nil || !m.flows.Initialized() {
		return ErrManagerNotReady
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("%w: manager closed", ErrManagerNotReady)
	}
	return nil
}

func (m *Manager) reloginRequired(ctx context.Context, userID string, cause error) {
	m.metrics.Inc(MetricReloginRequired)
	m.emit(ctx, notify.KindReloginRequired, userID, "session expired, sign in again", cause)
}

func (m *Manager) emit(ctx context.Context, kind notify.Kind, userID, message string, cause error) {
	if m.notifier == nil {
		return
	}
	event := notify.Event{Kind: kind, UserID: userID, Message: message}
	if cause != nil {
		event.Error = cause.Error()
	}
	m.notifier.Emit(ctx, event)
}
