package flows

import (
	"context"
	"errors"
	"time"

	"github.com/vocalizeai/vzauth/credential"
)

// ErrExpiredOnArrival is reported when a refresh returned a token whose
// expiry had already passed.
var ErrExpiredOnArrival = errors.New("refreshed token already expired")

// LaunchOutcome is the terminal decision of the launch check.
type LaunchOutcome int

const (
	// LaunchLoggedOut means no usable credential remains.
	LaunchLoggedOut LaunchOutcome = iota
	// LaunchStoredValid means the stored session had not expired.
	LaunchStoredValid
	// LaunchRefreshed means an expired or unreadable session was renewed.
	LaunchRefreshed
)

// LaunchResult reports the launch decision.
type LaunchResult struct {
	Outcome LaunchOutcome
	Session *credential.Session
	// Refresh is set when a refresh was attempted.
	Refresh *RefreshResult
	// HadCredential reports whether any session was stored at launch.
	HadCredential bool
	Err           error
}

// LaunchDeps captures launch check dependencies.
type LaunchDeps struct {
	Store   SessionReader
	Refresh RefreshDeps
	Now     func() time.Time
}

// RunLaunchCheck decides the initial state from the stored session: a
// session that has not expired is used as is; anything else gets one
// refresh attempt, and a refreshed session must itself be unexpired.
func RunLaunchCheck(ctx context.Context, deps LaunchDeps) LaunchResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	stored, err := deps.Store.Load(ctx)
	hadCredential := err == nil || !isNotFound(err)
	if err == nil && !stored.Expired(deps.Now()) {
		return LaunchResult{Outcome: LaunchStoredValid, Session: stored, HadCredential: true}
	}

	res := RunRefresh(ctx, deps.Refresh)
	out := LaunchResult{Refresh: &res, HadCredential: hadCredential, Err: res.Err}
	if res.Failure != RefreshFailureNone {
		return out
	}
	if res.Session.Expired(deps.Now()) {
		// Backend handed out an already expired token.
		clearAfter(ctx, deps.Refresh, RefreshResult{})
		out.Err = ErrExpiredOnArrival
		return out
	}

	out.Outcome = LaunchRefreshed
	out.Session = res.Session
	return out
}
