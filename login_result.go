package vzauth

import "github.com/vocalizeai/vzauth/credential"

// LoginResult is the outcome of [Manager.Login]. It is one of
// [LoginSucceeded], [LoginUnverified] or [LoginFailed].
type LoginResult interface {
	loginResult()
}

// LoginSucceeded carries the session that is now stored and being refreshed.
type LoginSucceeded struct {
	Session *credential.Session
}

// LoginUnverified means the credentials were accepted but the account has
// not been confirmed. Nothing was stored.
type LoginUnverified struct {
	Email string
}

// LoginFailureReason classifies a failed login.
type LoginFailureReason int

const (
	LoginReasonInvalidCredentials LoginFailureReason = iota + 1
	LoginReasonNetwork
	LoginReasonServer
	LoginReasonMalformedToken
	LoginReasonStorage
	LoginReasonSuperseded
	LoginReasonInvalidRequest
	LoginReasonRateLimited
)

func (r LoginFailureReason) String() string {
	switch r {
	case LoginReasonInvalidCredentials:
		return "invalid_credentials"
	case LoginReasonNetwork:
		return "network"
	case LoginReasonServer:
		return "server"
	case LoginReasonMalformedToken:
		return "malformed_token"
	case LoginReasonStorage:
		return "storage"
	case LoginReasonSuperseded:
		return "superseded"
	case LoginReasonInvalidRequest:
		return "invalid_request"
	case LoginReasonRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// LoginFailed reports why no session was created. Err wraps one of the
// package sentinels (ErrInvalidCredentials, ErrNetworkUnavailable, ...).
type LoginFailed struct {
	Reason LoginFailureReason
	Err    error
}

func (LoginSucceeded) loginResult()  {}
func (LoginUnverified) loginResult() {}
func (LoginFailed) loginResult()     {}

func (f LoginFailed) Error() string {
	if f.Err == nil {
		return "login failed: " + f.Reason.String()
	}
	return f.Err.Error()
}

func (f LoginFailed) Unwrap() error { return f.Err }
