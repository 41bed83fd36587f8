package vzauth

import "errors"

var (
	// ErrInvalidCredentials is returned when the backend rejects the email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnverifiedAccount is returned when the account exists but was never confirmed.
	ErrUnverifiedAccount = errors.New("account not confirmed")
	// ErrMalformedToken is returned when an issued token lacks exp, role or sub.
	ErrMalformedToken = errors.New("malformed token")
	// ErrNoStoredCredential is returned when a refresh finds no stored token.
	ErrNoStoredCredential = errors.New("no stored credential")
	// ErrNetworkUnavailable is returned when the backend cannot be reached.
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrProfileUnavailable is returned when the profile is neither fetchable nor cached.
	ErrProfileUnavailable = errors.New("profile unavailable")
	// ErrServer is returned for backend failures other than authentication.
	ErrServer = errors.New("server error")
	// ErrSuperseded is returned when a logout or newer login ended the session
	// epoch an operation started in; its result was discarded.
	ErrSuperseded = errors.New("operation superseded")
	// ErrStorageUnavailable is returned when the credential store fails.
	ErrStorageUnavailable = errors.New("credential storage unavailable")
	// ErrRateLimited is returned when too many logins for one email were
	// rejected recently.
	ErrRateLimited = errors.New("too many login attempts")
	// ErrInvalidRequest is returned when input fails local validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrManagerNotReady is returned by a nil or closed Manager.
	ErrManagerNotReady = errors.New("session manager not initialized")
)
