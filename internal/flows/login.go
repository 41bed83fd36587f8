package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/vocalizeai/vzauth/credential"
	"github.com/vocalizeai/vzauth/internal/rate"
	"go.uber.org/zap"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureInvalidCredentials
	LoginFailureUnverified
	LoginFailureNetwork
	LoginFailureServer
	LoginFailureDecode
	LoginFailureStorage
	LoginFailureSuperseded
	LoginFailureRateLimited
)

// LoginResult carries the persisted session or failure metadata.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	Session *credential.Session
}

// LoginBackend submits credentials to the auth backend.
type LoginBackend interface {
	Login(ctx context.Context, email, password string) (string, error)
}

// LoginThrottle counts rejected logins per email. Nil disables throttling.
type LoginThrottle interface {
	CheckLogin(ctx context.Context, email string) error
	IncrementLogin(ctx context.Context, email string) error
	ResetLogin(ctx context.Context, email string) error
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Backend  LoginBackend
	Codec    TokenDecoder
	Store    SessionWriter
	Commit   CommitFunc
	Throttle LoginThrottle
	Logger   *zap.Logger
}

// RunLogin exchanges email and password for a token, decodes it and
// persists the resulting session. The password is never stored.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) LoginResult {
	if deps.Commit == nil {
		deps.Commit = directCommit
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	email = strings.TrimSpace(email)

	if deps.Throttle != nil {
		if err := deps.Throttle.CheckLogin(ctx, email); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				return LoginResult{Failure: LoginFailureRateLimited, Err: err}
			}
			// Throttle storage errors never block a login.
			deps.Logger.Warn("login throttle unavailable", zap.Error(err))
		}
	}

	raw, err := deps.Backend.Login(ctx, email, password)
	if err != nil {
		failure := loginFailureFromBackend(classifyBackend(err))
		if failure == LoginFailureInvalidCredentials && deps.Throttle != nil {
			if terr := deps.Throttle.IncrementLogin(ctx, email); terr != nil {
				deps.Logger.Warn("login throttle not updated", zap.Error(terr))
			}
		}
		return LoginResult{Failure: failure, Err: err}
	}

	claims, err := deps.Codec.Decode(raw)
	if err != nil {
		return LoginResult{Failure: LoginFailureDecode, Err: err}
	}
	sess := credential.FromClaims(raw, claims)

	applied, err := deps.Commit(ctx, func(ctx context.Context) error {
		if err := deps.Store.Save(ctx, sess); err != nil {
			return err
		}
		if err := deps.Store.SaveAux(ctx, map[string]string{credential.AuxEmail: email}); err != nil {
			// The session itself is usable without the cached email.
			deps.Logger.Warn("login email not persisted", zap.String("user_id", sess.UserID), zap.Error(err))
		}
		return nil
	})
	if !applied {
		return LoginResult{Failure: LoginFailureSuperseded, Err: err}
	}
	if err != nil {
		return LoginResult{Failure: LoginFailureStorage, Err: err}
	}

	if deps.Throttle != nil {
		if err := deps.Throttle.ResetLogin(ctx, email); err != nil {
			deps.Logger.Warn("login throttle not reset", zap.Error(err))
		}
	}
	return LoginResult{Session: sess}
}

func loginFailureFromBackend(f BackendFailure) LoginFailureKind {
	switch f {
	case BackendFailureUnauthorized:
		return LoginFailureInvalidCredentials
	case BackendFailureUnverified:
		return LoginFailureUnverified
	case BackendFailureNetwork:
		return LoginFailureNetwork
	case BackendFailureBadResponse:
		return LoginFailureDecode
	default:
		return LoginFailureServer
	}
}
