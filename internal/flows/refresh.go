package flows

import (
	"context"

	"github.com/vocalizeai/vzauth/credential"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureNoCredential
	RefreshFailureStorage
	RefreshFailureUnauthorized
	RefreshFailureNetwork
	RefreshFailureServer
	RefreshFailureDecode
	RefreshFailureSuperseded
)

// RefreshResult carries the replacement session or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	Session *credential.Session
	// Cleared is set when the failure path removed the stored credential.
	Cleared bool
}

// RefreshBackend exchanges the current token for a new one.
type RefreshBackend interface {
	Refresh(ctx context.Context, current string) (string, error)
}

// RefreshStore is the credential storage used by the refresh flow.
type RefreshStore interface {
	SessionReader
	SessionWriter
	SessionClearer
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Backend RefreshBackend
	Codec   TokenDecoder
	Store   RefreshStore
	Commit  CommitFunc
}

// RunRefresh replaces the stored session with one built from a freshly
// issued token. Every failure other than a superseded epoch clears the
// stored credential; nothing is retried.
func RunRefresh(ctx context.Context, deps RefreshDeps) RefreshResult {
	if deps.Commit == nil {
		deps.Commit = directCommit
	}

	current, err := deps.Store.Token(ctx)
	if err != nil {
		kind := RefreshFailureStorage
		if isNotFound(err) {
			kind = RefreshFailureNoCredential
		}
		return clearAfter(ctx, deps, RefreshResult{Failure: kind, Err: err})
	}

	raw, err := deps.Backend.Refresh(ctx, current)
	if err != nil {
		return clearAfter(ctx, deps, RefreshResult{Failure: refreshFailureFromBackend(classifyBackend(err)), Err: err})
	}

	claims, err := deps.Codec.Decode(raw)
	if err != nil {
		return clearAfter(ctx, deps, RefreshResult{Failure: RefreshFailureDecode, Err: err})
	}
	sess := credential.FromClaims(raw, claims)

	applied, err := deps.Commit(ctx, func(ctx context.Context) error {
		return deps.Store.Save(ctx, sess)
	})
	if !applied {
		return RefreshResult{Failure: RefreshFailureSuperseded, Err: err}
	}
	if err != nil {
		return clearAfter(ctx, deps, RefreshResult{Failure: RefreshFailureStorage, Err: err})
	}

	return RefreshResult{Session: sess}
}

func clearAfter(ctx context.Context, deps RefreshDeps, res RefreshResult) RefreshResult {
	applied, err := deps.Commit(ctx, deps.Store.Clear)
	if !applied {
		// Logout or a newer login owns the store now.
		res.Failure = RefreshFailureSuperseded
		return res
	}
	res.Cleared = err == nil
	return res
}

func refreshFailureFromBackend(f BackendFailure) RefreshFailureKind {
	switch f {
	case BackendFailureUnauthorized:
		return RefreshFailureUnauthorized
	case BackendFailureNetwork:
		return RefreshFailureNetwork
	case BackendFailureBadResponse:
		return RefreshFailureDecode
	default:
		return RefreshFailureServer
	}
}
