package flows

import (
	"errors"

	"github.com/vocalizeai/vzauth/api"
	"github.com/vocalizeai/vzauth/credential"
)

// BackendFailure classifies an error returned by the auth backend.
type BackendFailure int

const (
	BackendFailureNone BackendFailure = iota
	BackendFailureUnauthorized
	BackendFailureUnverified
	BackendFailureNetwork
	BackendFailureServer
	BackendFailureBadResponse
)

func classifyBackend(err error) BackendFailure {
	switch {
	case err == nil:
		return BackendFailureNone
	case errors.Is(err, api.ErrUnverified):
		return BackendFailureUnverified
	case errors.Is(err, api.ErrUnauthorized):
		return BackendFailureUnauthorized
	case errors.Is(err, api.ErrUnavailable):
		return BackendFailureNetwork
	case errors.Is(err, api.ErrBadResponse):
		return BackendFailureBadResponse
	default:
		// 5xx and any other non-2xx status.
		return BackendFailureServer
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, credential.ErrNotFound)
}
