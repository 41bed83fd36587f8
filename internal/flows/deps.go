package flows

import (
	"context"

	"github.com/vocalizeai/vzauth/credential"
	"github.com/vocalizeai/vzauth/token"
)

// Deps groups flow dependency sets. The manager builds this once and
// delegates each operation to the matching flow.
type Deps struct {
	Login    LoginDeps
	Refresh  RefreshDeps
	Launch   LaunchDeps
	Logout   LogoutDeps
	Register RegisterDeps
}

// TokenDecoder turns a raw bearer token into claims.
type TokenDecoder interface {
	Decode(raw string) (token.Claims, error)
}

// SessionWriter persists a session and its auxiliary fields.
type SessionWriter interface {
	Save(ctx context.Context, sess *credential.Session) error
	SaveAux(ctx context.Context, fields map[string]string) error
}

// SessionReader reads back what SessionWriter stored.
type SessionReader interface {
	Load(ctx context.Context) (*credential.Session, error)
	Token(ctx context.Context) (string, error)
}

// SessionClearer removes every stored credential field.
type SessionClearer interface {
	Clear(ctx context.Context) error
}

// CommitFunc runs write only while the caller's session epoch is still
// current, and reports whether it ran. Implementations must hold the
// commit lock across write so that logout cannot interleave.
type CommitFunc func(ctx context.Context, write func(context.Context) error) (applied bool, err error)

func directCommit(ctx context.Context, write func(context.Context) error) (bool, error) {
	return true, write(ctx)
}
