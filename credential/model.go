package credential

import (
	"time"

	"github.com/vocalizeai/vzauth/token"
)

// Session is the persisted credential: the bearer token plus the claims
// decoded from that same token.
//
// A Session is either complete or absent; the store never hands out a
// partially populated value.
type Session struct {
	Token     string
	ExpiresAt int64 // epoch milliseconds
	Role      token.Role
	UserID    string
}

// FromClaims pairs a raw token with the claims decoded from it.
func FromClaims(raw string, c token.Claims) *Session {
	return &Session{
		Token:     raw,
		ExpiresAt: c.ExpiresAt,
		Role:      c.Role,
		UserID:    c.UserID,
	}
}

// Expired reports whether the session's expiry is at or before now.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || s.ExpiresAt <= now.UnixMilli()
}

// Complete reports whether all four fields are populated.
func (s *Session) Complete() bool {
	return s != nil && s.Token != "" && s.ExpiresAt != 0 && s.Role != "" && s.UserID != ""
}

// Clone returns a copy that callers may keep.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}
