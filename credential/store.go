package credential

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/vocalizeai/vzauth/token"
)

// ErrNotFound is returned by [Store.Load] when no complete session is stored.
var ErrNotFound = errors.New("credential not found")

// ErrCorrupt is returned when stored fields exist but cannot be parsed.
var ErrCorrupt = errors.New("credential corrupt")

// ErrStoreUnavailable wraps backend failures.
var ErrStoreUnavailable = errors.New("credential store unavailable")

// ErrUnknownAux is returned when an auxiliary field outside [AuxKeys] is written.
var ErrUnknownAux = errors.New("unknown auxiliary credential field")

const (
	fieldToken   = "token"
	fieldExpires = "tokenExpires"
	fieldRole    = "role"
	fieldUserID  = "userId"

	// AuxEmail holds the email used for the last successful login.
	AuxEmail = "email"
	// AuxParticipantID holds the participant linked to the signed-in user.
	AuxParticipantID = "participantId"
)

// AuxKeys lists the auxiliary fields Clear removes alongside the session.
var AuxKeys = []string{AuxEmail, AuxParticipantID}

// Store persists the current [Session] in a Redis-protocol key-value store.
//
// Writes are batched in one MULTI/EXEC so a reader never sees a token from
// one login paired with the role or user id of another. Store performs no
// validation of the values it is given.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a credential store under the given key prefix.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "vz"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(field string) string {
	return s.prefix + ":" + field
}

func (s *Store) sessionKeys() []string {
	return []string{
		s.key(fieldToken),
		s.key(fieldExpires),
		s.key(fieldRole),
		s.key(fieldUserID),
	}
}

// Save writes all four session fields in a single transaction.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	if sess == nil {
		return errors.New("nil session")
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.MSet(ctx,
			s.key(fieldToken), sess.Token,
			s.key(fieldExpires), strconv.FormatInt(sess.ExpiresAt, 10),
			s.key(fieldRole), string(sess.Role),
			s.key(fieldUserID), sess.UserID,
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Load returns the stored session, [ErrNotFound] when any field is
// missing, or [ErrCorrupt] when the expiry is not an integer.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	values, err := s.redis.MGet(ctx, s.sessionKeys()...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	fields := make([]string, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok || str == "" {
			return nil, ErrNotFound
		}
		fields[i] = str
	}

	expiresAt, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: tokenExpires %q", ErrCorrupt, fields[1])
	}

	return &Session{
		Token:     fields[0],
		ExpiresAt: expiresAt,
		Role:      token.Role(fields[2]),
		UserID:    fields[3],
	}, nil
}

// Token returns only the stored bearer token.
func (s *Store) Token(ctx context.Context) (string, error) {
	return s.get(ctx, fieldToken)
}

// UserID returns only the stored user id.
func (s *Store) UserID(ctx context.Context) (string, error) {
	return s.get(ctx, fieldUserID)
}

// SaveAux stores auxiliary profile-linked fields. Only names in [AuxKeys]
// are accepted so that Clear is guaranteed to remove them.
func (s *Store) SaveAux(ctx context.Context, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	pairs := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		if !isAuxKey(k) {
			return fmt.Errorf("%w: %s", ErrUnknownAux, k)
		}
		pairs = append(pairs, s.key(k), v)
	}

	if err := s.redis.MSet(ctx, pairs...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Aux reads one auxiliary field; a missing field yields [ErrNotFound].
func (s *Store) Aux(ctx context.Context, field string) (string, error) {
	if !isAuxKey(field) {
		return "", fmt.Errorf("%w: %s", ErrUnknownAux, field)
	}
	return s.get(ctx, field)
}

// Clear removes the session and every auxiliary field. Clearing an empty
// store is not an error.
func (s *Store) Clear(ctx context.Context) error {
	keys := s.sessionKeys()
	for _, k := range AuxKeys {
		keys = append(keys, s.key(k))
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, field string) (string, error) {
	v, err := s.redis.Get(ctx, s.key(field)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

func isAuxKey(k string) bool {
	for _, aux := range AuxKeys {
		if aux == k {
			return true
		}
	}
	return false
}
