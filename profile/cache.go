package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vocalizeai/vzauth/internal/stores"
	"go.uber.org/zap"
)

// DefaultTTL is how long a fetched profile is preferred over the network.
const DefaultTTL = 24 * time.Hour

// ErrUnavailable is returned when the profile can be neither fetched nor
// served from cache.
var ErrUnavailable = errors.New("profile unavailable")

// Source tells the caller where a returned profile came from.
type Source int

const (
	// SourceNetwork means the profile was fetched and the cache replaced.
	SourceNetwork Source = iota + 1
	// SourceCache means a fresh cached entry was served.
	SourceCache
	// SourceStale means a cached entry older than the TTL was served because
	// the network was unreachable or the fetch failed.
	SourceStale
)

func (s Source) String() string {
	switch s {
	case SourceNetwork:
		return "network"
	case SourceCache:
		return "cache"
	case SourceStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Fetcher retrieves a profile document from the backend.
type Fetcher interface {
	FetchProfile(ctx context.Context, bearer, userID string) ([]byte, error)
}

// Reachability reports whether the backend can currently be reached.
type Reachability interface {
	Reachable(ctx context.Context) bool
}

// ReachabilityFunc adapts a function to [Reachability].
type ReachabilityFunc func(ctx context.Context) bool

// Reachable calls f.
func (f ReachabilityFunc) Reachable(ctx context.Context) bool { return f(ctx) }

// CredentialSource exposes the persisted credential fields the cache needs.
// It is read from durable storage, never from in-memory session state.
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
	UserID(ctx context.Context) (string, error)
}

// Options tunes a [Cache].
type Options struct {
	TTL    time.Duration
	Prefix string
	Logger *zap.Logger
	Now    func() time.Time
}

// Cache serves the signed-in user's profile: fresh from the network when
// the cached copy is missing or stale, and from cache (stale or not) when
// the network is not available.
type Cache struct {
	store   *stores.ProfileStore
	creds   CredentialSource
	fetcher Fetcher
	reach   Reachability
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewCache wires a profile cache on top of a Redis-protocol store.
func NewCache(client redis.UniversalClient, creds CredentialSource, fetcher Fetcher, reach Reachability, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if reach == nil {
		reach = ReachabilityFunc(func(context.Context) bool { return true })
	}

	return &Cache{
		store:   stores.NewProfileStore(client, opts.Prefix),
		creds:   creds,
		fetcher: fetcher,
		reach:   reach,
		ttl:     opts.TTL,
		logger:  opts.Logger,
		now:     opts.Now,
	}
}

// Current resolves the signed-in user from the credential store and
// returns their profile.
func (c *Cache) Current(ctx context.Context) (Profile, Source, error) {
	userID, err := c.creds.UserID(ctx)
	if err != nil {
		return Profile{}, 0, fmt.Errorf("%w: no signed-in user: %v", ErrUnavailable, err)
	}
	return c.Get(ctx, userID)
}

// Get returns the profile for userID.
//
// A network fetch is attempted only when the backend is reachable and the
// cached entry is missing or at least TTL old. A successful fetch is the
// only path that writes the cache.
func (c *Cache) Get(ctx context.Context, userID string) (Profile, Source, error) {
	if userID == "" {
		return Profile{}, 0, fmt.Errorf("%w: empty user id", ErrUnavailable)
	}

	reachable := c.reach.Reachable(ctx)
	record := c.load(ctx, userID)

	now := c.now()
	if reachable && (record == nil || !c.fresh(record, now)) {
		p, err := c.fetch(ctx, userID)
		if err == nil {
			c.save(ctx, userID, p, c.now())
			return p, SourceNetwork, nil
		}
		c.logger.Warn("profile fetch failed, falling back to cache",
			zap.String("user_id", userID),
			zap.Bool("cached", record != nil),
			zap.Error(err),
		)
	}

	if record != nil {
		p, err := Parse(record.Data)
		if err != nil {
			c.logger.Warn("cached profile unreadable", zap.String("user_id", userID), zap.Error(err))
			return Profile{}, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if c.fresh(record, now) {
			return p, SourceCache, nil
		}
		return p, SourceStale, nil
	}

	return Profile{}, 0, ErrUnavailable
}

func (c *Cache) fresh(record *stores.ProfileRecord, now time.Time) bool {
	age := now.Sub(time.UnixMilli(record.Timestamp))
	return age < c.ttl
}

func (c *Cache) load(ctx context.Context, userID string) *stores.ProfileRecord {
	record, err := c.store.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, stores.ErrProfileNotFound) {
			c.logger.Warn("profile cache read failed", zap.String("user_id", userID), zap.Error(err))
		}
		return nil
	}
	return record
}

func (c *Cache) fetch(ctx context.Context, userID string) (Profile, error) {
	if c.fetcher == nil {
		return Profile{}, errors.New("no profile fetcher configured")
	}
	bearer, err := c.creds.Token(ctx)
	if err != nil {
		return Profile{}, fmt.Errorf("read token: %w", err)
	}

	data, err := c.fetcher.FetchProfile(ctx, bearer, userID)
	if err != nil {
		return Profile{}, err
	}

	p, err := Parse(data)
	if err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	if p.ID != userID {
		return Profile{}, fmt.Errorf("profile id mismatch: requested %s, got %s", userID, p.ID)
	}
	return p, nil
}

func (c *Cache) save(ctx context.Context, userID string, p Profile, now time.Time) {
	err := c.store.Save(ctx, userID, &stores.ProfileRecord{
		Data:      p.Raw,
		Timestamp: now.UnixMilli(),
	})
	if err != nil {
		c.logger.Warn("profile cache write failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// Invalidate drops the cached entry for userID.
func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	return c.store.Delete(ctx, userID)
}
