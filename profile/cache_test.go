package profile

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vocalizeai/vzauth/internal/stores"
)

type fakeCreds struct {
	token  string
	userID string
}

func (f fakeCreds) Token(context.Context) (string, error) {
	if f.token == "" {
		return "", errors.New("no token")
	}
	return f.token, nil
}

func (f fakeCreds) UserID(context.Context) (string, error) {
	if f.userID == "" {
		return "", errors.New("no user")
	}
	return f.userID, nil
}

type fakeFetcher struct {
	calls   atomic.Int32
	payload string
	err     error
	bearer  atomic.Value
	during  func()
}

func (f *fakeFetcher) FetchProfile(_ context.Context, bearer, _ string) ([]byte, error) {
	f.calls.Add(1)
	f.bearer.Store(bearer)
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.payload), nil
}

type cacheFixture struct {
	cache   *Cache
	store   *stores.ProfileStore
	fetcher *fakeFetcher
	online  *atomic.Bool
	now     time.Time
}

func newFixture(t *testing.T) *cacheFixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	f := &cacheFixture{
		store:   stores.NewProfileStore(rdb, "vz"),
		fetcher: &fakeFetcher{payload: `{"id":42,"nome":"Fresh"}`},
		online:  &atomic.Bool{},
		now:     time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
	}
	f.online.Store(true)

	reach := ReachabilityFunc(func(context.Context) bool { return f.online.Load() })
	f.cache = NewCache(rdb, fakeCreds{token: "bearer-1", userID: "42"}, f.fetcher, reach, Options{
		Prefix: "vz",
		Now:    func() time.Time { return f.now },
	})
	return f
}

func (f *cacheFixture) seed(t *testing.T, age time.Duration, payload string) {
	t.Helper()
	err := f.store.Save(context.Background(), "42", &stores.ProfileRecord{
		Data:      json.RawMessage(payload),
		Timestamp: f.now.Add(-age).UnixMilli(),
	})
	require.NoError(t, err)
}

func TestCacheStaleEntryOnlineFetchesFresh(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 25*time.Hour, `{"id":42,"nome":"Stale"}`)

	p, src, err := f.cache.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, src)
	assert.Equal(t, int32(1), f.fetcher.calls.Load())
	assert.Equal(t, "bearer-1", f.fetcher.bearer.Load())

	var body struct{ Nome string }
	require.NoError(t, p.Decode(&body))
	assert.Equal(t, "Fresh", body.Nome)

	rec, err := f.store.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, f.now.UnixMilli(), rec.Timestamp)
}

func TestCacheStampsRecordWhenFetchCompletes(t *testing.T) {
	f := newFixture(t)
	requested := f.now
	f.fetcher.during = func() { f.now = f.now.Add(3 * time.Second) }

	_, src, err := f.cache.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, src)

	rec, err := f.store.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, requested.Add(3*time.Second).UnixMilli(), rec.Timestamp)
}

func TestCacheStaleEntryOfflineServesStale(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 25*time.Hour, `{"id":42,"nome":"Stale"}`)
	f.online.Store(false)

	p, src, err := f.cache.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, SourceStale, src)
	assert.Equal(t, "42", p.ID)
	assert.Zero(t, f.fetcher.calls.Load())
}

func TestCacheNoEntryOfflineUnavailable(t *testing.T) {
	f := newFixture(t)
	f.online.Store(false)

	_, _, err := f.cache.Get(context.Background(), "42")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, f.fetcher.calls.Load())
}

func TestCacheFreshEntrySkipsNetwork(t *testing.T) {
	f := newFixture(t)
	f.seed(t, time.Hour, `{"id":"42","nome":"Cached"}`)

	p, src, err := f.cache.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, SourceCache, src)
	assert.Equal(t, "42", p.ID)
	assert.Zero(t, f.fetcher.calls.Load())
}

func TestCacheEntryExactlyAtTTLIsStale(t *testing.T) {
	f := newFixture(t)
	f.seed(t, DefaultTTL, `{"id":42}`)

	_, src, err := f.cache.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, src)
}

func TestCacheFetchFailureFallsBackToStale(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 48*time.Hour, `{"id":42,"nome":"Old"}`)
	f.fetcher.err = errors.New("connection reset")

	_, src, err := f.cache.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, SourceStale, src)

	rec, err := f.store.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":42,"nome":"Old"}`, string(rec.Data), "failed fetch must not write the cache")
}

func TestCacheFetchFailureWithoutEntryUnavailable(t *testing.T) {
	f := newFixture(t)
	f.fetcher.err = errors.New("503")

	_, _, err := f.cache.Get(context.Background(), "42")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestCacheRejectsProfileForAnotherUser(t *testing.T) {
	f := newFixture(t)
	f.fetcher.payload = `{"id":7}`

	_, _, err := f.cache.Get(context.Background(), "42")
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = f.store.Get(context.Background(), "42")
	require.ErrorIs(t, err, stores.ErrProfileNotFound)
}

func TestCacheCurrentUsesStoredUser(t *testing.T) {
	f := newFixture(t)

	p, src, err := f.cache.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, src)
	assert.Equal(t, "42", p.ID)
}

func TestCacheCurrentWithoutCredential(t *testing.T) {
	f := newFixture(t)
	f.cache.creds = fakeCreds{}

	_, _, err := f.cache.Current(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestParseProfileID(t *testing.T) {
	p, err := Parse([]byte(`{"id": 12, "email": "a@b.com"}`))
	require.NoError(t, err)
	assert.Equal(t, "12", p.ID)

	_, err = Parse([]byte(`{"email": "a@b.com"}`))
	require.Error(t, err)

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 12, "email": "a@b.com"}`, string(out))
}
