package vzauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vocalizeai/vzauth/credential"
	"github.com/vocalizeai/vzauth/internal/mockapi"
	"github.com/vocalizeai/vzauth/profile"
	"github.com/vocalizeai/vzauth/token"
)

type liveEnv struct {
	backend *mockapi.Server
	srv     *httptest.Server
	rdb     *redis.Client
	tickers *tickers
	cfg     Config
}

func newLiveEnv(t *testing.T) *liveEnv {
	t.Helper()

	backend, err := mockapi.New(mockapi.Options{Secret: []byte("e2e-secret"), TokenTTL: time.Hour})
	require.NoError(t, err)
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := DefaultConfig()
	cfg.API.BaseURL = srv.URL
	cfg.Token.VerifySigningMethod = string(token.MethodHS256)
	cfg.Token.VerifyKey = []byte("e2e-secret")

	return &liveEnv{backend: backend, srv: srv, rdb: rdb, tickers: &tickers{}, cfg: cfg}
}

// manager builds a fresh manager over the same store, as a relaunch would.
func (e *liveEnv) manager(t *testing.T) *Manager {
	t.Helper()
	m, err := New().
		WithConfig(e.cfg).
		WithRedis(e.rdb).
		WithTickerFactory(e.tickers.factory).
		Build()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestLiveLoginProfileRelaunchLogout(t *testing.T) {
	env := newLiveEnv(t)
	ctx := context.Background()
	id, err := env.backend.AddUser("ana@example.com", "secret1", token.RoleAdmin, true)
	require.NoError(t, err)

	m := env.manager(t)
	require.ErrorIs(t, m.CheckToken(ctx), ErrNoStoredCredential)
	assert.Equal(t, StateLoggedOut, m.State())

	res := m.Login(ctx, "ana@example.com", "secret1")
	ok, isOK := res.(LoginSucceeded)
	require.True(t, isOK, "result %#v", res)
	assert.Equal(t, id, ok.Session.UserID)
	assert.Equal(t, token.RoleAdmin, ok.Session.Role)

	p, src, err := m.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, profile.SourceNetwork, src)
	assert.Equal(t, id, p.ID)
	m.Close()

	relaunched := env.manager(t)
	require.NoError(t, relaunched.CheckToken(ctx))
	assert.Equal(t, StateAuthenticated, relaunched.State())
	assert.Zero(t, env.backend.RefreshCalls())

	_, src, err = relaunched.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, profile.SourceCache, src)

	require.NoError(t, relaunched.Refresh(ctx))
	assert.Equal(t, 1, env.backend.RefreshCalls())

	require.NoError(t, relaunched.Logout(ctx))
	_, err = credential.NewStore(env.rdb, env.cfg.Store.KeyPrefix).Load(ctx)
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestLiveRegisterConfirmLogin(t *testing.T) {
	env := newLiveEnv(t)
	ctx := context.Background()
	m := env.manager(t)

	reg := Registration{Name: "Ana", Email: "ana@example.com", Phone: "11999999999", Password: "secret1", ConfirmPassword: "secret1"}
	res, err := m.Register(ctx, reg)
	require.NoError(t, err)
	_, unverified := res.(LoginUnverified)
	require.True(t, unverified, "result %#v", res)

	_, err = m.Register(ctx, reg)
	require.ErrorIs(t, err, ErrInvalidRequest)

	require.NoError(t, m.ResendConfirmationCode(ctx, "ana@example.com"))
	require.ErrorIs(t, m.ConfirmRegistration(ctx, "ana@example.com", "bad"), ErrInvalidRequest)
	require.NoError(t, m.ConfirmRegistration(ctx, "ana@example.com", env.backend.ConfirmationCode("ana@example.com")))

	_, ok := m.Login(ctx, "ana@example.com", "secret1").(LoginSucceeded)
	assert.True(t, ok)
	assert.Equal(t, StateAuthenticated, m.State())
}

func TestLiveRefreshServerErrorLogsOut(t *testing.T) {
	env := newLiveEnv(t)
	ctx := context.Background()
	_, err := env.backend.AddUser("ana@example.com", "secret1", token.RoleUser, true)
	require.NoError(t, err)

	m := env.manager(t)
	_, ok := m.Login(ctx, "ana@example.com", "secret1").(LoginSucceeded)
	require.True(t, ok)

	env.backend.FailRefresh(http.StatusBadGateway)
	require.ErrorIs(t, m.Refresh(ctx), ErrServer)
	assert.Equal(t, StateLoggedOut, m.State())
	assert.False(t, m.RefreshScheduled())
}

func TestLiveProfileFallsBackWhenBackendGoesAway(t *testing.T) {
	env := newLiveEnv(t)
	ctx := context.Background()
	_, err := env.backend.AddUser("ana@example.com", "secret1", token.RoleUser, true)
	require.NoError(t, err)

	m := env.manager(t)
	_, ok := m.Login(ctx, "ana@example.com", "secret1").(LoginSucceeded)
	require.True(t, ok)
	_, _, err = m.Profile(ctx)
	require.NoError(t, err)

	env.srv.Close()
	p, src, err := m.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, profile.SourceCache, src)
	assert.NotEmpty(t, p.ID)
}
