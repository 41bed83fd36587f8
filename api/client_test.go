package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vocalizeai/vzauth/internal/mockapi"
	"github.com/vocalizeai/vzauth/token"
)

func newBackend(t *testing.T) (*Client, *mockapi.Server, *httptest.Server) {
	t.Helper()

	backend, err := mockapi.New(mockapi.Options{Secret: []byte("api-test-secret")})
	require.NoError(t, err)
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL}, nil, nil)
	require.NoError(t, err)
	return client, backend, srv
}

func TestLoginAndRefresh(t *testing.T) {
	client, backend, _ := newBackend(t)
	id, err := backend.AddUser("ana@example.com", "correct-horse", token.RoleUser, true)
	require.NoError(t, err)

	raw, err := client.Login(context.Background(), "ana@example.com", "correct-horse")
	require.NoError(t, err)

	claims, err := (&token.Codec{}).Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)

	next, err := client.Refresh(context.Background(), raw)
	require.NoError(t, err)
	assert.NotEmpty(t, next)
	assert.Equal(t, 1, backend.RefreshCalls())
}

func TestLoginStatusMapping(t *testing.T) {
	client, backend, _ := newBackend(t)
	_, err := backend.AddUser("pending@example.com", "pending-pass", token.RoleUser, false)
	require.NoError(t, err)

	_, err = client.Login(context.Background(), "a@b.com", "wrong")
	require.ErrorIs(t, err, ErrUnauthorized)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Status)
	assert.NotEmpty(t, se.Message)

	_, err = client.Login(context.Background(), "pending@example.com", "pending-pass")
	require.ErrorIs(t, err, ErrUnverified)

	backend.FailLogin(http.StatusBadGateway)
	_, err = client.Login(context.Background(), "pending@example.com", "pending-pass")
	require.ErrorIs(t, err, ErrServer)
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	client, _, srv := newBackend(t)
	srv.Close()

	_, err := client.Refresh(context.Background(), "tok")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, client.Reachable(context.Background()))
}

func TestReachableOnAnyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, ReachableTimeout: time.Second}, nil, nil)
	require.NoError(t, err)
	assert.True(t, client.Reachable(context.Background()))
}

func TestFetchProfileSendsBearerAndRequestID(t *testing.T) {
	var gotAuth, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		assert.Equal(t, "/users/42", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":42,"nome":"Ana"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL}, nil, nil)
	require.NoError(t, err)

	data, err := client.FetchProfile(context.Background(), "tok-1", "42")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":42,"nome":"Ana"}`, string(data))
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Len(t, gotRequestID, 36)
}

func TestFetchProfileAgainstBackend(t *testing.T) {
	client, backend, _ := newBackend(t)
	id, err := backend.AddUser("ana@example.com", "correct-horse", token.RoleUser, true)
	require.NoError(t, err)
	raw, err := client.Login(context.Background(), "ana@example.com", "correct-horse")
	require.NoError(t, err)

	data, err := client.FetchProfile(context.Background(), raw, id)
	require.NoError(t, err)

	var doc struct {
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "ana@example.com", doc.Email)

	_, err = client.FetchProfile(context.Background(), "garbage", id)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestMissingAccessTokenIsBadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL}, nil, nil)
	require.NoError(t, err)

	_, err = client.Login(context.Background(), "a@b.com", "pw")
	require.ErrorIs(t, err, ErrBadResponse)
}

func TestRegistrationAndResetPassThrough(t *testing.T) {
	client, backend, _ := newBackend(t)
	ctx := context.Background()

	err := client.Register(ctx, RegisterRequest{Name: "Ana", Email: "ana@example.com", Phone: "11999999999", Password: "first-pass"})
	require.NoError(t, err)

	require.NoError(t, client.ResendConfirmationCode(ctx, "ana@example.com"))
	require.Error(t, client.ConfirmRegistration(ctx, "ana@example.com", "nope"))
	require.NoError(t, client.ConfirmRegistration(ctx, "ana@example.com", backend.ConfirmationCode("ana@example.com")))

	require.NoError(t, client.RequestPasswordReset(ctx, "ana@example.com"))
	require.NoError(t, client.ConfirmPasswordReset(ctx, "ana@example.com", backend.ResetCode("ana@example.com"), "second-pass"))

	_, err = client.Login(ctx, "ana@example.com", "first-pass")
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = client.Login(ctx, "ana@example.com", "second-pass")
	require.NoError(t, err)
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	_, err := NewClient(Config{}, nil, nil)
	require.Error(t, err)
	_, err = NewClient(Config{BaseURL: "ftp://example.com"}, nil, nil)
	require.Error(t, err)
}
