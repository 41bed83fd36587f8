// Package api is the HTTP client for the VocalizeAI backend endpoints the
// session layer depends on: login, token refresh, user profile, and the
// registration and password-reset pass-throughs.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrUnavailable is returned when a request could not complete at the
	// transport level (DNS, refused connection, timeout).
	ErrUnavailable = errors.New("backend unreachable")
	// ErrUnauthorized is returned for HTTP 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnverified is returned for HTTP 403 on login: the account exists
	// but has not been confirmed.
	ErrUnverified = errors.New("account not confirmed")
	// ErrServer is returned for HTTP 5xx.
	ErrServer = errors.New("server error")
	// ErrBadResponse is returned when a 2xx body does not match the contract.
	ErrBadResponse = errors.New("unexpected response body")
)

// StatusError carries a non-2xx response.
type StatusError struct {
	Status  int
	Message string
	kind    error
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http %d", e.Status)
}

// Unwrap lets errors.Is match ErrUnauthorized, ErrUnverified or ErrServer.
func (e *StatusError) Unwrap() error { return e.kind }

// Config configures a [Client].
type Config struct {
	BaseURL          string
	Timeout          time.Duration
	ReachableTimeout time.Duration
	UserAgent        string
}

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	base       *url.URL
	http       *http.Client
	reachHTTP  *http.Client
	userAgent  string
	logger     *zap.Logger
	newRequest func() string
}

// NewClient validates cfg and builds a client. A nil httpClient uses a
// client with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("api base url required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid api base url scheme %q", base.Scheme)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.ReachableTimeout <= 0 {
		cfg.ReachableTimeout = 3 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "vzauth"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	reach := *httpClient
	reach.Timeout = cfg.ReachableTimeout

	return &Client{
		base:       base,
		http:       httpClient,
		reachHTTP:  &reach,
		userAgent:  cfg.UserAgent,
		logger:     logger,
		newRequest: uuid.NewString,
	}, nil
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string { return c.base.String() }

// Reachable reports whether the backend answers at all. Any HTTP response,
// including an error status, counts as reachable.
func (c *Client) Reachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.base.String()+"/", nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.reachHTTP.Do(req)
	if err != nil {
		c.logger.Debug("backend unreachable", zap.Error(err))
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return true
}

type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

func (b errorBody) text() string {
	if b.Message != "" {
		return b.Message
	}
	if len(b.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(b.Detail, &s); err == nil {
		return s
	}
	return string(b.Detail)
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
// statusKinds maps specific status codes to sentinel errors for this call.
func (c *Client) do(ctx context.Context, method, path, bearer string, in, out interface{}, statusKinds map[int]error) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return err
	}
	requestID := c.newRequest()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("api request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		se := &StatusError{Status: resp.StatusCode, Message: eb.text()}
		if kind, ok := statusKinds[resp.StatusCode]; ok {
			se.kind = kind
		} else if resp.StatusCode == http.StatusUnauthorized {
			se.kind = ErrUnauthorized
		} else if resp.StatusCode >= 500 {
			se.kind = ErrServer
		}
		return se
	}

	if out == nil {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}
