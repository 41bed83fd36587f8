package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	AccessToken string `json:"access_token"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// RegisterRequest is the account creation payload.
type RegisterRequest struct {
	Name     string `json:"nome"`
	Email    string `json:"email"`
	Phone    string `json:"celular"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type confirmRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type confirmResetRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

var loginStatusKinds = map[int]error{
	http.StatusUnauthorized: ErrUnauthorized,
	http.StatusForbidden:    ErrUnverified,
}

// Login posts credentials and returns the issued access token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", "", loginRequest{Email: email, Password: password}, &out, loginStatusKinds)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return "", fmt.Errorf("%w: missing access_token", ErrBadResponse)
	}
	return out.AccessToken, nil
}

// Refresh exchanges the current token for a new one.
func (c *Client) Refresh(ctx context.Context, current string) (string, error) {
	var out tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/refresh", "", refreshRequest{AccessToken: current}, &out, nil)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return "", fmt.Errorf("%w: missing access_token", ErrBadResponse)
	}
	return out.AccessToken, nil
}

// FetchProfile returns the raw user document for userID.
func (c *Client) FetchProfile(ctx context.Context, bearer, userID string) ([]byte, error) {
	var raw json.RawMessage
	path := "/users/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, bearer, nil, &raw, nil); err != nil {
		return nil, err
	}
	return raw, nil
}

// Register creates an account. The backend answers 201 on success.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.do(ctx, http.MethodPost, "/auth/register", "", req, nil, nil)
}

// ResendConfirmationCode asks the backend to email a new confirmation code.
func (c *Client) ResendConfirmationCode(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/resend-confirmation-code", "", emailRequest{Email: email}, nil, nil)
}

// ConfirmRegistration submits the emailed confirmation code.
func (c *Client) ConfirmRegistration(ctx context.Context, email, code string) error {
	return c.do(ctx, http.MethodPost, "/auth/confirm-registration", "", confirmRequest{Email: email, Code: code}, nil, nil)
}

// RequestPasswordReset starts the password reset flow for email.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/password-reset", "", emailRequest{Email: email}, nil, nil)
}

// ConfirmPasswordReset sets a new password using the emailed code.
func (c *Client) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	req := confirmResetRequest{Email: email, Code: code, NewPassword: newPassword}
	return c.do(ctx, http.MethodPost, "/auth/confirm-password-reset", "", req, nil, nil)
}
