package flows

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/vocalizeai/vzauth/api"
)

var (
	ErrRegistrationIncomplete = errors.New("all registration fields are required")
	ErrRegistrationEmail      = errors.New("invalid email format")
	ErrRegistrationPhone      = errors.New("phone number must have at least 11 digits")
	ErrRegistrationPassword   = errors.New("password must have at least 6 characters")
	ErrRegistrationMismatch   = errors.New("passwords do not match")
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

const (
	minPhoneLength    = 11
	minPasswordLength = 6
)

// RegisterInput is the account form as submitted by the user.
type RegisterInput struct {
	Name            string
	Email           string
	Phone           string
	Password        string
	ConfirmPassword string
}

// RegisterBackend creates accounts.
type RegisterBackend interface {
	Register(ctx context.Context, req api.RegisterRequest) error
}

// RegisterDeps captures registration flow dependencies. Login runs after a
// successful registration with the same credentials.
type RegisterDeps struct {
	Backend RegisterBackend
	Login   LoginDeps
}

// RegisterResult reports whether the account was created and the outcome
// of the follow-up login.
type RegisterResult struct {
	Err     error
	Created bool
	Login   LoginResult
}

// ValidateRegistration checks the form locally before anything is sent.
func ValidateRegistration(in RegisterInput) error {
	if strings.TrimSpace(in.Name) == "" || in.Phone == "" || strings.TrimSpace(in.Email) == "" ||
		in.Password == "" || in.ConfirmPassword == "" {
		return ErrRegistrationIncomplete
	}
	if !emailPattern.MatchString(strings.TrimSpace(in.Email)) {
		return ErrRegistrationEmail
	}
	if len(in.Phone) < minPhoneLength {
		return ErrRegistrationPhone
	}
	if len(in.Password) < minPasswordLength {
		return ErrRegistrationPassword
	}
	if in.Password != in.ConfirmPassword {
		return ErrRegistrationMismatch
	}
	return nil
}

// RunRegister validates in, creates the account and then logs in. A new
// account normally reports LoginFailureUnverified until it is confirmed.
func RunRegister(ctx context.Context, in RegisterInput, deps RegisterDeps) RegisterResult {
	if err := ValidateRegistration(in); err != nil {
		return RegisterResult{Err: err}
	}

	email := strings.TrimSpace(in.Email)
	err := deps.Backend.Register(ctx, api.RegisterRequest{
		Name:     strings.TrimSpace(in.Name),
		Email:    email,
		Phone:    in.Phone,
		Password: in.Password,
	})
	if err != nil {
		return RegisterResult{Err: err}
	}

	return RegisterResult{
		Created: true,
		Login:   RunLogin(ctx, email, in.Password, deps.Login),
	}
}
