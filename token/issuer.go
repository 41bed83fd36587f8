package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the algorithm used by [Issuer] and verifying [Codec]s.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Ed25519.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256.
	MethodHS256 SigningMethod = "hs256"
)

// IssuerConfig configures an [Issuer].
type IssuerConfig struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	KeyID         string
}

// Issuer mints access tokens with the claim layout the backend uses
// ({exp, role, sub, iat}). The client library only decodes tokens; Issuer
// backs the fake backend and tests.
type Issuer struct {
	config  IssuerConfig
	method  jwt.SigningMethod
	signKey interface{}
	now     func() time.Time
}

type accessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// NewIssuer validates cfg and prepares the signing key.
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	iss := &Issuer{config: cfg, now: time.Now}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
		iss.method = jwt.SigningMethodHS256
		iss.signKey = cfg.PrivateKey
	case MethodEd25519:
		key, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		iss.method = jwt.SigningMethodEdDSA
		iss.signKey = key
	default:
		return nil, errors.New("unsupported signing method")
	}

	return iss, nil
}

// Issue signs a token for userID with role, expiring TTL from now.
func (i *Issuer) Issue(userID string, role Role) (string, error) {
	now := i.now()
	return i.IssueAt(userID, role, now.Add(i.config.TTL))
}

// IssueAt signs a token with an explicit expiry. Tests use it to build
// already-expired or far-future tokens.
func (i *Issuer) IssueAt(userID string, role Role, expiresAt time.Time) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user id required")
	}
	claims := accessClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(i.now()),
		},
	}

	t := jwt.NewWithClaims(i.method, claims)
	if i.config.KeyID != "" {
		t.Header["kid"] = i.config.KeyID
	}
	return t.SignedString(i.signKey)
}

// TTL returns the configured token lifetime.
func (i *Issuer) TTL() time.Duration { return i.config.TTL }
