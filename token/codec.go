package token

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned when a bearer token cannot be parsed into the
// three claims a session needs (exp, role, sub).
var ErrMalformed = errors.New("malformed token")

// Role is the capability tag carried in the token's role claim.
type Role string

const (
	// RoleAdmin grants access to the administration screens.
	RoleAdmin Role = "admin"
	// RoleUser is the regular participant role.
	RoleUser Role = "user"
)

// IsAdmin reports whether r is the admin role.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// Valid reports whether r is one of the roles the backend issues.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleUser }

// Claims is the structured view of an access token.
//
// ExpiresAt is epoch milliseconds.
type Claims struct {
	ExpiresAt int64
	Role      Role
	UserID    string
}

// VerifyConfig optionally enables signature verification in a [Codec].
// A zero value disables verification.
type VerifyConfig struct {
	SigningMethod SigningMethod
	Key           []byte
}

// Codec decodes bearer tokens into [Claims].
//
// Codec holds no mutable state and is safe for concurrent use.
type Codec struct {
	verify    bool
	method    jwt.SigningMethod
	verifyKey interface{}
	parser    *jwt.Parser
}

// NewCodec builds a codec. Without a verify key, tokens are decoded
// without checking their signature: the client never holds the server key.
func NewCodec(cfg VerifyConfig) (*Codec, error) {
	c := &Codec{}
	if len(cfg.Key) == 0 {
		c.parser = jwt.NewParser(jwt.WithoutClaimsValidation())
		return c, nil
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		c.method = jwt.SigningMethodHS256
		c.verifyKey = cfg.Key
	case MethodEd25519, "":
		pub, err := parseEdPublicKey(cfg.Key)
		if err != nil {
			return nil, err
		}
		c.method = jwt.SigningMethodEdDSA
		c.verifyKey = pub
	default:
		return nil, errors.New("unsupported signing method")
	}

	c.verify = true
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	return c, nil
}

// Decode extracts expiry, role and subject from raw. Any failure is
// reported as [ErrMalformed]; expiry is never validated here.
func (c *Codec) Decode(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, fmt.Errorf("%w: empty token", ErrMalformed)
	}

	mc := jwt.MapClaims{}
	var err error
	if c != nil && c.verify {
		_, err = c.parser.ParseWithClaims(raw, mc, func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != c.method.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
			}
			return c.verifyKey, nil
		})
	} else {
		parser := jwt.NewParser(jwt.WithoutClaimsValidation())
		if c != nil && c.parser != nil {
			parser = c.parser
		}
		_, _, err = parser.ParseUnverified(raw, mc)
	}
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return claimsFromMap(mc)
}

func claimsFromMap(mc jwt.MapClaims) (Claims, error) {
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return Claims{}, fmt.Errorf("%w: missing exp", ErrMalformed)
	}

	role, _ := mc["role"].(string)
	if strings.TrimSpace(role) == "" {
		return Claims{}, fmt.Errorf("%w: missing role", ErrMalformed)
	}
	if !Role(role).Valid() {
		return Claims{}, fmt.Errorf("%w: unknown role %q", ErrMalformed, role)
	}

	sub, ok := subjectString(mc["sub"])
	if !ok {
		return Claims{}, fmt.Errorf("%w: missing sub", ErrMalformed)
	}

	return Claims{
		ExpiresAt: exp.Time.UnixMilli(),
		Role:      Role(role),
		UserID:    sub,
	}, nil
}

// subjectString accepts both string and numeric sub claims; the backend
// historically issued integer user ids.
func subjectString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		s = strings.TrimSpace(s)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case json.Number:
		return s.String(), s.String() != ""
	default:
		return "", false
	}
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}
