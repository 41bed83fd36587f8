package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signHS(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

func TestDecodeRoundTripConvertsSecondsToMillis(t *testing.T) {
	const exp = int64(1893456000)
	raw := signHS(t, jwt.MapClaims{"exp": exp, "role": "admin", "sub": "42"})

	codec, err := NewCodec(VerifyConfig{})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	got, err := codec.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := Claims{ExpiresAt: exp * 1000, Role: RoleAdmin, UserID: "42"}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestDecodeAcceptsNumericSubject(t *testing.T) {
	raw := signHS(t, jwt.MapClaims{"exp": 100, "role": "user", "sub": 7})

	got, err := (&Codec{}).Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.UserID != "7" {
		t.Fatalf("expected user id 7, got %q", got.UserID)
	}
}

func TestDecodeDoesNotRejectExpiredTokens(t *testing.T) {
	raw := signHS(t, jwt.MapClaims{"exp": 1, "role": "user", "sub": "1"})

	got, err := (&Codec{}).Decode(raw)
	if err != nil {
		t.Fatalf("expired token should still decode, got %v", err)
	}
	if got.ExpiresAt != 1000 {
		t.Fatalf("expected 1000ms, got %d", got.ExpiresAt)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"missing exp":  signHS(t, jwt.MapClaims{"role": "user", "sub": "1"}),
		"missing role": signHS(t, jwt.MapClaims{"exp": 10, "sub": "1"}),
		"missing sub":  signHS(t, jwt.MapClaims{"exp": 10, "role": "user"}),
		"blank sub":    signHS(t, jwt.MapClaims{"exp": 10, "role": "user", "sub": "  "}),
		"unknown role": signHS(t, jwt.MapClaims{"exp": 10, "role": "owner", "sub": "1"}),
		"cased role":   signHS(t, jwt.MapClaims{"exp": 10, "role": "Admin", "sub": "1"}),
	}

	codec, _ := NewCodec(VerifyConfig{})
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := codec.Decode(raw); !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestVerifyingCodecRejectsForeignSignature(t *testing.T) {
	iss, err := NewIssuer(IssuerConfig{TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("right")})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	raw, err := iss.Issue("9", RoleUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	good, _ := NewCodec(VerifyConfig{SigningMethod: MethodHS256, Key: []byte("right")})
	if _, err := good.Decode(raw); err != nil {
		t.Fatalf("expected verified decode, got %v", err)
	}

	bad, _ := NewCodec(VerifyConfig{SigningMethod: MethodHS256, Key: []byte("wrong")})
	if _, err := bad.Decode(raw); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for bad signature, got %v", err)
	}
}

func TestEd25519IssuerAndCodec(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	iss, err := NewIssuer(IssuerConfig{TTL: time.Hour, SigningMethod: MethodEd25519, PrivateKey: priv})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	expiresAt := time.Unix(2000000000, 0)
	raw, err := iss.IssueAt("abc", RoleAdmin, expiresAt)
	if err != nil {
		t.Fatalf("IssueAt: %v", err)
	}

	codec, err := NewCodec(VerifyConfig{SigningMethod: MethodEd25519, Key: pub})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	claims, err := codec.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.ExpiresAt != expiresAt.UnixMilli() || claims.UserID != "abc" || !claims.Role.IsAdmin() {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestNewIssuerRejectsBadConfig(t *testing.T) {
	if _, err := NewIssuer(IssuerConfig{TTL: 0, SigningMethod: MethodHS256, PrivateKey: []byte("k")}); err == nil {
		t.Fatal("expected ttl error")
	}
	if _, err := NewIssuer(IssuerConfig{TTL: time.Minute, SigningMethod: MethodHS256}); err == nil {
		t.Fatal("expected missing key error")
	}
	if _, err := NewIssuer(IssuerConfig{TTL: time.Minute, SigningMethod: "rs256", PrivateKey: []byte("k")}); err == nil {
		t.Fatal("expected unsupported method error")
	}
}
