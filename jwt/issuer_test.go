package jwt

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = bytes.Repeat([]byte("s"), 32)

func testConfig() Config {
	return Config{
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		ResetTTL:      time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    testSecret,
		Issuer:        "otpauth",
	}
}

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	iss, err := NewIssuer(testConfig())
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss
}

var alice = Subject{ID: "u1", Email: "alice@example.com", EmailConfirmed: true}

func TestIssuePairAndVerify(t *testing.T) {
	iss := newTestIssuer(t)

	pair, err := iss.IssuePair(alice)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	ac, err := iss.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if ac.Subject != alice || ac.ID != pair.AccessID {
		t.Fatalf("unexpected access claims %+v", ac)
	}
	if got := ac.ExpiresAt.Sub(ac.IssuedAt); got != 15*time.Minute {
		t.Fatalf("expected 15m access lifetime, got %v", got)
	}

	rc, err := iss.VerifyRefresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
	if rc.ID == "" || rc.ID != pair.RefreshID {
		t.Fatalf("refresh jti mismatch: %q vs %q", rc.ID, pair.RefreshID)
	}
	if got := rc.ExpiresAt.Sub(rc.IssuedAt); got != 7*24*time.Hour {
		t.Fatalf("expected 7d refresh lifetime, got %v", got)
	}
}

func TestVerifyAccessRejectsOtherTypes(t *testing.T) {
	iss := newTestIssuer(t)

	pair, _ := iss.IssuePair(alice)
	if _, err := iss.VerifyAccess(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token accepted as access: %v", err)
	}
	reset, _ := iss.IssueReset("u1", "alice@example.com")
	if _, err := iss.VerifyAccess(reset); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("reset token accepted as access: %v", err)
	}
	if _, err := iss.VerifyRefresh(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token accepted as refresh: %v", err)
	}
	if _, err := iss.VerifyReset(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token accepted as reset: %v", err)
	}
}

func TestResetTokenLifetime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := newTestIssuer(t).WithClock(func() time.Time { return now })

	tok, err := iss.IssueReset("u1", "alice@example.com")
	if err != nil {
		t.Fatalf("IssueReset: %v", err)
	}
	rc, err := iss.VerifyReset(tok)
	if err != nil || rc.UserID != "u1" || rc.Email != "alice@example.com" {
		t.Fatalf("unexpected reset claims %+v err=%v", rc, err)
	}

	now = now.Add(time.Hour + time.Second)
	if _, err := iss.VerifyReset(tok); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestExpiredAccessToken(t *testing.T) {
	now := time.Now()
	iss := newTestIssuer(t).WithClock(func() time.Time { return now })

	tok, _, err := iss.IssueAccess(alice)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	now = now.Add(16 * time.Minute)
	if _, err := iss.VerifyAccess(tok); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestRotateRefreshMintsFreshPair(t *testing.T) {
	iss := newTestIssuer(t)

	first, _ := iss.IssuePair(alice)
	next, old, err := iss.RotateRefresh(first.RefreshToken)
	if err != nil {
		t.Fatalf("RotateRefresh: %v", err)
	}
	if old.ID != first.RefreshID {
		t.Fatalf("old claims should describe the presented token")
	}
	if next.RefreshID == first.RefreshID {
		t.Fatal("rotation must mint a new jti")
	}
	ac, err := iss.VerifyAccess(next.AccessToken)
	if err != nil || ac.Subject != alice {
		t.Fatalf("rotated access token lost identity: %+v err=%v", ac, err)
	}

	// The old token stays cryptographically valid.
	if _, err := iss.VerifyRefresh(first.RefreshToken); err != nil {
		t.Fatalf("old refresh should still verify: %v", err)
	}
}

func TestRotateRefreshRejectsAccessToken(t *testing.T) {
	iss := newTestIssuer(t)
	pair, _ := iss.IssuePair(alice)
	if _, _, err := iss.RotateRefresh(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	cfg := testConfig()
	cfg.SigningMethod = MethodEd25519
	cfg.PrivateKey = nil
	cfg.PublicKey = pub
	iss, err := NewIssuer(cfg)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	claims := Claims{Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    "otpauth",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := iss.VerifyAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected wrong algorithm rejected, got %v", err)
	}
	if _, err := iss.IssueReset("u1", "x"); err == nil {
		t.Fatal("verify-only issuer must not sign")
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	cfg := testConfig()
	cfg.SigningMethod = MethodEd25519
	cfg.PrivateKey = priv
	cfg.KeyID = "k1"
	iss, err := NewIssuer(cfg)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	pair, err := iss.IssuePair(alice)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if _, err := iss.VerifyAccess(pair.AccessToken); err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
}

func TestNewIssuerValidation(t *testing.T) {
	cases := map[string]func(*Config){
		"zero access ttl":  func(c *Config) { c.AccessTTL = 0 },
		"refresh < access": func(c *Config) { c.RefreshTTL = time.Minute },
		"short hs256 key":  func(c *Config) { c.PrivateKey = []byte("short") },
		"unknown method":   func(c *Config) { c.SigningMethod = "rs512" },
		"excessive leeway": func(c *Config) { c.Leeway = time.Hour },
		"zero reset ttl":   func(c *Config) { c.ResetTTL = 0 },
	}
	for name, mutate := range cases {
		cfg := testConfig()
		mutate(&cfg)
		if _, err := NewIssuer(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

// FuzzVerifyAccess exercises the parser with arbitrary token strings.
func FuzzVerifyAccess(f *testing.F) {
	iss, err := NewIssuer(testConfig())
	if err != nil {
		f.Fatal(err)
	}
	valid, _, err := iss.IssueAccess(alice)
	if err != nil {
		f.Fatal(err)
	}
	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.e30.")
	f.Fuzz(func(t *testing.T, token string) {
		claims, err := iss.VerifyAccess(token)
		if err == nil && claims.ID == "" {
			t.Fatal("accepted token without jti")
		}
	})
}
