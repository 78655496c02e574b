package otpauth

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/MrEthical07/otpauth/linktoken"
)

func TestRequestPasswordResetDoesNotRevealAccounts(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res := env.login(t, "dora@example.com")

	if err := env.engine.RequestPasswordReset(ctx, "dora@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset for known account failed: %v", err)
	}
	if err := env.engine.RequestPasswordReset(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset for unknown account must succeed, got %v", err)
	}
	if n := env.mailer.count("nobody@example.com"); n != 0 {
		t.Fatalf("unknown address must not receive mail, got %d", n)
	}

	token := env.mailer.linkToken(t, "dora@example.com")
	claims, err := env.engine.ValidateResetToken(token)
	if err != nil {
		t.Fatalf("ValidateResetToken failed: %v", err)
	}
	if claims.UserID != res.User.ID || claims.Email != "dora@example.com" {
		t.Fatalf("unexpected reset claims: %+v", claims)
	}
	if _, err := env.engine.ValidateResetToken(res.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected access token to be ErrInvalidToken, got %v", err)
	}

	env.clock.Advance(time.Hour + time.Minute)
	if _, err := env.engine.ValidateResetToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestRequestPasswordResetThrottle(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	for _, email := range []string{"known@example.com", "unknown@example.com"} {
		if email == "known@example.com" {
			env.login(t, email)
		}
		for i := 0; i < 3; i++ {
			if err := env.engine.RequestPasswordReset(ctx, email); err != nil {
				t.Fatalf("%s request %d failed: %v", email, i+1, err)
			}
		}
		if err := env.engine.RequestPasswordReset(ctx, email); !errors.Is(err, ErrRateLimited) {
			t.Fatalf("%s: expected ErrRateLimited, got %v", email, err)
		}
	}

	if err := env.engine.RequestPasswordReset(ctx, "bad"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestUnsubscribeLinks(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	first, err := env.engine.UnsubscribeLink("Eve@Example.com")
	if err != nil {
		t.Fatalf("UnsubscribeLink failed: %v", err)
	}
	second, err := env.engine.UnsubscribeLink("eve@example.com ")
	if err != nil {
		t.Fatalf("UnsubscribeLink failed: %v", err)
	}
	if first != second {
		t.Fatalf("expected deterministic links, got %q and %q", first, second)
	}

	u, err := url.Parse(first)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	if u.Host != "app.example" || u.Query().Get("email") != "eve@example.com" {
		t.Fatalf("unexpected link: %s", first)
	}
	token := u.Query().Get("token")

	if err := env.engine.Unsubscribe(ctx, "EVE@example.com", token); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if err := env.engine.Unsubscribe(ctx, "mallory@example.com", token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for another address, got %v", err)
	}
	if err := env.engine.Unsubscribe(ctx, "eve@example.com", ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}

	env.clock.Advance(365 * 24 * time.Hour)
	if err := env.engine.Unsubscribe(ctx, "eve@example.com", token); err != nil {
		t.Fatalf("unsubscribe tokens must not expire, got %v", err)
	}
}

func TestLinkSignersFollowEngineClock(t *testing.T) {
	env := newTestEnv(t, nil)

	signers := map[string]*linktoken.Signer{
		"deletion":    env.engine.deletionSigner,
		"unsubscribe": env.engine.unsubscribeSigner,
	}
	for name, signer := range signers {
		tok := signer.Sign("subject", true)
		env.clock.Advance(2 * time.Hour)
		if res := signer.Verify(tok, time.Hour); !res.Expired {
			t.Fatalf("%s signer ignores the engine clock: %+v", name, res)
		}
	}
}
