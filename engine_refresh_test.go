package otpauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRefreshRotatesAndRejectsReplay(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	first := env.login(t, "kim@example.com")

	env.clock.Advance(time.Minute)
	second, err := env.engine.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("expected a new refresh token")
	}
	if _, err := env.engine.ValidateAccess(ctx, second.AccessToken); err != nil {
		t.Fatalf("ValidateAccess of rotated token failed: %v", err)
	}

	if _, err := env.engine.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked on replay, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, second.RefreshToken); err != nil {
		t.Fatalf("rotated refresh token must still work, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricRefreshSuccess]; got != 2 {
		t.Fatalf("expected 2 refresh successes, got %d", got)
	}
}

func TestRefreshConcurrentSingleWinner(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res := env.login(t, "lee@example.com")

	const workers = 8
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, err := env.engine.Refresh(ctx, res.RefreshToken)
			errs <- err
		}()
	}

	wins := 0
	for i := 0; i < workers; i++ {
		err := <-errs
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSessionRevoked):
		default:
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one successful rotation, got %d", wins)
	}
}

func TestValidateAccessRejectsOtherTokenKinds(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res := env.login(t, "max@example.com")

	if _, err := env.engine.ValidateAccess(ctx, res.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected refresh token to be ErrInvalidToken, got %v", err)
	}
	reset, err := env.engine.issuer.IssueReset(res.User.ID, res.User.Email)
	if err != nil {
		t.Fatalf("IssueReset failed: %v", err)
	}
	if _, err := env.engine.ValidateAccess(ctx, reset); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected reset token to be ErrInvalidToken, got %v", err)
	}
	if _, err := env.engine.ValidateAccess(ctx, "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected garbage to be ErrInvalidToken, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, res.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected access token to be rejected by Refresh, got %v", err)
	}
}

func TestValidateAccessExpiry(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res := env.login(t, "nia@example.com")
	env.clock.Advance(15*time.Minute + 10*time.Second)

	if _, err := env.engine.ValidateAccess(ctx, res.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, res.RefreshToken); err != nil {
		t.Fatalf("refresh after access expiry failed: %v", err)
	}
}

func TestRefreshTokenExpiry(t *testing.T) {
	env := newTestEnv(t, nil)

	res := env.login(t, "oli@example.com")
	env.clock.Advance(7*24*time.Hour + time.Minute)

	if _, err := env.engine.Refresh(context.Background(), res.RefreshToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res := env.login(t, "pat@example.com")
	if err := env.engine.Logout(ctx, res.RefreshToken, ""); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, res.RefreshToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked after logout, got %v", err)
	}
	if _, err := env.engine.ValidateAccess(ctx, res.AccessToken); err != nil {
		t.Fatalf("access token must stay valid without the denylist, got %v", err)
	}
	if err := env.engine.Logout(ctx, "bogus", ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestLogoutDenylistsAccessToken(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Builder) {
		cfg.JWT.EnableAccessDenylist = true
	})
	ctx := context.Background()

	res := env.login(t, "quinn@example.com")
	other := env.login(t, "quinn@example.com")

	if err := env.engine.Logout(ctx, res.RefreshToken, res.AccessToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := env.engine.ValidateAccess(ctx, res.AccessToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked for denylisted token, got %v", err)
	}
	if _, err := env.engine.ValidateAccess(ctx, other.AccessToken); err != nil {
		t.Fatalf("other session must stay valid, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricAccessDenylisted]; got != 1 {
		t.Fatalf("expected 1 denylisted metric, got %d", got)
	}
}

func TestLogoutDenylistCoversLeeway(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config, _ *Builder) {
		cfg.JWT.EnableAccessDenylist = true
	})
	ctx := context.Background()
	cfg := env.engine.config.JWT

	res := env.login(t, "sage@example.com")
	if err := env.engine.Logout(ctx, res.RefreshToken, res.AccessToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	// Past exp but inside the leeway the token still verifies, so the
	// denylist entry must still be there.
	step := cfg.AccessTTL + cfg.Leeway/2
	env.clock.Advance(step)
	env.mr.FastForward(step)
	if _, err := env.engine.ValidateAccess(ctx, res.AccessToken); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked inside leeway, got %v", err)
	}

	env.clock.Advance(cfg.Leeway)
	env.mr.FastForward(cfg.Leeway)
	if _, err := env.engine.ValidateAccess(ctx, res.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired past leeway, got %v", err)
	}
}

func TestLogoutWithExpiredRefreshSucceeds(t *testing.T) {
	env := newTestEnv(t, nil)

	res := env.login(t, "rae@example.com")
	env.clock.Advance(8 * 24 * time.Hour)

	if err := env.engine.Logout(context.Background(), res.RefreshToken, ""); err != nil {
		t.Fatalf("expected expired logout to succeed, got %v", err)
	}
}
