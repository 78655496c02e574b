package otp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/otpauth/internal/limiters"
	"github.com/MrEthical07/otpauth/internal/rate"
	"github.com/MrEthical07/otpauth/internal/stores"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (c *captureSender) SendCode(_ context.Context, email, code string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.codes == nil {
		c.codes = map[string]string{}
	}
	c.codes[email] = code
	return nil
}

func (c *captureSender) last(email string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[email]
}

func newTestStore(t *testing.T) (*miniredis.Miniredis, *Store, *captureSender) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	limiter := limiters.NewOTPLimiter(rate.NewCounter(rdb, ""), limiters.OTPLimiterConfig{
		MaxIssues:    5,
		IssueWindow:  15 * time.Minute,
		MaxVerifies:  5,
		VerifyWindow: time.Minute,
	})
	sender := &captureSender{}
	return mr, NewStore(stores.NewOTPStore(rdb, ""), limiter, sender, Config{}), sender
}

func TestIssueThenVerifyConsumes(t *testing.T) {
	_, s, sender := newTestStore(t)
	ctx := context.Background()

	res, err := s.Issue(ctx, "a@example.com", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if res.ExpiresIn != 5*time.Minute {
		t.Fatalf("expected 5m expiry, got %v", res.ExpiresIn)
	}
	code := sender.last("a@example.com")
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}

	got, err := s.Verify(ctx, "a@example.com", code)
	if err != nil || got != VerifyOK {
		t.Fatalf("expected VerifyOK, got %v err=%v", got, err)
	}

	got, err = s.Verify(ctx, "a@example.com", code)
	if err != nil || got != VerifyExpired {
		t.Fatalf("expected VerifyExpired on reuse, got %v err=%v", got, err)
	}
}

func TestVerifyWrongCode(t *testing.T) {
	_, s, sender := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Issue(ctx, "a@example.com", ""); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	wrong := "000000"
	if sender.last("a@example.com") == wrong {
		wrong = "111111"
	}
	got, err := s.Verify(ctx, "a@example.com", wrong)
	if err != nil || got != VerifyInvalidCode {
		t.Fatalf("expected VerifyInvalidCode, got %v err=%v", got, err)
	}
}

func TestSixthIssueRateLimitedAndRecovers(t *testing.T) {
	mr, s, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.Issue(ctx, "a@example.com", ""); err != nil {
			t.Fatalf("issue %d: %v", i+1, err)
		}
	}
	if _, err := s.Issue(ctx, "a@example.com", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(15*time.Minute + time.Second)
	if _, err := s.Issue(ctx, "a@example.com", ""); err != nil {
		t.Fatalf("expected issue allowed after window, got %v", err)
	}
}

func TestSixthVerifyRateLimited(t *testing.T) {
	_, s, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.Verify(ctx, "a@example.com", "123456"); err != nil {
			t.Fatalf("verify %d: %v", i+1, err)
		}
	}
	if _, err := s.Verify(ctx, "a@example.com", "123456"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on 6th verify, got %v", err)
	}
}

func TestSuccessfulVerifyClearsVerifyWindow(t *testing.T) {
	_, s, sender := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Issue(ctx, "a@example.com", ""); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	for i := 0; i < 4; i++ {
		_, _ = s.Verify(ctx, "a@example.com", "x")
	}
	if got, err := s.Verify(ctx, "a@example.com", sender.last("a@example.com")); err != nil || got != VerifyOK {
		t.Fatalf("expected VerifyOK, got %v err=%v", got, err)
	}
	for i := 0; i < 5; i++ {
		if _, err := s.Verify(ctx, "a@example.com", "x"); err != nil {
			t.Fatalf("window should be fresh, attempt %d: %v", i+1, err)
		}
	}
}

func TestIssueDeliveryFailurePropagates(t *testing.T) {
	_, s, sender := newTestStore(t)
	sender.err = errors.New("smtp down")

	if _, err := s.Issue(context.Background(), "a@example.com", ""); err == nil {
		t.Fatal("expected delivery error")
	}
}

func TestExpiredCode(t *testing.T) {
	mr, s, sender := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Issue(ctx, "a@example.com", ""); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	mr.FastForward(5*time.Minute + time.Second)
	got, err := s.Verify(ctx, "a@example.com", sender.last("a@example.com"))
	if err != nil || got != VerifyExpired {
		t.Fatalf("expected VerifyExpired, got %v err=%v", got, err)
	}
}
