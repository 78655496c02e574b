// Package otp issues and verifies one-time email codes. It composes the
// fixed-window limiter, the Redis record store, and a CodeSender.
package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/otpauth/internal"
	"github.com/MrEthical07/otpauth/internal/limiters"
	"github.com/MrEthical07/otpauth/internal/stores"
)

var (
	ErrRateLimited = errors.New("otp: rate limited")
	ErrUnavailable = errors.New("otp: backend unavailable")
)

// VerifyResult is the outcome of a code check.
type VerifyResult int

const (
	VerifyOK VerifyResult = iota
	VerifyExpired
	VerifyInvalidCode
)

func (r VerifyResult) String() string {
	switch r {
	case VerifyOK:
		return "ok"
	case VerifyExpired:
		return "expired"
	case VerifyInvalidCode:
		return "invalid_code"
	default:
		return "unknown"
	}
}

// IssueResult describes a code that was stored and handed to the sender.
type IssueResult struct {
	ExpiresIn time.Duration
}

// CodeSender delivers a plaintext code to its owner.
type CodeSender interface {
	SendCode(ctx context.Context, email, code string, ttl time.Duration) error
}

type Config struct {
	Digits int
	TTL    time.Duration
}

type Store struct {
	records *stores.OTPStore
	limiter *limiters.OTPLimiter
	sender  CodeSender
	config  Config
	now     func() time.Time
}

func NewStore(records *stores.OTPStore, limiter *limiters.OTPLimiter, sender CodeSender, cfg Config) *Store {
	if cfg.Digits == 0 {
		cfg.Digits = 6
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	return &Store{
		records: records,
		limiter: limiter,
		sender:  sender,
		config:  cfg,
		now:     time.Now,
	}
}

// WithClock replaces the wall clock used for record expiry metadata.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

// Issue counts an issuance, stores a fresh code for email (replacing any
// live one) and delivers it. Delivery failures are returned.
func (s *Store) Issue(ctx context.Context, email, ip string) (IssueResult, error) {
	if err := s.limiter.CheckIssue(ctx, email, ip); err != nil {
		return IssueResult{}, classifyLimiterErr(err)
	}

	code, err := internal.NewOTP(s.config.Digits)
	if err != nil {
		return IssueResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	record := &stores.OTPRecord{
		Email:     email,
		CodeHash:  stores.HashCode(code),
		ExpiresAt: s.now().Add(s.config.TTL).Unix(),
	}
	if err := s.records.Save(ctx, record, s.config.TTL); err != nil {
		return IssueResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if s.sender != nil {
		if err := s.sender.SendCode(ctx, email, code, s.config.TTL); err != nil {
			return IssueResult{}, fmt.Errorf("otp: deliver code: %w", err)
		}
	}

	return IssueResult{ExpiresIn: s.config.TTL}, nil
}

// Verify counts an attempt and consumes the code for email if it matches.
// A consumed or missing code reports VerifyExpired.
func (s *Store) Verify(ctx context.Context, email, code string) (VerifyResult, error) {
	if err := s.limiter.CheckVerify(ctx, email); err != nil {
		return VerifyInvalidCode, classifyLimiterErr(err)
	}

	_, err := s.records.Consume(ctx, email, stores.HashCode(code))
	switch {
	case err == nil:
	case errors.Is(err, stores.ErrOTPNotFound):
		return VerifyExpired, nil
	case errors.Is(err, stores.ErrOTPMismatch):
		return VerifyInvalidCode, nil
	default:
		return VerifyInvalidCode, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// The code is already consumed; a lingering window only throttles, never grants.
	_ = s.limiter.ResetVerify(ctx, email)
	return VerifyOK, nil
}

// Discard removes any live code for email without counting an attempt.
func (s *Store) Discard(ctx context.Context, email string) error {
	if err := s.records.Delete(ctx, email); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func classifyLimiterErr(err error) error {
	if errors.Is(err, limiters.ErrOTPRateLimited) {
		return ErrRateLimited
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
