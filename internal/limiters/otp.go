package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/otpauth/internal/rate"
)

const (
	opIssue   = "otp_issue"
	opIssueIP = "otp_issue_ip"
	opVerify  = "otp_verify"
)

var (
	ErrOTPRateLimited        = errors.New("otp rate limited")
	ErrOTPLimiterUnavailable = errors.New("otp limiter unavailable")
)

type OTPLimiterConfig struct {
	MaxIssues        int
	IssueWindow      time.Duration
	MaxVerifies      int
	VerifyWindow     time.Duration
	EnableIPThrottle bool
	MaxIssuesPerIP   int
}

type OTPLimiter struct {
	counter *rate.Counter
	config  OTPLimiterConfig
}

func NewOTPLimiter(counter *rate.Counter, cfg OTPLimiterConfig) *OTPLimiter {
	return &OTPLimiter{
		counter: counter,
		config:  cfg,
	}
}

// CheckIssue counts one issuance for email (and ip when IP throttling is on).
func (l *OTPLimiter) CheckIssue(ctx context.Context, email, ip string) error {
	if l == nil || l.counter == nil {
		return nil
	}
	if err := l.enforce(ctx, opIssue, email, l.config.MaxIssues, l.config.IssueWindow); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		return l.enforce(ctx, opIssueIP, ip, l.config.MaxIssuesPerIP, l.config.IssueWindow)
	}
	return nil
}

// CheckVerify counts one verification attempt for email.
func (l *OTPLimiter) CheckVerify(ctx context.Context, email string) error {
	if l == nil || l.counter == nil {
		return nil
	}
	return l.enforce(ctx, opVerify, email, l.config.MaxVerifies, l.config.VerifyWindow)
}

// ResetVerify clears the verify window after a successful verification.
func (l *OTPLimiter) ResetVerify(ctx context.Context, email string) error {
	if l == nil || l.counter == nil {
		return nil
	}
	if err := l.counter.Reset(ctx, opVerify, email); err != nil {
		return fmt.Errorf("%w: %v", ErrOTPLimiterUnavailable, err)
	}
	return nil
}

// RemainingIssues reports how many issuances email has left in the current window.
func (l *OTPLimiter) RemainingIssues(ctx context.Context, email string) (int, error) {
	if l == nil || l.counter == nil {
		return 0, nil
	}
	n, err := l.counter.Remaining(ctx, opIssue, email, l.config.MaxIssues)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOTPLimiterUnavailable, err)
	}
	return n, nil
}

func (l *OTPLimiter) enforce(ctx context.Context, op, identity string, limit int, window time.Duration) error {
	count, err := l.counter.Increment(ctx, op, identity, window)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOTPLimiterUnavailable, err)
	}
	if count > int64(limit) {
		return ErrOTPRateLimited
	}
	return nil
}
