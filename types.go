package otpauth

import (
	"context"
	"time"

	"github.com/MrEthical07/otpauth/userstore"
)

// User is the persisted account record.
type User = userstore.User

// UserStore is the persistence contract the Engine drives. Implementations
// ship in userstore/memory and userstore/postgres.
type UserStore = userstore.Store

// EmailSender delivers rendered HTML email.
type EmailSender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// CaptchaVerifier checks a client CAPTCHA response. Any error rejects the request.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// SettingsSource supplies runtime feature flags. See [SettingsCache].
type SettingsSource interface {
	Load(ctx context.Context) (map[string]string, error)
}

// UserSummary is the part of the account returned to clients after sign-in.
type UserSummary struct {
	ID             string
	Email          string
	EmailConfirmed bool
	// DeletionScheduledAt is zero unless a deletion is pending.
	DeletionScheduledAt time.Time
}

// TokenPair is an access token and its refresh token.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// LoginResult is returned by [Engine.VerifyOTPAndLogin].
type LoginResult struct {
	TokenPair
	User UserSummary
	// Created reports whether this sign-in provisioned the account.
	Created bool
}

// OTPRequestResult is returned by [Engine.RequestOTP].
type OTPRequestResult struct {
	ExpiresIn time.Duration
}

// AccessClaims is the verified content of an access token.
type AccessClaims struct {
	UserID         string
	Email          string
	EmailConfirmed bool
	TokenID        string
	IssuedAt       time.Time
	ExpiresAt      time.Time
}

// DeletionStatus describes a pending account deletion.
type DeletionStatus struct {
	DeletionDate  time.Time
	DaysRemaining int
}

// CancelOutcome is the result of [Engine.CancelDeletionByToken].
type CancelOutcome string

const (
	CancelOutcomeExpired          CancelOutcome = "expired"
	CancelOutcomeInvalid          CancelOutcome = "invalid"
	CancelOutcomeAlreadyCancelled CancelOutcome = "already_cancelled"
	CancelOutcomeSuccess          CancelOutcome = "success"
)

// SweepReport summarizes one [Engine.SweepDeletions] run. Users in Failed
// keep their schedule and are retried by the next run.
type SweepReport struct {
	Candidates     int
	Deleted        []string
	Failed         map[string]error
	Skipped        int
	NoticeFailures int
	Duration       time.Duration
}
