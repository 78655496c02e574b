package otpauth

import "errors"

var (
	// ErrRateLimited is returned when an issue or verify window is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidOrExpiredCode covers wrong, expired and already used codes alike.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	// ErrAccountDeleted is returned for accounts the host application marked deleted.
	ErrAccountDeleted = errors.New("account deleted")
	// ErrSessionRevoked is returned when a refresh token no longer has a live session.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrInvalidToken is returned for malformed, forged or wrong-kind tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned for well-formed tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidCaptcha is returned when CAPTCHA is enabled and the response is rejected.
	ErrInvalidCaptcha = errors.New("invalid captcha")
	// ErrEmailUnchanged is returned when the new address equals the current one.
	ErrEmailUnchanged = errors.New("email unchanged")
	// ErrEmailTaken is returned when the new address belongs to another account.
	ErrEmailTaken = errors.New("email already in use")
	// ErrNoPendingEmailChange is returned when no email change is awaiting confirmation.
	ErrNoPendingEmailChange = errors.New("no pending email change")
	// ErrUserNotFound is returned by authenticated operations naming an unknown user.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidEmail is returned for addresses that fail format validation.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrBackendUnavailable wraps Redis, user store and delivery failures.
	ErrBackendUnavailable = errors.New("backend unavailable")
)
