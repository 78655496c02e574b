package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/otpauth/internal"
	"github.com/MrEthical07/otpauth/internal/otp"
	"github.com/MrEthical07/otpauth/jwt"
	"github.com/MrEthical07/otpauth/session"
	"github.com/MrEthical07/otpauth/userstore"
)

var errNoCaptchaVerifier = errors.New("captcha required but no verifier configured")

// RequestOTPFailureKind classifies request-otp failures for root-level mapping.
type RequestOTPFailureKind int

const (
	RequestOTPFailureNone RequestOTPFailureKind = iota
	RequestOTPFailureInvalidEmail
	RequestOTPFailureLookup
	RequestOTPFailureAccountDeleted
	RequestOTPFailureCaptcha
	RequestOTPFailureRateLimited
	RequestOTPFailureIssue
)

type RequestOTPRequest struct {
	Email        string
	CaptchaToken string
	RemoteIP     string
}

type RequestOTPResult struct {
	Failure   RequestOTPFailureKind
	Err       error
	Email     string
	ExpiresIn time.Duration
}

type RequestOTPDeps struct {
	NormalizeEmail  func(string) (string, error)
	Users           userstore.Store
	CaptchaRequired func() bool
	Captcha         CaptchaVerifier
	Codes           CodeIssuer
}

// RunRequestOTP issues a sign-in code. Unknown emails are not an error: the
// account is provisioned on the first successful verification.
func RunRequestOTP(ctx context.Context, req RequestOTPRequest, deps RequestOTPDeps) RequestOTPResult {
	email, err := deps.NormalizeEmail(req.Email)
	if err != nil {
		return RequestOTPResult{Failure: RequestOTPFailureInvalidEmail, Err: err}
	}

	user, err := deps.Users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if user.Deleted() {
			return RequestOTPResult{Failure: RequestOTPFailureAccountDeleted, Email: email}
		}
	case errors.Is(err, userstore.ErrNotFound):
	default:
		return RequestOTPResult{Failure: RequestOTPFailureLookup, Err: err, Email: email}
	}

	if deps.CaptchaRequired != nil && deps.CaptchaRequired() {
		if deps.Captcha == nil {
			return RequestOTPResult{Failure: RequestOTPFailureCaptcha, Err: errNoCaptchaVerifier, Email: email}
		}
		if err := deps.Captcha.Verify(ctx, req.CaptchaToken, req.RemoteIP); err != nil {
			return RequestOTPResult{Failure: RequestOTPFailureCaptcha, Err: err, Email: email}
		}
	}

	issued, err := deps.Codes.Issue(ctx, email, req.RemoteIP)
	if err != nil {
		if errors.Is(err, otp.ErrRateLimited) {
			return RequestOTPResult{Failure: RequestOTPFailureRateLimited, Err: err, Email: email}
		}
		return RequestOTPResult{Failure: RequestOTPFailureIssue, Err: err, Email: email}
	}

	return RequestOTPResult{Email: email, ExpiresIn: issued.ExpiresIn}
}

// LoginFailureKind classifies verify-and-login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureInvalidEmail
	LoginFailureRateLimited
	LoginFailureVerify
	LoginFailureInvalidCode
	LoginFailureAccountDeleted
	LoginFailureProvision
	LoginFailureIssue
	LoginFailureSession
)

// LoginResult carries the minted pair and the signed-in user, or failure metadata.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	Email   string
	User    *userstore.User
	Pair    jwt.Pair
	Created bool
}

type LoginDeps struct {
	NormalizeEmail func(string) (string, error)
	Codes          CodeIssuer
	Users          userstore.Store
	Tokens         TokenIssuer
	Sessions       SessionStore
	Now            func() time.Time
}

// RunLogin verifies a sign-in code and opens a refresh session. It is the only
// path that creates users.
func RunLogin(ctx context.Context, email, code string, deps LoginDeps) LoginResult {
	email, err := deps.NormalizeEmail(email)
	if err != nil {
		return LoginResult{Failure: LoginFailureInvalidEmail, Err: err}
	}

	verdict, err := deps.Codes.Verify(ctx, email, code)
	if err != nil {
		if errors.Is(err, otp.ErrRateLimited) {
			return LoginResult{Failure: LoginFailureRateLimited, Err: err, Email: email}
		}
		return LoginResult{Failure: LoginFailureVerify, Err: err, Email: email}
	}
	if verdict != otp.VerifyOK {
		return LoginResult{Failure: LoginFailureInvalidCode, Email: email}
	}

	user, created, err := findOrCreate(ctx, deps.Users, email)
	if err != nil {
		return LoginResult{Failure: LoginFailureProvision, Err: err, Email: email}
	}
	if user.Deleted() {
		return LoginResult{Failure: LoginFailureAccountDeleted, Email: email, User: user}
	}

	if !user.EmailConfirmed {
		if err := deps.Users.ConfirmEmail(ctx, user.ID); err != nil {
			return LoginResult{Failure: LoginFailureProvision, Err: err, Email: email, User: user}
		}
		user.EmailConfirmed = true
	}

	pair, err := deps.Tokens.IssuePair(jwt.Subject{
		ID:             user.ID,
		Email:          user.Email,
		EmailConfirmed: user.EmailConfirmed,
	})
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, Email: email, User: user}
	}

	sess := newSession(pair, user.ID, clock(deps.Now))
	if err := deps.Sessions.Save(ctx, sess, deps.Tokens.RefreshTTL()); err != nil {
		return LoginResult{Failure: LoginFailureSession, Err: err, Email: email, User: user}
	}

	return LoginResult{Email: email, User: user, Pair: pair, Created: created}
}

func findOrCreate(ctx context.Context, users userstore.Store, email string) (*userstore.User, bool, error) {
	user, err := users.FindByEmail(ctx, email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, userstore.ErrNotFound) {
		return nil, false, err
	}

	user, err = users.Create(ctx, email)
	if err == nil {
		return user, true, nil
	}
	if !errors.Is(err, userstore.ErrEmailTaken) {
		return nil, false, err
	}

	// Lost a concurrent first login for the same address.
	user, err = users.FindByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	return user, false, nil
}

func newSession(pair jwt.Pair, userID string, now time.Time) *session.Session {
	return &session.Session{
		SessionID:   pair.RefreshID,
		UserID:      userID,
		RefreshHash: internal.HashToken(pair.RefreshToken),
		CreatedAt:   now.Unix(),
		ExpiresAt:   pair.RefreshExpiresAt.Unix(),
	}
}
