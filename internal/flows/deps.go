package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/otpauth/internal/otp"
	"github.com/MrEthical07/otpauth/jwt"
	"github.com/MrEthical07/otpauth/linktoken"
	"github.com/MrEthical07/otpauth/session"
)

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	RequestOTP  RequestOTPDeps
	Login       LoginDeps
	Refresh     RefreshDeps
	Logout      LogoutDeps
	EmailChange EmailChangeDeps
	Deletion    DeletionDeps
	Sweep       SweepDeps
	Reset       ResetDeps
}

// CodeIssuer issues and checks one-time codes for a single purpose.
type CodeIssuer interface {
	Issue(ctx context.Context, email, ip string) (otp.IssueResult, error)
	Verify(ctx context.Context, email, code string) (otp.VerifyResult, error)
}

// TokenIssuer mints and checks JWTs.
type TokenIssuer interface {
	IssuePair(sub jwt.Subject) (jwt.Pair, error)
	IssueReset(userID, email string) (string, error)
	RotateRefresh(old string) (jwt.Pair, *jwt.RefreshClaims, error)
	VerifyAccess(token string) (*jwt.AccessClaims, error)
	VerifyRefresh(token string) (*jwt.RefreshClaims, error)
	RefreshTTL() time.Duration
}

// SessionStore persists refresh sessions.
type SessionStore interface {
	Save(ctx context.Context, sess *session.Session, ttl time.Duration) error
	Rotate(ctx context.Context, oldID string, providedHash [32]byte, next *session.Session, ttl time.Duration) (string, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
}

// Denylist records revoked access token ids.
type Denylist interface {
	Add(ctx context.Context, jti string, ttl time.Duration) error
}

// LinkSigner mints and verifies out-of-band link tokens.
type LinkSigner interface {
	Sign(subject string, withTimestamp bool) string
	Verify(token string, maxAge time.Duration) linktoken.Result
}

// Mailer delivers rendered email.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// CaptchaVerifier checks a client CAPTCHA response.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

func warn(fn func(string, ...any), msg string, args ...any) {
	if fn != nil {
		fn(msg, args...)
	}
}

func clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}
