package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/otpauth/internal"
	"github.com/MrEthical07/otpauth/jwt"
	"github.com/MrEthical07/otpauth/session"
	"github.com/MrEthical07/otpauth/userstore"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureExpired
	RefreshFailureIssue
	RefreshFailureSessionNotFound
	RefreshFailureReuse
	RefreshFailureRotate
	RefreshFailureAccountStatus
)

// RefreshResult carries either the issued token pair or failure metadata.
type RefreshResult struct {
	Failure   RefreshFailureKind
	Err       error
	UserID    string
	SessionID string
	Pair      jwt.Pair
}

// RefreshDeps captures refresh flow dependencies. Users is optional; when set,
// refreshes for removed or disabled accounts are refused.
type RefreshDeps struct {
	Tokens   TokenIssuer
	Sessions SessionStore
	Users    userstore.Store
	Now      func() time.Time
	Warn     func(string, ...any)
}

// RunRefresh rotates a refresh token. The old session is swapped for the new
// one in a single compare-and-swap; presenting a superseded token revokes the
// session.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	pair, old, err := deps.Tokens.RotateRefresh(refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return RefreshResult{Failure: RefreshFailureExpired, Err: err}
		case errors.Is(err, jwt.ErrInvalidToken):
			return RefreshResult{Failure: RefreshFailureDecode, Err: err}
		default:
			return RefreshResult{Failure: RefreshFailureIssue, Err: err}
		}
	}

	next := newSession(pair, old.Subject.ID, clock(deps.Now))
	userID, err := deps.Sessions.Rotate(
		ctx,
		old.ID,
		internal.HashToken(refreshToken),
		next,
		deps.Tokens.RefreshTTL(),
	)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrRefreshHashMismatch):
			return RefreshResult{Failure: RefreshFailureReuse, Err: err, UserID: userID, SessionID: old.ID}
		case errors.Is(err, session.ErrRefreshSessionNotFound), errors.Is(err, session.ErrRefreshSessionCorrupt):
			return RefreshResult{Failure: RefreshFailureSessionNotFound, Err: err, UserID: old.Subject.ID, SessionID: old.ID}
		default:
			return RefreshResult{Failure: RefreshFailureRotate, Err: err, UserID: old.Subject.ID, SessionID: old.ID}
		}
	}

	if userID != old.Subject.ID {
		dropSession(ctx, deps, next.SessionID)
		return RefreshResult{Failure: RefreshFailureReuse, UserID: userID, SessionID: old.ID}
	}

	if deps.Users != nil {
		user, err := deps.Users.FindByID(ctx, userID)
		switch {
		case errors.Is(err, userstore.ErrNotFound):
			dropSession(ctx, deps, next.SessionID)
			return RefreshResult{Failure: RefreshFailureAccountStatus, Err: err, UserID: userID, SessionID: old.ID}
		case err != nil:
			dropSession(ctx, deps, next.SessionID)
			return RefreshResult{Failure: RefreshFailureRotate, Err: err, UserID: userID, SessionID: old.ID}
		case user.Deleted():
			dropSession(ctx, deps, next.SessionID)
			return RefreshResult{Failure: RefreshFailureAccountStatus, UserID: userID, SessionID: old.ID}
		}
	}

	return RefreshResult{UserID: userID, SessionID: next.SessionID, Pair: pair}
}

func dropSession(ctx context.Context, deps RefreshDeps, sessionID string) {
	if err := deps.Sessions.Delete(ctx, sessionID); err != nil {
		warn(deps.Warn, "otpauth: drop rotated session failed", "err", err)
	}
}

type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureDecode
	LogoutFailureDelete
	LogoutFailureDenylist
)

// LogoutRequest names the refresh session to end. AccessToken is optional and
// only consulted when a denylist is configured.
type LogoutRequest struct {
	RefreshToken string
	AccessToken  string
}

type LogoutResult struct {
	Failure   LogoutFailureKind
	Err       error
	UserID    string
	SessionID string
}

type LogoutDeps struct {
	Tokens   TokenIssuer
	Sessions SessionStore
	Denylist Denylist
	// Leeway is the clock skew the issuer tolerates past exp. Denylist
	// entries outlive the token by this much.
	Leeway time.Duration
	Now    func() time.Time
}

// RunLogout deletes the refresh session of req.RefreshToken. An expired
// refresh token has nothing left to revoke and succeeds.
func RunLogout(ctx context.Context, req LogoutRequest, deps LogoutDeps) LogoutResult {
	claims, err := deps.Tokens.VerifyRefresh(req.RefreshToken)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return LogoutResult{}
		}
		return LogoutResult{Failure: LogoutFailureDecode, Err: err}
	}

	if err := deps.Sessions.Delete(ctx, claims.ID); err != nil {
		return LogoutResult{Failure: LogoutFailureDelete, Err: err, UserID: claims.Subject.ID, SessionID: claims.ID}
	}

	if deps.Denylist != nil && req.AccessToken != "" {
		access, err := deps.Tokens.VerifyAccess(req.AccessToken)
		if err == nil && access.Subject.ID == claims.Subject.ID {
			ttl := access.ExpiresAt.Sub(clock(deps.Now)) + deps.Leeway
			if err := deps.Denylist.Add(ctx, access.ID, ttl); err != nil {
				return LogoutResult{Failure: LogoutFailureDenylist, Err: err, UserID: claims.Subject.ID, SessionID: claims.ID}
			}
		}
	}

	return LogoutResult{UserID: claims.Subject.ID, SessionID: claims.ID}
}
