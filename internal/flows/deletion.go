package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/otpauth/internal/templates"
	"github.com/MrEthical07/otpauth/userstore"
)

const day = 24 * time.Hour

type DeletionFailureKind int

const (
	DeletionFailureNone DeletionFailureKind = iota
	DeletionFailureUserNotFound
	DeletionFailureStore
)

type DeletionResult struct {
	Failure     DeletionFailureKind
	Err         error
	User        *userstore.User
	ScheduledAt time.Time
}

// CancelStatus is the outcome of a link-based cancellation.
type CancelStatus int

const (
	CancelInvalid CancelStatus = iota
	CancelExpired
	CancelAlreadyCancelled
	CancelSuccess
)

type CancelResult struct {
	Status CancelStatus
	Err    error
	UserID string
}

// DeletionDeps captures deletion dependencies. Grace is both the scheduling
// delay and the lifetime of cancellation links.
type DeletionDeps struct {
	Users     userstore.Store
	Signer    LinkSigner
	Grace     time.Duration
	CancelURL func(token string) string
	Mailer    Mailer
	Now       func() time.Time
	Warn      func(string, ...any)
}

// RunRequestDeletion schedules the account for deletion after the grace
// period and emails a cancellation link. Mail failures do not undo the request.
func RunRequestDeletion(ctx context.Context, userID string, deps DeletionDeps) DeletionResult {
	user, err := deps.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return DeletionResult{Failure: DeletionFailureUserNotFound, Err: err}
		}
		return DeletionResult{Failure: DeletionFailureStore, Err: err}
	}

	at, err := deps.Users.RequestDeletion(ctx, user.ID, clock(deps.Now).Add(deps.Grace))
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return DeletionResult{Failure: DeletionFailureUserNotFound, Err: err}
		}
		return DeletionResult{Failure: DeletionFailureStore, Err: err, User: user}
	}
	user.DeletionScheduledAt = at

	if deps.Mailer != nil {
		link := deps.Signer.Sign(user.ID, true)
		if deps.CancelURL != nil {
			link = deps.CancelURL(link)
		}
		msg, err := templates.DeletionScheduled(at, link)
		if err == nil {
			err = deps.Mailer.Send(ctx, user.Email, msg.Subject, msg.HTML)
		}
		if err != nil {
			warn(deps.Warn, "otpauth: deletion notice failed", "user_id", user.ID, "err", err)
		}
	}

	return DeletionResult{User: user, ScheduledAt: at}
}

// RunCancelDeletionByToken cancels a pending deletion from an emailed link.
// Tokens naming unknown users are reported as invalid.
func RunCancelDeletionByToken(ctx context.Context, token string, deps DeletionDeps) CancelResult {
	res := deps.Signer.Verify(token, deps.Grace)
	if res.Expired {
		return CancelResult{Status: CancelExpired}
	}
	if !res.Valid {
		return CancelResult{Status: CancelInvalid}
	}
	return RunCancelDeletion(ctx, res.SubjectID, deps)
}

// RunCancelDeletion clears a pending deletion for userID.
func RunCancelDeletion(ctx context.Context, userID string, deps DeletionDeps) CancelResult {
	cancelled, err := deps.Users.CancelDeletion(ctx, userID)
	switch {
	case errors.Is(err, userstore.ErrNotFound):
		return CancelResult{Status: CancelInvalid, UserID: userID}
	case err != nil:
		return CancelResult{Status: CancelInvalid, Err: err, UserID: userID}
	case !cancelled:
		return CancelResult{Status: CancelAlreadyCancelled, UserID: userID}
	default:
		return CancelResult{Status: CancelSuccess, UserID: userID}
	}
}

// DaysRemaining rounds the time left until date up to whole days. Past dates
// report zero.
func DaysRemaining(date, now time.Time) int {
	left := date.Sub(now)
	if left <= 0 {
		return 0
	}
	days := int(left / day)
	if left%day != 0 {
		days++
	}
	return days
}
