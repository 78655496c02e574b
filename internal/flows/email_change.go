package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/otpauth/internal/otp"
	"github.com/MrEthical07/otpauth/internal/templates"
	"github.com/MrEthical07/otpauth/userstore"
)

// EmailChangeFailureKind classifies email change failures for root-level mapping.
type EmailChangeFailureKind int

const (
	EmailChangeFailureNone EmailChangeFailureKind = iota
	EmailChangeFailureInvalidEmail
	EmailChangeFailureUserNotFound
	EmailChangeFailureLookup
	EmailChangeFailureStaleEmail
	EmailChangeFailureUnchanged
	EmailChangeFailureTaken
	EmailChangeFailureNoPending
	EmailChangeFailureRateLimited
	EmailChangeFailureInvalidCode
	EmailChangeFailureIssue
	EmailChangeFailureUpdate
)

type EmailChangeRequest struct {
	UserID       string
	CurrentEmail string
	NewEmail     string
	RemoteIP     string
}

type EmailChangeVerifyRequest struct {
	UserID       string
	CurrentEmail string
	OldCode      string
	NewCode      string
}

type EmailChangeResult struct {
	Failure         EmailChangeFailureKind
	Err             error
	User            *userstore.User
	RevokedSessions int
}

// EmailChangeDeps captures email change dependencies. Codes must be a code
// issuer dedicated to email changes so its codes never satisfy a sign-in.
type EmailChangeDeps struct {
	NormalizeEmail func(string) (string, error)
	Users          userstore.Store
	Codes          CodeIssuer
	Sessions       SessionStore
	Mailer         Mailer
	Warn           func(string, ...any)
}

// RunRequestEmailChange records the pending address and sends one code to the
// current address and one to the new address.
func RunRequestEmailChange(ctx context.Context, req EmailChangeRequest, deps EmailChangeDeps) EmailChangeResult {
	newEmail, err := deps.NormalizeEmail(req.NewEmail)
	if err != nil {
		return EmailChangeResult{Failure: EmailChangeFailureInvalidEmail, Err: err}
	}

	user, failure, err := currentUser(ctx, req.UserID, req.CurrentEmail, deps)
	if failure != EmailChangeFailureNone {
		return EmailChangeResult{Failure: failure, Err: err}
	}

	if newEmail == user.Email {
		return EmailChangeResult{Failure: EmailChangeFailureUnchanged, User: user}
	}

	_, err = deps.Users.FindByEmail(ctx, newEmail)
	switch {
	case err == nil:
		return EmailChangeResult{Failure: EmailChangeFailureTaken, User: user}
	case !errors.Is(err, userstore.ErrNotFound):
		return EmailChangeResult{Failure: EmailChangeFailureLookup, Err: err, User: user}
	}

	if err := deps.Users.SetPendingEmail(ctx, user.ID, newEmail); err != nil {
		if errors.Is(err, userstore.ErrEmailTaken) {
			return EmailChangeResult{Failure: EmailChangeFailureTaken, Err: err, User: user}
		}
		return EmailChangeResult{Failure: EmailChangeFailureUpdate, Err: err, User: user}
	}
	user.PendingEmail = newEmail

	for _, to := range []string{user.Email, newEmail} {
		if _, err := deps.Codes.Issue(ctx, to, req.RemoteIP); err != nil {
			if errors.Is(err, otp.ErrRateLimited) {
				return EmailChangeResult{Failure: EmailChangeFailureRateLimited, Err: err, User: user}
			}
			return EmailChangeResult{Failure: EmailChangeFailureIssue, Err: err, User: user}
		}
	}

	return EmailChangeResult{User: user}
}

// RunVerifyEmailChange checks the code sent to the current address, then the
// code sent to the pending address. The account is only updated when both
// match.
func RunVerifyEmailChange(ctx context.Context, req EmailChangeVerifyRequest, deps EmailChangeDeps) EmailChangeResult {
	user, failure, err := currentUser(ctx, req.UserID, req.CurrentEmail, deps)
	if failure != EmailChangeFailureNone {
		return EmailChangeResult{Failure: failure, Err: err}
	}
	if user.PendingEmail == "" {
		return EmailChangeResult{Failure: EmailChangeFailureNoPending, User: user}
	}

	for _, check := range []struct{ email, code string }{
		{user.Email, req.OldCode},
		{user.PendingEmail, req.NewCode},
	} {
		verdict, err := deps.Codes.Verify(ctx, check.email, check.code)
		if err != nil {
			if errors.Is(err, otp.ErrRateLimited) {
				return EmailChangeResult{Failure: EmailChangeFailureRateLimited, Err: err, User: user}
			}
			return EmailChangeResult{Failure: EmailChangeFailureLookup, Err: err, User: user}
		}
		if verdict != otp.VerifyOK {
			return EmailChangeResult{Failure: EmailChangeFailureInvalidCode, User: user}
		}
	}

	oldEmail := user.Email
	updated, err := deps.Users.ConfirmEmailChange(ctx, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, userstore.ErrEmailTaken):
			return EmailChangeResult{Failure: EmailChangeFailureTaken, Err: err, User: user}
		case errors.Is(err, userstore.ErrNoPendingEmail):
			return EmailChangeResult{Failure: EmailChangeFailureNoPending, Err: err, User: user}
		default:
			return EmailChangeResult{Failure: EmailChangeFailureUpdate, Err: err, User: user}
		}
	}

	revoked, err := deps.Sessions.DeleteAllForUser(ctx, updated.ID)
	if err != nil {
		warn(deps.Warn, "otpauth: revoke sessions after email change failed", "user_id", updated.ID, "err", err)
	}

	if deps.Mailer != nil {
		msg, err := templates.EmailChanged(updated.Email)
		if err == nil {
			err = deps.Mailer.Send(ctx, oldEmail, msg.Subject, msg.HTML)
		}
		if err != nil {
			warn(deps.Warn, "otpauth: email change notice failed", "user_id", updated.ID, "err", err)
		}
	}

	return EmailChangeResult{User: updated, RevokedSessions: revoked}
}

func currentUser(ctx context.Context, userID, currentEmail string, deps EmailChangeDeps) (*userstore.User, EmailChangeFailureKind, error) {
	user, err := deps.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return nil, EmailChangeFailureUserNotFound, err
		}
		return nil, EmailChangeFailureLookup, err
	}

	// currentEmail comes from the caller's access token; a token minted
	// before an earlier change no longer describes the account.
	current, err := deps.NormalizeEmail(currentEmail)
	if err != nil || current != user.Email {
		return nil, EmailChangeFailureStaleEmail, err
	}
	return user, EmailChangeFailureNone, nil
}
