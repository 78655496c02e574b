package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/otpauth/internal/templates"
	"github.com/MrEthical07/otpauth/userstore"
)

type ResetFailureKind int

const (
	ResetFailureNone ResetFailureKind = iota
	ResetFailureInvalidEmail
	ResetFailureRateLimited
	ResetFailureBackend
)

type ResetResult struct {
	Failure ResetFailureKind
	Err     error
	// Sent reports whether a link was mailed. Callers must not expose it.
	Sent bool
}

// ResetDeps captures password reset dependencies. Throttle counts a request
// for the address and reports whether it is allowed.
type ResetDeps struct {
	NormalizeEmail func(string) (string, error)
	Users          userstore.Store
	Tokens         TokenIssuer
	ResetURL       func(token string) string
	Mailer         Mailer
	Throttle       func(ctx context.Context, email string) (bool, error)
	Warn           func(string, ...any)
}

// RunRequestPasswordReset mails a reset link when the address belongs to a
// live account. Its failures never depend on whether the account exists.
func RunRequestPasswordReset(ctx context.Context, email string, deps ResetDeps) ResetResult {
	email, err := deps.NormalizeEmail(email)
	if err != nil {
		return ResetResult{Failure: ResetFailureInvalidEmail, Err: err}
	}

	if deps.Throttle != nil {
		allowed, err := deps.Throttle(ctx, email)
		if err != nil {
			return ResetResult{Failure: ResetFailureBackend, Err: err}
		}
		if !allowed {
			return ResetResult{Failure: ResetFailureRateLimited}
		}
	}

	user, err := deps.Users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, userstore.ErrNotFound) {
			warn(deps.Warn, "otpauth: reset lookup failed", "err", err)
		}
		return ResetResult{}
	}
	if user.Deleted() {
		return ResetResult{}
	}

	token, err := deps.Tokens.IssueReset(user.ID, user.Email)
	if err != nil {
		warn(deps.Warn, "otpauth: reset token issue failed", "user_id", user.ID, "err", err)
		return ResetResult{}
	}
	link := token
	if deps.ResetURL != nil {
		link = deps.ResetURL(token)
	}

	if deps.Mailer == nil {
		return ResetResult{}
	}
	msg, err := templates.PasswordReset(link)
	if err == nil {
		err = deps.Mailer.Send(ctx, user.Email, msg.Subject, msg.HTML)
	}
	if err != nil {
		warn(deps.Warn, "otpauth: reset email failed", "user_id", user.ID, "err", err)
		return ResetResult{}
	}
	return ResetResult{Sent: true}
}
