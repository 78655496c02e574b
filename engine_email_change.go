package otpauth

import (
	"context"
	"strconv"

	"github.com/MrEthical07/otpauth/internal/flows"
)

// RequestEmailChange starts a dual-code email change for an authenticated
// user. currentEmail is the address from the caller's access token; a token
// minted before an earlier change is ErrInvalidToken. One code goes to the
// current address and one to newEmail.
func (e *Engine) RequestEmailChange(ctx context.Context, userID, currentEmail, newEmail string) error {
	if err := e.ready(); err != nil {
		return err
	}

	res := e.flows.RequestEmailChange(ctx, flows.EmailChangeRequest{
		UserID:       userID,
		CurrentEmail: currentEmail,
		NewEmail:     newEmail,
		RemoteIP:     clientIPFromContext(ctx),
	})
	rec := auditRecord{userID: userID}

	if res.Failure == flows.EmailChangeFailureNone {
		e.metricInc(MetricEmailChangeRequested)
		rec.email = res.User.PendingEmail
		e.emitAudit(ctx, auditEventEmailChangeRequested, true, rec, nil)
		return nil
	}

	err := e.emailChangeError(res)
	if err == ErrRateLimited {
		e.emitRateLimit(ctx, "email_change_issue", rec)
		return err
	}
	e.metricInc(MetricEmailChangeFailure)
	e.emitAudit(ctx, auditEventEmailChangeFailure, false, rec, err)
	return err
}

// VerifyEmailChange checks the code sent to the current address, then the
// code sent to the new one. Either mismatch is ErrInvalidOrExpiredCode and
// leaves the account unchanged. The old code is consumed as soon as it
// matches, so after any failure the caller must start over with
// RequestEmailChange. On success the new address is confirmed,
// every refresh session of the user is revoked and the old address is
// notified.
func (e *Engine) VerifyEmailChange(ctx context.Context, userID, currentEmail, oldCode, newCode string) (*User, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	res := e.flows.VerifyEmailChange(ctx, flows.EmailChangeVerifyRequest{
		UserID:       userID,
		CurrentEmail: currentEmail,
		OldCode:      oldCode,
		NewCode:      newCode,
	})
	rec := auditRecord{userID: userID}

	if res.Failure == flows.EmailChangeFailureNone {
		e.metricInc(MetricEmailChangeConfirmed)
		rec.email = res.User.Email
		rec.metadata = map[string]string{"revoked_sessions": strconv.Itoa(res.RevokedSessions)}
		e.emitAudit(ctx, auditEventEmailChangeConfirmed, true, rec, nil)
		return res.User, nil
	}

	err := e.emailChangeError(res)
	if err == ErrRateLimited {
		e.emitRateLimit(ctx, "email_change_verify", rec)
		return nil, err
	}
	e.metricInc(MetricEmailChangeFailure)
	e.emitAudit(ctx, auditEventEmailChangeFailure, false, rec, err)
	return nil, err
}

func (e *Engine) emailChangeError(res flows.EmailChangeResult) error {
	switch res.Failure {
	case flows.EmailChangeFailureInvalidEmail:
		return ErrInvalidEmail
	case flows.EmailChangeFailureUserNotFound:
		return ErrUserNotFound
	case flows.EmailChangeFailureStaleEmail:
		return ErrInvalidToken
	case flows.EmailChangeFailureUnchanged:
		return ErrEmailUnchanged
	case flows.EmailChangeFailureTaken:
		return ErrEmailTaken
	case flows.EmailChangeFailureNoPending:
		return ErrNoPendingEmailChange
	case flows.EmailChangeFailureRateLimited:
		return ErrRateLimited
	case flows.EmailChangeFailureInvalidCode:
		return ErrInvalidOrExpiredCode
	default:
		e.logger.Warn("otpauth: email change failed", "err", res.Err)
		return backendErr(res.Err)
	}
}
