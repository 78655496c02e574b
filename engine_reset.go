package otpauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/otpauth/internal/flows"
	"github.com/MrEthical07/otpauth/jwt"
)

// ResetClaims is the verified content of a password-reset token.
type ResetClaims struct {
	UserID string
	Email  string
}

// RequestPasswordReset mails a reset link when email belongs to a live
// account. The result is the same whether or not the account exists; only
// malformed input, the per-address throttle and a failed throttle backend
// are reported.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}

	res := e.flows.RequestPasswordReset(ctx, email)
	rec := auditRecord{email: email}

	switch res.Failure {
	case flows.ResetFailureNone:
		e.metricInc(MetricPasswordResetRequest)
		e.emitAudit(ctx, auditEventPasswordResetRequest, true, rec, nil)
		return nil
	case flows.ResetFailureInvalidEmail:
		return ErrInvalidEmail
	case flows.ResetFailureRateLimited:
		e.emitRateLimit(ctx, "password_reset", rec)
		return ErrRateLimited
	default:
		err := backendErr(res.Err)
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, rec, err)
		return err
	}
}

// ValidateResetToken verifies a token minted by RequestPasswordReset. Access
// and refresh tokens are ErrInvalidToken.
func (e *Engine) ValidateResetToken(token string) (*ResetClaims, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	claims, err := e.issuer.VerifyReset(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	return &ResetClaims{UserID: claims.UserID, Email: claims.Email}, nil
}
