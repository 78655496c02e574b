package otpauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/otpauth/internal/flows"
	"github.com/MrEthical07/otpauth/jwt"
	"github.com/MrEthical07/otpauth/userstore"
)

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh exchanges a refresh token for a new pair. The presented token's
// session is replaced atomically, so presenting it again yields
// ErrSessionRevoked. A token whose hash does not match its session deletes
// that session. The old access token stays valid until it expires.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	res := e.flows.Refresh(ctx, refreshToken)
	rec := auditRecord{userID: res.UserID, sessionID: res.SessionID}

	var err error
	switch res.Failure {
	case flows.RefreshFailureNone:
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, rec, nil)
		return &TokenPair{
			AccessToken:      res.Pair.AccessToken,
			AccessExpiresAt:  res.Pair.AccessExpiresAt,
			RefreshToken:     res.Pair.RefreshToken,
			RefreshExpiresAt: res.Pair.RefreshExpiresAt,
		}, nil
	case flows.RefreshFailureDecode:
		err = ErrInvalidToken
	case flows.RefreshFailureExpired:
		err = ErrTokenExpired
	case flows.RefreshFailureSessionNotFound:
		err = ErrSessionRevoked
	case flows.RefreshFailureReuse:
		e.metricInc(MetricRefreshReuseDetected)
		e.metricInc(MetricRefreshFailure)
		e.logger.Warn("otpauth: refresh token reuse", "event", auditEventRefreshReuseDetected, "user_id", res.UserID, "session_id", res.SessionID)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, rec, ErrSessionRevoked)
		return nil, ErrSessionRevoked
	case flows.RefreshFailureAccountStatus:
		if errors.Is(res.Err, userstore.ErrNotFound) {
			err = ErrSessionRevoked
		} else {
			e.metricInc(MetricAccountDeletedRejected)
			err = ErrAccountDeleted
		}
	default:
		e.logger.Warn("otpauth: refresh failed", "user_id", res.UserID, "err", res.Err)
		err = backendErr(res.Err)
	}

	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefreshInvalid, false, rec, err)
	return nil, err
}

// Logout ends the session of refreshToken. When the access denylist is
// enabled and accessToken is non-empty, that access token is also rejected
// by ValidateAccess until it expires. An expired refresh token succeeds.
func (e *Engine) Logout(ctx context.Context, refreshToken, accessToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	res := e.flows.Logout(ctx, flows.LogoutRequest{
		RefreshToken: refreshToken,
		AccessToken:  accessToken,
	})
	rec := auditRecord{userID: res.UserID, sessionID: res.SessionID}

	var err error
	switch res.Failure {
	case flows.LogoutFailureNone:
		e.metricInc(MetricLogout)
		if e.denylist != nil && accessToken != "" {
			e.metricInc(MetricAccessDenylisted)
		}
		e.emitAudit(ctx, auditEventLogout, true, rec, nil)
		return nil
	case flows.LogoutFailureDecode:
		err = ErrInvalidToken
	default:
		err = backendErr(res.Err)
	}

	e.emitAudit(ctx, auditEventLogout, false, rec, err)
	return err
}

// ValidateAccess verifies an access token: signature, expiry and the access
// discriminator. Refresh and reset tokens are ErrInvalidToken. With the
// denylist enabled, tokens revoked by Logout are ErrSessionRevoked.
func (e *Engine) ValidateAccess(ctx context.Context, token string) (*AccessClaims, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	start := e.now()
	defer func() {
		if e.metrics.Enabled() {
			e.metrics.Observe(MetricValidateLatency, e.now().Sub(start))
		}
	}()

	claims, err := e.issuer.VerifyAccess(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if e.denylist != nil {
		revoked, err := e.denylist.Contains(ctx, claims.ID)
		if err != nil {
			return nil, backendErr(err)
		}
		if revoked {
			return nil, ErrSessionRevoked
		}
	}

	return &AccessClaims{
		UserID:         claims.Subject.ID,
		Email:          claims.Subject.Email,
		EmailConfirmed: claims.Subject.EmailConfirmed,
		TokenID:        claims.ID,
		IssuedAt:       claims.IssuedAt,
		ExpiresAt:      claims.ExpiresAt,
	}, nil
}
