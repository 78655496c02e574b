package otpauth

import (
	"context"

	"github.com/MrEthical07/otpauth/internal/flows"
)

// RequestOTP mails a sign-in code to email. Unknown addresses receive a code
// too; the account is created on the first successful VerifyOTPAndLogin.
//
// When CAPTCHA is enabled in the cached settings, captchaToken is checked
// first. Errors: ErrInvalidEmail, ErrAccountDeleted, ErrInvalidCaptcha,
// ErrRateLimited, ErrBackendUnavailable (including delivery failures).
func (e *Engine) RequestOTP(ctx context.Context, email, captchaToken string) (*OTPRequestResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	res := e.flows.RequestOTP(ctx, flows.RequestOTPRequest{
		Email:        email,
		CaptchaToken: captchaToken,
		RemoteIP:     clientIPFromContext(ctx),
	})
	rec := auditRecord{email: res.Email}

	var err error
	switch res.Failure {
	case flows.RequestOTPFailureNone:
		e.metricInc(MetricOTPRequested)
		e.emitAudit(ctx, auditEventOTPRequested, true, rec, nil)
		return &OTPRequestResult{ExpiresIn: res.ExpiresIn}, nil
	case flows.RequestOTPFailureInvalidEmail:
		err = ErrInvalidEmail
	case flows.RequestOTPFailureAccountDeleted:
		e.metricInc(MetricAccountDeletedRejected)
		err = ErrAccountDeleted
	case flows.RequestOTPFailureCaptcha:
		e.metricInc(MetricCaptchaRejected)
		err = ErrInvalidCaptcha
	case flows.RequestOTPFailureRateLimited:
		e.metricInc(MetricOTPRateLimited)
		e.emitRateLimit(ctx, "otp_issue", rec)
		return nil, ErrRateLimited
	case flows.RequestOTPFailureIssue:
		e.metricInc(MetricOTPDeliveryFailure)
		e.logger.Warn("otpauth: otp issue failed", "event", auditEventOTPRequestFailure, "email_hash", emailHash(res.Email), "err", res.Err)
		err = backendErr(res.Err)
	default:
		err = backendErr(res.Err)
	}

	e.emitAudit(ctx, auditEventOTPRequestFailure, false, rec, err)
	return nil, err
}

// VerifyOTPAndLogin consumes the code mailed by RequestOTP and opens a
// session. A missing user is created with a confirmed email.
//
// Wrong, expired and reused codes all yield ErrInvalidOrExpiredCode.
func (e *Engine) VerifyOTPAndLogin(ctx context.Context, email, code string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	res := e.flows.Login(ctx, email, code)
	rec := auditRecord{email: res.Email}
	if res.User != nil {
		rec.userID = res.User.ID
	}

	var err error
	switch res.Failure {
	case flows.LoginFailureNone:
		rec.sessionID = res.Pair.RefreshID
		e.metricInc(MetricLoginSuccess)
		e.metricInc(MetricSessionCreated)
		if res.Created {
			e.metricInc(MetricUserProvisioned)
			e.emitAudit(ctx, auditEventUserProvisioned, true, rec, nil)
		}
		e.emitAudit(ctx, auditEventLoginSuccess, true, rec, nil)
		return &LoginResult{
			TokenPair: TokenPair{
				AccessToken:      res.Pair.AccessToken,
				AccessExpiresAt:  res.Pair.AccessExpiresAt,
				RefreshToken:     res.Pair.RefreshToken,
				RefreshExpiresAt: res.Pair.RefreshExpiresAt,
			},
			User:    summarize(res.User),
			Created: res.Created,
		}, nil
	case flows.LoginFailureInvalidEmail:
		err = ErrInvalidEmail
	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		e.emitRateLimit(ctx, "otp_verify", rec)
		return nil, ErrRateLimited
	case flows.LoginFailureInvalidCode:
		err = ErrInvalidOrExpiredCode
	case flows.LoginFailureAccountDeleted:
		e.metricInc(MetricAccountDeletedRejected)
		err = ErrAccountDeleted
	default:
		e.logger.Warn("otpauth: login failed", "event", auditEventLoginFailure, "user_id", rec.userID, "err", res.Err)
		err = backendErr(res.Err)
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, rec, err)
	return nil, err
}

func summarize(u *User) UserSummary {
	if u == nil {
		return UserSummary{}
	}
	return UserSummary{
		ID:                  u.ID,
		Email:               u.Email,
		EmailConfirmed:      u.EmailConfirmed,
		DeletionScheduledAt: u.DeletionScheduledAt,
	}
}
