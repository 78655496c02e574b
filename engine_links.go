package otpauth

import "context"

// UnsubscribeLink returns the unsubscribe link for email. The token is
// deterministic and never expires. With Email.UnsubscribeURL unset the bare
// token is returned.
func (e *Engine) UnsubscribeLink(email string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	email, err := e.normalizeEmail(email)
	if err != nil {
		return "", err
	}
	token := e.unsubscribeSigner.UnsubscribeToken(email)
	return tokenLink(e.config.Email.UnsubscribeURL, token, "email", email), nil
}

// Unsubscribe checks an unsubscribe token against email. Recording the
// preference is left to the caller.
func (e *Engine) Unsubscribe(ctx context.Context, email, token string) error {
	if err := e.ready(); err != nil {
		return err
	}
	email, err := e.normalizeEmail(email)
	if err != nil {
		return ErrInvalidEmail
	}

	rec := auditRecord{email: email}
	if !e.unsubscribeSigner.VerifyUnsubscribe(email, token) {
		e.emitAudit(ctx, auditEventUnsubscribe, false, rec, ErrInvalidToken)
		return ErrInvalidToken
	}

	e.metricInc(MetricUnsubscribe)
	e.emitAudit(ctx, auditEventUnsubscribe, true, rec, nil)
	return nil
}
