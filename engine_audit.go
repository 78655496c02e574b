package otpauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/otpauth/internal"
)

const (
	auditEventOTPRequested          = "otp_requested"
	auditEventOTPRequestFailure     = "otp_request_failure"
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventUserProvisioned       = "user_provisioned"
	auditEventRefreshSuccess        = "refresh_success"
	auditEventRefreshInvalid        = "refresh_invalid"
	auditEventRefreshReuseDetected  = "refresh_reuse_detected"
	auditEventLogout                = "logout"
	auditEventEmailChangeRequested  = "email_change_requested"
	auditEventEmailChangeConfirmed  = "email_change_confirmed"
	auditEventEmailChangeFailure    = "email_change_failure"
	auditEventDeletionRequested     = "deletion_requested"
	auditEventDeletionCancelled     = "deletion_cancelled"
	auditEventDeletionCancelFailure = "deletion_cancel_failure"
	auditEventDeletionSwept         = "deletion_swept"
	auditEventDeletionSweepFailure  = "deletion_sweep_failure"
	auditEventPasswordResetRequest  = "password_reset_request"
	auditEventUnsubscribe           = "unsubscribe"
	auditEventRateLimitTriggered    = "rate_limit_triggered"
)

// AuditErrorCode is the stable error label carried by audit events.
type AuditErrorCode string

const (
	auditErrRateLimited     AuditErrorCode = "rate_limited"
	auditErrInvalidCode     AuditErrorCode = "invalid_code"
	auditErrAccountDeleted  AuditErrorCode = "account_deleted"
	auditErrSessionRevoked  AuditErrorCode = "session_revoked"
	auditErrInvalidToken    AuditErrorCode = "invalid_token"
	auditErrTokenExpired    AuditErrorCode = "token_expired"
	auditErrInvalidCaptcha  AuditErrorCode = "invalid_captcha"
	auditErrEmailUnchanged  AuditErrorCode = "email_unchanged"
	auditErrEmailTaken      AuditErrorCode = "email_taken"
	auditErrNoPendingChange AuditErrorCode = "no_pending_change"
	auditErrUserNotFound    AuditErrorCode = "user_not_found"
	auditErrInvalidEmail    AuditErrorCode = "invalid_email"
	auditErrUnavailable     AuditErrorCode = "backend_unavailable"
	auditErrInternal        AuditErrorCode = "internal_error"
)

// auditRecord names the subject of an event. email is fingerprinted before
// it leaves the process.
type auditRecord struct {
	userID    string
	sessionID string
	email     string
	metadata  map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, rec auditRecord, err error) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    rec.userID,
		SessionID: rec.sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  rec.metadata,
	}
	if rec.email != "" {
		event.EmailHash = internal.EmailFingerprint(rec.email)
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope string, rec auditRecord) {
	if rec.metadata == nil {
		rec.metadata = map[string]string{}
	}
	rec.metadata["scope"] = scope
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, rec, ErrRateLimited)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrInvalidOrExpiredCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrAccountDeleted):
		return auditErrAccountDeleted
	case errors.Is(err, ErrSessionRevoked):
		return auditErrSessionRevoked
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrInvalidCaptcha):
		return auditErrInvalidCaptcha
	case errors.Is(err, ErrEmailUnchanged):
		return auditErrEmailUnchanged
	case errors.Is(err, ErrEmailTaken):
		return auditErrEmailTaken
	case errors.Is(err, ErrNoPendingEmailChange):
		return auditErrNoPendingChange
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrInvalidEmail):
		return auditErrInvalidEmail
	case errors.Is(err, ErrBackendUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
