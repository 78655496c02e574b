package internaldefs

import (
	"github.com/MrEthical07/otpauth"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   otpauth.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   otpauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter.
var CounterDefs = []CounterDef{
	{ID: otpauth.MetricOTPRequested, Name: "otpauth_otp_requested_total", Help: "Sign-in codes issued and delivered."},
	{ID: otpauth.MetricOTPRateLimited, Name: "otpauth_otp_rate_limited_total", Help: "Code requests rejected by the issue window."},
	{ID: otpauth.MetricOTPDeliveryFailure, Name: "otpauth_otp_delivery_failure_total", Help: "Code requests that failed to store or deliver."},
	{ID: otpauth.MetricCaptchaRejected, Name: "otpauth_captcha_rejected_total", Help: "Code requests rejected by CAPTCHA."},
	{ID: otpauth.MetricLoginSuccess, Name: "otpauth_login_success_total", Help: "Successful code sign-ins."},
	{ID: otpauth.MetricLoginFailure, Name: "otpauth_login_failure_total", Help: "Failed code sign-ins."},
	{ID: otpauth.MetricLoginRateLimited, Name: "otpauth_login_rate_limited_total", Help: "Sign-ins rejected by the verify window."},
	{ID: otpauth.MetricUserProvisioned, Name: "otpauth_user_provisioned_total", Help: "Accounts created on first sign-in."},
	{ID: otpauth.MetricAccountDeletedRejected, Name: "otpauth_account_deleted_rejected_total", Help: "Requests rejected for deleted accounts."},
	{ID: otpauth.MetricRefreshSuccess, Name: "otpauth_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: otpauth.MetricRefreshFailure, Name: "otpauth_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: otpauth.MetricRefreshReuseDetected, Name: "otpauth_refresh_reuse_detected_total", Help: "Refresh tokens presented against a foreign session."},
	{ID: otpauth.MetricSessionCreated, Name: "otpauth_session_created_total", Help: "Refresh sessions created at sign-in."},
	{ID: otpauth.MetricLogout, Name: "otpauth_logout_total", Help: "Logout operations."},
	{ID: otpauth.MetricAccessDenylisted, Name: "otpauth_access_denylisted_total", Help: "Access tokens denylisted at logout."},
	{ID: otpauth.MetricEmailChangeRequested, Name: "otpauth_email_change_requested_total", Help: "Email changes started."},
	{ID: otpauth.MetricEmailChangeConfirmed, Name: "otpauth_email_change_confirmed_total", Help: "Email changes confirmed with both codes."},
	{ID: otpauth.MetricEmailChangeFailure, Name: "otpauth_email_change_failure_total", Help: "Rejected email change requests and verifications."},
	{ID: otpauth.MetricDeletionRequested, Name: "otpauth_deletion_requested_total", Help: "Account deletions scheduled."},
	{ID: otpauth.MetricDeletionCancelled, Name: "otpauth_deletion_cancelled_total", Help: "Scheduled deletions cancelled."},
	{ID: otpauth.MetricDeletionCancelRejected, Name: "otpauth_deletion_cancel_rejected_total", Help: "Cancellation links rejected as invalid or expired."},
	{ID: otpauth.MetricDeletionSwept, Name: "otpauth_deletion_swept_total", Help: "Accounts permanently deleted by the sweep."},
	{ID: otpauth.MetricDeletionSweepFailure, Name: "otpauth_deletion_sweep_failure_total", Help: "Permanent deletions that failed and await the next sweep."},
	{ID: otpauth.MetricPasswordResetRequest, Name: "otpauth_password_reset_request_total", Help: "Accepted password reset requests."},
	{ID: otpauth.MetricUnsubscribe, Name: "otpauth_unsubscribe_total", Help: "Verified unsubscribe links."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: otpauth.MetricValidateLatency, Name: "otpauth_validate_latency_seconds", Help: "Access token validation latency."},
}

// HistogramBounds are the upper bounds of the engine's latency buckets in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names each bound in metric names that cannot carry labels.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, padding missing buckets with zero.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
