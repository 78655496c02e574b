package otpauth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/otpauth/internal/flows"
	"github.com/MrEthical07/otpauth/userstore"
)

// RequestDeletion schedules the account for permanent deletion after the
// grace period and mails a cancellation link. The account stays usable until
// the sweep removes it. A failed email does not undo the request.
func (e *Engine) RequestDeletion(ctx context.Context, userID string) (*DeletionStatus, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	res := e.flows.RequestDeletion(ctx, userID)
	rec := auditRecord{userID: userID}

	var err error
	switch res.Failure {
	case flows.DeletionFailureNone:
		e.metricInc(MetricDeletionRequested)
		rec.metadata = map[string]string{"deletion_date": res.ScheduledAt.UTC().Format(time.RFC3339)}
		e.emitAudit(ctx, auditEventDeletionRequested, true, rec, nil)
		return e.deletionStatus(res.ScheduledAt), nil
	case flows.DeletionFailureUserNotFound:
		err = ErrUserNotFound
	default:
		err = backendErr(res.Err)
	}

	e.emitAudit(ctx, auditEventDeletionRequested, false, rec, err)
	return nil, err
}

// CancelDeletionByToken cancels a pending deletion from the emailed link.
// Tokens for unknown users report CancelOutcomeInvalid. The error is only set
// when the user store failed.
func (e *Engine) CancelDeletionByToken(ctx context.Context, token string) (CancelOutcome, error) {
	if err := e.ready(); err != nil {
		return CancelOutcomeInvalid, err
	}

	res := e.flows.CancelDeletionByToken(ctx, token)
	return e.finishCancel(ctx, res, "link")
}

// CancelDeletion cancels a pending deletion for an authenticated user. It
// reports false when nothing was pending.
func (e *Engine) CancelDeletion(ctx context.Context, userID string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}

	if _, err := e.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return false, ErrUserNotFound
		}
		return false, backendErr(err)
	}

	res := e.flows.CancelDeletion(ctx, userID)
	outcome, err := e.finishCancel(ctx, res, "session")
	if err != nil {
		return false, err
	}
	return outcome == CancelOutcomeSuccess, nil
}

func (e *Engine) finishCancel(ctx context.Context, res flows.CancelResult, via string) (CancelOutcome, error) {
	rec := auditRecord{userID: res.UserID, metadata: map[string]string{"via": via}}

	if res.Err != nil {
		err := backendErr(res.Err)
		e.emitAudit(ctx, auditEventDeletionCancelFailure, false, rec, err)
		return CancelOutcomeInvalid, err
	}

	var outcome CancelOutcome
	switch res.Status {
	case flows.CancelSuccess:
		outcome = CancelOutcomeSuccess
	case flows.CancelAlreadyCancelled:
		outcome = CancelOutcomeAlreadyCancelled
	case flows.CancelExpired:
		outcome = CancelOutcomeExpired
	default:
		outcome = CancelOutcomeInvalid
	}
	rec.metadata["outcome"] = string(outcome)

	switch outcome {
	case CancelOutcomeSuccess:
		e.metricInc(MetricDeletionCancelled)
		e.emitAudit(ctx, auditEventDeletionCancelled, true, rec, nil)
	case CancelOutcomeAlreadyCancelled:
		e.emitAudit(ctx, auditEventDeletionCancelled, true, rec, nil)
	default:
		e.metricInc(MetricDeletionCancelRejected)
		e.emitAudit(ctx, auditEventDeletionCancelFailure, false, rec, ErrInvalidToken)
	}
	return outcome, nil
}

// DeletionStatus returns the pending deletion of userID, or nil when none is
// scheduled.
func (e *Engine) DeletionStatus(ctx context.Context, userID string) (*DeletionStatus, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	at, err := e.users.DeletionStatus(ctx, userID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, backendErr(err)
	}
	if at == nil {
		return nil, nil
	}
	return e.deletionStatus(*at), nil
}

// SweepDeletions permanently deletes every account whose grace period has
// elapsed. Each account gets a final notice first; a failed notice is logged
// and does not block the deletion. Failures are isolated per account and
// retried by the next sweep. The error is set only when candidates could not
// be listed.
func (e *Engine) SweepDeletions(ctx context.Context) (*SweepReport, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	start := e.now()
	res, err := e.flows.Sweep(ctx)
	if err != nil {
		e.logger.Error("otpauth: deletion sweep could not list candidates", "err", err)
		return nil, backendErr(err)
	}

	for _, id := range res.Deleted {
		e.metricInc(MetricDeletionSwept)
		e.emitAudit(ctx, auditEventDeletionSwept, true, auditRecord{userID: id}, nil)
	}
	for id, ferr := range res.Failed {
		e.metricInc(MetricDeletionSweepFailure)
		e.logger.Warn("otpauth: permanent deletion failed", "user_id", id, "err", ferr)
		e.emitAudit(ctx, auditEventDeletionSweepFailure, false, auditRecord{userID: id}, backendErr(ferr))
	}

	report := &SweepReport{
		Candidates:     res.Candidates,
		Deleted:        res.Deleted,
		Failed:         res.Failed,
		Skipped:        res.Skipped,
		NoticeFailures: res.NoticeFailures,
		Duration:       e.now().Sub(start),
	}
	e.logger.Info("otpauth: deletion sweep finished",
		"candidates", report.Candidates,
		"deleted", len(report.Deleted),
		"failed", len(report.Failed),
		"skipped", report.Skipped,
		"notice_failures", report.NoticeFailures,
		"duration", report.Duration,
	)
	return report, nil
}

func (e *Engine) deletionStatus(at time.Time) *DeletionStatus {
	return &DeletionStatus{
		DeletionDate:  at,
		DaysRemaining: flows.DaysRemaining(at, e.now()),
	}
}
