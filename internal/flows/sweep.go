package flows

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/MrEthical07/otpauth/internal/templates"
	"github.com/MrEthical07/otpauth/userstore"
)

// SweepDeps captures deletion sweep dependencies. NoticeLimiter paces final
// notices so a large backlog does not trip the mail provider's limits.
type SweepDeps struct {
	Users          userstore.Store
	Sessions       SessionStore
	Mailer         Mailer
	Concurrency    int
	PerUserTimeout time.Duration
	NoticeLimiter  *rate.Limiter
	Now            func() time.Time
	Warn           func(string, ...any)
}

// SweepResult reports one sweep. Failed users keep their schedule and are
// retried by the next sweep.
type SweepResult struct {
	Candidates     int
	Deleted        []string
	Failed         map[string]error
	Skipped        int
	NoticeFailures int
}

// RunSweep permanently deletes accounts whose grace period has elapsed. Each
// user is handled in isolation under its own timeout. The returned error is
// only set when candidates could not be listed.
func RunSweep(ctx context.Context, deps SweepDeps) (SweepResult, error) {
	now := clock(deps.Now)
	users, err := deps.Users.FindUsersPendingPermanentDeletion(ctx, now)
	if err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{
		Candidates: len(users),
		Failed:     make(map[string]error),
	}

	limit := deps.Concurrency
	if limit <= 0 {
		limit = 1
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(limit)

	for i := range users {
		if ctx.Err() != nil {
			mu.Lock()
			result.Skipped += len(users) - i
			mu.Unlock()
			break
		}
		user := users[i]
		g.Go(func() error {
			outcome := sweepUser(ctx, &user, now, deps)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case outcome.skipped:
				result.Skipped++
			case outcome.err != nil:
				result.Failed[user.ID] = outcome.err
			default:
				result.Deleted = append(result.Deleted, user.ID)
			}
			if outcome.noticeFailed {
				result.NoticeFailures++
			}
			return nil
		})
	}
	_ = g.Wait()

	return result, nil
}

type sweepOutcome struct {
	err          error
	skipped      bool
	noticeFailed bool
}

func sweepUser(ctx context.Context, user *userstore.User, now time.Time, deps SweepDeps) sweepOutcome {
	if deps.PerUserTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deps.PerUserTimeout)
		defer cancel()
	}

	// The schedule may have been cancelled since the candidate list was read.
	current, err := deps.Users.FindByID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return sweepOutcome{skipped: true}
		}
		return sweepOutcome{err: err}
	}
	if !current.DeletionPending() || current.DeletionScheduledAt.After(now) {
		return sweepOutcome{skipped: true}
	}

	var outcome sweepOutcome
	if err := sendFinalNotice(ctx, current.Email, deps); err != nil {
		outcome.noticeFailed = true
		warn(deps.Warn, "otpauth: final deletion notice failed", "user_id", current.ID, "err", err)
	}

	if err := deps.Users.PermanentlyDelete(ctx, current.ID); err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			outcome.skipped = true
			return outcome
		}
		outcome.err = err
		return outcome
	}

	if deps.Sessions != nil {
		if _, err := deps.Sessions.DeleteAllForUser(ctx, current.ID); err != nil {
			warn(deps.Warn, "otpauth: revoke sessions of deleted user failed", "user_id", current.ID, "err", err)
		}
	}
	return outcome
}

func sendFinalNotice(ctx context.Context, to string, deps SweepDeps) error {
	if deps.Mailer == nil {
		return nil
	}
	if deps.NoticeLimiter != nil {
		if err := deps.NoticeLimiter.Wait(ctx); err != nil {
			return err
		}
	}
	msg, err := templates.DeletionFinal()
	if err != nil {
		return err
	}
	return deps.Mailer.Send(ctx, to, msg.Subject, msg.HTML)
}
