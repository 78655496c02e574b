// Package userstore defines the user-record persistence contract of otpauth
// and the account lifecycle fields the flows depend on.
//
// Implementations live in sub-packages: memory (tests, examples) and
// postgres (database/sql over pgx with goose migrations).
package userstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for unknown ids and emails.
	ErrNotFound = errors.New("userstore: user not found")
	// ErrEmailTaken is returned when an email is already bound to another user.
	ErrEmailTaken = errors.New("userstore: email already in use")
	// ErrNoPendingEmail is returned by ConfirmEmailChange without a pending email.
	ErrNoPendingEmail = errors.New("userstore: no pending email change")
)

// User is the persisted account record.
type User struct {
	ID             string
	Email          string
	EmailConfirmed bool
	PendingEmail   string
	// DeletionScheduledAt is the end of the grace period. Zero when no
	// deletion is pending.
	DeletionScheduledAt time.Time
	// DeletedAt marks accounts disabled by the host application. Such
	// accounts can no longer sign in.
	DeletedAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeletionPending reports whether a deletion is scheduled.
func (u *User) DeletionPending() bool {
	return u != nil && !u.DeletionScheduledAt.IsZero()
}

// Deleted reports whether the account is marked deleted.
func (u *User) Deleted() bool {
	return u != nil && !u.DeletedAt.IsZero()
}

// Store is the persistence contract. Emails are passed already normalized.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	// Create inserts a new unconfirmed user. ErrEmailTaken on conflict.
	Create(ctx context.Context, email string) (*User, error)
	ConfirmEmail(ctx context.Context, id string) error
	SetPendingEmail(ctx context.Context, id, email string) error
	// ConfirmEmailChange moves the pending email into place and marks it
	// confirmed. ErrNoPendingEmail when none is pending.
	ConfirmEmailChange(ctx context.Context, id string) (*User, error)
	// RequestDeletion schedules deletion at `at` and returns the stored date.
	RequestDeletion(ctx context.Context, id string, at time.Time) (time.Time, error)
	// CancelDeletion clears a pending deletion. It reports false when none was pending.
	CancelDeletion(ctx context.Context, id string) (bool, error)
	// DeletionStatus returns the scheduled date, or nil when none is pending.
	DeletionStatus(ctx context.Context, id string) (*time.Time, error)
	FindUsersPendingPermanentDeletion(ctx context.Context, now time.Time) ([]User, error)
	PermanentlyDelete(ctx context.Context, id string) error
}
