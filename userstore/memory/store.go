// Package memory is an in-process [userstore.Store] for tests and examples.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/otpauth/userstore"
	"github.com/google/uuid"
)

var _ userstore.Store = (*Store)(nil)

type Store struct {
	mu      sync.RWMutex
	byID    map[string]*userstore.User
	byEmail map[string]string
	now     func() time.Time
}

func New() *Store {
	return &Store{
		byID:    map[string]*userstore.User{},
		byEmail: map[string]string{},
		now:     time.Now,
	}
}

// WithClock replaces the clock used for CreatedAt and UpdatedAt.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Store) FindByEmail(_ context.Context, email string) (*userstore.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, userstore.ErrNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *Store) FindByID(_ context.Context, id string) (*userstore.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, userstore.ErrNotFound
	}
	return clone(u), nil
}

func (s *Store) Create(_ context.Context, email string) (*userstore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return nil, userstore.ErrEmailTaken
	}
	now := s.now().UTC()
	u := &userstore.User{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.byID[u.ID] = u
	s.byEmail[email] = u.ID
	return clone(u), nil
}

func (s *Store) ConfirmEmail(_ context.Context, id string) error {
	return s.update(id, func(u *userstore.User) error {
		u.EmailConfirmed = true
		return nil
	})
}

func (s *Store) SetPendingEmail(_ context.Context, id, email string) error {
	return s.update(id, func(u *userstore.User) error {
		if other, ok := s.byEmail[email]; ok && other != id {
			return userstore.ErrEmailTaken
		}
		u.PendingEmail = email
		return nil
	})
}

func (s *Store) ConfirmEmailChange(_ context.Context, id string) (*userstore.User, error) {
	var out *userstore.User
	err := s.update(id, func(u *userstore.User) error {
		if u.PendingEmail == "" {
			return userstore.ErrNoPendingEmail
		}
		if other, ok := s.byEmail[u.PendingEmail]; ok && other != id {
			return userstore.ErrEmailTaken
		}
		delete(s.byEmail, u.Email)
		u.Email = u.PendingEmail
		u.PendingEmail = ""
		u.EmailConfirmed = true
		s.byEmail[u.Email] = id
		out = clone(u)
		return nil
	})
	return out, err
}

func (s *Store) RequestDeletion(_ context.Context, id string, at time.Time) (time.Time, error) {
	err := s.update(id, func(u *userstore.User) error {
		u.DeletionScheduledAt = at.UTC()
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return at.UTC(), nil
}

func (s *Store) CancelDeletion(_ context.Context, id string) (bool, error) {
	var cleared bool
	err := s.update(id, func(u *userstore.User) error {
		cleared = !u.DeletionScheduledAt.IsZero()
		u.DeletionScheduledAt = time.Time{}
		return nil
	})
	return cleared, err
}

func (s *Store) DeletionStatus(_ context.Context, id string) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, userstore.ErrNotFound
	}
	if u.DeletionScheduledAt.IsZero() {
		return nil, nil
	}
	at := u.DeletionScheduledAt
	return &at, nil
}

func (s *Store) FindUsersPendingPermanentDeletion(_ context.Context, now time.Time) ([]userstore.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []userstore.User
	for _, u := range s.byID {
		if !u.DeletionScheduledAt.IsZero() && !u.DeletionScheduledAt.After(now) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DeletionScheduledAt.Before(out[j].DeletionScheduledAt)
	})
	return out, nil
}

func (s *Store) PermanentlyDelete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return userstore.ErrNotFound
	}
	delete(s.byEmail, u.Email)
	delete(s.byID, id)
	return nil
}

// MarkDeleted disables an account the way a host application would.
func (s *Store) MarkDeleted(id string) error {
	return s.update(id, func(u *userstore.User) error {
		u.DeletedAt = s.now().UTC()
		return nil
	})
}

func (s *Store) update(id string, fn func(*userstore.User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return userstore.ErrNotFound
	}
	next := *u
	if err := fn(&next); err != nil {
		return err
	}
	next.UpdatedAt = s.now().UTC()
	*u = next
	return nil
}

func clone(u *userstore.User) *userstore.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
