// Package postgres implements [userstore.Store] on PostgreSQL through
// database/sql and the pgx stdlib driver. Schema changes are goose
// migrations embedded in the binary and applied by [Open].
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/MrEthical07/otpauth/userstore"
	"github.com/MrEthical07/otpauth/userstore/postgres/migrations"
)

var _ userstore.Store = (*Store)(nil)

const uniqueViolation = "23505"

const userColumns = `id, email, email_confirmed, pending_email, deletion_scheduled_at, deleted_at, created_at, updated_at`

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New wraps an open database. It does not run migrations.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Open connects to dsn, verifies the connection, and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

// Migrate applies every pending embedded migration.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*userstore.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, userstore.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*userstore.User, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, userstore.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return u, nil
}

func (s *Store) Create(ctx context.Context, email string) (*userstore.User, error) {
	now := s.now().UTC()
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO users (id, email, created_at, updated_at) VALUES ($1, $2, $3, $3) RETURNING `+userColumns,
		uuid.NewString(), email, now,
	)
	u, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, userstore.ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

func (s *Store) ConfirmEmail(ctx context.Context, id string) error {
	id, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET email_confirmed = TRUE, updated_at = $2 WHERE id = $1`,
		id, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to confirm email: %w", err)
	}
	return requireAffected(res)
}

func (s *Store) SetPendingEmail(ctx context.Context, id, email string) error {
	id, err := parseID(id)
	if err != nil {
		return err
	}
	var taken bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)`,
		email, id,
	).Scan(&taken)
	if err != nil {
		return fmt.Errorf("failed to check email availability: %w", err)
	}
	if taken {
		return userstore.ErrEmailTaken
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET pending_email = $2, updated_at = $3 WHERE id = $1`,
		id, email, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to set pending email: %w", err)
	}
	return requireAffected(res)
}

func (s *Store) ConfirmEmailChange(ctx context.Context, id string) (*userstore.User, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`UPDATE users
		 SET email = pending_email, pending_email = NULL, email_confirmed = TRUE, updated_at = $2
		 WHERE id = $1 AND pending_email IS NOT NULL
		 RETURNING `+userColumns,
		id, s.now().UTC(),
	)
	u, err := scanUser(row)
	if err == nil {
		return u, nil
	}
	if isUniqueViolation(err) {
		return nil, userstore.ErrEmailTaken
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to confirm email change: %w", err)
	}
	if _, findErr := s.FindByID(ctx, id); findErr != nil {
		return nil, findErr
	}
	return nil, userstore.ErrNoPendingEmail
}

func (s *Store) RequestDeletion(ctx context.Context, id string, at time.Time) (time.Time, error) {
	id, err := parseID(id)
	if err != nil {
		return time.Time{}, err
	}
	var scheduled time.Time
	err = s.db.QueryRowContext(ctx,
		`UPDATE users SET deletion_scheduled_at = $2, updated_at = $3 WHERE id = $1 RETURNING deletion_scheduled_at`,
		id, at.UTC(), s.now().UTC(),
	).Scan(&scheduled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, userstore.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("failed to request deletion: %w", err)
	}
	return scheduled.UTC(), nil
}

func (s *Store) CancelDeletion(ctx context.Context, id string) (bool, error) {
	id, err := parseID(id)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET deletion_scheduled_at = NULL, updated_at = $2 WHERE id = $1 AND deletion_scheduled_at IS NOT NULL`,
		id, s.now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel deletion: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to cancel deletion: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	if _, err := s.FindByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) DeletionStatus(ctx context.Context, id string) (*time.Time, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}
	var at sql.NullTime
	err = s.db.QueryRowContext(ctx, `SELECT deletion_scheduled_at FROM users WHERE id = $1`, id).Scan(&at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, userstore.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get deletion status: %w", err)
	}
	if !at.Valid {
		return nil, nil
	}
	t := at.Time.UTC()
	return &t, nil
}

func (s *Store) FindUsersPendingPermanentDeletion(ctx context.Context, now time.Time) ([]userstore.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE deletion_scheduled_at IS NOT NULL AND deletion_scheduled_at <= $1
		 ORDER BY deletion_scheduled_at`,
		now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending deletions: %w", err)
	}
	defer rows.Close()

	var users []userstore.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending deletion: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending deletions: %w", err)
	}
	return users, nil
}

func (s *Store) PermanentlyDelete(ctx context.Context, id string) error {
	id, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return requireAffected(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*userstore.User, error) {
	var (
		u         userstore.User
		pending   sql.NullString
		scheduled sql.NullTime
		deleted   sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.EmailConfirmed, &pending, &scheduled, &deleted, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.PendingEmail = pending.String
	if scheduled.Valid {
		u.DeletionScheduledAt = scheduled.Time.UTC()
	}
	if deleted.Valid {
		u.DeletedAt = deleted.Time.UTC()
	}
	return &u, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return userstore.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// parseID canonicalizes id for the UUID column. Ids that are not UUIDs
// cannot exist.
func parseID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", userstore.ErrNotFound
	}
	return parsed.String(), nil
}
