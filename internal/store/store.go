// Package store persists crawled users and the crawl cursor in Postgres.
// Inserts are insert-only: existing rows are never updated by the crawl, and
// duplicates (same username or email) are reported as ErrAlreadyExists.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// ErrAlreadyExists marks a duplicate user, either caught by the pre-insert
// check or by the database constraint itself.
var ErrAlreadyExists = errors.New("user already exists")

// cursorKey is the single fetch_state row holding the crawl position.
const cursorKey = "directory_cursor"

const uniqueViolation = "23505"

// DB is the slice of pgxpool.Pool the store needs. pgxmock satisfies it in
// tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// User is a persisted directory user. Country carries either an ISO alpha-2
// country code or a commit-derived UTC offset such as "+0330"; an empty
// string means neither could be determined.
type User struct {
	ID          int64     `json:"id"`
	GitUsername string    `json:"git_username"`
	Name        string    `json:"name"`
	Location    string    `json:"location"`
	Email       string    `json:"email"`
	Country     string    `json:"country"`
	Contacted   bool      `json:"contacted"`
	Responded   bool      `json:"responded"`
	CreatedAt   time.Time `json:"created_at"`
}

type Store struct {
	db     DB
	logger *zap.Logger
}

func New(db DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id           BIGSERIAL PRIMARY KEY,
	git_username VARCHAR(255) UNIQUE,
	name         VARCHAR(255),
	location     VARCHAR(255),
	email        VARCHAR(255),
	country      VARCHAR(10),
	contacted    BOOLEAN NOT NULL DEFAULT FALSE,
	responded    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_users_country ON users (country);
CREATE UNIQUE INDEX IF NOT EXISTS uq_users_email ON users (email) WHERE email <> '';

CREATE TABLE IF NOT EXISTS fetch_state (
	id          BIGSERIAL PRIMARY KEY,
	key         VARCHAR(50) UNIQUE NOT NULL,
	since_value BIGINT NOT NULL DEFAULT 0
);
`

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// InsertUserIfAbsent saves a user unless one with the same username or email
// is already present. The pre-insert check and the insert run in one
// transaction; a concurrent writer slipping between them surfaces as a
// unique violation, mapped to the same ErrAlreadyExists.
func (s *Store) InsertUserIfAbsent(ctx context.Context, u User) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert user: %w", err)
	}
	defer tx.Rollback(ctx)

	var existing int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM users WHERE git_username = $1 OR email = $2`,
		u.GitUsername, u.Email,
	).Scan(&existing)
	switch {
	case err == nil:
		return fmt.Errorf("user %s: %w", u.GitUsername, ErrAlreadyExists)
	case !errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("check existing user: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO users (git_username, name, location, email, country) VALUES ($1, $2, $3, $4, $5)`,
		u.GitUsername, u.Name, u.Location, u.Email, u.Country,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("user %s: %w", u.GitUsername, ErrAlreadyExists)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insert user: %w", err)
	}
	return nil
}

// Cursor returns the persisted crawl cursor, or 0 when none has been saved.
func (s *Store) Cursor(ctx context.Context) (int, error) {
	var since int
	err := s.db.QueryRow(ctx,
		`SELECT since_value FROM fetch_state WHERE key = $1`, cursorKey,
	).Scan(&since)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}
	return since, nil
}

// SetCursor durably records the crawl cursor.
func (s *Store) SetCursor(ctx context.Context, since int) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO fetch_state (key, since_value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET since_value = EXCLUDED.since_value`,
		cursorKey, since,
	)
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	s.logger.Info("cursor saved", zap.Int("since", since))
	return nil
}

const userColumns = `id, git_username, name, location, email, country, contacted, responded, created_at`

func scanUsers(rows pgx.Rows) ([]User, error) {
	defer rows.Close()
	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.GitUsername, &u.Name, &u.Location, &u.Email,
			&u.Country, &u.Contacted, &u.Responded, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// GetUser returns one user by id. pgx.ErrNoRows passes through for missing
// rows.
func (s *Store) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.GitUsername, &u.Name, &u.Location, &u.Email,
		&u.Country, &u.Contacted, &u.Responded, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, err
	}
	if err != nil {
		return User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// ListUsers returns all saved users, newest first.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return scanUsers(rows)
}

// CountUsers returns the number of saved users.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// CountByCountry returns user counts grouped by country tag. Rows with an
// empty tag are grouped under "Unknown".
func (s *Store) CountByCountry(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.Query(ctx,
		`SELECT COALESCE(NULLIF(country, ''), 'Unknown'), COUNT(*) FROM users GROUP BY 1`)
	if err != nil {
		return nil, fmt.Errorf("count by country: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var country string
		var count int64
		if err := rows.Scan(&country, &count); err != nil {
			return nil, fmt.Errorf("scan country count: %w", err)
		}
		counts[country] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate country counts: %w", err)
	}
	return counts, nil
}

// UsersByCountry returns users whose country tag matches code exactly.
func (s *Store) UsersByCountry(ctx context.Context, code string) ([]User, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE country = $1 ORDER BY id DESC`, code)
	if err != nil {
		return nil, fmt.Errorf("list users by country: %w", err)
	}
	return scanUsers(rows)
}

// MarkContacted flags a user as contacted.
func (s *Store) MarkContacted(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET contacted = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark contacted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
