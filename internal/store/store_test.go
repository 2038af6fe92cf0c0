package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, New(mock, zap.NewNop())
}

func TestInsertUserIfAbsent_Inserts(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM users").
		WithArgs("alice", "alice@example.com").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO users").
		WithArgs("alice", "Alice A", "Oslo", "alice@example.com", "NO").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err := s.InsertUserIfAbsent(context.Background(), User{
		GitUsername: "alice",
		Name:        "Alice A",
		Location:    "Oslo",
		Email:       "alice@example.com",
		Country:     "NO",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertUserIfAbsent_ExistingRow(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM users").
		WithArgs("alice", "alice@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectRollback()

	err := s.InsertUserIfAbsent(context.Background(), User{
		GitUsername: "alice",
		Email:       "alice@example.com",
	})
	require.ErrorIs(t, err, ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertUserIfAbsent_UniqueViolation(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM users").
		WithArgs("alice", "alice@example.com").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO users").
		WithArgs("alice", "", "", "alice@example.com", "").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_users_email"})
	mock.ExpectRollback()

	// A concurrent insert between check and insert degrades to the same
	// duplicate outcome.
	err := s.InsertUserIfAbsent(context.Background(), User{
		GitUsername: "alice",
		Email:       "alice@example.com",
	})
	require.ErrorIs(t, err, ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCursor_DefaultsToZero(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)

	mock.ExpectQuery("SELECT since_value FROM fetch_state").
		WithArgs("directory_cursor").
		WillReturnError(pgx.ErrNoRows)

	since, err := s.Cursor(context.Background())
	require.NoError(t, err)
	assert.Zero(t, since)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCursor_ReturnsSavedValue(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)

	mock.ExpectQuery("SELECT since_value FROM fetch_state").
		WithArgs("directory_cursor").
		WillReturnRows(pgxmock.NewRows([]string{"since_value"}).AddRow(4200))

	since, err := s.Cursor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4200, since)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetCursor_Upserts(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)

	mock.ExpectExec("INSERT INTO fetch_state").
		WithArgs("directory_cursor", 4300).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SetCursor(context.Background(), 4300))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsers(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)
	now := time.Unix(1_700_000_000, 0).UTC()

	mock.ExpectQuery("SELECT (.+) FROM users ORDER BY id DESC").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "git_username", "name", "location", "email", "country",
			"contacted", "responded", "created_at",
		}).
			AddRow(int64(2), "bob", "Bob B", "", "bob@real.dev", "+0330", false, false, now).
			AddRow(int64(1), "alice", "Alice A", "Oslo", "alice@example.com", "NO", true, false, now))

	users, err := s.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "bob", users[0].GitUsername)
	assert.Equal(t, "+0330", users[0].Country)
	assert.True(t, users[1].Contacted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountByCountry(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)

	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(pgxmock.NewRows([]string{"country", "count"}).
			AddRow("IR", int64(12)).
			AddRow("Unknown", int64(3)))

	counts, err := s.CountByCountry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"IR": 12, "Unknown": 3}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkContacted_MissingUser(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)

	mock.ExpectExec("UPDATE users SET contacted").
		WithArgs(int64(99)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.MarkContacted(context.Background(), 99)
	require.ErrorIs(t, err, pgx.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCursorLoadFailureIsAnError(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)

	mock.ExpectQuery("SELECT since_value FROM fetch_state").
		WithArgs("directory_cursor").
		WillReturnError(errors.New("connection reset"))

	_, err := s.Cursor(context.Background())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
