// ABOUTME: Tests for the SQLite store implementation
// ABOUTME: Verifies user uniqueness, exchange ordering, and window queries

package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestUser(t *testing.T, s *SQLiteStore, id string) {
	t.Helper()
	require.NoError(t, s.CreateUser(context.Background(), &User{
		ID:          id,
		DisplayName: id,
		Email:       id + "@example.com",
	}))
}

func TestCreateUser_AndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := &User{
		ID:          "ana_example_com",
		DisplayName: "Ana",
		Email:       "ana@example.com",
	}
	require.NoError(t, s.CreateUser(ctx, user))
	assert.False(t, user.CreatedAt.IsZero(), "CreateUser should assign CreatedAt")

	got, err := s.GetUser(ctx, "ana_example_com")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.DisplayName)
	assert.Equal(t, "ana@example.com", got.Email)
	assert.WithinDuration(t, user.CreatedAt, got.CreatedAt, 0)
}

func TestCreateUser_Duplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := &User{ID: "ana_example_com", DisplayName: "Ana", Email: "ana@example.com"}
	require.NoError(t, s.CreateUser(ctx, user))

	err := s.CreateUser(ctx, &User{ID: "ana_example_com", DisplayName: "Ana Again", Email: "ana@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestGetUser_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUser(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateExchange_AssignsIDAndTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "ana_example_com")

	ex := &Exchange{UserID: "ana_example_com", Message: "hello", Reply: "hi there"}
	require.NoError(t, s.CreateExchange(ctx, ex))

	assert.NotZero(t, ex.ID)
	assert.False(t, ex.CreatedAt.IsZero())
}

func TestListExchanges_OrderedAscending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "ana_example_com")

	for i := 0; i < 5; i++ {
		ex := &Exchange{
			UserID:  "ana_example_com",
			Message: fmt.Sprintf("message %d", i),
			Reply:   fmt.Sprintf("reply %d", i),
		}
		require.NoError(t, s.CreateExchange(ctx, ex))
	}

	exchanges, err := s.ListExchanges(ctx, "ana_example_com")
	require.NoError(t, err)
	require.Len(t, exchanges, 5)

	for i, ex := range exchanges {
		assert.Equal(t, fmt.Sprintf("message %d", i), ex.Message)
		if i > 0 {
			assert.False(t, ex.CreatedAt.Before(exchanges[i-1].CreatedAt),
				"exchanges must be in non-decreasing created_at order")
		}
	}
}

func TestListExchanges_EmptyHistory(t *testing.T) {
	s := newTestStore(t)

	exchanges, err := s.ListExchanges(context.Background(), "ana_example_com")
	require.NoError(t, err)
	assert.Empty(t, exchanges)
	assert.NotNil(t, exchanges)
}

func TestListRecentExchanges_WindowAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "ana_example_com")

	for i := 0; i < 15; i++ {
		ex := &Exchange{
			UserID:  "ana_example_com",
			Message: fmt.Sprintf("message %d", i),
			Reply:   fmt.Sprintf("reply %d", i),
		}
		require.NoError(t, s.CreateExchange(ctx, ex))
	}

	recent, err := s.ListRecentExchanges(ctx, "ana_example_com", 10)
	require.NoError(t, err)
	require.Len(t, recent, 10)

	// Window holds messages 5..14, oldest first.
	assert.Equal(t, "message 5", recent[0].Message)
	assert.Equal(t, "message 14", recent[9].Message)
}

func TestListRecentExchanges_FewerThanLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "u")

	require.NoError(t, s.CreateExchange(ctx, &Exchange{UserID: "u", Message: "only", Reply: "one"}))

	recent, err := s.ListRecentExchanges(ctx, "u", 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "only", recent[0].Message)
}

func TestListExchanges_MixedPrecisionTimestamps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "ana_example_com")

	// A whole-second timestamp is a textual prefix of a same-second
	// fractional one and would misorder under string comparison. Insertion
	// order must win regardless of the stored text.
	insert := `
		INSERT INTO exchanges (user_id, message, reply, created_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, insert,
		"ana_example_com", "first", "r1", "2026-08-28T10:00:00Z")
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, insert,
		"ana_example_com", "second", "r2", "2026-08-28T10:00:00.5Z")
	require.NoError(t, err)

	exchanges, err := s.ListExchanges(ctx, "ana_example_com")
	require.NoError(t, err)
	require.Len(t, exchanges, 2)
	assert.Equal(t, "first", exchanges[0].Message)
	assert.Equal(t, "second", exchanges[1].Message)
	assert.False(t, exchanges[1].CreatedAt.Before(exchanges[0].CreatedAt))

	recent, err := s.ListRecentExchanges(ctx, "ana_example_com", 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "second", recent[0].Message)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: users.user_id (1555)")))
	assert.False(t, isUniqueViolation(errors.New("constraint failed: FOREIGN KEY constraint failed (787)")))
	assert.False(t, isUniqueViolation(errors.New("constraint failed: NOT NULL constraint failed: users.email (1299)")))
	assert.False(t, isUniqueViolation(nil))
}

func TestListRecentExchanges_IsolatedByUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "ana")
	createTestUser(t, s, "bob")

	require.NoError(t, s.CreateExchange(ctx, &Exchange{UserID: "ana", Message: "a", Reply: "ra"}))
	require.NoError(t, s.CreateExchange(ctx, &Exchange{UserID: "bob", Message: "b", Reply: "rb"}))

	recent, err := s.ListRecentExchanges(ctx, "ana", 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "a", recent[0].Message)
}
