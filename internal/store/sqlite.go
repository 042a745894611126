// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides user/exchange persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			user_id      TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			email        TEXT NOT NULL,
			created_at   TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS exchanges (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL,
			message    TEXT NOT NULL,
			reply      TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(user_id)
		);

		CREATE INDEX IF NOT EXISTS idx_exchanges_user
			ON exchanges(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// CreateUser inserts a new user row.
// Returns ErrDuplicateUser if a user with the same ID already exists.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (user_id, display_name, email, created_at)
		VALUES (?, ?, ?, ?)
	`

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.DisplayName,
		user.Email,
		user.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("created user", "user_id", user.ID)
	return nil
}

// isUniqueViolation checks if the error is a SQLite UNIQUE constraint
// violation. NOT NULL and foreign key failures must not match: callers treat
// this as "row already exists".
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetUser retrieves a user by ID.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT user_id, display_name, email, created_at
		FROM users
		WHERE user_id = ?
	`

	var user User
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.DisplayName,
		&user.Email,
		&createdAtStr,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	user.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &user, nil
}

// CreateExchange inserts a new exchange row. The store assigns CreatedAt and
// the row ID; both are written back to the passed struct.
func (s *SQLiteStore) CreateExchange(ctx context.Context, ex *Exchange) error {
	query := `
		INSERT INTO exchanges (user_id, message, reply, created_at)
		VALUES (?, ?, ?, ?)
	`

	ex.CreatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, query,
		ex.UserID,
		ex.Message,
		ex.Reply,
		ex.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting exchange: %w", err)
	}

	ex.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting exchange id: %w", err)
	}

	s.logger.Debug("saved exchange", "id", ex.ID, "user_id", ex.UserID)
	return nil
}

// ListExchanges retrieves all exchanges for a user in insertion order.
// Returns an empty slice when the user has no history.
//
// Ordering is by the autoincrement id, not the timestamp text: RFC 3339
// fractional seconds are variable-width, so lexicographic comparison would
// misorder a whole-second row against a same-second fractional one.
func (s *SQLiteStore) ListExchanges(ctx context.Context, userID string) ([]*Exchange, error) {
	query := `
		SELECT id, user_id, message, reply, created_at
		FROM exchanges
		WHERE user_id = ?
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying exchanges: %w", err)
	}
	defer rows.Close()

	return scanExchanges(rows)
}

// ListRecentExchanges retrieves the most recent `limit` exchanges for a user,
// returned oldest-first so callers can feed them to the model chronologically.
// If limit is 0 or negative, a default limit of 10 is used.
func (s *SQLiteStore) ListRecentExchanges(ctx context.Context, userID string, limit int) ([]*Exchange, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, user_id, message, reply, created_at
		FROM exchanges
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent exchanges: %w", err)
	}
	defer rows.Close()

	exchanges, err := scanExchanges(rows)
	if err != nil {
		return nil, err
	}

	// Selected newest-first; reverse to chronological order.
	for i, j := 0, len(exchanges)-1; i < j; i, j = i+1, j-1 {
		exchanges[i], exchanges[j] = exchanges[j], exchanges[i]
	}

	return exchanges, nil
}

// scanExchanges reads exchange rows into structs
func scanExchanges(rows *sql.Rows) ([]*Exchange, error) {
	exchanges := []*Exchange{}
	for rows.Next() {
		var ex Exchange
		var createdAtStr string

		if err := rows.Scan(
			&ex.ID,
			&ex.UserID,
			&ex.Message,
			&ex.Reply,
			&createdAtStr,
		); err != nil {
			return nil, fmt.Errorf("scanning exchange row: %w", err)
		}

		var err error
		ex.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		exchanges = append(exchanges, &ex)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating exchange rows: %w", err)
	}

	return exchanges, nil
}
