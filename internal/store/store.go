// ABOUTME: Store interface and data types for parley persistence
// ABOUTME: Defines User, Exchange structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateUser is returned when trying to create a user that already exists
var ErrDuplicateUser = errors.New("user already exists")

// User represents a registered identity, keyed by the id derived from the
// contact address at registration time.
type User struct {
	ID          string
	DisplayName string
	Email       string
	CreatedAt   time.Time
}

// Exchange is one persisted user-message/assistant-reply pair. The
// store-assigned autoincrement ID defines the order of a user's
// conversation; CreatedAt is assigned at insert time and tracks it.
type Exchange struct {
	ID        int64
	UserID    string
	Message   string
	Reply     string
	CreatedAt time.Time
}

// Store defines the interface for user and exchange persistence
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)

	// Exchanges (append-only)
	CreateExchange(ctx context.Context, ex *Exchange) error
	ListExchanges(ctx context.Context, userID string) ([]*Exchange, error)
	ListRecentExchanges(ctx context.Context, userID string, limit int) ([]*Exchange, error)

	// Close releases any resources held by the store
	Close() error
}
