// ABOUTME: Provider interface and types for realtime channel backends
// ABOUTME: Defines the user registry and publish operations the relay depends on

package channel

import (
	"context"
	"errors"
)

// ErrUserNotFound is returned by FindUser when the channel backend has no
// record of the user.
var ErrUserNotFound = errors.New("channel: user not found")

// User is a channel-side identity.
type User struct {
	ID    string
	Name  string
	Email string
	Role  string
}

// Provider is implemented by realtime channel backends. The relay uses the
// backend both as a user registry and as the surface replies are published to.
type Provider interface {
	// FindUser looks up a user in the channel registry.
	// Returns ErrUserNotFound if no such user exists.
	FindUser(ctx context.Context, userID string) (*User, error)

	// UpsertUser creates or updates a channel user.
	UpsertUser(ctx context.Context, user *User) error

	// EnsureChannel makes sure the user's conversation channel exists and
	// returns its identifier.
	EnsureChannel(ctx context.Context, userID string) (string, error)

	// Publish posts a reply into the given channel as the bot identity.
	Publish(ctx context.Context, channelID, text string) error
}
