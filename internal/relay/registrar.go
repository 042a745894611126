// ABOUTME: Identity registrar deriving stable user ids from contact addresses
// ABOUTME: Registration is idempotent across the channel registry and the store

package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/parleyhq/parley/internal/channel"
	"github.com/parleyhq/parley/internal/store"
)

// userIDSanitizer matches every character that may not appear in a user id
var userIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// DeriveUserID maps a contact address to its stable user id by replacing
// every disallowed character with an underscore. Pure and deterministic:
// the same address always yields the same id.
func DeriveUserID(contactAddress string) string {
	return userIDSanitizer.ReplaceAllString(contactAddress, "_")
}

// Registrar registers identities in the channel registry and the local store.
type Registrar struct {
	store   store.Store
	channel channel.Provider
	logger  *slog.Logger
}

// NewRegistrar creates a registrar over the given collaborators.
func NewRegistrar(st store.Store, ch channel.Provider) *Registrar {
	return &Registrar{
		store:   st,
		channel: ch,
		logger:  slog.Default().With("component", "registrar"),
	}
}

// Register creates the identity for a contact address, or returns the
// existing one. Safe to call repeatedly with the same address: the channel
// registry is checked first, and the store's primary key absorbs concurrent
// registrations of the same address.
func (r *Registrar) Register(ctx context.Context, displayName, contactAddress string) (*store.User, error) {
	const op = "register"

	if displayName == "" {
		return nil, validationError(op, "display name is required")
	}
	if contactAddress == "" {
		return nil, validationError(op, "contact address is required")
	}

	userID := DeriveUserID(contactAddress)

	existing, err := r.channel.FindUser(ctx, userID)
	if err != nil && !errors.Is(err, channel.ErrUserNotFound) {
		return nil, upstreamError("channel", op, "querying user registry", err)
	}

	if existing != nil {
		// Already registered on the channel side; make sure the store row
		// exists too so the two registries stay consistent.
		user, err := r.ensureStoredUser(ctx, userID, displayName, contactAddress)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("register found existing user", "user_id", userID)
		return user, nil
	}

	if err := r.channel.UpsertUser(ctx, &channel.User{
		ID:    userID,
		Name:  displayName,
		Email: contactAddress,
		Role:  "user",
	}); err != nil {
		return nil, upstreamError("channel", op, "upserting user", err)
	}

	user, err := r.ensureStoredUser(ctx, userID, displayName, contactAddress)
	if err != nil {
		return nil, err
	}

	r.logger.Info("registered user", "user_id", userID, "name", displayName)
	return user, nil
}

// ensureStoredUser inserts the user row, tolerating a concurrent insert of
// the same id by re-reading the winner.
func (r *Registrar) ensureStoredUser(ctx context.Context, userID, displayName, contactAddress string) (*store.User, error) {
	const op = "register"

	user := &store.User{
		ID:          userID,
		DisplayName: displayName,
		Email:       contactAddress,
	}

	err := r.store.CreateUser(ctx, user)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrDuplicateUser) {
		return nil, upstreamError("store", op, fmt.Sprintf("creating user %s", userID), err)
	}

	existing, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return nil, upstreamError("store", op, fmt.Sprintf("reading user %s", userID), err)
	}
	return existing, nil
}
