// ABOUTME: Matrix channel provider backed by a mautrix appservice client
// ABOUTME: Mirrors registered identities as ghost users and publishes to alias rooms

package matrix

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/parleyhq/parley/internal/channel"
)

// Provider implements channel.Provider on a Matrix homeserver. Registered
// identities become ghost users under the appservice namespace and each
// conversation gets an alias room the bot publishes into.
type Provider struct {
	client          *mautrix.Client
	domain          string
	localpartPrefix string
	logger          *slog.Logger

	// roomID cache keyed by alias localpart
	rooms sync.Map
}

// Config holds the Matrix connection settings.
type Config struct {
	Homeserver string
	UserID     string
	// AccessToken must belong to an appservice registration so ghost users
	// can be created.
	AccessToken     string
	Domain          string
	LocalpartPrefix string
}

// NewProvider creates a Matrix channel provider.
func NewProvider(cfg Config) (*Provider, error) {
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}

	prefix := cfg.LocalpartPrefix
	if prefix == "" {
		prefix = "parley_"
	}

	return &Provider{
		client:          client,
		domain:          cfg.Domain,
		localpartPrefix: prefix,
		logger:          slog.Default().With("component", "matrix"),
	}, nil
}

// ghostUserID maps a relay user id to its Matrix ghost MXID.
func (p *Provider) ghostUserID(userID string) id.UserID {
	return id.UserID(fmt.Sprintf("@%s%s:%s", p.localpartPrefix, strings.ToLower(userID), p.domain))
}

// aliasLocalpart maps a channel id to its room alias localpart.
func (p *Provider) aliasLocalpart(channelID string) string {
	return p.localpartPrefix + strings.ToLower(channelID)
}

// FindUser checks whether the ghost user for this identity exists on the
// homeserver. Returns channel.ErrUserNotFound when the profile is absent.
func (p *Provider) FindUser(ctx context.Context, userID string) (*channel.User, error) {
	ghost := p.ghostUserID(userID)

	profile, err := p.client.GetProfile(ctx, ghost)
	if err != nil {
		if errors.Is(err, mautrix.MNotFound) {
			return nil, channel.ErrUserNotFound
		}
		return nil, fmt.Errorf("fetching profile for %s: %w", ghost, err)
	}

	return &channel.User{
		ID:   userID,
		Name: profile.DisplayName,
		Role: "user",
	}, nil
}

// UpsertUser registers the ghost user for this identity and sets its display
// name. An already-registered ghost is not an error.
func (p *Provider) UpsertUser(ctx context.Context, user *channel.User) error {
	ghost := p.ghostUserID(user.ID)
	localpart, _, _ := ghost.Parse()

	_, _, err := p.client.Register(ctx, &mautrix.ReqRegister{
		Username:     localpart,
		Type:         mautrix.AuthTypeAppservice,
		InhibitLogin: true,
	})
	if err != nil && !errors.Is(err, mautrix.MUserInUse) {
		return fmt.Errorf("registering ghost %s: %w", ghost, err)
	}

	p.logger.Debug("upserted ghost user", "user", ghost.String())
	return nil
}

// EnsureChannel resolves or creates the alias room for this user's
// conversation and returns the alias localpart as the channel id.
func (p *Provider) EnsureChannel(ctx context.Context, userID string) (string, error) {
	channelID := "chat-" + userID
	localpart := p.aliasLocalpart(channelID)

	if _, ok := p.rooms.Load(localpart); ok {
		return channelID, nil
	}

	alias := id.RoomAlias(fmt.Sprintf("#%s:%s", localpart, p.domain))

	resolved, err := p.client.ResolveAlias(ctx, alias)
	if err == nil {
		p.rooms.Store(localpart, resolved.RoomID)
		return channelID, nil
	}
	if !errors.Is(err, mautrix.MNotFound) {
		return "", fmt.Errorf("resolving alias %s: %w", alias, err)
	}

	created, err := p.client.CreateRoom(ctx, &mautrix.ReqCreateRoom{
		RoomAliasName: localpart,
		Name:          "Chat with " + userID,
		Preset:        "private_chat",
		Invite:        []id.UserID{p.ghostUserID(userID)},
	})
	if err != nil {
		return "", fmt.Errorf("creating room for %s: %w", alias, err)
	}

	p.rooms.Store(localpart, created.RoomID)
	p.logger.Info("created conversation room", "alias", alias.String(), "room_id", created.RoomID.String())
	return channelID, nil
}

// Publish sends the reply into the conversation room, with the markdown body
// rendered to HTML as the formatted variant.
func (p *Provider) Publish(ctx context.Context, channelID, text string) error {
	localpart := p.aliasLocalpart(channelID)

	cached, ok := p.rooms.Load(localpart)
	if !ok {
		alias := id.RoomAlias(fmt.Sprintf("#%s:%s", localpart, p.domain))
		resolved, err := p.client.ResolveAlias(ctx, alias)
		if err != nil {
			return fmt.Errorf("resolving alias %s: %w", alias, err)
		}
		cached = resolved.RoomID
		p.rooms.Store(localpart, cached)
	}
	roomID := cached.(id.RoomID)

	content := event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    text,
	}
	if html := renderMarkdown(text); html != "" && html != text {
		content.Format = event.FormatHTML
		content.FormattedBody = html
	}

	if _, err := p.client.SendMessageEvent(ctx, roomID, event.EventMessage, &content); err != nil {
		return fmt.Errorf("sending message to %s: %w", roomID, err)
	}

	p.logger.Debug("published message", "channel_id", channelID, "room_id", roomID.String())
	return nil
}

// renderMarkdown converts markdown to HTML for the formatted message body.
// Returns an empty string if conversion fails; the plain body still goes out.
func renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}
