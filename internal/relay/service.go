// ABOUTME: Conversation relay service: context assembly, completion, persistence, publish
// ABOUTME: Also hosts the history reader, a pure projection over the store

package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/parleyhq/parley/internal/channel"
	"github.com/parleyhq/parley/internal/completion"
	"github.com/parleyhq/parley/internal/store"
)

// Completer generates an assistant reply for a transcript.
type Completer interface {
	Complete(ctx context.Context, model string, messages []completion.Message) (string, error)
}

// Options holds the relay's policy knobs.
type Options struct {
	// Model is the fixed model name sent on every completion call
	Model string
	// ContextWindow is how many recent exchanges are replayed as context
	ContextWindow int
	// FallbackReply is substituted when the provider returns empty content
	FallbackReply string
	// CompletionTimeout bounds the provider call; zero means no extra bound
	CompletionTimeout time.Duration
	// ChannelTimeout bounds each channel call; zero means no extra bound
	ChannelTimeout time.Duration
}

// Service relays user messages through the completion provider and mirrors
// the result into the realtime channel. The store is the source of truth;
// the channel is a best-effort mirror.
type Service struct {
	store     store.Store
	channel   channel.Provider
	completer Completer
	opts      Options
	logger    *slog.Logger
}

// NewService creates the relay service. Zero option fields fall back to the
// documented defaults.
func NewService(st store.Store, ch channel.Provider, completer Completer, opts Options) *Service {
	if opts.Model == "" {
		opts.Model = "gpt-4o"
	}
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = 10
	}
	if opts.FallbackReply == "" {
		opts.FallbackReply = "No response from AI"
	}

	return &Service{
		store:     st,
		channel:   ch,
		completer: completer,
		opts:      opts,
		logger:    slog.Default().With("component", "relay"),
	}
}

// Relay processes one user message: verifies the identity in both registries,
// replays the recent context window to the completion provider, persists the
// exchange, and publishes the reply into the user's channel.
//
// The exchange insert is the durability point. A channel failure after it is
// surfaced as an error but does not roll the exchange back.
func (s *Service) Relay(ctx context.Context, userID, message string) (string, error) {
	const op = "relay"

	if userID == "" {
		return "", validationError(op, "user id is required")
	}
	if message == "" {
		return "", validationError(op, "message is required")
	}

	// The channel registry is the outward-facing identity authority; check
	// it before the local store so the two misses stay distinguishable.
	if _, err := s.findChannelUser(ctx, userID); err != nil {
		return "", err
	}

	if _, err := s.store.GetUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", notFoundError("store", op, fmt.Sprintf("user %s not registered", userID))
		}
		return "", upstreamError("store", op, "reading user", err)
	}

	history, err := s.store.ListRecentExchanges(ctx, userID, s.opts.ContextWindow)
	if err != nil {
		return "", upstreamError("store", op, "reading recent exchanges", err)
	}

	messages := buildTranscript(history, message)

	reply, err := s.complete(ctx, messages)
	if err != nil {
		return "", err
	}

	ex := &store.Exchange{
		UserID:  userID,
		Message: message,
		Reply:   reply,
	}
	if err := s.store.CreateExchange(ctx, ex); err != nil {
		return "", upstreamError("store", op, "saving exchange", err)
	}

	if err := s.publish(ctx, userID, reply); err != nil {
		// The exchange is already committed; the caller learns the mirror
		// failed but the store remains authoritative.
		s.logger.Error("channel publish failed after commit",
			"user_id", userID, "exchange_id", ex.ID, "error", err)
		return "", err
	}

	s.logger.Info("relayed message",
		"user_id", userID,
		"exchange_id", ex.ID,
		"context_exchanges", len(history))
	return reply, nil
}

// findChannelUser checks the channel registry for the user.
func (s *Service) findChannelUser(ctx context.Context, userID string) (*channel.User, error) {
	const op = "relay"

	ctx, cancel := s.bound(ctx, s.opts.ChannelTimeout)
	defer cancel()

	user, err := s.channel.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, channel.ErrUserNotFound) {
			return nil, notFoundError("channel", op, fmt.Sprintf("user %s not in channel registry", userID))
		}
		return nil, upstreamError("channel", op, "querying user registry", err)
	}
	return user, nil
}

// complete calls the provider and applies the fallback-reply policy: empty
// content is a degraded-but-valid outcome, everything else is upstream.
func (s *Service) complete(ctx context.Context, messages []completion.Message) (string, error) {
	const op = "relay"

	ctx, cancel := s.bound(ctx, s.opts.CompletionTimeout)
	defer cancel()

	reply, err := s.completer.Complete(ctx, s.opts.Model, messages)
	if err != nil {
		if errors.Is(err, completion.ErrEmptyCompletion) {
			s.logger.Warn("provider returned empty reply, using fallback")
			return s.opts.FallbackReply, nil
		}
		return "", upstreamError("completion", op, "calling completion provider", err)
	}
	return reply, nil
}

// publish mirrors the reply into the user's channel.
func (s *Service) publish(ctx context.Context, userID, reply string) error {
	const op = "relay"

	ctx, cancel := s.bound(ctx, s.opts.ChannelTimeout)
	defer cancel()

	channelID, err := s.channel.EnsureChannel(ctx, userID)
	if err != nil {
		return upstreamError("channel", op, "ensuring channel", err)
	}
	if err := s.channel.Publish(ctx, channelID, reply); err != nil {
		return upstreamError("channel", op, "publishing reply", err)
	}
	return nil
}

// bound applies a timeout when one is configured.
func (s *Service) bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// buildTranscript turns the recent exchanges plus the new message into the
// role-tagged utterance list the provider expects: each exchange contributes
// a user and an assistant utterance, oldest first, then the new message.
func buildTranscript(history []*store.Exchange, message string) []completion.Message {
	messages := make([]completion.Message, 0, len(history)*2+1)
	for _, ex := range history {
		messages = append(messages,
			completion.Message{Role: "user", Content: ex.Message},
			completion.Message{Role: "assistant", Content: ex.Reply},
		)
	}
	return append(messages, completion.Message{Role: "user", Content: message})
}

// GetHistory returns a user's full exchange history, oldest first. A user
// with no history gets an empty slice, not an error.
func (s *Service) GetHistory(ctx context.Context, userID string) ([]*store.Exchange, error) {
	const op = "get_history"

	if userID == "" {
		return nil, validationError(op, "user id is required")
	}

	exchanges, err := s.store.ListExchanges(ctx, userID)
	if err != nil {
		return nil, upstreamError("store", op, "reading exchanges", err)
	}
	return exchanges, nil
}
