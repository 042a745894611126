// ABOUTME: Stream Chat server-side REST client implementing channel.Provider
// ABOUTME: Authenticates with an HS256 server token signed by the API secret

package streamchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/channel"
)

const defaultBaseURL = "https://chat.stream-io-api.com"

// channelType is the Stream channel type used for relay conversations
const channelType = "messaging"

// Client talks to the Stream Chat server API.
type Client struct {
	apiKey      string
	serverToken string
	baseURL     string
	botID       string
	httpClient  *http.Client
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Stream API base URL. Useful for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBotID sets the user id that authors published replies.
func WithBotID(botID string) Option {
	return func(c *Client) {
		c.botID = botID
	}
}

// NewClient creates a Stream Chat client. The API secret is used once to mint
// a server-side JWT and is not retained.
func NewClient(apiKey, apiSecret string, opts ...Option) (*Client, error) {
	token, err := serverToken(apiSecret)
	if err != nil {
		return nil, fmt.Errorf("minting server token: %w", err)
	}

	c := &Client{
		apiKey:      apiKey,
		serverToken: token,
		baseURL:     defaultBaseURL,
		botID:       "ai_bot",
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: slog.Default().With("component", "streamchat"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// serverToken mints the JWT the server API expects: an HS256 token with a
// single {"server": true} claim, signed with the API secret.
func serverToken(apiSecret string) (string, error) {
	claims := jwt.MapClaims{
		"server": true,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(apiSecret))
}

// ChannelID returns the deterministic channel id for a user's conversation.
func ChannelID(userID string) string {
	return "chat-" + userID
}

type streamUser struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// FindUser queries the Stream user registry for an exact id match.
func (c *Client) FindUser(ctx context.Context, userID string) (*channel.User, error) {
	payload, err := json.Marshal(map[string]any{
		"filter_conditions": map[string]any{
			"id": userID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding user query: %w", err)
	}

	query := url.Values{"payload": {string(payload)}}

	var result struct {
		Users []streamUser `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/users", query, nil, &result); err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}

	if len(result.Users) == 0 {
		return nil, channel.ErrUserNotFound
	}

	u := result.Users[0]
	return &channel.User{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}, nil
}

// UpsertUser creates or updates a Stream user.
func (c *Client) UpsertUser(ctx context.Context, user *channel.User) error {
	role := user.Role
	if role == "" {
		role = "user"
	}

	body := map[string]any{
		"users": map[string]streamUser{
			user.ID: {
				ID:    user.ID,
				Name:  user.Name,
				Email: user.Email,
				Role:  role,
			},
		},
	}

	if err := c.do(ctx, http.MethodPost, "/users", nil, body, nil); err != nil {
		return fmt.Errorf("upserting user %s: %w", user.ID, err)
	}

	c.logger.Debug("upserted user", "user_id", user.ID)
	return nil
}

// EnsureChannel creates the user's messaging channel if it doesn't exist and
// returns its id. Channel creation is idempotent on the Stream side.
func (c *Client) EnsureChannel(ctx context.Context, userID string) (string, error) {
	channelID := ChannelID(userID)

	body := map[string]any{
		"data": map[string]any{
			"created_by_id": c.botID,
			"members":       []string{userID, c.botID},
		},
	}

	path := fmt.Sprintf("/channels/%s/%s/query", channelType, url.PathEscape(channelID))
	if err := c.do(ctx, http.MethodPost, path, nil, body, nil); err != nil {
		return "", fmt.Errorf("ensuring channel %s: %w", channelID, err)
	}

	return channelID, nil
}

// Publish posts text into the channel as the bot user.
func (c *Client) Publish(ctx context.Context, channelID, text string) error {
	body := map[string]any{
		"message": map[string]any{
			"id":      uuid.New().String(),
			"text":    text,
			"user_id": c.botID,
		},
	}

	path := fmt.Sprintf("/channels/%s/%s/message", channelType, url.PathEscape(channelID))
	if err := c.do(ctx, http.MethodPost, path, nil, body, nil); err != nil {
		return fmt.Errorf("publishing to channel %s: %w", channelID, err)
	}

	c.logger.Debug("published message", "channel_id", channelID)
	return nil
}

// do executes one API request. Every request carries the api_key query
// parameter and the server JWT.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method,
		c.baseURL+path+"?"+query.Encode(), reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.serverToken)
	req.Header.Set("Stream-Auth-Type", "jwt")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
