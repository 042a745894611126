// ABOUTME: Tests for the Stream Chat REST client against a local HTTP server
// ABOUTME: Verifies auth headers, query payloads, and channel id derivation

package streamchat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/channel"
)

func TestServerToken_SignedWithSecret(t *testing.T) {
	tokenStr, err := serverToken("super-secret")
	require.NoError(t, err)

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		return []byte("super-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, true, claims["server"])
}

func TestChannelID(t *testing.T) {
	assert.Equal(t, "chat-ana_example_com", ChannelID("ana_example_com"))
}

func TestFindUser_Found(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "jwt", r.Header.Get("Stream-Auth-Type"))
		assert.NotEmpty(t, r.Header.Get("Authorization"))

		var payload struct {
			FilterConditions map[string]any `json:"filter_conditions"`
		}
		require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("payload")), &payload))
		assert.Equal(t, "ana_example_com", payload.FilterConditions["id"])

		w.Write([]byte(`{"users":[{"id":"ana_example_com","name":"Ana","email":"ana@example.com","role":"user"}]}`))
	}))
	defer server.Close()

	client, err := NewClient("test-key", "test-secret", WithBaseURL(server.URL))
	require.NoError(t, err)

	user, err := client.FindUser(context.Background(), "ana_example_com")
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.Name)
	assert.Equal(t, "user", user.Role)
}

func TestFindUser_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"users":[]}`))
	}))
	defer server.Close()

	client, err := NewClient("test-key", "test-secret", WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = client.FindUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, channel.ErrUserNotFound)
}

func TestUpsertUser_DefaultsRole(t *testing.T) {
	var gotBody struct {
		Users map[string]streamUser `json:"users"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, err := NewClient("test-key", "test-secret", WithBaseURL(server.URL))
	require.NoError(t, err)

	err = client.UpsertUser(context.Background(), &channel.User{
		ID:    "ana_example_com",
		Name:  "Ana",
		Email: "ana@example.com",
	})
	require.NoError(t, err)

	u, ok := gotBody.Users["ana_example_com"]
	require.True(t, ok)
	assert.Equal(t, "user", u.Role)
	assert.Equal(t, "Ana", u.Name)
}

func TestEnsureChannel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channels/messaging/chat-ana_example_com/query", r.URL.Path)
		w.Write([]byte(`{"channel":{"id":"chat-ana_example_com"}}`))
	}))
	defer server.Close()

	client, err := NewClient("test-key", "test-secret", WithBaseURL(server.URL))
	require.NoError(t, err)

	channelID, err := client.EnsureChannel(context.Background(), "ana_example_com")
	require.NoError(t, err)
	assert.Equal(t, "chat-ana_example_com", channelID)
}

func TestPublish_AsBotUser(t *testing.T) {
	var gotBody struct {
		Message struct {
			ID     string `json:"id"`
			Text   string `json:"text"`
			UserID string `json:"user_id"`
		} `json:"message"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channels/messaging/chat-ana_example_com/message", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, err := NewClient("test-key", "test-secret",
		WithBaseURL(server.URL), WithBotID("relay_bot"))
	require.NoError(t, err)

	err = client.Publish(context.Background(), "chat-ana_example_com", "Hello from the bot")
	require.NoError(t, err)

	assert.Equal(t, "Hello from the bot", gotBody.Message.Text)
	assert.Equal(t, "relay_bot", gotBody.Message.UserID)
	assert.NotEmpty(t, gotBody.Message.ID)
}

func TestPublish_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"not allowed"}`))
	}))
	defer server.Close()

	client, err := NewClient("test-key", "test-secret", WithBaseURL(server.URL))
	require.NoError(t, err)

	err = client.Publish(context.Background(), "chat-x", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
