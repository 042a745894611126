// ABOUTME: HTTP client for the relay API used by the admin CLI
// ABOUTME: Thin JSON wrappers over register, chat, history, and health

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RelayClient calls the relay's JSON API.
type RelayClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRelayClient(baseURL string) *RelayClient {
	return &RelayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type RegisteredUser struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

func (c *RelayClient) Register(ctx context.Context, name, email string) (*RegisteredUser, error) {
	var user RegisteredUser
	err := c.post(ctx, "/register-user", map[string]string{
		"name":  name,
		"email": email,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *RelayClient) Chat(ctx context.Context, userID, message string) (string, error) {
	var resp struct {
		Reply string `json:"reply"`
	}
	err := c.post(ctx, "/chat", map[string]string{
		"userId":  userID,
		"message": message,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Reply, nil
}

type HistoryEntry struct {
	ID        int64  `json:"id"`
	Message   string `json:"message"`
	Reply     string `json:"reply"`
	CreatedAt string `json:"createdAt"`
}

func (c *RelayClient) History(ctx context.Context, userID string) ([]HistoryEntry, error) {
	var resp struct {
		Messages []HistoryEntry `json:"messages"`
	}
	err := c.post(ctx, "/get-messages", map[string]string{
		"userId": userID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *RelayClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *RelayClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling relay: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("relay returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("relay returned %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
