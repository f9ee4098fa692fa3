// Package line is the client for the LINE Messaging API: push messages,
// profile lookup, and message content download.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"linebridge/internal/httpx"
)

const (
	defaultAPIBase     = "https://api.line.me"
	defaultDataAPIBase = "https://api-data.line.me"
)

// Client calls the LINE Messaging API on behalf of one channel.
type Client struct {
	accessToken string
	apiBase     string
	dataAPIBase string
	client      *http.Client
	logger      *slog.Logger
}

// Config configures the LINE client. APIBase and DataAPIBase are
// overridable for tests and default to the production hosts.
type Config struct {
	AccessToken string
	APIBase     string
	DataAPIBase string
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// New creates a LINE API client.
func New(cfg Config) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.DataAPIBase == "" {
		cfg.DataAPIBase = defaultDataAPIBase
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httpx.SharedClient(httpx.DefaultTimeout)
	}
	return &Client{
		accessToken: cfg.AccessToken,
		apiBase:     cfg.APIBase,
		dataAPIBase: cfg.DataAPIBase,
		client:      cfg.HTTPClient,
		logger:      cfg.Logger,
	}
}

// Profile is the subset of the LINE profile response the bridge uses.
type Profile struct {
	DisplayName string `json:"displayName"`
	UserID      string `json:"userId"`
	PictureURL  string `json:"pictureUrl,omitempty"`
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// PushText sends a text message to the given chat ID.
func (c *Client) PushText(ctx context.Context, to, text string) error {
	body, err := json.Marshal(pushRequest{
		To:       to,
		Messages: []textMessage{{Type: "text", Text: text}},
	})
	if err != nil {
		return fmt.Errorf("marshal push: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/v2/bot/message/push", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("line push API %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Profile fetches the display profile for a user ID.
func (c *Client) Profile(ctx context.Context, userID string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/v2/bot/profile/"+userID, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("line profile API %d", resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}

// Content downloads the binary content of a media message. It returns the
// raw bytes and true on success, or nil and false on any non-2xx status or
// transport failure. Callers must treat false as "nothing to relay".
func (c *Client) Content(ctx context.Context, messageID string) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.dataAPIBase+"/v2/bot/message/"+messageID+"/content", nil)
	if err != nil {
		c.logger.Error("line content request build failed", "message_id", messageID, "err", err)
		return nil, false
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("line content download failed", "message_id", messageID, "err", err)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("line content download rejected", "message_id", messageID, "status", resp.StatusCode)
		return nil, false
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("line content read failed", "message_id", messageID, "err", err)
		return nil, false
	}
	return data, true
}
