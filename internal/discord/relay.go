// Package discord carries the two Discord-facing components: the inbound
// webhook relay that delivers LINE messages into a channel, and the /stl
// slash command that pushes the other way.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"linebridge/internal/domain"
	"linebridge/internal/httpx"
)

// MaxFileSize is Discord's webhook attachment limit. Callers must check it
// before handing a file to PostFile and degrade to a text notice instead.
const MaxFileSize = 8 * 1024 * 1024

// WebhookRelay posts messages to a fixed Discord inbound webhook.
type WebhookRelay struct {
	webhookURL string
	client     *http.Client
	logger     *slog.Logger
}

// RelayConfig configures the webhook relay.
type RelayConfig struct {
	WebhookURL string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewWebhookRelay creates a relay for the configured webhook URL.
func NewWebhookRelay(cfg RelayConfig) *WebhookRelay {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httpx.SharedClient(httpx.DefaultTimeout)
	}
	return &WebhookRelay{
		webhookURL: cfg.WebhookURL,
		client:     cfg.HTTPClient,
		logger:     cfg.Logger,
	}
}

// Embed is a minimal Discord embed carrying a single image URL.
type Embed struct {
	Image *EmbedImage `json:"image,omitempty"`
}

// EmbedImage is the image part of an embed.
type EmbedImage struct {
	URL string `json:"url"`
}

type webhookPayload struct {
	Content string  `json:"content"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// PostText posts a text-only message. Failures are logged and reported as
// false, never returned as errors.
func (w *WebhookRelay) PostText(ctx context.Context, content string) bool {
	return w.postJSON(ctx, webhookPayload{Content: content})
}

// PostEmbed posts a text message with an image embed (used for stickers,
// which are relayed by URL rather than by content download).
func (w *WebhookRelay) PostEmbed(ctx context.Context, content, imageURL string) bool {
	return w.postJSON(ctx, webhookPayload{
		Content: content,
		Embeds:  []Embed{{Image: &EmbedImage{URL: imageURL}}},
	})
}

// PostFile posts a caption followed by a file attachment. Discord webhooks
// take the caption and the file as two distinct calls: a JSON body first,
// then a multipart form with a single "file" field. A failed caption
// aborts the file upload.
func (w *WebhookRelay) PostFile(ctx context.Context, caption string, file *domain.FileAttachment) bool {
	if !w.postJSON(ctx, webhookPayload{Content: caption}) {
		return false
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		w.logger.Error("discord multipart build failed", "err", err)
		return false
	}
	if _, err := part.Write(file.Data); err != nil {
		w.logger.Error("discord multipart write failed", "err", err)
		return false
	}
	if err := mw.Close(); err != nil {
		w.logger.Error("discord multipart close failed", "err", err)
		return false
	}

	return w.post(ctx, mw.FormDataContentType(), &buf)
}

func (w *WebhookRelay) postJSON(ctx context.Context, payload webhookPayload) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		w.logger.Error("discord payload marshal failed", "err", err)
		return false
	}
	return w.post(ctx, "application/json", bytes.NewReader(body))
}

func (w *WebhookRelay) post(ctx context.Context, contentType string, body io.Reader) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, body)
	if err != nil {
		w.logger.Error("discord request build failed", "err", err)
		return false
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Error("discord post failed", "err", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		w.logger.Error("discord post rejected", "status", resp.StatusCode, "body", string(respBody))
		return false
	}
	return true
}

// FileName returns the conventional attachment name for a media kind.
func FileName(kind domain.MessageKind) string {
	if kind == domain.KindVideo {
		return "video.mp4"
	}
	return "image.jpg"
}
