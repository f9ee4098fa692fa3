// Package bridge is the LINE→Discord relay pipeline: it receives LINE
// webhook deliveries, classifies each event, resolves sender identity,
// fetches media, and posts the result to the Discord webhook.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"linebridge/internal/discord"
	"linebridge/internal/domain"
	"linebridge/internal/metrics"

	"github.com/google/uuid"
)

const (
	healthBody     = "Hello, LINE Bot is running!"
	stickerURLTmpl = "https://stickershop.line-scdn.net/stickershop/v1/sticker/%s/ANDROID/sticker.png"
	// Deliveries carry event metadata only (media is fetched separately),
	// so real bodies stay in the kilobytes. The cap bounds abuse without
	// ever truncating a legitimate delivery into a parse failure.
	maxBodyBytes = 16 << 20
)

// NameResolver resolves a LINE user ID to a display name.
type NameResolver interface {
	Resolve(ctx context.Context, userID string) string
}

// MediaFetcher downloads message content. *line.Client satisfies it.
type MediaFetcher interface {
	Content(ctx context.Context, messageID string) ([]byte, bool)
}

// Relay posts messages to the destination channel. *discord.WebhookRelay
// satisfies it.
type Relay interface {
	PostText(ctx context.Context, content string) bool
	PostEmbed(ctx context.Context, content, imageURL string) bool
	PostFile(ctx context.Context, caption string, file *domain.FileAttachment) bool
}

// Router is the inbound event router.
type Router struct {
	resolver NameResolver
	media    MediaFetcher
	relay    Relay
	metrics  bool
	logger   *slog.Logger
	server   *http.Server
}

// Config configures the Router.
type Config struct {
	Resolver     NameResolver
	Media        MediaFetcher
	Relay        Relay
	ServeMetrics bool
	Logger       *slog.Logger
}

// NewRouter creates a Router.
func NewRouter(cfg Config) *Router {
	return &Router{
		resolver: cfg.Resolver,
		media:    cfg.Media,
		relay:    cfg.Relay,
		metrics:  cfg.ServeMetrics,
		logger:   cfg.Logger,
	}
}

// Handler returns the HTTP surface: a liveness GET, the webhook callback,
// and optionally the metrics endpoint.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", rt.handleHealth)
	mux.HandleFunc("POST /callback", rt.handleCallback)
	if rt.metrics {
		mux.HandleFunc("GET /metrics", metrics.Collector.Handler())
	}
	return mux
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, healthBody)
}

// handleCallback processes one webhook delivery. Malformed JSON is the only
// failure that surfaces to LINE; per-event failures are swallowed so LINE
// never retries a delivery the bridge already accepted.
func (rt *Router) handleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req domain.CallbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		rt.logger.Warn("malformed webhook body", "err", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	deliveryID := uuid.NewString()
	for _, event := range req.Events {
		rt.handleEvent(r.Context(), deliveryID, event)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "OK")
}

func (rt *Router) handleEvent(ctx context.Context, deliveryID string, event domain.Event) {
	metrics.EventsReceived.Inc()

	// Classification log only; no behavioral branching on the source type.
	rt.logger.Info("line event received",
		"delivery_id", deliveryID,
		"source_type", event.Source.SourceType(),
		"chat_id", event.Source.ChatID(),
		"event_type", event.Type,
	)

	if event.Type != "message" || event.Message == nil {
		return
	}

	userID := event.Source.UserID
	if userID == "" {
		userID = "(unknown)"
	}

	kind := event.Message.Kind()
	metrics.Collector.Counter(
		"linebridge_messages_total",
		"LINE message events by kind",
		fmt.Sprintf("kind=%q", kind),
	).Inc()

	switch kind {
	case domain.KindText:
		rt.relayText(ctx, userID, event.Message.Text)
	case domain.KindSticker:
		rt.relaySticker(ctx, userID, event.Message.StickerID)
	case domain.KindImage, domain.KindVideo:
		rt.relayMedia(ctx, userID, event.Message.ID, kind)
	case domain.KindOther:
		rt.logger.Debug("unsupported message type dropped",
			"delivery_id", deliveryID, "type", event.Message.Type)
	}
}

func (rt *Router) relayText(ctx context.Context, userID, text string) {
	name := rt.resolver.Resolve(ctx, userID)
	rt.post(ctx, func() bool {
		return rt.relay.PostText(ctx, fmt.Sprintf("👤 %s：%s", name, text))
	})
}

func (rt *Router) relaySticker(ctx context.Context, userID, stickerID string) {
	name := rt.resolver.Resolve(ctx, userID)
	imageURL := fmt.Sprintf(stickerURLTmpl, stickerID)
	rt.post(ctx, func() bool {
		return rt.relay.PostEmbed(ctx, fmt.Sprintf("👤 %s：貼圖🧸", name), imageURL)
	})
}

func (rt *Router) relayMedia(ctx context.Context, userID, messageID string, kind domain.MessageKind) {
	data, ok := rt.media.Content(ctx, messageID)
	if !ok {
		// Nothing to relay; never post a broken attachment.
		return
	}

	kindText := "圖片🖼️"
	if kind == domain.KindVideo {
		kindText = "影片🎥"
	}

	name := rt.resolver.Resolve(ctx, userID)
	if len(data) > discord.MaxFileSize {
		rt.logger.Warn("media exceeds attachment limit",
			"message_id", messageID, "size", len(data))
		rt.post(ctx, func() bool {
			return rt.relay.PostText(ctx, fmt.Sprintf("👤 %s：%s檔案太大啦~ (超過限制)", name, kindText))
		})
		return
	}

	file := &domain.FileAttachment{Name: discord.FileName(kind), Data: data}
	rt.post(ctx, func() bool {
		return rt.relay.PostFile(ctx, fmt.Sprintf("👤 %s：%s", name, kindText), file)
	})
}

// post runs one relay call, tracking latency and result.
func (rt *Router) post(ctx context.Context, fn func() bool) {
	start := time.Now()
	ok := fn()
	metrics.RelayLatency.Observe(time.Since(start).Seconds())

	result := "ok"
	if !ok {
		result = "error"
	}
	metrics.Collector.Counter(
		"linebridge_relay_posts_total",
		"Relay POSTs to the Discord webhook by result",
		fmt.Sprintf("result=%q", result),
	).Inc()
}

// Serve runs the webhook HTTP server until ctx is cancelled.
func (rt *Router) Serve(ctx context.Context, addr string) error {
	rt.server = &http.Server{
		Addr:              addr,
		Handler:           rt.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rt.logger.Info("webhook server starting", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := rt.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		rt.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return rt.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}
}
