package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"linebridge/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestPostText_JSONBody(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	relay := NewWebhookRelay(RelayConfig{WebhookURL: srv.URL, Logger: testLogger()})
	if !relay.PostText(context.Background(), "👤 Alice：hi") {
		t.Fatal("expected success")
	}
	if got.Content != "👤 Alice：hi" {
		t.Errorf("unexpected content: %q", got.Content)
	}
	if len(got.Embeds) != 0 {
		t.Errorf("text post must carry no embeds, got %d", len(got.Embeds))
	}
}

func TestPostEmbed_CarriesImageURL(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	relay := NewWebhookRelay(RelayConfig{WebhookURL: srv.URL, Logger: testLogger()})
	url := "https://stickershop.line-scdn.net/stickershop/v1/sticker/52002734/ANDROID/sticker.png"
	if !relay.PostEmbed(context.Background(), "👤 Alice：貼圖🧸", url) {
		t.Fatal("expected success")
	}
	if len(got.Embeds) != 1 || got.Embeds[0].Image == nil || got.Embeds[0].Image.URL != url {
		t.Errorf("unexpected embeds: %+v", got.Embeds)
	}
}

func TestPostFile_CaptionThenMultipart(t *testing.T) {
	type call struct {
		contentType string
		body        []byte
	}
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, call{r.Header.Get("Content-Type"), body})
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	relay := NewWebhookRelay(RelayConfig{WebhookURL: srv.URL, Logger: testLogger()})
	file := &domain.FileAttachment{Name: "image.jpg", Data: []byte{1, 2, 3}}
	if !relay.PostFile(context.Background(), "👤 Alice：圖片🖼️", file) {
		t.Fatal("expected success")
	}

	if len(calls) != 2 {
		t.Fatalf("expected 2 calls (caption then file), got %d", len(calls))
	}
	if calls[0].contentType != "application/json" {
		t.Errorf("first call should be JSON caption, got %s", calls[0].contentType)
	}

	mediaType, params, err := mime.ParseMediaType(calls[1].contentType)
	if err != nil || mediaType != "multipart/form-data" {
		t.Fatalf("second call should be multipart, got %s", calls[1].contentType)
	}
	mr := multipart.NewReader(bytes.NewReader(calls[1].body), params["boundary"])
	part, err := mr.NextPart()
	if err != nil {
		t.Fatal(err)
	}
	if part.FormName() != "file" {
		t.Errorf("form field = %q, want file", part.FormName())
	}
	if part.FileName() != "image.jpg" {
		t.Errorf("file name = %q, want image.jpg", part.FileName())
	}
	data, _ := io.ReadAll(part)
	if !bytes.Equal(data, []byte{1, 2, 3}) {
		t.Errorf("unexpected file bytes: %v", data)
	}
}

func TestPostFile_CaptionFailureAbortsUpload(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	relay := NewWebhookRelay(RelayConfig{WebhookURL: srv.URL, Logger: testLogger()})
	file := &domain.FileAttachment{Name: "video.mp4", Data: []byte{9}}
	if relay.PostFile(context.Background(), "caption", file) {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Errorf("expected upload to be aborted after caption failure, got %d calls", calls)
	}
}

func TestPostText_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oops", http.StatusInternalServerError)
	}))
	defer srv.Close()

	relay := NewWebhookRelay(RelayConfig{WebhookURL: srv.URL, Logger: testLogger()})
	if relay.PostText(context.Background(), "hello") {
		t.Error("expected false for 500 response")
	}
}

func TestFileName(t *testing.T) {
	if FileName(domain.KindImage) != "image.jpg" {
		t.Error("image name mismatch")
	}
	if FileName(domain.KindVideo) != "video.mp4" {
		t.Error("video name mismatch")
	}
}
