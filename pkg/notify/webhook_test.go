package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harunnryd/tarjama/pkg/errorsx"
)

func TestWebhookPostsTranslation(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	at := time.Date(2026, 3, 6, 12, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	msg := TranslationMessage(7, "m-1", TranslationData{
		SourceLanguage: "ar",
		TargetLanguage: "en",
		SourceText:     "السلام عليكم",
		TranslatedText: "Peace be upon you",
	}, at)
	if err := NewWebhook(srv.URL, time.Second, nil).Notify(context.Background(), msg); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got["type"] != "translation" || got["room_id"] != float64(7) || got["mosque_id"] != "m-1" {
		t.Fatalf("unexpected envelope %v", got)
	}
	if got["timestamp"] != "2026-03-06T05:00:00Z" {
		t.Fatalf("timestamp must be UTC RFC3339, got %v", got["timestamp"])
	}
	data, _ := got["data"].(map[string]any)
	if data["source_text"] != "السلام عليكم" || data["translated_text"] != "Peace be upon you" || data["target_language"] != "en" {
		t.Fatalf("unexpected data %v", data)
	}
}

func TestWebhookNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()
	err := NewWebhook(srv.URL, time.Second, nil).Notify(context.Background(), ParticipantMessage(1, "m", 3, time.Now()))
	if !errorsx.HasReason(err, errorsx.ReasonNotification) {
		t.Fatalf("expected notification error, got %v", err)
	}
}

func TestWebhookTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()
	err := NewWebhook(srv.URL, 20*time.Millisecond, nil).Notify(context.Background(), ParticipantMessage(1, "m", 3, time.Now()))
	if err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestWebhookEmptyURLSkips(t *testing.T) {
	if err := NewWebhook("", 0, nil).Notify(context.Background(), ParticipantMessage(1, "m", 3, time.Now())); err != nil {
		t.Fatalf("expected skip, got %v", err)
	}
}
