// Package notify posts session events to the external websocket logger.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/harunnryd/tarjama/pkg/errorsx"
	"github.com/harunnryd/tarjama/pkg/logging"
)

const (
	TypeTranslation       = "translation"
	TypeParticipantUpdate = "participant_update"

	DefaultTimeout = 5 * time.Second
)

type Message struct {
	Type      string `json:"type"`
	RoomID    int64  `json:"room_id"`
	MosqueID  string `json:"mosque_id"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

type TranslationData struct {
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	SourceText     string `json:"source_text"`
	TranslatedText string `json:"translated_text"`
}

type ParticipantData struct {
	Count int `json:"count"`
}

func TranslationMessage(roomID int64, mosqueID string, data TranslationData, at time.Time) Message {
	return Message{Type: TypeTranslation, RoomID: roomID, MosqueID: mosqueID, Data: data, Timestamp: at.UTC().Format(time.RFC3339)}
}

func ParticipantMessage(roomID int64, mosqueID string, count int, at time.Time) Message {
	return Message{Type: TypeParticipantUpdate, RoomID: roomID, MosqueID: mosqueID, Data: ParticipantData{Count: count}, Timestamp: at.UTC().Format(time.RFC3339)}
}

// Notifier delivers one message; callers log and ignore the error.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

type Webhook struct {
	URL    string
	Client *http.Client
	logger *slog.Logger
}

func NewWebhook(url string, timeout time.Duration, logger *slog.Logger) *Webhook {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Webhook{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
		logger: logging.NewComponentLogger(logger, "notify"),
	}
}

func (w *Webhook) Notify(ctx context.Context, msg Message) error {
	if w.URL == "" {
		w.logger.Debug("notification_skipped", slog.String("type", msg.Type))
		return nil
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonNotification)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonNotification)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.Client.Do(req)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonNotification)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errorsx.Errorf(errorsx.ReasonNotification, "webhook status %d: %s", resp.StatusCode, bytes.TrimSpace(b))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	w.logger.Debug("notification_sent", slog.String("type", msg.Type), slog.Int64("room_id", msg.RoomID))
	return nil
}

// Nop drops every message.
type Nop struct{}

func (Nop) Notify(ctx context.Context, msg Message) error { return nil }

var (
	_ Notifier = (*Webhook)(nil)
	_ Notifier = Nop{}
)
