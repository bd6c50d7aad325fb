package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/harunnryd/tarjama/pkg/errorsx"
	"github.com/harunnryd/tarjama/pkg/languages"
	"github.com/harunnryd/tarjama/pkg/notify"
	"github.com/harunnryd/tarjama/pkg/redact"
	"github.com/harunnryd/tarjama/pkg/room"
	"github.com/harunnryd/tarjama/pkg/store"
)

var (
	ErrConfigurationMissing = errors.New("room configuration missing")
	ErrNotInitialized       = errors.New("coordinator not initialized")
)

type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateActive
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Translator turns a sentence into its translation and publishes the caption.
type Translator interface {
	Translate(ctx context.Context, text, trackSID string) string
}

// TranslatorFactory builds the translator for a room once its config is known.
type TranslatorFactory func(cfg store.RoomConfig) Translator

// Coordinator owns one room's session. HandleTranscription calls are
// serialized so the translation window and transcript counter see one
// sentence at a time.
type Coordinator struct {
	svc           *Service
	roomName      string
	newTranslator TranslatorFactory
	logger        *slog.Logger

	handleMu sync.Mutex

	mu         sync.RWMutex
	state      State
	roomCfg    *store.RoomConfig
	translator Translator

	participants atomic.Int64
}

func NewCoordinator(svc *Service, roomName string, newTranslator TranslatorFactory) *Coordinator {
	return &Coordinator{
		svc:           svc,
		roomName:      roomName,
		newTranslator: newTranslator,
		logger:        svc.Logger.With(slog.String("room", roomName)),
	}
}

func (c *Coordinator) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateActive {
		c.mu.Unlock()
		return nil
	}
	c.state = StateInitializing
	c.mu.Unlock()

	cfg, err := c.svc.Store.GetRoomConfig(ctx, c.roomName)
	if err != nil {
		c.setState(StateFailed)
		if errors.Is(err, store.ErrNotFound) {
			c.logger.Error("room_config_missing")
			return errorsx.Wrap(fmt.Errorf("%w: %s", ErrConfigurationMissing, c.roomName), errorsx.ReasonConfigMissing)
		}
		c.logger.Error("room_config_load_failed", slog.String("error", err.Error()))
		return errorsx.Wrap(err, errorsx.ReasonPersistence)
	}
	if cfg.SourceLanguage == "" {
		cfg.SourceLanguage = languages.DefaultSource
	}
	if cfg.TargetLanguage == "" {
		cfg.TargetLanguage = languages.DefaultTarget
	}

	translator := c.newTranslator(cfg)
	c.mu.Lock()
	c.roomCfg = &cfg
	c.translator = translator
	c.mu.Unlock()

	if _, err := c.StartSession(ctx); err != nil {
		c.logger.Warn("session_start_failed", slog.String("error", err.Error()))
	}
	c.setState(StateActive)
	c.logger.Info("room_initialized",
		slog.Int64("room_id", cfg.ID),
		slog.String("source_language", cfg.SourceLanguage),
		slog.String("target_language", cfg.TargetLanguage),
	)
	return nil
}

// StartSession adopts the room's active session or creates one.
func (c *Coordinator) StartSession(ctx context.Context) (string, error) {
	cfg := c.RoomConfig()
	if cfg == nil {
		return "", ErrNotInitialized
	}
	sess, err := c.svc.Store.GetActiveSession(ctx, cfg.ID)
	resumed := err == nil
	if errors.Is(err, store.ErrNotFound) {
		sess, err = c.svc.Store.CreateSession(ctx, cfg.ID, cfg.MosqueID)
		if errors.Is(err, store.ErrSessionExists) {
			sess, err = c.svc.Store.GetActiveSession(ctx, cfg.ID)
			resumed = err == nil
		}
	}
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonPersistence)
	}

	c.svc.Sessions.Put(c.roomName, Descriptor{
		SessionID: sess.ID,
		RoomID:    sess.RoomID,
		MosqueID:  sess.MosqueID,
		StartedAt: sess.StartedAt,
	})
	c.logger.Info("session_started", slog.String("session_id", sess.ID), slog.Bool("resumed", resumed))
	return sess.ID, nil
}

// HandleTranscription translates text and, when the session logs, stores
// and announces the pair. Failures past translation are logged only.
func (c *Coordinator) HandleTranscription(ctx context.Context, text string, track room.Track) {
	c.handleMu.Lock()
	defer c.handleMu.Unlock()

	c.mu.RLock()
	state, cfg, translator := c.state, c.roomCfg, c.translator
	c.mu.RUnlock()
	if state != StateActive || cfg == nil || translator == nil {
		c.logger.Warn("transcription_dropped", slog.String("state", state.String()))
		return
	}
	desc, ok := c.svc.Sessions.Get(c.roomName)
	if !ok {
		c.logger.Warn("transcription_dropped", slog.String("state", state.String()), slog.String("cause", "no_session"))
		return
	}

	logging, err := c.svc.Store.IsLoggingEnabled(ctx, cfg.ID)
	if err != nil {
		c.logger.Warn("logging_flag_unavailable", slog.String("error", err.Error()))
		logging = false
	}

	translated := translator.Translate(ctx, text, track.SID())
	c.logger.Info("sentence_translated",
		slog.String("track_sid", track.SID()),
		redact.String("source", text),
		redact.String("translation", translated),
	)
	if !logging {
		return
	}

	record := store.Transcript{
		RoomID:         cfg.ID,
		SessionID:      desc.SessionID,
		SourceText:     text,
		TranslatedText: translated,
		Timestamp:      c.svc.Now(),
	}
	if err := c.svc.Store.InsertTranscript(ctx, record); err != nil {
		c.logger.Warn("transcript_persist_failed",
			slog.String("reason", string(errorsx.ReasonPersistence)),
			slog.String("error", err.Error()),
		)
	} else if err := c.svc.Store.IncrementTranscriptCount(ctx, desc.SessionID); err != nil {
		c.logger.Warn("transcript_count_failed",
			slog.String("reason", string(errorsx.ReasonPersistence)),
			slog.String("error", err.Error()),
		)
	}

	msg := notify.TranslationMessage(cfg.ID, cfg.MosqueID, notify.TranslationData{
		SourceLanguage: cfg.SourceLanguage,
		TargetLanguage: cfg.TargetLanguage,
		SourceText:     text,
		TranslatedText: translated,
	}, c.svc.Now())
	if err := c.svc.Notifier.Notify(ctx, msg); err != nil {
		c.logger.Warn("notification_failed", slog.String("type", msg.Type), slog.String("error", err.Error()))
	}
}

// StopSession completes the active session, if any. Safe to call repeatedly.
func (c *Coordinator) StopSession(ctx context.Context) error {
	desc, ok := c.svc.Sessions.Get(c.roomName)
	if !ok {
		c.logger.Info("session_stop_skipped")
		c.stopIfActive()
		return nil
	}
	err := c.svc.Store.CompleteSession(ctx, desc.SessionID)
	c.svc.Sessions.Remove(c.roomName)
	c.stopIfActive()
	if err != nil {
		c.logger.Warn("session_complete_failed", slog.String("session_id", desc.SessionID), slog.String("error", err.Error()))
		return errorsx.Wrap(err, errorsx.ReasonPersistence)
	}
	c.logger.Info("session_stopped", slog.String("session_id", desc.SessionID))
	return nil
}

// UpdateParticipantCount pushes the current head count to the notifier.
func (c *Coordinator) UpdateParticipantCount(ctx context.Context, count int) {
	c.participants.Store(int64(count))
	cfg := c.RoomConfig()
	if cfg == nil {
		c.logger.Debug("participant_update_skipped", slog.Int("count", count))
		return
	}
	if err := c.svc.Notifier.Notify(ctx, notify.ParticipantMessage(cfg.ID, cfg.MosqueID, count, c.svc.Now())); err != nil {
		c.logger.Warn("notification_failed", slog.String("type", notify.TypeParticipantUpdate), slog.String("error", err.Error()))
		return
	}
	c.logger.Debug("participant_count_updated", slog.Int("count", count))
}

func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// RoomConfig returns nil until Initialize has loaded it.
func (c *Coordinator) RoomConfig() *store.RoomConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.roomCfg == nil {
		return nil
	}
	cfg := *c.roomCfg
	return &cfg
}

func (c *Coordinator) SessionID() string {
	d, _ := c.svc.Sessions.Get(c.roomName)
	return d.SessionID
}

func (c *Coordinator) ParticipantCount() int {
	return int(c.participants.Load())
}

func (c *Coordinator) RoomName() string { return c.roomName }

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Coordinator) stopIfActive() {
	c.mu.Lock()
	if c.state == StateActive {
		c.state = StateStopped
	}
	c.mu.Unlock()
}
