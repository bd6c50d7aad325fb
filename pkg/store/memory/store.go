// Package memory is an in-process store.Admin.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harunnryd/tarjama/pkg/store"
)

type Store struct {
	mu          sync.Mutex
	now         func() time.Time
	rooms       map[string]store.RoomConfig
	sessions    map[string]*store.Session
	transcripts []store.Transcript
	nextRoomID  int64
	nextRowID   int64
}

func New() *Store {
	return &Store{
		now:      func() time.Time { return time.Now().UTC() },
		rooms:    make(map[string]store.RoomConfig),
		sessions: make(map[string]*store.Session),
	}
}

func (s *Store) GetRoomConfig(ctx context.Context, name string) (store.RoomConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.rooms[name]
	if !ok {
		return store.RoomConfig{}, store.ErrNotFound
	}
	return cfg, nil
}

func (s *Store) UpsertRoomConfig(ctx context.Context, cfg store.RoomConfig) (store.RoomConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.rooms[cfg.Name]; ok {
		cfg.ID = existing.ID
	} else if cfg.ID == 0 {
		s.nextRoomID++
		cfg.ID = s.nextRoomID
	}
	s.rooms[cfg.Name] = cfg
	return cfg, nil
}

func (s *Store) activeLocked(roomID int64) *store.Session {
	for _, sess := range s.sessions {
		if sess.RoomID == roomID && sess.Status == store.SessionActive {
			return sess
		}
	}
	return nil
}

func (s *Store) GetActiveSession(ctx context.Context, roomID int64) (store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.activeLocked(roomID); sess != nil {
		return *sess, nil
	}
	return store.Session{}, store.ErrNotFound
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return store.Session{}, store.ErrNotFound
	}
	return *sess, nil
}

func (s *Store) CreateSession(ctx context.Context, roomID int64, mosqueID string) (store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeLocked(roomID) != nil {
		return store.Session{}, store.ErrSessionExists
	}
	now := s.now()
	sess := &store.Session{
		ID:             uuid.NewString(),
		RoomID:         roomID,
		MosqueID:       mosqueID,
		Status:         store.SessionActive,
		LoggingEnabled: true,
		StartedAt:      now,
		UpdatedAt:      now,
	}
	s.sessions[sess.ID] = sess
	return *sess, nil
}

func (s *Store) CompleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	now := s.now()
	sess.Status = store.SessionCompleted
	sess.EndedAt = &now
	sess.UpdatedAt = now
	return nil
}

func (s *Store) InsertTranscript(ctx context.Context, t store.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRowID++
	t.ID = s.nextRowID
	if t.Timestamp.IsZero() {
		t.Timestamp = s.now()
	}
	s.transcripts = append(s.transcripts, t)
	return nil
}

func (s *Store) IncrementTranscriptCount(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	sess.TranscriptCount++
	sess.UpdatedAt = s.now()
	return nil
}

func (s *Store) IsLoggingEnabled(ctx context.Context, roomID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.activeLocked(roomID); sess != nil {
		return sess.LoggingEnabled, nil
	}
	return false, nil
}

func (s *Store) SetLoggingEnabled(ctx context.Context, roomID int64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.activeLocked(roomID)
	if sess == nil {
		return store.ErrNotFound
	}
	sess.LoggingEnabled = enabled
	sess.UpdatedAt = s.now()
	return nil
}

func (s *Store) ListTranscripts(ctx context.Context, sessionID string, limit int) ([]store.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Transcript
	for _, t := range s.transcripts {
		if t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Sessions returns every session the store has created, oldest first.
func (s *Store) Sessions() []store.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (s *Store) Close() error { return nil }

var _ store.Admin = (*Store)(nil)
