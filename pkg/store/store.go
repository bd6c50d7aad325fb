// Package store defines the persistence contract for rooms, sessions and
// transcripts.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrSessionExists = errors.New("store: active session already exists")
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// RoomConfig is keyed by the media room name.
type RoomConfig struct {
	ID             int64
	Name           string
	Title          string
	MosqueID       string
	SourceLanguage string
	TargetLanguage string
}

type Session struct {
	ID              string
	RoomID          int64
	MosqueID        string
	Status          SessionStatus
	LoggingEnabled  bool
	TranscriptCount int
	StartedAt       time.Time
	EndedAt         *time.Time
	UpdatedAt       time.Time
}

type Transcript struct {
	ID             int64
	RoomID         int64
	SessionID      string
	SourceText     string
	TranslatedText string
	Timestamp      time.Time
}

// Store is what the session coordinator needs. Implementations must be safe
// for concurrent use by many rooms.
type Store interface {
	GetRoomConfig(ctx context.Context, name string) (RoomConfig, error)
	GetActiveSession(ctx context.Context, roomID int64) (Session, error)
	// CreateSession returns ErrSessionExists when the room already has an
	// active session.
	CreateSession(ctx context.Context, roomID int64, mosqueID string) (Session, error)
	CompleteSession(ctx context.Context, sessionID string) error
	InsertTranscript(ctx context.Context, t Transcript) error
	IncrementTranscriptCount(ctx context.Context, sessionID string) error
	// IsLoggingEnabled reports the flag of the room's active session, false
	// when none is active.
	IsLoggingEnabled(ctx context.Context, roomID int64) (bool, error)
	Close() error
}

// Admin adds the operator operations used by the CLI and tests.
type Admin interface {
	Store
	UpsertRoomConfig(ctx context.Context, cfg RoomConfig) (RoomConfig, error)
	GetSession(ctx context.Context, sessionID string) (Session, error)
	SetLoggingEnabled(ctx context.Context, roomID int64, enabled bool) error
	ListTranscripts(ctx context.Context, sessionID string, limit int) ([]Transcript, error)
}
