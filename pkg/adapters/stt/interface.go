package stt

import (
	"context"
	"errors"
	"time"

	"github.com/harunnryd/tarjama/pkg/frames"
)

var ErrNotStarted = errors.New("stt stream not started")

// StreamingSTT defines the contract for any STT vendor implementation.
type StreamingSTT interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Start opens the recognition stream.
	Start(ctx context.Context) error
	// Close shuts down the stream; Results is closed afterwards.
	Close() error
	// SendAudio pushes one audio frame into the stream.
	SendAudio(frame frames.AudioFrame) error
	// Results returns the recognition events. It is closed when the stream ends.
	Results() <-chan Event
	// Err reports why the stream ended, nil for a clean end.
	Err() error
}

// Factory opens a fresh stream per track.
type Factory func(cfg Config) StreamingSTT

type EventType int

const (
	EventInterimTranscript EventType = iota
	EventFinalTranscript
)

func (t EventType) String() string {
	switch t {
	case EventFinalTranscript:
		return "FINAL_TRANSCRIPT"
	case EventInterimTranscript:
		return "INTERIM_TRANSCRIPT"
	}
	return "UNKNOWN"
}

type Alternative struct {
	Text       string
	Confidence float64
	Language   string
}

type Event struct {
	Type         EventType
	Alternatives []Alternative
	StartTime    float64
	EndTime      float64
}

// Text returns the first hypothesis, or "" when there is none.
func (e Event) Text() string {
	if len(e.Alternatives) == 0 {
		return ""
	}
	return e.Alternatives[0].Text
}

type PunctuationConfig struct {
	Enabled     bool
	Sensitivity float64
}

// Config contains vendor-agnostic STT configuration.
type Config struct {
	TrackSID       string
	Participant    string
	Language       string
	OperatingPoint string
	EnablePartials bool
	MaxDelay       time.Duration
	Punctuation    PunctuationConfig
	SampleRate     int
	Channels       int
}

const (
	OperatingPointStandard = "standard"
	OperatingPointEnhanced = "enhanced"
)

// DefaultConfig is the live-caption profile for language.
func DefaultConfig(language string) Config {
	return Config{
		Language:       language,
		OperatingPoint: OperatingPointEnhanced,
		EnablePartials: true,
		MaxDelay:       2 * time.Second,
		Punctuation:    PunctuationConfig{Enabled: true, Sensitivity: 0.5},
		SampleRate:     48000,
		Channels:       1,
	}
}
