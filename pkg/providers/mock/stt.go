package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/tarjama/pkg/adapters/stt"
	"github.com/harunnryd/tarjama/pkg/frames"
)

type STTConfig struct {
	// Script is emitted in order, one event per received audio frame.
	Script   []stt.Event
	StartErr error
	// FailAfter ends the stream with this error once the script is exhausted.
	FailAfter error
}

type StreamingSTT struct {
	cfg     STTConfig
	out     chan stt.Event
	mu      sync.Mutex
	started bool
	closed  bool
	next    int
	frames  int
	err     error
}

func NewSTT(cfg STTConfig) *StreamingSTT {
	return &StreamingSTT{cfg: cfg, out: make(chan stt.Event, len(cfg.Script)+1)}
}

// FinalEvent and InterimEvent build single-hypothesis script entries.
func FinalEvent(text string) stt.Event {
	return stt.Event{Type: stt.EventFinalTranscript, Alternatives: []stt.Alternative{{Text: text, Confidence: 1}}}
}

func InterimEvent(text string) stt.Event {
	return stt.Event{Type: stt.EventInterimTranscript, Alternatives: []stt.Alternative{{Text: text}}}
}

func (s *StreamingSTT) Name() string { return "mock_stt" }

func (s *StreamingSTT) Start(ctx context.Context) error {
	if s.cfg.StartErr != nil {
		return s.cfg.StartErr
	}
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

func (s *StreamingSTT) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
	s.started = false
	return nil
}

func (s *StreamingSTT) SendAudio(frame frames.AudioFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.closed {
		return stt.ErrNotStarted
	}
	s.frames++
	if s.next < len(s.cfg.Script) {
		s.out <- s.cfg.Script[s.next]
		s.next++
		return nil
	}
	if s.cfg.FailAfter != nil {
		s.err = s.cfg.FailAfter
		s.closed = true
		close(s.out)
		return s.cfg.FailAfter
	}
	return nil
}

func (s *StreamingSTT) Results() <-chan stt.Event { return s.out }

func (s *StreamingSTT) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// FramesReceived reports how many frames reached the stream.
func (s *StreamingSTT) FramesReceived() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

var _ stt.StreamingSTT = (*StreamingSTT)(nil)
