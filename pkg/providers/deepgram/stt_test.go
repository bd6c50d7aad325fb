package deepgram

import (
	"testing"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"

	"github.com/harunnryd/tarjama/pkg/adapters/stt"
)

func TestModelFor(t *testing.T) {
	if got := ModelFor(Settings{}, stt.OperatingPointEnhanced); got != ModelEnhanced {
		t.Fatalf("expected %s, got %s", ModelEnhanced, got)
	}
	if got := ModelFor(Settings{}, stt.OperatingPointStandard); got != ModelStandard {
		t.Fatalf("expected %s, got %s", ModelStandard, got)
	}
	if got := ModelFor(Settings{Model: "nova-3"}, stt.OperatingPointStandard); got != "nova-3" {
		t.Fatalf("explicit model must win, got %s", got)
	}
}

func TestLiveOptions(t *testing.T) {
	cfg := stt.DefaultConfig("ar")
	opts := LiveOptions(Settings{UtteranceEndMS: 1000}, cfg)
	if opts.Language != "ar" || opts.Encoding != "linear16" || opts.SampleRate != 48000 {
		t.Fatalf("unexpected options %+v", opts)
	}
	if !opts.InterimResults || !opts.Punctuate || opts.UtteranceEndMs != "1000" {
		t.Fatalf("unexpected flags %+v", opts)
	}
}

func TestToEvent(t *testing.T) {
	mr := &msginterfaces.MessageResponse{IsFinal: true, Start: 1.5, Duration: 2}
	mr.Channel.Alternatives = []msginterfaces.Alternative{{Transcript: "السلام عليكم", Confidence: 0.8}}
	ev, ok := toEvent(mr)
	if !ok || ev.Type != stt.EventFinalTranscript || ev.Text() != "السلام عليكم" || ev.EndTime != 3.5 {
		t.Fatalf("unexpected event %+v", ev)
	}

	mr.IsFinal = false
	if ev, _ := toEvent(mr); ev.Type != stt.EventInterimTranscript {
		t.Fatalf("expected interim, got %s", ev.Type)
	}
	mr.SpeechFinal = true
	if ev, _ := toEvent(mr); ev.Type != stt.EventFinalTranscript {
		t.Fatalf("speech_final must count as final")
	}

	empty := &msginterfaces.MessageResponse{}
	if _, ok := toEvent(empty); ok {
		t.Fatalf("empty result must be skipped")
	}
}

func TestParseSettings(t *testing.T) {
	s, err := ParseSettings(map[string]any{"api_key": "k", "utterance_end_ms": "1200", "vad_events": "true"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.UtteranceEndMS != 1200 || !s.VADEvents {
		t.Fatalf("unexpected settings %+v", s)
	}
	if _, err := ParseSettings(map[string]any{"api_key": "k", "bogus": 1}); err == nil {
		t.Fatalf("expected unknown key error")
	}
}
