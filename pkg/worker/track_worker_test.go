package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/tarjama/pkg/adapters/stt"
	"github.com/harunnryd/tarjama/pkg/errorsx"
	"github.com/harunnryd/tarjama/pkg/frames"
	"github.com/harunnryd/tarjama/pkg/providers/mock"
	"github.com/harunnryd/tarjama/pkg/resilience"
	"github.com/harunnryd/tarjama/pkg/room"
	"github.com/harunnryd/tarjama/pkg/rooms/memory"
)

type recordingSink struct {
	mu        sync.Mutex
	sentences []string
	tracks    []string
	delay     time.Duration
}

func (s *recordingSink) HandleTranscription(ctx context.Context, text string, track room.Track) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentences = append(s.sentences, text)
	s.tracks = append(s.tracks, track.SID())
}

func (s *recordingSink) got() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sentences...)
}

func feed(t *testing.T, track *memory.Track, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		f := frames.NewAudioFrame(track.SID(), time.Duration(i)*10*time.Millisecond, make([]byte, 960), 48000, 1)
		if err := track.Push(context.Background(), f); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	track.End()
}

func testConfig() Config {
	return Config{STT: stt.DefaultConfig("ar"), Retry: resilience.NewRetryPolicy(1, time.Millisecond)}
}

func TestWorkerForwardsSentencesInOrder(t *testing.T) {
	script := []stt.Event{
		mock.InterimEvent("السلام"),
		mock.FinalEvent("السلام عليكم ورحمة الله."),
		mock.FinalEvent("السلام عليكم ورحمة الله."),
		mock.FinalEvent("First sentence here. Second sentence here! ok."),
		mock.FinalEvent("   "),
	}
	sttMock := mock.NewSTT(mock.STTConfig{Script: script})
	var gotCfg stt.Config
	factory := func(cfg stt.Config) stt.StreamingSTT {
		gotCfg = cfg
		return sttMock
	}
	track := memory.NewTrack("TR_audio", room.TrackKindAudio, 16)
	feed(t, track, len(script)+2)

	sink := &recordingSink{delay: 5 * time.Millisecond}
	w := New(testConfig(), track, room.Participant{Identity: "imam"}, factory, sink, nil)
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{"السلام عليكم ورحمة الله.", "First sentence here.", "Second sentence here!"}
	got := sink.got()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sentence %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if gotCfg.TrackSID != "TR_audio" || gotCfg.Participant != "imam" || gotCfg.Language != "ar" {
		t.Fatalf("unexpected stt config %+v", gotCfg)
	}
	if !gotCfg.EnablePartials || gotCfg.OperatingPoint != stt.OperatingPointEnhanced || gotCfg.MaxDelay != 2*time.Second {
		t.Fatalf("unexpected recognition profile %+v", gotCfg)
	}
	if sttMock.FramesReceived() != len(script)+2 {
		t.Fatalf("expected every frame pumped, got %d", sttMock.FramesReceived())
	}
}

func TestWorkerStartFailure(t *testing.T) {
	factory := func(cfg stt.Config) stt.StreamingSTT {
		return mock.NewSTT(mock.STTConfig{StartErr: errors.New("dial refused")})
	}
	track := memory.NewTrack("TR_1", room.TrackKindAudio, 1)
	sink := &recordingSink{}
	err := New(testConfig(), track, room.Participant{}, factory, sink, nil).Run(context.Background())
	if !errorsx.HasReason(err, errorsx.ReasonSTTConnect) {
		t.Fatalf("expected stt_connect error, got %v", err)
	}
	if len(sink.got()) != 0 {
		t.Fatalf("no sentences expected")
	}
}

func TestWorkerStreamFailureKeepsQueuedSentences(t *testing.T) {
	sttMock := mock.NewSTT(mock.STTConfig{
		Script:    []stt.Event{mock.FinalEvent("A complete sentence.")},
		FailAfter: errors.New("socket closed"),
	})
	factory := func(cfg stt.Config) stt.StreamingSTT { return sttMock }
	track := memory.NewTrack("TR_1", room.TrackKindAudio, 8)
	feed(t, track, 3)

	sink := &recordingSink{}
	err := New(testConfig(), track, room.Participant{}, factory, sink, nil).Run(context.Background())
	if !errorsx.HasReason(err, errorsx.ReasonSTTStream) {
		t.Fatalf("expected stt_stream error, got %v", err)
	}
	if got := sink.got(); len(got) != 1 || got[0] != "A complete sentence." {
		t.Fatalf("unexpected sentences %v", got)
	}
}

func TestWorkerStopsOnCancel(t *testing.T) {
	sttMock := mock.NewSTT(mock.STTConfig{})
	factory := func(cfg stt.Config) stt.StreamingSTT { return sttMock }
	track := memory.NewTrack("TR_1", room.TrackKindAudio, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(testConfig(), track, room.Participant{}, factory, &recordingSink{}, nil).Run(ctx)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean exit on cancel, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("worker did not stop after cancel")
	}
}
