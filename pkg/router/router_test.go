package router

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harunnryd/tarjama/pkg/room"
	"github.com/harunnryd/tarjama/pkg/rooms/memory"
	"github.com/harunnryd/tarjama/pkg/runner"
)

type fakeWorker struct {
	started chan string
	sid     string
}

func (w *fakeWorker) Run(ctx context.Context) error {
	w.started <- w.sid
	<-ctx.Done()
	return nil
}

type fakeCounter struct {
	mu     sync.Mutex
	counts []int
	seen   chan struct{}
}

func (c *fakeCounter) UpdateParticipantCount(ctx context.Context, count int) {
	c.mu.Lock()
	c.counts = append(c.counts, count)
	c.mu.Unlock()
	c.seen <- struct{}{}
}

func setup(t *testing.T) (*memory.Room, *runner.TaskGroup, *Router, chan string, *fakeCounter) {
	t.Helper()
	rm := memory.New("masjid-1", "agent")
	tasks := runner.NewTaskGroup(context.Background(), nil)
	started := make(chan string, 8)
	counter := &fakeCounter{seen: make(chan struct{}, 8)}
	r := New(rm, tasks, counter, func(track room.Track, p room.Participant) Worker {
		return &fakeWorker{started: started, sid: track.SID()}
	}, nil)
	t.Cleanup(func() {
		tasks.Cancel()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = tasks.Wait(ctx)
	})
	return rm, tasks, r, started, counter
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting")
	}
	var zero T
	return zero
}

func TestAudioTracksSpawnWorkers(t *testing.T) {
	rm, tasks, r, started, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	imam := room.Participant{SID: "PA_1", Identity: "imam"}
	rm.PublishTrack(imam, "TR_video", room.TrackKindVideo)
	rm.PublishTrack(imam, "TR_audio", room.TrackKindAudio)

	if sid := waitFor(t, started); sid != "TR_audio" {
		t.Fatalf("expected audio worker, got %s", sid)
	}
	select {
	case sid := <-started:
		t.Fatalf("unexpected worker for %s", sid)
	case <-time.After(20 * time.Millisecond):
	}
	if tasks.Running() != 1 {
		t.Fatalf("expected one running worker, got %d", tasks.Running())
	}

	rm.Close()
	if err := waitFor(t, done); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestParticipantCountIncludesAgent(t *testing.T) {
	rm, _, r, _, counter := setup(t)
	ctx := context.Background()

	rm.Join(room.Participant{Identity: "a"})
	r.Dispatch(ctx, waitFor(t, rm.Events()))
	waitFor(t, counter.seen)

	rm.Join(room.Participant{Identity: "b"})
	r.Dispatch(ctx, waitFor(t, rm.Events()))
	waitFor(t, counter.seen)

	rm.Leave("a")
	r.Dispatch(ctx, waitFor(t, rm.Events()))
	waitFor(t, counter.seen)

	counter.mu.Lock()
	defer counter.mu.Unlock()
	want := []int{2, 3, 2}
	for i, c := range want {
		if counter.counts[i] != c {
			t.Fatalf("expected counts %v, got %v", want, counter.counts)
		}
	}
}

func TestLanguagesRPC(t *testing.T) {
	rm := memory.New("masjid-1", "agent")
	if err := RegisterRPC(rm); err != nil {
		t.Fatalf("register: %v", err)
	}
	out, err := rm.Call(context.Background(), MethodLanguages, "")
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	var langs []struct {
		Code string `json:"code"`
		Name string `json:"name"`
		Flag string `json:"flag"`
	}
	if err := json.Unmarshal([]byte(out), &langs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(langs) == 0 || langs[0].Code != "ar" || langs[0].Flag == "" {
		t.Fatalf("unexpected languages %+v", langs)
	}
	if err := RegisterRPC(rm); err == nil {
		t.Fatalf("duplicate registration should fail")
	}
}

type countingCounter struct{ calls atomic.Int64 }

func (c *countingCounter) UpdateParticipantCount(ctx context.Context, count int) { c.calls.Add(1) }

func TestJoinBurstDoesNotStallRouting(t *testing.T) {
	rm := memory.New("masjid-1", "agent")
	tasks := runner.NewTaskGroup(context.Background(), nil)
	counter := &countingCounter{}
	r := New(rm, tasks, counter, func(track room.Track, p room.Participant) Worker {
		return &fakeWorker{started: make(chan string, 1), sid: track.SID()}
	}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	joined := make(chan struct{})
	go func() {
		defer close(joined)
		for i := 0; i < 5000; i++ {
			rm.Join(room.Participant{Identity: "p" + strconv.Itoa(i)})
		}
	}()
	select {
	case <-joined:
	case <-time.After(5 * time.Second):
		t.Fatalf("joins stalled behind event routing")
	}
	rm.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("router did not stop after close")
	}
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := tasks.Wait(waitCtx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if n := counter.calls.Load(); n != 5000 {
		t.Fatalf("expected 5000 count updates, got %d", n)
	}
	if got := len(rm.RemoteParticipants()); got != 5000 {
		t.Fatalf("expected 5000 participants, got %d", got)
	}
}
