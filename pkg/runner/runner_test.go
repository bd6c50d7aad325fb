package runner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLifecycleDrainsOnCancel(t *testing.T) {
	drained := false
	r := NewLifecycleRunner(DrainFunc(func(ctx context.Context) error {
		drained = true
		return nil
	}), Hooks{}, time.Second)
	r.SetBannerOutput(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !drained || r.State() != StateStopped {
		t.Fatalf("expected drained and stopped, got drained=%v state=%s", drained, r.State())
	}
	if err := r.Run(context.Background()); err == nil {
		t.Fatalf("runner must not restart")
	}
}

func TestLifecycleDrainTimeout(t *testing.T) {
	r := NewLifecycleRunner(DrainFunc(func(ctx context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	}), Hooks{}, 20*time.Millisecond)
	if err := r.Stop(); !errors.Is(err, ErrDrainTimeout) {
		t.Fatalf("expected drain timeout, got %v", err)
	}
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	if !bytes.Contains(buf.Bytes(), []byte("Version: "+Version)) {
		t.Fatalf("unexpected banner %q", buf.String())
	}
}

func TestTaskGroupRecoversPanics(t *testing.T) {
	g := NewTaskGroup(context.Background(), nil)
	ok := g.Go("ok", func(ctx context.Context) error { return nil })
	bad := g.Go("bad", func(ctx context.Context) error { panic("boom") })
	failing := g.Go("failing", func(ctx context.Context) error { return errors.New("stt closed") })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	<-ok.Done()
	if ok.Err() != nil {
		t.Fatalf("unexpected error %v", ok.Err())
	}
	if bad.Err() == nil || failing.Err() == nil {
		t.Fatalf("expected errors from bad and failing tasks")
	}
	if g.Failed() != 2 || g.Running() != 0 {
		t.Fatalf("unexpected counters failed=%d running=%d", g.Failed(), g.Running())
	}
}

func TestTaskGroupCancel(t *testing.T) {
	g := NewTaskGroup(context.Background(), nil)
	task := g.Go("blocked", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	if task.Err() != nil {
		t.Fatalf("Err must be nil while running")
	}
	g.Cancel()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("wait after cancel: %v", err)
	}
	select {
	case <-task.Done():
	default:
		t.Fatalf("task should be done")
	}
}

func TestLifecycleStopFromStartHook(t *testing.T) {
	var r *LifecycleRunner
	drains := 0
	r = NewLifecycleRunner(DrainFunc(func(ctx context.Context) error {
		drains++
		return errors.New("session still open")
	}), Hooks{OnStart: func() { go r.Stop() }}, time.Second)
	r.SetBannerOutput(nil)

	err := r.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "session still open") {
		t.Fatalf("expected drain error, got %v", err)
	}
	if drains != 1 || r.State() != StateStopped {
		t.Fatalf("expected one drain and stopped state, got drains=%d state=%s", drains, r.State())
	}
}
