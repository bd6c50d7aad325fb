package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrDrainTimeout   = errors.New("drain timeout")
	ErrAlreadyStarted = errors.New("runner already started")
)

// LifecycleRunner holds the process open until its context ends or Stop is
// called, then drains exactly once within the shutdown timeout.
type LifecycleRunner struct {
	state   atomic.Int32
	stopCh  chan struct{}
	stopped sync.Once
	drained sync.Once
	drainer Drainer
	hooks   Hooks
	timeout time.Duration
	banner  io.Writer
	err     error
}

func NewLifecycleRunner(drainer Drainer, hooks Hooks, timeout time.Duration) *LifecycleRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LifecycleRunner{
		stopCh:  make(chan struct{}),
		drainer: drainer,
		hooks:   hooks,
		timeout: timeout,
		banner:  os.Stdout,
	}
}

// SetBannerOutput redirects the startup banner; nil disables it.
func (r *LifecycleRunner) SetBannerOutput(w io.Writer) {
	r.banner = w
}

func (r *LifecycleRunner) Run(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateNew), int32(StateStarting)) {
		return ErrAlreadyStarted
	}
	PrintBanner(r.banner)
	if r.hooks.OnStart != nil {
		r.hooks.OnStart()
	}
	r.state.CompareAndSwap(int32(StateStarting), int32(StateRunning))
	select {
	case <-ctx.Done():
	case <-r.stopCh:
	}
	return r.drain()
}

// Stop releases Run and returns once draining has finished. It may be called
// from any goroutine, before or after Run.
func (r *LifecycleRunner) Stop() error {
	r.stopped.Do(func() { close(r.stopCh) })
	return r.drain()
}

func (r *LifecycleRunner) State() State {
	return State(r.state.Load())
}

func (r *LifecycleRunner) drain() error {
	r.drained.Do(func() {
		r.state.Store(int32(StateDraining))
		if r.drainer != nil {
			r.err = r.drainWithin()
		}
		if r.hooks.OnStop != nil {
			r.hooks.OnStop()
		}
		r.state.Store(int32(StateStopped))
	})
	return r.err
}

func (r *LifecycleRunner) drainWithin() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.drainer.Drain(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			return errors.Join(errors.New("drain failed"), err)
		}
		return nil
	case <-ctx.Done():
		return ErrDrainTimeout
	}
}
