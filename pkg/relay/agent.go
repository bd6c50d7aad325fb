package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/harunnryd/tarjama/pkg/adapters/stt"
	"github.com/harunnryd/tarjama/pkg/errorsx"
	"github.com/harunnryd/tarjama/pkg/languages"
	"github.com/harunnryd/tarjama/pkg/llm"
	"github.com/harunnryd/tarjama/pkg/logging"
	"github.com/harunnryd/tarjama/pkg/metrics"
	"github.com/harunnryd/tarjama/pkg/notify"
	"github.com/harunnryd/tarjama/pkg/redact"
	"github.com/harunnryd/tarjama/pkg/room"
	"github.com/harunnryd/tarjama/pkg/router"
	"github.com/harunnryd/tarjama/pkg/runner"
	"github.com/harunnryd/tarjama/pkg/session"
	"github.com/harunnryd/tarjama/pkg/store"
	"github.com/harunnryd/tarjama/pkg/translation"
	"github.com/harunnryd/tarjama/pkg/worker"
)

// NewLogger builds the process logger and applies the log privacy setting.
func NewLogger(cfg Config) *slog.Logger {
	redact.SetEnabled(cfg.Privacy.RedactLogs)
	return logging.InitLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
}

// Agent serves one joined room: it owns the session coordinator, the event
// router and one transcription worker per audio track.
type Agent struct {
	cfg        Config
	room       room.Room
	coord      *session.Coordinator
	sttFactory stt.Factory
	adapter    llm.Adapter
	base       *slog.Logger
	logger     *slog.Logger
	tasks      *runner.TaskGroup
	obs        metrics.Observer
	closeObs   func() error

	mu       sync.Mutex
	finished int
	changed  chan struct{}
}

func NewAgent(cfg Config, rm room.Room, svc *session.Service, sttFactory stt.Factory, adapter llm.Adapter, logger *slog.Logger) *Agent {
	a := &Agent{
		cfg:        cfg,
		room:       rm,
		sttFactory: sttFactory,
		adapter:    adapter,
		base:       logger,
		changed:    make(chan struct{}),
		obs:        metrics.Nop{},
		closeObs:   func() error { return nil },
		logger:     logging.NewComponentLogger(logger, "agent").With(slog.String("room", rm.Name())),
	}
	a.coord = session.NewCoordinator(svc, rm.Name(), a.newTranslator)
	return a
}

// Assemble builds the vendor adapters named in cfg and returns an agent for rm
// persisting through st.
func Assemble(cfg Config, reg *ProviderRegistry, st store.Store, rm room.Room, logger *slog.Logger) (*Agent, error) {
	factory, err := reg.BuildSTTFactory(cfg.Vendors.STT.Provider, cfg, logging.NewComponentLogger(logger, "stt"))
	if err != nil {
		return nil, err
	}
	adapter, err := reg.BuildGuardedLLM(cfg, logger)
	if err != nil {
		return nil, err
	}
	notifier := notify.Notifier(notify.Nop{})
	if cfg.Notify.URL != "" {
		notifier = notify.NewWebhook(cfg.Notify.URL, time.Duration(cfg.Notify.TimeoutMS)*time.Millisecond, logger)
	}
	obs, closeObs, err := OpenMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}
	svc := session.NewService(st, notifier, logger)
	a := NewAgent(cfg, rm, svc, factory, adapter, logger)
	a.SetObserver(obs, closeObs)
	return a, nil
}

// OpenMetrics builds the observer chain for cfg: JSON lines, sampled, written
// asynchronously. The returned func flushes and closes it.
func OpenMetrics(cfg MetricsConfig) (metrics.Observer, func() error, error) {
	if cfg.Path == "" {
		return metrics.Nop{}, func() error { return nil }, nil
	}
	var (
		w    io.Writer = os.Stderr
		file *os.File
	)
	if cfg.Path != "-" {
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open metrics file: %w", err)
		}
		w, file = f, f
	}
	async := metrics.NewAsyncObserver(metrics.NewSamplingObserver(metrics.NewJSONLObserver(w), cfg.SampleRate), cfg.Buffer)
	return async, func() error {
		async.Close()
		if file != nil {
			return file.Close()
		}
		return nil
	}, nil
}

// SetObserver replaces the metrics observer; closeFn runs at the end of Drain.
func (a *Agent) SetObserver(obs metrics.Observer, closeFn func() error) {
	if obs == nil {
		obs = metrics.Nop{}
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	a.obs, a.closeObs = obs, closeFn
}

func (a *Agent) Coordinator() *session.Coordinator { return a.coord }

// Start loads the room configuration, opens the session and begins routing
// room events. A room without configuration is an error.
func (a *Agent) Start(ctx context.Context) error {
	if err := a.coord.Initialize(ctx); err != nil {
		return err
	}
	if err := router.RegisterRPC(a.room); err != nil {
		return fmt.Errorf("register rpc: %w", err)
	}
	a.tasks = runner.NewTaskGroup(ctx, a.base)
	rt := router.New(a.room, a.tasks, a.coord, a.newWorker, a.base)
	a.tasks.Go("router", rt.Run)
	a.logger.Info("agent_started",
		slog.String("stt", a.cfg.Vendors.STT.Provider),
		slog.String("llm", a.adapter.Name()),
	)
	return nil
}

// Wait blocks until the room has closed and every track worker has returned.
func (a *Agent) Wait(ctx context.Context) error {
	if a.tasks == nil {
		return nil
	}
	return a.tasks.Wait(ctx)
}

// WaitTracks blocks until n track workers have returned.
func (a *Agent) WaitTracks(ctx context.Context, n int) error {
	for {
		a.mu.Lock()
		if a.finished >= n {
			a.mu.Unlock()
			return nil
		}
		changed := a.changed
		a.mu.Unlock()
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (a *Agent) trackFinished() {
	a.mu.Lock()
	a.finished++
	close(a.changed)
	a.changed = make(chan struct{})
	a.mu.Unlock()
}

// Drain stops the router and track workers, then completes the session so no
// transcript lands in a session that is already closed.
func (a *Agent) Drain(ctx context.Context) error {
	var errs []error
	if a.tasks != nil {
		a.tasks.Cancel()
		waitCtx, cancel := workerDeadline(ctx)
		err := a.tasks.Wait(waitCtx)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("wait tasks: %w", err))
		}
	}
	if err := a.coord.StopSession(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop session: %w", err))
	}
	if err := a.closeObs(); err != nil {
		errs = append(errs, fmt.Errorf("close metrics: %w", err))
	}
	a.logger.Info("agent_drained", slog.String("state", a.coord.State().String()))
	return errors.Join(errs...)
}

// workerDeadline leaves half of ctx's remaining time for completing the
// session.
func workerDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, time.Now().Add(time.Until(deadline)/2))
}

func (a *Agent) newTranslator(rc store.RoomConfig) session.Translator {
	inner := translation.New(a.cfg.TranslationFor(rc.SourceLanguage, rc.TargetLanguage), a.adapter, a.room, a.base)
	return timedTranslator{inner: inner, agent: a}
}

type timedTranslator struct {
	inner session.Translator
	agent *Agent
}

func (t timedTranslator) Translate(ctx context.Context, text, trackSID string) string {
	start := time.Now()
	out := t.inner.Translate(ctx, text, trackSID)
	t.agent.obs.Record(metrics.Event{
		Name:  metrics.TranslationLatency,
		Time:  start,
		Value: metrics.Since(start),
		Tags: map[string]string{
			"room":      t.agent.room.Name(),
			"track_sid": trackSID,
			"unchanged": strconv.FormatBool(out == text),
		},
	})
	return out
}

func (a *Agent) newWorker(track room.Track, participant room.Participant) router.Worker {
	language := languages.DefaultSource
	if rc := a.coord.RoomConfig(); rc != nil {
		language = rc.SourceLanguage
	}
	w := worker.New(worker.Config{
		STT:       a.cfg.RecognitionConfig(language),
		QueueSize: a.cfg.Worker.QueueSize,
		Retry:     a.cfg.ConnectRetry(),
	}, track, participant, a.sttFactory, a.coord, a.base)
	return trackedWorker{inner: w, agent: a, trackSID: track.SID()}
}

type trackedWorker struct {
	inner    router.Worker
	agent    *Agent
	trackSID string
}

func (w trackedWorker) Run(ctx context.Context) error {
	start := time.Now()
	err := w.inner.Run(ctx)
	reason := "ok"
	if err != nil {
		reason = string(errorsx.Reason(err))
	}
	w.agent.obs.Record(metrics.Event{
		Name:  metrics.TrackDuration,
		Time:  start,
		Value: metrics.Since(start),
		Tags: map[string]string{
			"room":      w.agent.room.Name(),
			"track_sid": w.trackSID,
			"reason":    reason,
		},
	})
	w.agent.trackFinished()
	return err
}
