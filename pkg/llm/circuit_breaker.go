package llm

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/tarjama/pkg/errorsx"
	"github.com/harunnryd/tarjama/pkg/logging"
	"github.com/harunnryd/tarjama/pkg/resilience"
)

// CircuitBreakerAdapter guards an Adapter so a throttled vendor is not
// hammered while it recovers. Denied calls fail fast with
// ReasonLLMCircuitOpen.
type CircuitBreakerAdapter struct {
	inner   Adapter
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger

	mu   sync.Mutex
	last resilience.BreakerState
}

func NewCircuitBreakerAdapter(inner Adapter, breaker *resilience.CircuitBreaker, logger *slog.Logger) *CircuitBreakerAdapter {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(3, 30*time.Second)
	}
	return &CircuitBreakerAdapter{
		inner:   inner,
		breaker: breaker,
		logger:  logging.NewComponentLogger(logger, "llm_breaker"),
	}
}

func (a *CircuitBreakerAdapter) Name() string { return a.inner.Name() }

func (a *CircuitBreakerAdapter) Stream(ctx context.Context, input Context) (<-chan Chunk, error) {
	if !a.breaker.Allow() {
		a.observe()
		return nil, errorsx.Errorf(errorsx.ReasonLLMCircuitOpen, "%s: breaker %s", a.Name(), a.breaker.State())
	}
	ch, err := a.inner.Stream(ctx, input)
	if err != nil {
		a.breaker.OnError(err)
		a.observe()
		if resilience.IsRateLimit(err) {
			return nil, errorsx.Wrap(err, errorsx.ReasonLLMRateLimit)
		}
		return nil, err
	}
	a.breaker.OnSuccess()
	a.observe()
	return ch, nil
}

// Open reports whether the breaker is currently denying requests.
func (a *CircuitBreakerAdapter) Open() bool {
	return a.breaker.State() == resilience.BreakerOpen
}

// observe logs breaker transitions once each.
func (a *CircuitBreakerAdapter) observe() {
	state := a.breaker.State()
	a.mu.Lock()
	prev := a.last
	a.last = state
	a.mu.Unlock()
	if prev == state {
		return
	}
	attrs := []any{slog.String("provider", a.inner.Name()), slog.String("from", prev.String())}
	if state == resilience.BreakerOpen {
		a.logger.Warn("llm_breaker_open", attrs...)
		return
	}
	a.logger.Info("llm_breaker_"+state.String(), attrs...)
}

var _ Adapter = (*CircuitBreakerAdapter)(nil)
