package metrics

import (
	"math"
	"sync/atomic"
)

// SamplingObserver forwards roughly rate of the events it sees: every
// round(1/rate)-th one.
type SamplingObserver struct {
	inner   Observer
	every   uint64
	counter atomic.Uint64
}

func NewSamplingObserver(inner Observer, rate float64) *SamplingObserver {
	rate = math.Max(0, math.Min(1, rate))
	var every uint64
	if rate > 0 {
		every = max(uint64(math.Round(1/rate)), 1)
	}
	return &SamplingObserver{inner: inner, every: every}
}

func (s *SamplingObserver) Record(ev Event) {
	switch s.every {
	case 0:
		return
	case 1:
		s.inner.Record(ev)
		return
	}
	if s.counter.Add(1)%s.every == 0 {
		s.inner.Record(ev)
	}
}
