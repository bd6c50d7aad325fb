// Package metrics records relay timings as structured events.
package metrics

import "time"

const (
	// TranslationLatency is the wall time of one Translate call in milliseconds.
	TranslationLatency = "translation_latency_ms"
	// TrackDuration is how long a track worker ran, in milliseconds.
	TrackDuration = "track_duration_ms"
)

type Event struct {
	Name  string
	Time  time.Time
	Value float64
	Tags  map[string]string
}

type Observer interface {
	Record(ev Event)
}

type Nop struct{}

func (Nop) Record(Event) {}

// Since returns the elapsed milliseconds from start.
func Since(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
