package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestSamplingObserver(t *testing.T) {
	cases := []struct {
		rate float64
		want int
	}{
		{0, 0},
		{1, 10},
		{0.5, 5},
		{0.25, 2},
		{7, 10},
	}
	for _, tc := range cases {
		mem := NewMemoryObserver()
		s := NewSamplingObserver(mem, tc.rate)
		for i := 0; i < 10; i++ {
			s.Record(Event{Name: TranslationLatency})
		}
		if got := len(mem.Events()); got != tc.want {
			t.Fatalf("rate %v: expected %d events, got %d", tc.rate, tc.want, got)
		}
	}
}

func TestAsyncObserverFlushesOnClose(t *testing.T) {
	mem := NewMemoryObserver()
	a := NewAsyncObserver(mem, 16)
	for i := 0; i < 5; i++ {
		a.Record(Event{Name: TrackDuration, Value: float64(i)})
	}
	a.Close()
	a.Record(Event{Name: TrackDuration})
	if got := len(mem.Named(TrackDuration)); got+int(a.Dropped()) != 5 {
		t.Fatalf("expected 5 events recorded or dropped, got %d recorded %d dropped", got, a.Dropped())
	}
	a.Close()
}

func TestJSONLObserver(t *testing.T) {
	var buf bytes.Buffer
	NewJSONLObserver(&buf).Record(Event{
		Name:  TranslationLatency,
		Time:  time.Unix(1700000000, 0).UTC(),
		Value: 412.5,
		Tags:  map[string]string{"room": "masjid-1"},
	})
	line := strings.TrimSpace(buf.String())
	var got map[string]any
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("not json: %q: %v", line, err)
	}
	tags, _ := got["tags"].(map[string]any)
	if got["name"] != TranslationLatency || got["value"] != 412.5 || tags["room"] != "masjid-1" {
		t.Fatalf("unexpected record %v", got)
	}
}
