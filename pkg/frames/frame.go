// Package frames carries PCM audio from room tracks to speech recognition.
package frames

import (
	"sync"
	"time"
)

// AudioFrame is one chunk of 16-bit little-endian PCM from a single track.
type AudioFrame struct {
	trackSID string
	pts      time.Duration
	data     []byte
	rate     int
	channels int
	pooled   bool
}

// NewAudioFrame wraps data without copying it. pts is the frame's offset from
// the start of the track.
func NewAudioFrame(trackSID string, pts time.Duration, data []byte, rate, channels int) AudioFrame {
	return AudioFrame{trackSID: trackSID, pts: pts, data: data, rate: rate, channels: channels}
}

// NewPooledAudioFrame copies data into a pooled buffer. The consumer returns
// it with ReleaseAudioFrame once the payload has been sent.
func NewPooledAudioFrame(trackSID string, pts time.Duration, data []byte, rate, channels int) AudioFrame {
	buf := acquire(len(data))
	copy(buf, data)
	f := NewAudioFrame(trackSID, pts, buf, rate, channels)
	f.pooled = true
	return f
}

func (f AudioFrame) TrackSID() string   { return f.trackSID }
func (f AudioFrame) PTS() time.Duration { return f.pts }
func (f AudioFrame) Rate() int          { return f.rate }
func (f AudioFrame) Channels() int      { return f.channels }

// RawPayload exposes the frame's bytes; callers must not keep them past
// ReleaseAudioFrame.
func (f AudioFrame) RawPayload() []byte { return f.data }

// Duration derives the playback length from the payload size.
func (f AudioFrame) Duration() time.Duration {
	if f.rate <= 0 || f.channels <= 0 {
		return 0
	}
	samples := len(f.data) / (2 * f.channels)
	return time.Duration(samples) * time.Second / time.Duration(f.rate)
}

// ReleaseAudioFrame recycles a pooled payload and reports whether it did.
func ReleaseAudioFrame(f AudioFrame) bool {
	if !f.pooled {
		return false
	}
	pool.Put(f.data[:0])
	return true
}

// FrameBytes is the payload size of one frame of the given length.
func FrameBytes(rate, channels int, length time.Duration) int {
	return int(time.Duration(rate*channels*2) * length / time.Second)
}

// Timeline stamps consecutive frames of each track with their start offset.
type Timeline struct {
	mu  sync.Mutex
	pos map[string]time.Duration
}

func NewTimeline() *Timeline {
	return &Timeline{pos: make(map[string]time.Duration)}
}

// Next returns the offset for a frame of length d on trackSID and advances it.
func (t *Timeline) Next(trackSID string, d time.Duration) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	at := t.pos[trackSID]
	t.pos[trackSID] = at + d
	return at
}

var pool = sync.Pool{
	New: func() any { return make([]byte, 0, 4096) },
}

func acquire(size int) []byte {
	b := pool.Get().([]byte)
	if cap(b) < size {
		return make([]byte, size)
	}
	return b[:size]
}
