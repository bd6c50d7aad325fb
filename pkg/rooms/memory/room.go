// Package memory is an in-process room used for local replay and tests.
// It implements room.Room without any network dependency.
package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/harunnryd/tarjama/pkg/frames"
	"github.com/harunnryd/tarjama/pkg/room"
)

var ErrClosed = errors.New("room closed")

type Room struct {
	name     string
	identity string

	events   chan room.Event
	captions chan room.Caption
	closed   atomic.Bool
	done     chan struct{}

	// sendMu orders event sends against Close; mu is never held while sending.
	sendMu sync.RWMutex

	mu           sync.Mutex
	participants map[string]room.Participant
	rpc          map[string]room.RPCHandler
	publishErr   error
}

func New(name, localIdentity string) *Room {
	if localIdentity == "" {
		localIdentity = "agent"
	}
	return &Room{
		name:         name,
		identity:     localIdentity,
		events:       make(chan room.Event, 256),
		captions:     make(chan room.Caption, 256),
		done:         make(chan struct{}),
		participants: make(map[string]room.Participant),
		rpc:          make(map[string]room.RPCHandler),
	}
}

func (r *Room) Name() string          { return r.name }
func (r *Room) LocalIdentity() string { return r.identity }

func (r *Room) RemoteParticipants() []room.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]room.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

func (r *Room) Events() <-chan room.Event { return r.events }

// Captions exposes published captions for inspection.
func (r *Room) Captions() <-chan room.Caption { return r.captions }

func (r *Room) PublishCaption(ctx context.Context, caption room.Caption) error {
	if r.closed.Load() {
		return ErrClosed
	}
	r.mu.Lock()
	err := r.publishErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case r.captions <- caption:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.New("caption buffer full")
	}
}

// FailPublishing makes every following PublishCaption return err (nil resets).
func (r *Room) FailPublishing(err error) {
	r.mu.Lock()
	r.publishErr = err
	r.mu.Unlock()
}

func (r *Room) RegisterRPC(method string, handler room.RPCHandler) error {
	if handler == nil {
		return fmt.Errorf("rpc %s: nil handler", method)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rpc[method]; exists {
		return fmt.Errorf("rpc %s already registered", method)
	}
	r.rpc[method] = handler
	return nil
}

// Call invokes a registered RPC method the way a remote participant would.
func (r *Room) Call(ctx context.Context, method, payload string) (string, error) {
	r.mu.Lock()
	h, ok := r.rpc[method]
	r.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("rpc %s not registered", method)
	}
	return h(ctx, payload)
}

// Join adds a remote participant and emits participant_connected.
func (r *Room) Join(p room.Participant) {
	r.mu.Lock()
	r.participants[p.Identity] = p
	r.mu.Unlock()
	r.emit(room.Event{Kind: room.EventParticipantConnected, Participant: p})
}

// Leave removes a remote participant and emits participant_disconnected.
func (r *Room) Leave(identity string) {
	r.mu.Lock()
	p, ok := r.participants[identity]
	delete(r.participants, identity)
	r.mu.Unlock()
	if ok {
		r.emit(room.Event{Kind: room.EventParticipantDisconnected, Participant: p})
	}
}

// PublishTrack subscribes the agent to a new track of participant.
func (r *Room) PublishTrack(p room.Participant, sid string, kind room.TrackKind) *Track {
	tr := NewTrack(sid, kind, 64)
	r.emit(room.Event{Kind: room.EventTrackSubscribed, Participant: p, Track: tr})
	return tr
}

// Close ends the room; Events is closed and later publishes fail.
func (r *Room) Close() {
	if r.closed.CompareAndSwap(false, true) {
		close(r.done)
		r.sendMu.Lock()
		close(r.events)
		r.sendMu.Unlock()
	}
}

// emit blocks while the event buffer is full, until the room closes.
func (r *Room) emit(ev room.Event) {
	r.sendMu.RLock()
	defer r.sendMu.RUnlock()
	if r.closed.Load() {
		return
	}
	select {
	case r.events <- ev:
	case <-r.done:
	}
}

// Track is an in-memory audio track fed by Push and finished by End.
type Track struct {
	sid    string
	kind   room.TrackKind
	frames chan frames.AudioFrame
	once   sync.Once
}

func NewTrack(sid string, kind room.TrackKind, buffer int) *Track {
	if buffer <= 0 {
		buffer = 64
	}
	return &Track{sid: sid, kind: kind, frames: make(chan frames.AudioFrame, buffer)}
}

func (t *Track) SID() string          { return t.sid }
func (t *Track) Kind() room.TrackKind { return t.kind }

// Push blocks until the frame is buffered or ctx ends.
func (t *Track) Push(ctx context.Context, f frames.AudioFrame) error {
	select {
	case t.frames <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// End marks the track finished; readers get io.EOF after draining.
func (t *Track) End() {
	t.once.Do(func() { close(t.frames) })
}

func (t *Track) ReadFrame(ctx context.Context) (frames.AudioFrame, error) {
	select {
	case f, ok := <-t.frames:
		if !ok {
			return frames.AudioFrame{}, io.EOF
		}
		return f, nil
	case <-ctx.Done():
		return frames.AudioFrame{}, ctx.Err()
	}
}

// Provider hands out memory rooms by name, creating them on first join.
type Provider struct {
	identity string
	mu       sync.Mutex
	rooms    map[string]*Room
}

func NewProvider(localIdentity string) *Provider {
	return &Provider{identity: localIdentity, rooms: make(map[string]*Room)}
}

func (p *Provider) Name() string { return "memory" }

func (p *Provider) Join(ctx context.Context, roomName string) (room.Room, error) {
	return p.Get(roomName), nil
}

// Get returns the concrete room so callers can drive it.
func (p *Provider) Get(roomName string) *Room {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.rooms[roomName]; ok {
		return r
	}
	r := New(roomName, p.identity)
	p.rooms[roomName] = r
	return r
}

var (
	_ room.Room     = (*Room)(nil)
	_ room.Track    = (*Track)(nil)
	_ room.Provider = (*Provider)(nil)
)
