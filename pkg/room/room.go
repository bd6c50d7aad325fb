package room

import (
	"context"

	"github.com/harunnryd/tarjama/pkg/frames"
)

type TrackKind string

const (
	TrackKindAudio TrackKind = "audio"
	TrackKindVideo TrackKind = "video"
)

type EventKind string

const (
	EventTrackSubscribed         EventKind = "track_subscribed"
	EventParticipantConnected    EventKind = "participant_connected"
	EventParticipantDisconnected EventKind = "participant_disconnected"
)

type Participant struct {
	SID      string
	Identity string
}

// Track is a subscribed remote track. ReadFrame blocks until the next frame
// and returns io.EOF once the track has ended.
type Track interface {
	SID() string
	Kind() TrackKind
	ReadFrame(ctx context.Context) (frames.AudioFrame, error)
}

type Event struct {
	Kind        EventKind
	Participant Participant
	Track       Track
}

type Segment struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Language  string  `json:"language"`
	Final     bool    `json:"final"`
}

// Caption is a transcription event published back into the room.
type Caption struct {
	SpeakerIdentity string    `json:"speaker_identity"`
	TrackID         string    `json:"track_id"`
	Segments        []Segment `json:"segments"`
}

// RPCHandler answers a named remote procedure call with a string payload.
type RPCHandler func(ctx context.Context, payload string) (string, error)

// Room is the vendor-agnostic real-time room the relay has joined.
// Implementations own their network lifecycle and close Events when the room ends.
type Room interface {
	Name() string
	LocalIdentity() string
	RemoteParticipants() []Participant
	Events() <-chan Event
	PublishCaption(ctx context.Context, caption Caption) error
	RegisterRPC(method string, handler RPCHandler) error
}

// Provider joins a room by name.
type Provider interface {
	Name() string
	Join(ctx context.Context, roomName string) (Room, error)
}
