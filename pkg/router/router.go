// Package router reacts to room events: audio tracks get a transcription
// worker, membership changes refresh the participant count.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harunnryd/tarjama/pkg/languages"
	"github.com/harunnryd/tarjama/pkg/logging"
	"github.com/harunnryd/tarjama/pkg/room"
	"github.com/harunnryd/tarjama/pkg/runner"
)

const MethodLanguages = "get/languages"

// EventHandler must return quickly; long work goes to the task group.
type EventHandler interface {
	Handle(ctx context.Context, ev room.Event)
}

type Worker interface {
	Run(ctx context.Context) error
}

// WorkerFactory builds the worker for a newly subscribed audio track.
type WorkerFactory func(track room.Track, participant room.Participant) Worker

// ParticipantCounter receives the room head count.
type ParticipantCounter interface {
	UpdateParticipantCount(ctx context.Context, count int)
}

type TrackHandler struct {
	Tasks     *runner.TaskGroup
	NewWorker WorkerFactory
	Logger    *slog.Logger
}

func (h *TrackHandler) Handle(ctx context.Context, ev room.Event) {
	if ev.Track == nil {
		return
	}
	if ev.Track.Kind() != room.TrackKindAudio {
		h.Logger.Debug("track_ignored", slog.String("track_sid", ev.Track.SID()), slog.String("kind", string(ev.Track.Kind())))
		return
	}
	w := h.NewWorker(ev.Track, ev.Participant)
	h.Tasks.Go("track:"+ev.Track.SID(), w.Run)
	h.Logger.Info("track_subscribed",
		slog.String("track_sid", ev.Track.SID()),
		slog.String("participant", ev.Participant.Identity),
	)
}

// ParticipantCountHandler counts remote participants plus the local agent.
type ParticipantCountHandler struct {
	Room    room.Room
	Tasks   *runner.TaskGroup
	Counter ParticipantCounter
	Logger  *slog.Logger
}

func (h *ParticipantCountHandler) Handle(ctx context.Context, ev room.Event) {
	count := len(h.Room.RemoteParticipants()) + 1
	h.Logger.Info(string(ev.Kind), slog.String("participant", ev.Participant.Identity), slog.Int("count", count))
	h.Tasks.Go("participants:"+ev.Participant.Identity, func(ctx context.Context) error {
		h.Counter.UpdateParticipantCount(ctx, count)
		return nil
	})
}

type Router struct {
	room     room.Room
	handlers map[room.EventKind]EventHandler
	logger   *slog.Logger
}

func New(rm room.Room, tasks *runner.TaskGroup, counter ParticipantCounter, newWorker WorkerFactory, logger *slog.Logger) *Router {
	logger = logging.NewComponentLogger(logger, "router").With(slog.String("room", rm.Name()))
	counts := &ParticipantCountHandler{Room: rm, Tasks: tasks, Counter: counter, Logger: logger}
	return &Router{
		room: rm,
		handlers: map[room.EventKind]EventHandler{
			room.EventTrackSubscribed:         &TrackHandler{Tasks: tasks, NewWorker: newWorker, Logger: logger},
			room.EventParticipantConnected:    counts,
			room.EventParticipantDisconnected: counts,
		},
		logger: logger,
	}
}

// Handle overrides or adds the handler for kind.
func (r *Router) Handle(kind room.EventKind, h EventHandler) {
	r.handlers[kind] = h
}

// Dispatch routes one event to its handler.
func (r *Router) Dispatch(ctx context.Context, ev room.Event) {
	h, ok := r.handlers[ev.Kind]
	if !ok {
		r.logger.Debug("event_unhandled", slog.String("kind", string(ev.Kind)))
		return
	}
	h.Handle(ctx, ev)
}

// Run dispatches room events until the room closes its event channel or ctx ends.
func (r *Router) Run(ctx context.Context) error {
	events := r.room.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				r.logger.Info("room_events_closed")
				return nil
			}
			r.Dispatch(ctx, ev)
		}
	}
}

// RegisterRPC exposes the language list to room participants.
func RegisterRPC(rm room.Room) error {
	payload, err := languages.JSON()
	if err != nil {
		return err
	}
	err = rm.RegisterRPC(MethodLanguages, func(ctx context.Context, _ string) (string, error) {
		return payload, nil
	})
	if err != nil {
		return fmt.Errorf("register %s: %w", MethodLanguages, err)
	}
	return nil
}
