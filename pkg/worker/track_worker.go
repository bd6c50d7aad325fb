// Package worker binds one subscribed audio track to one speech recognition
// stream and forwards finished sentences, in order, to a Sink.
package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/tarjama/pkg/adapters/stt"
	"github.com/harunnryd/tarjama/pkg/errorsx"
	"github.com/harunnryd/tarjama/pkg/frames"
	"github.com/harunnryd/tarjama/pkg/logging"
	"github.com/harunnryd/tarjama/pkg/redact"
	"github.com/harunnryd/tarjama/pkg/resilience"
	"github.com/harunnryd/tarjama/pkg/room"
	"github.com/harunnryd/tarjama/pkg/segment"
)

const DefaultQueueSize = 32

// Sink receives finished sentences. Implementations handle their own errors.
type Sink interface {
	HandleTranscription(ctx context.Context, text string, track room.Track)
}

type Config struct {
	STT       stt.Config
	QueueSize int
	Retry     resilience.RetryPolicy
}

type TrackWorker struct {
	cfg         Config
	track       room.Track
	participant room.Participant
	factory     stt.Factory
	sink        Sink
	logger      *slog.Logger

	lastFinal string
}

func New(cfg Config, track room.Track, participant room.Participant, factory stt.Factory, sink Sink, logger *slog.Logger) *TrackWorker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.Backoff == 0 {
		cfg.Retry = resilience.NewRetryPolicy(2, 500*time.Millisecond)
	}
	cfg.STT.TrackSID = track.SID()
	cfg.STT.Participant = participant.Identity
	return &TrackWorker{
		cfg:         cfg,
		track:       track,
		participant: participant,
		factory:     factory,
		sink:        sink,
		logger: logging.NewComponentLogger(logger, "track_worker").With(
			slog.String("track_sid", track.SID()),
			slog.String("participant", participant.Identity),
		),
	}
}

// Run blocks until the track ends or the recognition stream fails. Sentences
// already queued are delivered before Run returns.
func (w *TrackWorker) Run(ctx context.Context) error {
	stream := w.factory(w.cfg.STT)
	err := w.cfg.Retry.Do(ctx, stream.Start)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		err = errorsx.Wrap(err, errorsx.ReasonSTTConnect)
		w.logger.Error("stt_start_failed", slog.String("provider", stream.Name()), errorsx.Attr(err))
		return err
	}
	if ctx.Err() != nil {
		_ = stream.Close()
		return ctx.Err()
	}
	w.logger.Info("stt_stream_started",
		slog.String("provider", stream.Name()),
		slog.String("language", w.cfg.STT.Language),
	)

	pumpCtx, stopPump := context.WithCancel(ctx)
	defer stopPump()
	queue := make(chan string, w.cfg.QueueSize)

	var wg sync.WaitGroup
	var pumpErr error
	wg.Add(3)
	go func() {
		defer wg.Done()
		pumpErr = w.pump(pumpCtx, stream)
	}()
	go func() {
		defer wg.Done()
		defer close(queue)
		defer stopPump()
		w.consume(ctx, stream, queue)
	}()
	go func() {
		defer wg.Done()
		for sentence := range queue {
			w.sink.HandleTranscription(ctx, sentence, w.track)
		}
	}()
	wg.Wait()

	if err := stream.Err(); err != nil {
		w.logger.Warn("stt_stream_failed", slog.String("error", err.Error()))
		return errorsx.Wrap(err, errorsx.ReasonSTTStream)
	}
	if pumpErr != nil {
		return pumpErr
	}
	w.logger.Info("track_worker_finished")
	return nil
}

// pump feeds track audio into the stream and closes the stream when the
// track ends or a send fails.
func (w *TrackWorker) pump(ctx context.Context, stream stt.StreamingSTT) error {
	defer func() {
		if err := stream.Close(); err != nil {
			w.logger.Debug("stt_close_failed", slog.String("error", err.Error()))
		}
	}()
	sent := 0
	for {
		frame, err := w.track.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				w.logger.Info("track_ended", slog.Int("frames", sent))
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Warn("track_read_failed", slog.String("error", err.Error()))
			return err
		}
		err = stream.SendAudio(frame)
		frames.ReleaseAudioFrame(frame)
		if err != nil {
			w.logger.Warn("stt_send_failed", slog.String("error", err.Error()))
			return errorsx.Wrap(err, errorsx.ReasonSTTSend)
		}
		sent++
	}
}

func (w *TrackWorker) consume(ctx context.Context, stream stt.StreamingSTT, queue chan<- string) {
	for ev := range stream.Results() {
		switch ev.Type {
		case stt.EventInterimTranscript:
			w.logger.Debug("interim_transcript", redact.String("text", ev.Text()))
		case stt.EventFinalTranscript:
			for _, sentence := range w.sentences(ev) {
				select {
				case queue <- sentence:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// sentences turns a final transcript into forwardable sentences, skipping
// repeats of the previous final.
func (w *TrackWorker) sentences(ev stt.Event) []string {
	text := strings.TrimSpace(ev.Text())
	if text == "" || text == w.lastFinal {
		return nil
	}
	w.lastFinal = text
	w.logger.Debug("final_transcript", redact.String("text", text))
	var out []string
	for _, s := range segment.ExtractSentences(text) {
		if segment.Len(s) > segment.MinSentenceLen {
			out = append(out, s)
		}
	}
	return out
}
