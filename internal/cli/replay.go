package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harunnryd/tarjama/pkg/frames"
	"github.com/harunnryd/tarjama/pkg/languages"
	"github.com/harunnryd/tarjama/pkg/relay"
	"github.com/harunnryd/tarjama/pkg/room"
	"github.com/harunnryd/tarjama/pkg/rooms/memory"
	"github.com/harunnryd/tarjama/pkg/runner"
	"github.com/harunnryd/tarjama/pkg/store"
)

const wavHeaderLen = 44

type replayOptions struct {
	room       string
	audio      string
	sampleRate int
	frameMS    int
	realtime   bool
	seed       bool
	mosqueID   string
	source     string
	target     string
	speaker    string
	store      string
}

func NewReplayCmd(deps *Dependencies) *cobra.Command {
	opts := replayOptions{}
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Stream a local PCM or WAV recording through a room and print captions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runReplay(ctx, deps, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&opts.room, "room", "", "room name")
	cmd.Flags().StringVar(&opts.audio, "audio", "", "16-bit little endian PCM or WAV file")
	cmd.Flags().IntVar(&opts.sampleRate, "sample-rate", 0, "audio sample rate, defaults to stt.sample_rate")
	cmd.Flags().IntVar(&opts.frameMS, "frame-ms", 20, "audio frame length in milliseconds")
	cmd.Flags().BoolVar(&opts.realtime, "realtime", true, "pace frames at playback speed")
	cmd.Flags().BoolVar(&opts.seed, "seed", false, "upsert the room configuration before joining")
	cmd.Flags().StringVar(&opts.mosqueID, "mosque-id", "local", "mosque id used when seeding")
	cmd.Flags().StringVar(&opts.source, "source", languages.DefaultSource, "source language used when seeding")
	cmd.Flags().StringVar(&opts.target, "target", languages.DefaultTarget, "target language used when seeding")
	cmd.Flags().StringVar(&opts.speaker, "speaker", "imam", "identity of the simulated speaker")
	cmd.Flags().StringVar(&opts.store, "store", "", "override store.driver, e.g. memory")
	_ = cmd.MarkFlagRequired("room")
	_ = cmd.MarkFlagRequired("audio")
	return cmd
}

func runReplay(ctx context.Context, deps *Dependencies, opts replayOptions, out, errOut io.Writer) error {
	if opts.store != "" {
		deps.Config.Store.Driver = opts.store
		if err := deps.Config.Validate(); err != nil {
			return err
		}
	}
	cfg := deps.Config
	logger := deps.Logger
	if opts.sampleRate <= 0 {
		opts.sampleRate = cfg.STT.SampleRate
	}
	pcm, err := readPCM(opts.audio)
	if err != nil {
		return err
	}

	st, err := deps.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	if opts.seed || cfg.Store.Driver == "memory" {
		rc, err := st.UpsertRoomConfig(ctx, store.RoomConfig{
			Name:           opts.room,
			Title:          opts.room,
			MosqueID:       opts.mosqueID,
			SourceLanguage: opts.source,
			TargetLanguage: opts.target,
		})
		if err != nil {
			return fmt.Errorf("seed room: %w", err)
		}
		logger.Info("room_seeded", slog.Int64("room_id", rc.ID), slog.String("room", rc.Name))
	}

	rooms := memory.NewProvider("tarjama")
	rm := rooms.Get(opts.room)
	agent, err := relay.Assemble(cfg, deps.Registry, st, rm, logger)
	if err != nil {
		return err
	}
	if err := agent.Start(ctx); err != nil {
		return err
	}

	captionsDone := make(chan struct{})
	printCtx, stopPrinting := context.WithCancel(context.Background())
	go func() {
		defer close(captionsDone)
		printCaptions(printCtx, out, rm.Captions())
	}()

	var lr *runner.LifecycleRunner
	lr = runner.NewLifecycleRunner(agent, runner.Hooks{
		OnStart: func() {
			go func() {
				speaker := room.Participant{SID: "PA_" + opts.speaker, Identity: opts.speaker}
				if err := feed(ctx, rm, speaker, pcm, opts); err != nil {
					logger.Warn("replay_feed_failed", slog.String("error", err.Error()))
				}
				if err := agent.WaitTracks(ctx, 1); err != nil {
					logger.Warn("replay_wait_failed", slog.String("error", err.Error()))
				}
				rm.Close()
				if err := agent.Wait(ctx); err != nil {
					logger.Warn("replay_wait_failed", slog.String("error", err.Error()))
				}
				_ = lr.Stop()
			}()
		},
		OnStop: func() {
			logger.Info("replay_finished", slog.String("session_state", agent.Coordinator().State().String()))
		},
	}, cfg.ShutdownTimeout())
	lr.SetBannerOutput(errOut)

	err = lr.Run(ctx)
	stopPrinting()
	<-captionsDone
	return err
}

// feed publishes one audio track for speaker and pushes pcm in frameMS chunks.
func feed(ctx context.Context, rm *memory.Room, speaker room.Participant, pcm []byte, opts replayOptions) error {
	rm.Join(speaker)
	trackSID := "TR_" + speaker.Identity
	track := rm.PublishTrack(speaker, trackSID, room.TrackKindAudio)
	defer track.End()

	interval := time.Duration(opts.frameMS) * time.Millisecond
	frameLen := frames.FrameBytes(opts.sampleRate, 1, interval)
	if frameLen <= 0 {
		return fmt.Errorf("invalid frame length for %d Hz and %d ms", opts.sampleRate, opts.frameMS)
	}
	var ticker *time.Ticker
	if opts.realtime {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
	}
	timeline := frames.NewTimeline()
	for off := 0; off < len(pcm); off += frameLen {
		chunk := pcm[off:min(off+frameLen, len(pcm))]
		d := time.Duration(len(chunk)/2) * time.Second / time.Duration(opts.sampleRate)
		frame := frames.NewPooledAudioFrame(trackSID, timeline.Next(trackSID, d), chunk, opts.sampleRate, 1)
		if err := track.Push(ctx, frame); err != nil {
			return err
		}
		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func printCaptions(ctx context.Context, w io.Writer, captions <-chan room.Caption) {
	write := func(c room.Caption) {
		for _, seg := range c.Segments {
			fmt.Fprintf(w, "[%s %s] %s\n", c.TrackID, seg.Language, seg.Text)
		}
	}
	for {
		select {
		case c := <-captions:
			write(c)
		case <-ctx.Done():
			for {
				select {
				case c := <-captions:
					write(c)
				default:
					return
				}
			}
		}
	}
}

// readPCM loads raw 16-bit PCM, dropping a canonical WAV header when present.
func readPCM(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(data) >= wavHeaderLen && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")) {
		data = data[wavHeaderLen:]
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("audio file %s is empty", path)
	}
	return data, nil
}
