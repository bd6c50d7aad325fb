// Package deepgram streams audio to Deepgram live transcription.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/harunnryd/tarjama/pkg/adapters/stt"
	"github.com/harunnryd/tarjama/pkg/configutil"
	"github.com/harunnryd/tarjama/pkg/frames"
	"github.com/harunnryd/tarjama/pkg/logging"
	"github.com/harunnryd/tarjama/pkg/redact"
)

const (
	ModelEnhanced = "nova-2"
	ModelStandard = "base"
)

// Settings is decoded from vendors.stt.settings.
type Settings struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	Encoding       string `mapstructure:"encoding"`
	VADEvents      bool   `mapstructure:"vad_events"`
	UtteranceEndMS int    `mapstructure:"utterance_end_ms"`
	// SmartFormat defaults to the punctuation setting when unset.
	SmartFormat *bool `mapstructure:"smart_format"`
}

var SettingsSchema = configutil.Schema{
	Required: []string{"api_key"},
	Optional: []string{"model", "encoding", "vad_events", "utterance_end_ms", "smart_format"},
}

func ParseSettings(raw map[string]any) (Settings, error) {
	if err := configutil.ValidateSettings(raw, SettingsSchema); err != nil {
		return Settings{}, err
	}
	var s Settings
	if err := configutil.DecodeSettings(raw, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// ModelFor picks the model: an explicit setting wins, otherwise the
// operating point decides.
func ModelFor(settings Settings, operatingPoint string) string {
	if settings.Model != "" {
		return settings.Model
	}
	if operatingPoint == stt.OperatingPointStandard {
		return ModelStandard
	}
	return ModelEnhanced
}

// LiveOptions maps the vendor-agnostic config to Deepgram options.
func LiveOptions(settings Settings, cfg stt.Config) *interfaces.LiveTranscriptionOptions {
	encoding := settings.Encoding
	if encoding == "" {
		encoding = "linear16"
	}
	opts := &interfaces.LiveTranscriptionOptions{
		Model:          ModelFor(settings, cfg.OperatingPoint),
		Language:       cfg.Language,
		Encoding:       encoding,
		SampleRate:     cfg.SampleRate,
		Channels:       cfg.Channels,
		InterimResults: cfg.EnablePartials,
		VadEvents:      settings.VADEvents,
		SmartFormat:    configutil.BoolValue(settings.SmartFormat, cfg.Punctuation.Enabled),
		Punctuate:      cfg.Punctuation.Enabled,
	}
	if settings.UtteranceEndMS > 0 {
		opts.UtteranceEndMs = fmt.Sprintf("%d", settings.UtteranceEndMS)
	}
	return opts
}

type StreamingSTT struct {
	settings Settings
	cfg      stt.Config
	logger   *slog.Logger

	dgClient   *client.WSCallback
	ctx        context.Context
	cancel     context.CancelFunc
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter

	out       chan stt.Event
	outMu     sync.Mutex
	outClosed bool
	closeOnce sync.Once

	errMu      sync.Mutex
	err        error
	metaLogged bool
}

func New(settings Settings, cfg stt.Config, logger *slog.Logger) *StreamingSTT {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	return &StreamingSTT{
		settings: settings,
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "deepgram_stt").With(slog.String("track_sid", cfg.TrackSID)),
		out:      make(chan stt.Event, 256),
	}
}

func (s *StreamingSTT) Name() string { return "deepgram_streaming" }

func (s *StreamingSTT) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.pipeReader, s.pipeWriter = io.Pipe()

	clientOptions := &interfaces.ClientOptions{EnableKeepAlive: true}
	transcriptOptions := LiveOptions(s.settings, s.cfg)

	dgClient, err := client.NewWSUsingCallback(s.ctx, s.settings.APIKey, clientOptions, transcriptOptions, &callback{parent: s})
	if err != nil {
		s.logger.Error("deepgram_client_create_error", slog.String("error", err.Error()))
		s.cancel()
		return err
	}
	if connected := dgClient.Connect(); !connected {
		s.logger.Error("deepgram_connect_failed")
		s.cancel()
		return errors.New("deepgram connection failed")
	}
	s.dgClient = dgClient
	s.logger.Info("deepgram_connected",
		slog.String("model", transcriptOptions.Model),
		slog.String("language", s.cfg.Language),
		slog.Int("sample_rate", s.cfg.SampleRate),
	)

	go func() {
		if err := s.dgClient.Stream(s.pipeReader); err != nil && s.ctx.Err() == nil {
			s.fail(fmt.Errorf("deepgram stream: %w", err))
			s.closeOut()
		}
	}()
	return nil
}

func (s *StreamingSTT) Close() error {
	s.closeOnce.Do(func() {
		s.logger.Info("deepgram_closing")
		if s.cancel != nil {
			s.cancel()
		}
		if s.pipeWriter != nil {
			_ = s.pipeWriter.Close()
		}
		if s.dgClient != nil {
			s.dgClient.Stop()
		}
		s.closeOut()
	})
	return nil
}

func (s *StreamingSTT) SendAudio(frame frames.AudioFrame) error {
	if s.pipeWriter == nil {
		return stt.ErrNotStarted
	}
	_, err := s.pipeWriter.Write(frame.RawPayload())
	if err != nil {
		s.logger.Error("deepgram_send_failed", slog.String("error", err.Error()))
	}
	return err
}

func (s *StreamingSTT) Results() <-chan stt.Event { return s.out }

func (s *StreamingSTT) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *StreamingSTT) fail(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
	s.logger.Error("deepgram_stream_error", slog.String("error", err.Error()))
}

func (s *StreamingSTT) emit(ev stt.Event) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.outClosed {
		return
	}
	select {
	case s.out <- ev:
	default:
		s.logger.Warn("deepgram_out_channel_full")
	}
}

func (s *StreamingSTT) closeOut() {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if !s.outClosed {
		s.outClosed = true
		close(s.out)
	}
}

// toEvent converts a Deepgram result; ok is false when it carries no text.
func toEvent(mr *msginterfaces.MessageResponse) (stt.Event, bool) {
	if len(mr.Channel.Alternatives) == 0 || mr.Channel.Alternatives[0].Transcript == "" {
		return stt.Event{}, false
	}
	ev := stt.Event{
		Type:      stt.EventInterimTranscript,
		StartTime: mr.Start,
		EndTime:   mr.Start + mr.Duration,
	}
	if mr.IsFinal || mr.SpeechFinal {
		ev.Type = stt.EventFinalTranscript
	}
	for _, alt := range mr.Channel.Alternatives {
		ev.Alternatives = append(ev.Alternatives, stt.Alternative{Text: alt.Transcript, Confidence: alt.Confidence})
	}
	return ev, true
}

type callback struct {
	parent *StreamingSTT
}

func (c *callback) Open(or *msginterfaces.OpenResponse) error {
	c.parent.logger.Info("deepgram_connection_opened")
	return nil
}

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	ev, ok := toEvent(mr)
	if !ok {
		return nil
	}
	c.parent.logger.Debug("transcript_received",
		slog.String("type", ev.Type.String()),
		redact.String("transcript", ev.Text()),
	)
	c.parent.emit(ev)
	return nil
}

func (c *callback) Metadata(md *msginterfaces.MetadataResponse) error {
	if !c.parent.metaLogged {
		c.parent.metaLogged = true
		c.parent.logger.Info("deepgram_metadata_received", slog.String("request_id", md.RequestID))
	}
	return nil
}

func (c *callback) SpeechStarted(ssr *msginterfaces.SpeechStartedResponse) error {
	c.parent.logger.Debug("speech_started_event")
	return nil
}

func (c *callback) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	c.parent.logger.Debug("utterance_end_event")
	return nil
}

func (c *callback) Close(cr *msginterfaces.CloseResponse) error {
	c.parent.logger.Info("deepgram_connection_closed")
	c.parent.closeOut()
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	c.parent.fail(fmt.Errorf("deepgram error %s: %s", er.ErrCode, er.ErrMsg))
	return nil
}

func (c *callback) UnhandledEvent(byData []byte) error {
	c.parent.logger.Debug("deepgram_unhandled_event", slog.String("data", string(byData)))
	return nil
}

var _ stt.StreamingSTT = (*StreamingSTT)(nil)
