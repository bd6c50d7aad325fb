// Package speechmatics streams audio to the Speechmatics realtime API.
package speechmatics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harunnryd/tarjama/pkg/adapters/stt"
	"github.com/harunnryd/tarjama/pkg/configutil"
	"github.com/harunnryd/tarjama/pkg/frames"
	"github.com/harunnryd/tarjama/pkg/logging"
	"github.com/harunnryd/tarjama/pkg/redact"
)

const (
	DefaultURL   = "wss://eu2.rt.speechmatics.com/v2"
	PingInterval = 30 * time.Second
	PongTimeout  = 60 * time.Second
	CloseTimeout = 5 * time.Second
)

type Settings struct {
	APIKey string `mapstructure:"api_key"`
	URL    string `mapstructure:"url"`
}

var SettingsSchema = configutil.Schema{
	Required: []string{"api_key"},
	Optional: []string{"url"},
}

func ParseSettings(raw map[string]any) (Settings, error) {
	if err := configutil.ValidateSettings(raw, SettingsSchema); err != nil {
		return Settings{}, err
	}
	var s Settings
	if err := configutil.DecodeSettings(raw, &s); err != nil {
		return Settings{}, err
	}
	if s.URL == "" {
		s.URL = DefaultURL
	}
	return s, nil
}

type audioFormat struct {
	Type       string `json:"type"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type punctuationOverrides struct {
	PermittedMarks *[]string `json:"permitted_marks,omitempty"`
	Sensitivity    *float64  `json:"sensitivity,omitempty"`
}

type transcriptionConfig struct {
	Language             string                `json:"language"`
	OperatingPoint       string                `json:"operating_point,omitempty"`
	EnablePartials       bool                  `json:"enable_partials"`
	MaxDelay             float64               `json:"max_delay,omitempty"`
	PunctuationOverrides *punctuationOverrides `json:"punctuation_overrides,omitempty"`
}

type startRecognition struct {
	Message             string              `json:"message"`
	AudioFormat         audioFormat         `json:"audio_format"`
	TranscriptionConfig transcriptionConfig `json:"transcription_config"`
}

type endOfStream struct {
	Message   string `json:"message"`
	LastSeqNo int    `json:"last_seq_no"`
}

type serverMessage struct {
	Message  string `json:"message"`
	Reason   string `json:"reason"`
	Type     string `json:"type"`
	Metadata struct {
		Transcript string  `json:"transcript"`
		StartTime  float64 `json:"start_time"`
		EndTime    float64 `json:"end_time"`
	} `json:"metadata"`
	Results []struct {
		Alternatives []struct {
			Content    string  `json:"content"`
			Confidence float64 `json:"confidence"`
			Language   string  `json:"language"`
		} `json:"alternatives"`
	} `json:"results"`
}

func newStartRecognition(cfg stt.Config) startRecognition {
	tc := transcriptionConfig{
		Language:       cfg.Language,
		OperatingPoint: cfg.OperatingPoint,
		EnablePartials: cfg.EnablePartials,
		MaxDelay:       cfg.MaxDelay.Seconds(),
	}
	if cfg.Punctuation.Enabled {
		sensitivity := cfg.Punctuation.Sensitivity
		tc.PunctuationOverrides = &punctuationOverrides{Sensitivity: &sensitivity}
	} else {
		tc.PunctuationOverrides = &punctuationOverrides{PermittedMarks: &[]string{}}
	}
	return startRecognition{
		Message:             "StartRecognition",
		AudioFormat:         audioFormat{Type: "raw", Encoding: "pcm_s16le", SampleRate: cfg.SampleRate},
		TranscriptionConfig: tc,
	}
}

type StreamingSTT struct {
	settings Settings
	cfg      stt.Config
	logger   *slog.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex
	seqNo   int
	ctx     context.Context
	cancel  context.CancelFunc

	out       chan stt.Event
	readDone  chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	err     error
	closing bool
}

func New(settings Settings, cfg stt.Config, logger *slog.Logger) *StreamingSTT {
	if settings.URL == "" {
		settings.URL = DefaultURL
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 48000
	}
	return &StreamingSTT{
		settings: settings,
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "speechmatics_stt").With(slog.String("track_sid", cfg.TrackSID)),
		out:      make(chan stt.Event, 256),
		readDone: make(chan struct{}),
	}
}

func (s *StreamingSTT) Name() string { return "speechmatics_realtime" }

func (s *StreamingSTT) Start(ctx context.Context) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.settings.APIKey)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, s.settings.URL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("speechmatics dial: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("speechmatics dial: %w", err)
	}
	if err := conn.WriteJSON(newStartRecognition(s.cfg)); err != nil {
		conn.Close()
		return fmt.Errorf("send StartRecognition: %w", err)
	}
	s.conn = conn
	s.ctx, s.cancel = context.WithCancel(ctx)
	go s.readLoop()
	go s.keepAlive()
	s.logger.Info("speechmatics_connected",
		slog.String("language", s.cfg.Language),
		slog.String("operating_point", s.cfg.OperatingPoint),
		slog.Int("sample_rate", s.cfg.SampleRate),
	)
	return nil
}

func (s *StreamingSTT) SendAudio(frame frames.AudioFrame) error {
	if s.conn == nil {
		return stt.ErrNotStarted
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.isClosing() {
		return stt.ErrNotStarted
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame.RawPayload()); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	s.seqNo++
	return nil
}

// Close sends EndOfStream and waits briefly for the remaining transcripts.
func (s *StreamingSTT) Close() error {
	if s.conn == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()
		err := s.conn.WriteJSON(endOfStream{Message: "EndOfStream", LastSeqNo: s.seqNo})
		s.writeMu.Unlock()
		if err == nil {
			select {
			case <-s.readDone:
			case <-time.After(CloseTimeout):
				s.logger.Warn("speechmatics_close_timeout")
			}
		}
		s.cancel()
		s.writeMu.Lock()
		_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		_ = s.conn.Close()
		<-s.readDone
		s.logger.Info("speechmatics_closed", slog.Int("last_seq_no", s.seqNo))
	})
	return nil
}

func (s *StreamingSTT) Results() <-chan stt.Event { return s.out }

func (s *StreamingSTT) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *StreamingSTT) keepAlive() {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(PongTimeout))
			s.writeMu.Unlock()
			if err != nil {
				s.logger.Debug("speechmatics_ping_failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}

func (s *StreamingSTT) readLoop() {
	defer close(s.readDone)
	defer close(s.out)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.isClosing() {
				s.fail(fmt.Errorf("speechmatics read: %w", err))
			}
			return
		}
		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("speechmatics_message_undecodable", slog.String("error", err.Error()))
			continue
		}
		switch msg.Message {
		case "RecognitionStarted":
			s.logger.Debug("speechmatics_recognition_started")
		case "AudioAdded":
		case "AddPartialTranscript":
			s.emit(toEvent(stt.EventInterimTranscript, msg))
		case "AddTranscript":
			ev := toEvent(stt.EventFinalTranscript, msg)
			s.logger.Debug("speechmatics_final", redact.String("text", ev.Text()))
			s.emit(ev)
		case "EndOfTranscript":
			return
		case "Warning", "Info":
			s.logger.Info("speechmatics_notice", slog.String("type", msg.Type), slog.String("reason", msg.Reason))
		case "Error":
			s.fail(fmt.Errorf("speechmatics error %s: %s", msg.Type, msg.Reason))
			return
		default:
			s.logger.Debug("speechmatics_unhandled_message", slog.String("message", msg.Message))
		}
	}
}

func toEvent(kind stt.EventType, msg serverMessage) stt.Event {
	ev := stt.Event{Type: kind, StartTime: msg.Metadata.StartTime, EndTime: msg.Metadata.EndTime}
	alt := stt.Alternative{Text: msg.Metadata.Transcript, Confidence: 1}
	for _, r := range msg.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		if r.Alternatives[0].Confidence < alt.Confidence {
			alt.Confidence = r.Alternatives[0].Confidence
		}
		if alt.Language == "" {
			alt.Language = r.Alternatives[0].Language
		}
	}
	ev.Alternatives = []stt.Alternative{alt}
	return ev
}

func (s *StreamingSTT) emit(ev stt.Event) {
	select {
	case s.out <- ev:
	case <-s.ctx.Done():
	}
}

func (s *StreamingSTT) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.logger.Error("speechmatics_stream_failed", slog.String("error", err.Error()))
}

func (s *StreamingSTT) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

var _ stt.StreamingSTT = (*StreamingSTT)(nil)
