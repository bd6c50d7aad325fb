// Package translation keeps the conversation window sent to the completion
// model and publishes every result back into the room as a caption.
package translation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harunnryd/tarjama/pkg/errorsx"
	"github.com/harunnryd/tarjama/pkg/languages"
	"github.com/harunnryd/tarjama/pkg/llm"
	"github.com/harunnryd/tarjama/pkg/logging"
	"github.com/harunnryd/tarjama/pkg/redact"
	"github.com/harunnryd/tarjama/pkg/room"
)

type Mode string

const (
	ModeRolling   Mode = "rolling"
	ModeStateless Mode = "stateless"
)

const (
	DefaultMaxMessages = 9
	DefaultTimeout     = 15 * time.Second
)

// DefaultPrompt is expanded with {source} and {target} language names.
const DefaultPrompt = "You are a professional simultaneous interpreter for Islamic religious content. " +
	"Translate the provided {source} text to {target}. " +
	"Rules: 1) Translate ONLY the most recent sentence. " +
	"2) Be accurate and respectful with religious terminology. " +
	"3) Use natural, spoken language appropriate for live translation. " +
	"4) Return ONLY the translation, no explanations. " +
	"5) Maintain the tone and meaning of the original."

type Config struct {
	SourceLanguage string
	TargetLanguage string
	Mode           Mode
	MaxMessages    int
	Timeout        time.Duration
	Prompt         string
}

func (c Config) withDefaults() Config {
	if c.SourceLanguage == "" {
		c.SourceLanguage = languages.DefaultSource
	}
	if c.TargetLanguage == "" {
		c.TargetLanguage = languages.DefaultTarget
	}
	if c.Mode == "" {
		c.Mode = ModeRolling
	}
	if c.MaxMessages <= 0 {
		c.MaxMessages = DefaultMaxMessages
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(c.Prompt) == "" {
		c.Prompt = DefaultPrompt
	}
	return c
}

// Publisher is the part of a room a Context needs.
type Publisher interface {
	LocalIdentity() string
	PublishCaption(ctx context.Context, caption room.Caption) error
}

type Context struct {
	cfg       Config
	adapter   llm.Adapter
	publisher Publisher
	logger    *slog.Logger
	system    llm.Message

	mu       sync.Mutex
	messages []llm.Message
}

func New(cfg Config, adapter llm.Adapter, publisher Publisher, logger *slog.Logger) *Context {
	cfg = cfg.withDefaults()
	system := llm.Message{Role: llm.RoleSystem, Content: SystemPrompt(cfg.Prompt, cfg.SourceLanguage, cfg.TargetLanguage)}
	return &Context{
		cfg:       cfg,
		adapter:   adapter,
		publisher: publisher,
		logger: logging.NewComponentLogger(logger, "translation").With(
			slog.String("source_language", cfg.SourceLanguage),
			slog.String("target_language", cfg.TargetLanguage),
		),
		system:   system,
		messages: []llm.Message{system},
	}
}

// SystemPrompt fills the prompt template with human readable language names.
func SystemPrompt(template, source, target string) string {
	return strings.NewReplacer("{source}", languages.Name(source), "{target}", languages.Name(target)).Replace(template)
}

func (c *Context) Config() Config { return c.cfg }

// Translate returns the translation of text, or text itself when the model
// fails. The result is always published as a caption for trackSID.
func (c *Context) Translate(ctx context.Context, text, trackSID string) string {
	request := c.nextRequest(text)
	translated, err := c.complete(ctx, request)
	if err != nil {
		c.logger.Warn("translation_failed",
			slog.String("track_sid", trackSID),
			errorsx.Attr(err),
		)
		translated = text
	}
	c.publish(ctx, translated, trackSID)
	return translated
}

// nextRequest applies the window policy and returns the messages to send.
func (c *Context) nextRequest(text string) []llm.Message {
	current := llm.Message{Role: llm.RoleUser, Content: text}
	oneShot := []llm.Message{c.system, current}
	if c.cfg.Mode == ModeStateless {
		return oneShot
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, current)
	if len(c.messages)-1 > c.cfg.MaxMessages {
		c.messages = []llm.Message{c.system}
		c.logger.Debug("translation_context_reset", slog.Int("max_messages", c.cfg.MaxMessages))
		return oneShot
	}
	return append([]llm.Message(nil), c.messages...)
}

func (c *Context) complete(ctx context.Context, messages []llm.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	chunks, err := c.adapter.Stream(ctx, llm.Context{Messages: messages})
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonLLMStream)
	}
	text, err := llm.Collect(ctx, chunks)
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonLLMStream)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errorsx.Wrap(fmt.Errorf("empty completion from %s", c.adapter.Name()), errorsx.ReasonLLMStream)
	}
	return text, nil
}

func (c *Context) publish(ctx context.Context, text, trackSID string) {
	if c.publisher == nil {
		return
	}
	caption := room.Caption{
		SpeakerIdentity: c.publisher.LocalIdentity(),
		TrackID:         trackSID,
		Segments: []room.Segment{{
			ID:       NewSegmentID(),
			Text:     text,
			Language: c.cfg.TargetLanguage,
			Final:    true,
		}},
	}
	if err := c.publisher.PublishCaption(ctx, caption); err != nil {
		c.logger.Warn("caption_publish_failed",
			slog.String("track_sid", trackSID),
			slog.String("reason", string(errorsx.ReasonPublish)),
			slog.String("error", err.Error()),
		)
		return
	}
	c.logger.Debug("caption_published", slog.String("track_sid", trackSID), redact.String("text", text))
}

// Messages returns a copy of the current window.
func (c *Context) Messages() []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Message(nil), c.messages...)
}

// NewSegmentID returns a short caption segment id such as SG_1a2b3c4d5e6f.
func NewSegmentID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "SG_" + id[:12]
}
