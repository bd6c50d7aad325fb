package openai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/harunnryd/tarjama/pkg/configutil"
	"github.com/harunnryd/tarjama/pkg/llm"
	"github.com/harunnryd/tarjama/pkg/resilience"
)

const DefaultModel = "gpt-4o-mini"

// Settings is decoded from vendors.llm.settings.
type Settings struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

var SettingsSchema = configutil.Schema{
	Required: []string{"api_key"},
	Optional: []string{"model", "base_url", "temperature", "max_tokens"},
}

// ParseSettings validates and decodes a free-form settings map.
func ParseSettings(raw map[string]any) (Settings, error) {
	if err := configutil.ValidateSettings(raw, SettingsSchema); err != nil {
		return Settings{}, err
	}
	var s Settings
	if err := configutil.DecodeSettings(raw, &s); err != nil {
		return Settings{}, err
	}
	if s.Model == "" {
		s.Model = DefaultModel
	}
	return s, nil
}

type Adapter struct {
	client   *goopenai.Client
	settings Settings
}

func NewAdapter(settings Settings) *Adapter {
	cfg := goopenai.DefaultConfig(settings.APIKey)
	if settings.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(settings.BaseURL, "/")
	}
	if settings.Model == "" {
		settings.Model = DefaultModel
	}
	return &Adapter{client: goopenai.NewClientWithConfig(cfg), settings: settings}
}

func (a *Adapter) Name() string { return "openai" }

func (a *Adapter) Stream(ctx context.Context, input llm.Context) (<-chan llm.Chunk, error) {
	req := goopenai.ChatCompletionRequest{
		Model:       a.settings.Model,
		Messages:    toProviderMessages(input.Messages),
		Temperature: a.settings.Temperature,
		MaxTokens:   a.settings.MaxTokens,
		Stream:      true,
	}
	stream, err := a.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}
	out := make(chan llm.Chunk, 64)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				select {
				case out <- llm.Chunk{Err: mapError(err)}:
				case <-ctx.Done():
				}
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case out <- llm.Chunk{Text: resp.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func toProviderMessages(messages []llm.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := goopenai.ChatMessageRoleUser
		switch m.Role {
		case llm.RoleSystem:
			role = goopenai.ChatMessageRoleSystem
		case llm.RoleAssistant:
			role = goopenai.ChatMessageRoleAssistant
		}
		out = append(out, goopenai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

func mapError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return resilience.RateLimitError{Provider: "openai", Message: apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return resilience.RateLimitError{Provider: "openai", Message: reqErr.Error()}
	}
	return err
}

var _ llm.Adapter = (*Adapter)(nil)
