package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/tarjama/pkg/adapters/stt"
	"github.com/harunnryd/tarjama/pkg/configutil"
	"github.com/harunnryd/tarjama/pkg/llm"
	"github.com/harunnryd/tarjama/pkg/logging"
	"github.com/harunnryd/tarjama/pkg/providers/deepgram"
	"github.com/harunnryd/tarjama/pkg/providers/mock"
	"github.com/harunnryd/tarjama/pkg/providers/openai"
	"github.com/harunnryd/tarjama/pkg/providers/speechmatics"
	"github.com/harunnryd/tarjama/pkg/resilience"
	"github.com/harunnryd/tarjama/pkg/store"
	memstore "github.com/harunnryd/tarjama/pkg/store/memory"
	"github.com/harunnryd/tarjama/pkg/store/sqlstore"
)

type STTFactoryBuilder func(cfg Config, logger *slog.Logger) (stt.Factory, error)
type LLMFactory func(cfg Config) (llm.Adapter, error)
type StoreFactory func(ctx context.Context, cfg Config) (store.Admin, error)

type ProviderRegistry struct {
	stt   map[string]STTFactoryBuilder
	llm   map[string]LLMFactory
	store map[string]StoreFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		stt:   make(map[string]STTFactoryBuilder),
		llm:   make(map[string]LLMFactory),
		store: make(map[string]StoreFactory),
	}
}

// DefaultProviders registers every built-in vendor and store driver.
func DefaultProviders() *ProviderRegistry {
	r := NewProviderRegistry()
	r.RegisterSTT("speechmatics", buildSpeechmatics)
	r.RegisterSTT("deepgram", buildDeepgram)
	r.RegisterSTT("mock", buildMockSTT)
	r.RegisterLLM("openai", buildOpenAI)
	r.RegisterLLM("mock", buildMockLLM)
	r.RegisterStore(sqlstore.DriverPostgres, buildSQLStore)
	r.RegisterStore(sqlstore.DriverSQLite, buildSQLStore)
	r.RegisterStore("memory", func(ctx context.Context, cfg Config) (store.Admin, error) {
		return memstore.New(), nil
	})
	return r
}

func (r *ProviderRegistry) RegisterSTT(name string, factory STTFactoryBuilder) {
	r.stt[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) RegisterLLM(name string, factory LLMFactory) {
	r.llm[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) RegisterStore(name string, factory StoreFactory) {
	r.store[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) BuildSTTFactory(provider string, cfg Config, logger *slog.Logger) (stt.Factory, error) {
	fn := r.stt[strings.ToLower(strings.TrimSpace(provider))]
	if fn == nil {
		return nil, fmt.Errorf("stt provider not registered: %s", provider)
	}
	return fn(cfg, logger)
}

func (r *ProviderRegistry) BuildLLM(provider string, cfg Config) (llm.Adapter, error) {
	fn := r.llm[strings.ToLower(strings.TrimSpace(provider))]
	if fn == nil {
		return nil, fmt.Errorf("llm provider not registered: %s", provider)
	}
	return fn(cfg)
}

// BuildGuardedLLM builds the configured adapter behind a circuit breaker.
func (r *ProviderRegistry) BuildGuardedLLM(cfg Config, logger *slog.Logger) (*llm.CircuitBreakerAdapter, error) {
	inner, err := r.BuildLLM(cfg.Vendors.LLM.Provider, cfg)
	if err != nil {
		return nil, err
	}
	breaker := resilience.NewCircuitBreaker(cfg.Translation.BreakerThreshold,
		time.Duration(cfg.Translation.BreakerCooldownMS)*time.Millisecond)
	return llm.NewCircuitBreakerAdapter(inner, breaker, logging.NewComponentLogger(logger, "llm")), nil
}

func (r *ProviderRegistry) BuildStore(ctx context.Context, cfg Config) (store.Admin, error) {
	fn := r.store[strings.ToLower(strings.TrimSpace(cfg.Store.Driver))]
	if fn == nil {
		return nil, fmt.Errorf("store driver not registered: %s", cfg.Store.Driver)
	}
	return fn(ctx, cfg)
}

func buildSpeechmatics(cfg Config, logger *slog.Logger) (stt.Factory, error) {
	settings, err := speechmatics.ParseSettings(cfg.Vendors.STT.Settings)
	if err != nil {
		return nil, fmt.Errorf("speechmatics settings: %w", err)
	}
	return func(sc stt.Config) stt.StreamingSTT {
		return speechmatics.New(settings, sc, logger)
	}, nil
}

func buildDeepgram(cfg Config, logger *slog.Logger) (stt.Factory, error) {
	settings, err := deepgram.ParseSettings(cfg.Vendors.STT.Settings)
	if err != nil {
		return nil, fmt.Errorf("deepgram settings: %w", err)
	}
	return func(sc stt.Config) stt.StreamingSTT {
		return deepgram.New(settings, sc, logger)
	}, nil
}

// mockSTTSettings scripts one final transcript per received frame.
type mockSTTSettings struct {
	Transcripts []string `mapstructure:"transcripts"`
}

var mockSTTSchema = configutil.Schema{Optional: []string{"transcripts"}}

func buildMockSTT(cfg Config, logger *slog.Logger) (stt.Factory, error) {
	var settings mockSTTSettings
	if err := configutil.ValidateSettings(cfg.Vendors.STT.Settings, mockSTTSchema); err != nil {
		return nil, fmt.Errorf("mock stt settings: %w", err)
	}
	if err := configutil.DecodeSettings(cfg.Vendors.STT.Settings, &settings); err != nil {
		return nil, fmt.Errorf("mock stt settings: %w", err)
	}
	return func(sc stt.Config) stt.StreamingSTT {
		script := make([]stt.Event, 0, len(settings.Transcripts))
		for _, text := range settings.Transcripts {
			script = append(script, mock.FinalEvent(text))
		}
		return mock.NewSTT(mock.STTConfig{Script: script})
	}, nil
}

func buildOpenAI(cfg Config) (llm.Adapter, error) {
	settings, err := openai.ParseSettings(cfg.Vendors.LLM.Settings)
	if err != nil {
		return nil, fmt.Errorf("openai settings: %w", err)
	}
	return openai.NewAdapter(settings), nil
}

type mockLLMSettings struct {
	Response string `mapstructure:"response"`
	Prefix   string `mapstructure:"prefix"`
}

var mockLLMSchema = configutil.Schema{Optional: []string{"response", "prefix"}}

// buildMockLLM answers with a fixed response, or echoes the latest user
// message behind prefix when no response is set.
func buildMockLLM(cfg Config) (llm.Adapter, error) {
	var settings mockLLMSettings
	if err := configutil.ValidateSettings(cfg.Vendors.LLM.Settings, mockLLMSchema); err != nil {
		return nil, fmt.Errorf("mock llm settings: %w", err)
	}
	if err := configutil.DecodeSettings(cfg.Vendors.LLM.Settings, &settings); err != nil {
		return nil, fmt.Errorf("mock llm settings: %w", err)
	}
	if settings.Response != "" {
		return mock.NewLLMAdapter(mock.LLMConfig{ResponseText: settings.Response}), nil
	}
	return mock.NewLLMAdapter(mock.LLMConfig{
		Respond: func(input llm.Context) (string, error) {
			for i := len(input.Messages) - 1; i >= 0; i-- {
				if input.Messages[i].Role == llm.RoleUser {
					return settings.Prefix + input.Messages[i].Content, nil
				}
			}
			return "", fmt.Errorf("no user message")
		},
	}), nil
}

func buildSQLStore(ctx context.Context, cfg Config) (store.Admin, error) {
	st, err := sqlstore.Open(ctx, sqlstore.Options{
		Driver:      cfg.Store.Driver,
		DSN:         cfg.Store.DSN,
		AutoMigrate: cfg.Store.AutoMigrate,
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}
