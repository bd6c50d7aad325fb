// Package relay wires configuration, providers and the per-room agent.
package relay

import (
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/spf13/viper"

	"github.com/harunnryd/tarjama/pkg/adapters/stt"
	"github.com/harunnryd/tarjama/pkg/configutil"
	"github.com/harunnryd/tarjama/pkg/resilience"
	"github.com/harunnryd/tarjama/pkg/translation"
)

type Config struct {
	Environment string            `mapstructure:"environment"`
	LogLevel    string            `mapstructure:"log_level"`
	LogFormat   string            `mapstructure:"log_format"`
	Privacy     PrivacyConfig     `mapstructure:"privacy"`
	Vendors     VendorsConfig     `mapstructure:"vendors"`
	STT         STTConfig         `mapstructure:"stt"`
	Translation TranslationConfig `mapstructure:"translation"`
	Store       StoreConfig       `mapstructure:"store"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Shutdown    ShutdownConfig    `mapstructure:"shutdown"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

type PrivacyConfig struct {
	RedactLogs bool `mapstructure:"redact_logs"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	STT VendorConfig `mapstructure:"stt"`
	LLM VendorConfig `mapstructure:"llm"`
}

type STTConfig struct {
	OperatingPoint         string  `mapstructure:"operating_point"`
	EnablePartials         bool    `mapstructure:"enable_partials"`
	MaxDelayMS             int     `mapstructure:"max_delay_ms"`
	Punctuation            bool    `mapstructure:"punctuation"`
	PunctuationSensitivity float64 `mapstructure:"punctuation_sensitivity"`
	SampleRate             int     `mapstructure:"sample_rate"`
	Channels               int     `mapstructure:"channels"`
}

type TranslationConfig struct {
	Mode               string `mapstructure:"mode"`
	MaxContextMessages int    `mapstructure:"max_context_messages"`
	TimeoutMS          int    `mapstructure:"timeout_ms"`
	Prompt             string `mapstructure:"prompt"`
	BreakerThreshold   int    `mapstructure:"breaker_threshold"`
	BreakerCooldownMS  int    `mapstructure:"breaker_cooldown_ms"`
}

type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type NotifyConfig struct {
	URL       string `mapstructure:"url"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

type WorkerConfig struct {
	QueueSize        int `mapstructure:"queue_size"`
	ConnectRetries   int `mapstructure:"connect_retries"`
	ConnectBackoffMS int `mapstructure:"connect_backoff_ms"`
}

// MetricsConfig enables JSON-lines timing events. An empty path disables
// them; "-" writes to stderr.
type MetricsConfig struct {
	Path       string  `mapstructure:"path"`
	SampleRate float64 `mapstructure:"sample_rate"`
	Buffer     int     `mapstructure:"buffer"`
}

type ShutdownConfig struct {
	TimeoutMS int `mapstructure:"timeout_ms"`
}

// NewViper returns a viper instance carrying every default. Callers may bind
// flags to it before LoadConfig.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("privacy.redact_logs", false)
	v.SetDefault("vendors.stt.provider", "speechmatics")
	v.SetDefault("vendors.llm.provider", "openai")
	v.SetDefault("stt.operating_point", stt.OperatingPointEnhanced)
	v.SetDefault("stt.enable_partials", true)
	v.SetDefault("stt.max_delay_ms", 2000)
	v.SetDefault("stt.punctuation", true)
	v.SetDefault("stt.punctuation_sensitivity", 0.5)
	v.SetDefault("stt.sample_rate", 48000)
	v.SetDefault("stt.channels", 1)
	v.SetDefault("translation.mode", string(translation.ModeRolling))
	v.SetDefault("translation.max_context_messages", translation.DefaultMaxMessages)
	v.SetDefault("translation.timeout_ms", 15000)
	v.SetDefault("translation.prompt", "")
	v.SetDefault("translation.breaker_threshold", 3)
	v.SetDefault("translation.breaker_cooldown_ms", 30000)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "file:tarjama.sqlite")
	v.SetDefault("store.auto_migrate", true)
	v.SetDefault("notify.url", "")
	v.SetDefault("notify.timeout_ms", 5000)
	v.SetDefault("worker.queue_size", 32)
	v.SetDefault("worker.connect_retries", 2)
	v.SetDefault("worker.connect_backoff_ms", 500)
	v.SetDefault("shutdown.timeout_ms", 10000)
	v.SetDefault("metrics.path", "")
	v.SetDefault("metrics.sample_rate", 1.0)
	v.SetDefault("metrics.buffer", 256)
	return v
}

// LoadConfig reads path (optional) into v, expands ${ENV} references and validates.
func LoadConfig(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = NewViper()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	expandEnvStrings(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := configutil.RequireString(c.Vendors.STT.Provider, "vendors.stt.provider"); err != nil {
		return err
	}
	if err := configutil.RequireString(c.Vendors.LLM.Provider, "vendors.llm.provider"); err != nil {
		return err
	}
	switch translation.Mode(c.Translation.Mode) {
	case translation.ModeRolling, translation.ModeStateless:
	default:
		return fmt.Errorf("translation.mode must be rolling or stateless, got %q", c.Translation.Mode)
	}
	switch c.Store.Driver {
	case "memory":
	case "postgres", "sqlite":
		if err := configutil.RequireString(c.Store.DSN, "store.dsn"); err != nil {
			return fmt.Errorf("%w for driver %s", err, c.Store.Driver)
		}
	default:
		return fmt.Errorf("store.driver must be postgres, sqlite or memory, got %q", c.Store.Driver)
	}
	switch c.STT.OperatingPoint {
	case stt.OperatingPointStandard, stt.OperatingPointEnhanced:
	default:
		return fmt.Errorf("stt.operating_point must be standard or enhanced, got %q", c.STT.OperatingPoint)
	}
	if c.STT.SampleRate <= 0 {
		return fmt.Errorf("stt.sample_rate must be positive")
	}
	if c.Worker.QueueSize <= 0 {
		return fmt.Errorf("worker.queue_size must be positive")
	}
	return nil
}

// RecognitionConfig is the per-track STT profile for language.
func (c Config) RecognitionConfig(language string) stt.Config {
	channels := c.STT.Channels
	if channels <= 0 {
		channels = 1
	}
	return stt.Config{
		Language:       language,
		OperatingPoint: c.STT.OperatingPoint,
		EnablePartials: c.STT.EnablePartials,
		MaxDelay:       time.Duration(c.STT.MaxDelayMS) * time.Millisecond,
		Punctuation: stt.PunctuationConfig{
			Enabled:     c.STT.Punctuation,
			Sensitivity: c.STT.PunctuationSensitivity,
		},
		SampleRate: c.STT.SampleRate,
		Channels:   channels,
	}
}

// TranslationFor builds the translator settings for a language pair.
func (c Config) TranslationFor(source, target string) translation.Config {
	return translation.Config{
		SourceLanguage: source,
		TargetLanguage: target,
		Mode:           translation.Mode(c.Translation.Mode),
		MaxMessages:    c.Translation.MaxContextMessages,
		Timeout:        time.Duration(c.Translation.TimeoutMS) * time.Millisecond,
		Prompt:         c.Translation.Prompt,
	}
}

func (c Config) ConnectRetry() resilience.RetryPolicy {
	return resilience.NewRetryPolicy(c.Worker.ConnectRetries, time.Duration(c.Worker.ConnectBackoffMS)*time.Millisecond)
}

func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Shutdown.TimeoutMS) * time.Millisecond
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.STT.Settings = expandSettings(cfg.Vendors.STT.Settings)
	cfg.Vendors.LLM.Settings = expandSettings(cfg.Vendors.LLM.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	}
}
