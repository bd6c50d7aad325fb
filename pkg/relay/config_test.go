package relay

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/tarjama/pkg/translation"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tarjama.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(nil, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Vendors.STT.Provider != "speechmatics" || cfg.Vendors.LLM.Provider != "openai" {
		t.Fatalf("unexpected vendors: %+v", cfg.Vendors)
	}
	if cfg.Translation.Mode != string(translation.ModeRolling) || cfg.Translation.MaxContextMessages != 9 {
		t.Fatalf("unexpected translation config: %+v", cfg.Translation)
	}
	rc := cfg.RecognitionConfig("ar")
	if rc.MaxDelay != 2*time.Second || rc.SampleRate != 48000 || !rc.Punctuation.Enabled {
		t.Fatalf("unexpected recognition config: %+v", rc)
	}
	if cfg.ShutdownTimeout() != 10*time.Second {
		t.Fatalf("unexpected shutdown timeout %v", cfg.ShutdownTimeout())
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("TARJAMA_TEST_KEY", "sk-test")
	t.Setenv("TARJAMA_TEST_DSN", "postgres://relay@db/tarjama")
	path := writeConfig(t, `
log_level: debug
vendors:
  stt:
    provider: deepgram
    settings:
      api_key: ${TARJAMA_TEST_KEY}
  llm:
    provider: openai
    settings:
      api_key: ${TARJAMA_TEST_KEY}
      model: gpt-4o
translation:
  mode: stateless
  timeout_ms: 5000
store:
  driver: postgres
  dsn: ${TARJAMA_TEST_DSN}
`)
	cfg, err := LoadConfig(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.DSN != "postgres://relay@db/tarjama" {
		t.Fatalf("dsn not expanded: %q", cfg.Store.DSN)
	}
	if cfg.Vendors.LLM.Settings["api_key"] != "sk-test" || cfg.Vendors.STT.Settings["api_key"] != "sk-test" {
		t.Fatalf("settings not expanded: %+v %+v", cfg.Vendors.LLM.Settings, cfg.Vendors.STT.Settings)
	}
	tc := cfg.TranslationFor("ar", "en")
	if tc.Mode != translation.ModeStateless || tc.Timeout != 5*time.Second {
		t.Fatalf("unexpected translation config: %+v", tc)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected debug log level, got %q", cfg.LogLevel)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"bad mode", "translation:\n  mode: batch\n", "translation.mode"},
		{"bad driver", "store:\n  driver: mysql\n", "store.driver"},
		{"missing dsn", "store:\n  driver: postgres\n  dsn: \"\"\n", "store.dsn"},
		{"bad operating point", "stt:\n  operating_point: turbo\n", "stt.operating_point"},
		{"empty provider", "vendors:\n  stt:\n    provider: \"\"\n", "vendors.stt.provider"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(nil, writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %s, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(nil, filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
