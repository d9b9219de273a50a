package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/gaia/internal/config"
)

func TestValidate_NegativeValues(t *testing.T) {
	t.Parallel()
	yaml := `
assistant:
  debounce: -1s
  window: -2
  max_cards: -1
  max_transcript: -5
  analyze_timeout: -3s
  restart:
    max_attempts: -1
    backoff: -10ms
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative values, got nil")
	}
	for _, field := range []string{
		"assistant.debounce", "assistant.window", "assistant.max_cards",
		"assistant.max_transcript", "assistant.analyze_timeout",
		"assistant.restart.max_attempts", "assistant.restart.backoff",
	} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error should mention %s, got: %v", field, err)
		}
	}
}

func TestValidate_WindowExceedsRetention(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("assistant:\n  window: 10\n  max_transcript: 5\n"))
	if err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("expected window/retention error, got %v", err)
	}

	// 0 disables retention, so any window fits.
	if _, err := config.LoadFromReader(strings.NewReader("assistant:\n  window: 10\n  max_transcript: 0\n")); err != nil {
		t.Errorf("unbounded retention: unexpected error %v", err)
	}
}

func TestValidate_TLSNeedsBothFiles(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("server:\n  tls:\n    cert_file: cert.pem\n"))
	if err == nil || !strings.Contains(err.Error(), "tls") {
		t.Fatalf("expected tls error, got %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
assistant:
  window: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") || !strings.Contains(err.Error(), "window") {
		t.Errorf("expected both errors joined, got: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	for _, kind := range []string{"llm", "stt"} {
		if len(config.ValidProviderNames[kind]) == 0 {
			t.Errorf("ValidProviderNames[%q] is empty", kind)
		}
	}
	for name := range config.EnvKeys {
		known := false
		for _, names := range config.ValidProviderNames {
			for _, n := range names {
				known = known || n == name
			}
		}
		if !known {
			t.Errorf("EnvKeys has %q which is not a known provider", name)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()
	env := map[string]string{
		"OPENAI_API_KEY":   "sk-env",
		"DEEPGRAM_API_KEY": "dg-env",
	}
	getenv := func(k string) string { return env[k] }

	tests := []struct {
		name    string
		cfg     config.Config
		wantLLM string
		wantSTT string
	}{
		{
			name:    "fills empty keys",
			cfg:     config.Config{Providers: config.ProvidersConfig{LLM: config.ProviderEntry{Name: "openai"}, STT: config.ProviderEntry{Name: "deepgram"}}},
			wantLLM: "sk-env",
			wantSTT: "dg-env",
		},
		{
			name:    "explicit key wins",
			cfg:     config.Config{Providers: config.ProvidersConfig{LLM: config.ProviderEntry{Name: "openai", APIKey: "sk-file"}}},
			wantLLM: "sk-file",
		},
		{
			name: "unconfigured provider stays empty",
			cfg:  config.Config{},
		},
		{
			name: "provider without env convention",
			cfg:  config.Config{Providers: config.ProvidersConfig{LLM: config.ProviderEntry{Name: "ollama"}}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := tc.cfg
			config.ApplyEnv(&cfg, getenv)
			if cfg.Providers.LLM.APIKey != tc.wantLLM {
				t.Errorf("llm api_key = %q, want %q", cfg.Providers.LLM.APIKey, tc.wantLLM)
			}
			if cfg.Providers.STT.APIKey != tc.wantSTT {
				t.Errorf("stt api_key = %q, want %q", cfg.Providers.STT.APIKey, tc.wantSTT)
			}
		})
	}
}

func TestLoad_DotEnvAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("OPENAI_API_KEY", "")
	os.Unsetenv("OPENAI_API_KEY")

	writeFile(t, filepath.Join(dir, ".env"), "OPENAI_API_KEY=sk-dotenv\n")
	writeFile(t, filepath.Join(dir, "config.yaml"), "providers:\n  llm:\n    name: openai\n")

	cfg, err := config.Load(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.LLM.APIKey != "sk-dotenv" {
		t.Errorf("api_key = %q, want value from .env", cfg.Providers.LLM.APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := config.Load("does-not-exist.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "does-not-exist.yaml") {
		t.Errorf("error should name the file, got: %v", err)
	}
}

func TestLoadDotEnv_MissingFileIsFine(t *testing.T) {
	t.Parallel()
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("LoadDotEnv: %v", err)
	}
}
