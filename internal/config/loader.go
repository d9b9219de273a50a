package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"deepgram"},
}

// EnvKeys maps provider names to the environment variable that supplies their
// API key when the config leaves api_key empty.
var EnvKeys = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"deepseek":  "DEEPSEEK_API_KEY",
	"mistral":   "MISTRAL_API_KEY",
	"groq":      "GROQ_API_KEY",
	"deepgram":  "DEEPGRAM_API_KEY",
}

// Load reads the YAML configuration file at path, overlays credentials from
// the environment (and an optional .env file next to the working directory),
// and returns a validated [Config].
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	ApplyEnv(cfg, os.Getenv)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// It does not consult the environment.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given dotenv files into the process
// environment. Missing files are skipped and variables already set win.
func LoadDotEnv(files ...string) error {
	for _, name := range files {
		err := godotenv.Load(name)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return fmt.Errorf("config: load %q: %w", name, err)
	}
	return nil
}

// ApplyEnv fills empty provider API keys from the environment variable
// registered for the provider's name in [EnvKeys].
func ApplyEnv(cfg *Config, getenv func(string) string) {
	for _, entry := range []*ProviderEntry{&cfg.Providers.LLM, &cfg.Providers.STT} {
		if entry.Name == "" || entry.APIKey != "" {
			continue
		}
		if key, ok := EnvKeys[entry.Name]; ok {
			entry.APIKey = getenv(key)
		}
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "") != (tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)

	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; opportunity analysis will always return no results")
	} else if cfg.Providers.LLM.APIKey == "" && cfg.Providers.LLM.Name != "ollama" {
		if key, ok := EnvKeys[cfg.Providers.LLM.Name]; ok {
			slog.Warn("LLM provider has no API key; set api_key or the environment variable",
				"name", cfg.Providers.LLM.Name,
				"env", key,
			)
		}
	}

	// Assistant
	a := cfg.Assistant
	if a.Debounce < 0 {
		errs = append(errs, fmt.Errorf("assistant.debounce %s must not be negative", a.Debounce))
	}
	if a.Window < 0 {
		errs = append(errs, fmt.Errorf("assistant.window %d must not be negative", a.Window))
	}
	if a.MaxCards != nil && *a.MaxCards < 0 {
		errs = append(errs, fmt.Errorf("assistant.max_cards %d must not be negative", *a.MaxCards))
	}
	if a.MaxTranscript != nil && *a.MaxTranscript < 0 {
		errs = append(errs, fmt.Errorf("assistant.max_transcript %d must not be negative", *a.MaxTranscript))
	}
	if a.MaxTranscript != nil && *a.MaxTranscript > 0 && a.Window > *a.MaxTranscript {
		errs = append(errs, fmt.Errorf("assistant.window %d exceeds assistant.max_transcript %d", a.Window, *a.MaxTranscript))
	}
	if a.AnalyzeTimeout < 0 {
		errs = append(errs, fmt.Errorf("assistant.analyze_timeout %s must not be negative", a.AnalyzeTimeout))
	}
	if a.Restart.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("assistant.restart.max_attempts %d must not be negative", a.Restart.MaxAttempts))
	}
	if a.Restart.Backoff < 0 {
		errs = append(errs, fmt.Errorf("assistant.restart.backoff %s must not be negative", a.Restart.Backoff))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
