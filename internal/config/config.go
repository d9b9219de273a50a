// Package config provides the configuration schema, loader, provider registry
// and file watcher for the Gaia assistant server.
package config

import "time"

// LogLevel controls log verbosity for the Gaia server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Gaia.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Assistant AssistantConfig `yaml:"assistant"`
	Mock      MockConfig      `yaml:"mock"`
}

// ServerConfig holds network and logging settings for the Gaia server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`

	// AllowedOrigins lists extra host patterns allowed to open WebSocket
	// sessions cross-origin (e.g., "localhost:3000").
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation backs each
// capability. Each field selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	// LLM backs opportunity analysis. Empty disables analysis; every request
	// then degrades to an empty result.
	LLM ProviderEntry `yaml:"llm"`

	// STT selects a server-side speech recognizer fed with PCM over the
	// WebSocket. Empty means the browser recognizes speech and relays text.
	STT ProviderEntry `yaml:"stt"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "deepgram").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	// When empty it is filled from the provider's conventional environment
	// variable (see [ApplyEnv]).
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o", "nova-2").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// AssistantConfig tunes every assistant session. Zero values select the
// built-in defaults.
type AssistantConfig struct {
	// Debounce is the quiet period after the last utterance before an
	// analysis runs (e.g., "2s").
	Debounce time.Duration `yaml:"debounce"`

	// Window is how many recent utterances each analysis sees.
	Window int `yaml:"window"`

	// MaxCards caps the opportunity list per session. Unset keeps the
	// default; 0 disables the cap.
	MaxCards *int `yaml:"max_cards"`

	// MaxTranscript caps retained transcript entries per session. Unset keeps
	// the default; 0 disables the cap.
	MaxTranscript *int `yaml:"max_transcript"`

	// AnalyzeTimeout bounds every model call.
	AnalyzeTimeout time.Duration `yaml:"analyze_timeout"`

	// Speaker labels locally captured utterances.
	Speaker string `yaml:"speaker"`

	// Language is the recognition language passed to speech recognizers
	// (e.g., "en-US").
	Language string `yaml:"language"`

	// Restart controls how capture reopens a recognition session that ended
	// on its own.
	Restart RestartConfig `yaml:"restart"`
}

// RestartConfig mirrors capture.RestartPolicy.
type RestartConfig struct {
	// Enabled defaults to true when unset.
	Enabled *bool `yaml:"enabled"`

	// MaxAttempts bounds consecutive restarts without a result. 0 is unlimited.
	MaxAttempts int `yaml:"max_attempts"`

	// Backoff is the pause before each restart.
	Backoff time.Duration `yaml:"backoff"`
}

// MockConfig toggles the canned collaborator endpoints.
type MockConfig struct {
	// Search serves fixed results on /search. Defaults to true.
	Search *bool `yaml:"search"`

	// Image serves placeholder references on /generate-image. Defaults to true.
	Image *bool `yaml:"image"`
}

// SearchEnabled reports whether the canned search endpoint is on.
func (m MockConfig) SearchEnabled() bool { return m.Search == nil || *m.Search }

// ImageEnabled reports whether the placeholder image endpoint is on.
func (m MockConfig) ImageEnabled() bool { return m.Image == nil || *m.Image }
