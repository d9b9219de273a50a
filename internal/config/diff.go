package config

import "reflect"

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	// LogLevelChanged is applied live to the process log level.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AssistantChanged means sessions opened from now on use the new
	// assistant settings. Running sessions keep theirs.
	AssistantChanged bool

	// RestartRequired lists changed settings that only take effect after a
	// process restart (listener, TLS, providers, mock toggles).
	RestartRequired []string
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !reflect.DeepEqual(old.Assistant, new.Assistant) {
		d.AssistantChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if !reflect.DeepEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server.tls")
	}
	if !reflect.DeepEqual(old.Server.AllowedOrigins, new.Server.AllowedOrigins) {
		d.RestartRequired = append(d.RestartRequired, "server.allowed_origins")
	}
	if !reflect.DeepEqual(old.Providers.LLM, new.Providers.LLM) {
		d.RestartRequired = append(d.RestartRequired, "providers.llm")
	}
	if !reflect.DeepEqual(old.Providers.STT, new.Providers.STT) {
		d.RestartRequired = append(d.RestartRequired, "providers.stt")
	}
	if old.Mock.SearchEnabled() != new.Mock.SearchEnabled() || old.Mock.ImageEnabled() != new.Mock.ImageEnabled() {
		d.RestartRequired = append(d.RestartRequired, "mock")
	}

	return d
}
