package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/gaia/internal/config"
)

const watcherValidYAML = `
server:
  log_level: info
providers:
  llm:
    name: openai
assistant:
  debounce: 2s
`

const watcherUpdatedYAML = `
server:
  log_level: debug
providers:
  llm:
    name: openai
assistant:
  debounce: 1s
`

const watcherInvalidYAML = `
server:
  log_level: bananas
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
}

func noEnv(string) string { return "" }

type change struct{ old, new *config.Config }

// runWatcher writes content to a fresh config file and runs a watcher on it
// until the test ends. Every callback is delivered on the returned channel.
func runWatcher(t *testing.T, content string, opts ...config.WatcherOption) (*config.Watcher, string, <-chan change) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, content)

	changes := make(chan change, 8)
	opts = append([]config.WatcherOption{config.WithGetenv(noEnv)}, opts...)
	w, err := config.NewWatcher(path, func(old, new *config.Config) {
		changes <- change{old, new}
	}, opts...)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	})
	return w, path, changes
}

func waitChange(t *testing.T, changes <-chan change) change {
	t.Helper()
	select {
	case c := <-changes:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no config change delivered")
		return change{}
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watcherValidYAML)

	getenv := func(k string) string {
		if k == "OPENAI_API_KEY" {
			return "sk-watch"
		}
		return ""
	}
	w, err := config.NewWatcher(path, nil, config.WithGetenv(getenv))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	cfg := w.Current()
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Providers.LLM.APIKey != "sk-watch" {
		t.Errorf("api_key = %q, want sk-watch", cfg.Providers.LLM.APIKey)
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()

	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Error("expected error for a missing file")
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watcherInvalidYAML)
	if _, err := config.NewWatcher(path, nil, config.WithGetenv(noEnv)); err == nil {
		t.Error("expected error for an invalid file")
	}
}

func TestWatcher_PollDetectsChange(t *testing.T) {
	t.Parallel()
	w, path, changes := runWatcher(t, watcherValidYAML, config.WithInterval(20*time.Millisecond))

	writeFile(t, path, watcherUpdatedYAML)
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	c := waitChange(t, changes)
	d := config.Diff(c.old, c.new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("diff log level = %+v", d)
	}
	if !d.AssistantChanged {
		t.Error("diff should report the assistant change")
	}
	if got := w.Current().Assistant.Debounce; got != time.Second {
		t.Errorf("Current() debounce = %s, want 1s", got)
	}
}

func TestWatcher_ReloadIgnoresMtime(t *testing.T) {
	t.Parallel()
	w, path, changes := runWatcher(t, watcherValidYAML, config.WithInterval(time.Hour))

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, watcherUpdatedYAML)
	// Restore the old mtime so only a forced reload can notice.
	if err := os.Chtimes(path, info.ModTime(), info.ModTime()); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	w.Reload()
	c := waitChange(t, changes)
	if c.old.Server.LogLevel != config.LogInfo || c.new.Server.LogLevel != config.LogDebug {
		t.Errorf("change = %q -> %q, want info -> debug", c.old.Server.LogLevel, c.new.Server.LogLevel)
	}
}

func TestWatcher_KeepsConfigWhenFileEmptied(t *testing.T) {
	t.Parallel()
	w, path, changes := runWatcher(t, watcherValidYAML, config.WithInterval(20*time.Millisecond))

	for _, blank := range []string{"", "  \n\t\n"} {
		writeFile(t, path, blank)
		later := time.Now().Add(time.Minute)
		if err := os.Chtimes(path, later, later); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
		w.Reload()
		select {
		case c := <-changes:
			t.Fatalf("blank file %q applied: log %q -> %q", blank, c.old.Server.LogLevel, c.new.Server.LogLevel)
		case <-time.After(100 * time.Millisecond):
		}
	}

	cfg := w.Current()
	if cfg.Server.LogLevel != config.LogInfo || cfg.Providers.LLM.Name != "openai" || cfg.Assistant.Debounce != 2*time.Second {
		t.Errorf("Current() = %+v after emptying the file, want the original config", cfg)
	}

	if _, err := config.NewWatcher(path, nil, config.WithGetenv(noEnv)); err == nil {
		t.Error("NewWatcher accepted an empty file")
	}
}

func TestWatcher_SkipsInvalidAndUnchanged(t *testing.T) {
	t.Parallel()
	w, path, changes := runWatcher(t, watcherValidYAML, config.WithInterval(time.Hour))

	// Same bytes: no callback.
	writeFile(t, path, watcherValidYAML)
	w.Reload()
	// Invalid: logged, previous config stays.
	writeFile(t, path, watcherInvalidYAML)
	w.Reload()
	time.Sleep(50 * time.Millisecond)
	if got := w.Current().Server.LogLevel; got != config.LogInfo {
		t.Errorf("Current() log_level = %q after invalid edit, want info", got)
	}

	writeFile(t, path, watcherUpdatedYAML)
	w.Reload()
	c := waitChange(t, changes)
	if c.old.Server.LogLevel != config.LogInfo {
		t.Errorf("old log_level = %q, want info", c.old.Server.LogLevel)
	}
	select {
	case extra := <-changes:
		t.Errorf("unexpected extra change to %q", extra.new.Server.LogLevel)
	case <-time.After(50 * time.Millisecond):
	}
}
