package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/gaia/internal/app"
	"github.com/MrWong99/gaia/internal/assistant"
	"github.com/MrWong99/gaia/internal/config"
	"github.com/MrWong99/gaia/internal/health"
	"github.com/MrWong99/gaia/internal/observe"
	"github.com/MrWong99/gaia/pkg/provider/search/static"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// newTestApp starts an App on a loopback port and returns it with its base
// URL. The App is shut down when the test ends.
func newTestApp(t *testing.T, cfg *config.Config, providers *app.Providers, opts ...app.Option) (*app.App, string) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	opts = append([]app.Option{app.WithListener(l), app.WithMetrics(testMetrics(t))}, opts...)
	application, err := app.New(context.Background(), cfg, providers, opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- application.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("Run() returned unexpected error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Run() did not return within 5s after context cancellation")
		}
	})
	return application, "http://" + application.Addr()
}

func TestNew_WithoutLLMIsDegraded(t *testing.T) {
	t.Parallel()
	_, base := newTestApp(t, &config.Config{}, nil)

	resp, err := http.Get(base + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var body health.Report
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	want := health.CheckResult{Status: health.StatusDegraded, Detail: "no LLM provider configured"}
	if body.Status != health.StatusDegraded || body.Checks["analyzer"] != want {
		t.Errorf("readyz = %+v", body)
	}
}

func TestApp_ServesRoutes(t *testing.T) {
	t.Parallel()
	_, base := newTestApp(t, &config.Config{}, &app.Providers{Search: static.New()})

	resp, err := http.Post(base+"/api/search", "application/json", strings.NewReader(`{"query":"q"}`))
	if err != nil {
		t.Fatalf("POST /api/search: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(data), "example.com") {
		t.Errorf("search body = %s", data)
	}

	resp, err = http.Post(base+"/analyze-opportunities", "application/json", strings.NewReader(`{"transcript":"what if"}`))
	if err != nil {
		t.Fatalf("POST /analyze-opportunities: %v", err)
	}
	defer resp.Body.Close()
	data, _ = io.ReadAll(resp.Body)
	if got := strings.TrimSpace(string(data)); got != `{"opportunities":[]}` {
		t.Errorf("analyze body without LLM = %s", got)
	}
}

func TestApp_ShutdownEndsSessions(t *testing.T) {
	t.Parallel()
	application, base := newTestApp(t, &config.Config{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(base, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	var ev assistant.Event
	if err := wsjson.Read(ctx, conn, &ev); err != nil || ev.Type != assistant.EventSnapshot {
		t.Fatalf("first event = %+v, err %v", ev, err)
	}
	if got := application.Sessions().Len(); got != 1 {
		t.Fatalf("sessions = %d, want 1", got)
	}

	var closed []string
	application.OnShutdown(func() error { closed = append(closed, "first"); return nil })
	application.OnShutdown(func() error { closed = append(closed, "second"); return errors.New("ignored") })

	if err := application.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if got := application.Sessions().Len(); got != 0 {
		t.Errorf("sessions after shutdown = %d", got)
	}
	if strings.Join(closed, ",") != "first,second" {
		t.Errorf("closers ran as %v", closed)
	}

	_, _, err = conn.Read(ctx)
	if status := websocket.CloseStatus(err); status != websocket.StatusGoingAway {
		t.Errorf("close status = %v (err %v), want going away", status, err)
	}

	// Idempotent.
	if err := application.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown() error: %v", err)
	}
}

func TestApp_ApplyConfig(t *testing.T) {
	t.Parallel()
	level := new(slog.LevelVar)
	old := &config.Config{}
	application, base := newTestApp(t, old, nil, app.WithLevel(level))

	updated := &config.Config{
		Server:    config.ServerConfig{LogLevel: config.LogDebug},
		Assistant: config.AssistantConfig{Speaker: "Guest"},
	}
	application.ApplyConfig(old, updated)

	if level.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", level.Level())
	}

	// New sessions pick up the assistant change.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(base, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	if err := wsjson.Write(ctx, conn, map[string]any{"type": "utterance", "text": "hello there"}); err != nil {
		t.Fatal(err)
	}
	for {
		var ev assistant.Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		if ev.Type != assistant.EventTranscriptAppended {
			continue
		}
		if ev.Entry.Speaker != "Guest" {
			t.Errorf("speaker = %q, want Guest", ev.Entry.Speaker)
		}
		return
	}
}

func TestAssistantTemplate(t *testing.T) {
	t.Parallel()
	zero, five, off := 0, 5, false

	tpl := app.AssistantTemplate(config.AssistantConfig{})
	if !tpl.Restart.Enabled || tpl.Restart.Backoff != 250*time.Millisecond {
		t.Errorf("default restart = %+v", tpl.Restart)
	}
	if tpl.MaxCards != 0 || tpl.MaxTranscript != 0 {
		t.Errorf("unset caps = %d/%d, want defaults (0)", tpl.MaxCards, tpl.MaxTranscript)
	}
	if !tpl.Stream.Interim || tpl.Stream.SampleRate != 16000 || tpl.Stream.Channels != 1 {
		t.Errorf("stream = %+v", tpl.Stream)
	}

	tpl = app.AssistantTemplate(config.AssistantConfig{
		Debounce:      time.Second,
		Window:        4,
		MaxCards:      &zero,
		MaxTranscript: &five,
		Speaker:       "Me",
		Language:      "de-DE",
		Restart:       config.RestartConfig{Enabled: &off, MaxAttempts: 2, Backoff: time.Second},
	})
	if tpl.MaxCards != -1 {
		t.Errorf("max_cards 0 should disable the cap, got %d", tpl.MaxCards)
	}
	if tpl.MaxTranscript != 5 {
		t.Errorf("max_transcript = %d, want 5", tpl.MaxTranscript)
	}
	if tpl.Debounce != time.Second || tpl.Window != 4 || tpl.Speaker != "Me" || tpl.Stream.Language != "de-DE" {
		t.Errorf("template = %+v", tpl)
	}
	if tpl.Restart.Enabled || tpl.Restart.MaxAttempts != 2 || tpl.Restart.Backoff != time.Second {
		t.Errorf("restart = %+v", tpl.Restart)
	}
}

func TestSlogLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   config.LogLevel
		want slog.Level
	}{
		{config.LogDebug, slog.LevelDebug},
		{config.LogInfo, slog.LevelInfo},
		{config.LogWarn, slog.LevelWarn},
		{config.LogError, slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := app.SlogLevel(tc.in); got != tc.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
