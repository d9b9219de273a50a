// Package app wires all Gaia subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context ends, and Shutdown tears
// everything down in order.
//
// Collaborators are injected via functional options (WithListener,
// WithMetrics, WithTelemetry, WithLevel). When an option is not provided, New
// derives the value from the config or the global OpenTelemetry providers.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/gaia/internal/analyzer"
	"github.com/MrWong99/gaia/internal/assistant"
	"github.com/MrWong99/gaia/internal/capture"
	"github.com/MrWong99/gaia/internal/config"
	"github.com/MrWong99/gaia/internal/health"
	"github.com/MrWong99/gaia/internal/observe"
	"github.com/MrWong99/gaia/internal/web"
	"github.com/MrWong99/gaia/pkg/provider/image"
	"github.com/MrWong99/gaia/pkg/provider/llm"
	"github.com/MrWong99/gaia/pkg/provider/search"
	"github.com/MrWong99/gaia/pkg/provider/stt"
)

// DefaultListenAddr is used when server.listen_addr is empty.
const DefaultListenAddr = ":8080"

// ShutdownTimeout bounds the graceful shutdown Run performs when its context
// ends.
const ShutdownTimeout = 15 * time.Second

// recognizerSampleRate is the PCM rate browsers are asked to stream for
// server-side recognition.
const recognizerSampleRate = 16000

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM    llm.Provider
	STT    stt.Provider
	Search search.Provider
	Image  image.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics  *observe.Metrics
	scrape   http.Handler
	level    *slog.LevelVar
	analyzer *analyzer.Service
	sessions *SessionManager
	web      *web.Server
	server   *http.Server
	listener net.Listener

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithListener serves on l instead of listening on server.listen_addr.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// WithMetrics injects the metric instruments instead of the global ones.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithTelemetry records metrics through t and serves its registry on /metrics.
func WithTelemetry(t *observe.Telemetry) Option {
	return func(a *App) {
		a.metrics = t.Metrics
		a.scrape = t.Handler()
	}
}

// WithLevel hands the process log level to the App so config reloads can
// change it.
func WithLevel(level *slog.LevelVar) Option {
	return func(a *App) { a.level = level }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Analyzer ──────────────────────────────────────────────────────
	a.analyzer = analyzer.NewService(providers.LLM,
		analyzer.WithTimeout(cfg.Assistant.AnalyzeTimeout),
		analyzer.WithProviderName(cfg.Providers.LLM.Name),
		analyzer.WithMetrics(a.metrics),
	)
	if !a.analyzer.Available() {
		slog.Warn("analyzer unavailable: no LLM provider configured; every analysis returns no opportunities")
	}

	// ── 2. Sessions ──────────────────────────────────────────────────────
	a.sessions = NewSessionManager()

	// ── 3. HTTP surface ──────────────────────────────────────────────────
	a.web = web.New(web.Config{
		Analyzer:       a.analyzer,
		Search:         providers.Search,
		Image:          providers.Image,
		Recognizer:     providers.STT,
		Assistant:      AssistantTemplate(cfg.Assistant),
		Checkers:       a.checkers(),
		OriginPatterns: cfg.Server.AllowedOrigins,
		Sessions:       a.sessions,
		Metrics:        a.metrics,
		MetricsHandler: a.scrape,
	})

	// ── 4. Listener ──────────────────────────────────────────────────────
	if a.listener == nil {
		addr := cfg.Server.ListenAddr
		if addr == "" {
			addr = DefaultListenAddr
		}
		var lc net.ListenConfig
		l, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("app: listen %q: %w", addr, err)
		}
		a.listener = l
	}

	a.server = &http.Server{
		Handler:           a.web.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	return a, nil
}

// checkers returns the readiness probes. A missing LLM degrades readiness
// without failing it: the server still answers every route.
func (a *App) checkers() []health.Checker {
	return []health.Checker{
		{
			Name: "analyzer",
			Check: func(context.Context) error {
				if !a.analyzer.Available() {
					return health.Degraded("no LLM provider configured")
				}
				return nil
			},
		},
	}
}

// AssistantTemplate maps the assistant config section onto the controller
// template shared by every session.
func AssistantTemplate(c config.AssistantConfig) assistant.Config {
	restart := capture.DefaultRestartPolicy()
	if c.Restart.Enabled != nil {
		restart.Enabled = *c.Restart.Enabled
	}
	restart.MaxAttempts = c.Restart.MaxAttempts
	if c.Restart.Backoff > 0 {
		restart.Backoff = c.Restart.Backoff
	}

	return assistant.Config{
		Stream: stt.StreamConfig{
			SampleRate: recognizerSampleRate,
			Channels:   1,
			Language:   c.Language,
			Interim:    true,
		},
		Restart:       restart,
		Debounce:      c.Debounce,
		Window:        c.Window,
		MaxCards:      capLimit(c.MaxCards),
		MaxTranscript: capLimit(c.MaxTranscript),
		Speaker:       c.Speaker,
	}
}

// capLimit translates a configured cap into the controller's convention:
// unset keeps the default (0) and an explicit 0 disables the cap (-1).
func capLimit(v *int) int {
	switch {
	case v == nil:
		return 0
	case *v <= 0:
		return -1
	default:
		return *v
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP and blocks until ctx is cancelled or the server fails.
// When ctx is done, Run shuts the App down gracefully within
// [ShutdownTimeout] and returns context.Canceled (or the underlying cause).
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ServeTLS(a.listener, tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.Serve(a.listener)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})

	slog.Info("app running", "addr", a.Addr(), "tls", a.cfg.Server.TLS != nil)

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), ShutdownTimeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Addr returns the address the server is listening on.
func (a *App) Addr() string {
	return a.listener.Addr().String()
}

// Handler returns the HTTP handler served by the App.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Sessions returns the live WebSocket session registry.
func (a *App) Sessions() *SessionManager {
	return a.sessions
}

// ApplyConfig applies the hot-reloadable parts of a changed config: the log
// level and the assistant settings for new sessions. Everything else is
// logged as requiring a restart.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.AssistantChanged {
		a.web.SetAssistant(AssistantTemplate(new.Assistant))
		slog.Info("assistant settings updated for new sessions")
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes require a restart to take effect", "fields", d.RestartRequired)
	}
}

// SlogLevel maps a config log level to its slog equivalent. Unknown values
// map to info.
func SlogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// OnShutdown registers fn to run during Shutdown after the HTTP server has
// stopped. Closers run in registration order.
func (a *App) OnShutdown(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Shutdown stops accepting connections, ends open WebSocket sessions, waits
// for in-flight requests and then runs the registered closers. It respects
// the context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "sessions", a.sessions.Len(), "closers", len(a.closers))

		// Hijacked WebSocket connections are invisible to http.Server.Shutdown.
		a.sessions.CloseAll()

		var errs []error
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("app: http shutdown: %w", err))
		}
		if err := a.sessions.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("app: waiting for sessions: %w", err))
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				errs = append(errs, ctx.Err())
				shutdownErr = errors.Join(errs...)
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		shutdownErr = errors.Join(errs...)
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
