// Package web exposes Gaia over HTTP.
//
// Routes:
//
//	POST /analyze-opportunities   transcript → opportunity cards
//	POST /search                  query → canned search results
//	POST /generate-image          prompt → placeholder image reference
//	GET  /ws                      one assistant session per WebSocket
//	GET  /healthz, /readyz        liveness and readiness
//	GET  /metrics                 Prometheus scrape endpoint
//
// The three POST routes are also mounted under /api/. They always answer 200:
// every failure, malformed input included, degrades to an empty result.
package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/gaia/internal/analyzer"
	"github.com/MrWong99/gaia/internal/assistant"
	"github.com/MrWong99/gaia/internal/health"
	"github.com/MrWong99/gaia/internal/observe"
	"github.com/MrWong99/gaia/pkg/provider/image"
	"github.com/MrWong99/gaia/pkg/provider/search"
	"github.com/MrWong99/gaia/pkg/provider/stt"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// maxFrameBytes caps a single WebSocket message, which may carry PCM audio.
const maxFrameBytes = 1 << 20

// Config wires the HTTP surface to its collaborators.
type Config struct {
	// Analyzer serves /analyze-opportunities and every WebSocket session.
	// Required.
	Analyzer analyzer.Analyzer

	// Search serves /search. Nil answers with no results.
	Search search.Provider

	// Image serves /generate-image. Nil answers with a null image.
	Image image.Provider

	// Recognizer is the server-side speech recognizer shared by all sessions.
	// Nil means recognition happens in the browser and results are relayed
	// over the socket.
	Recognizer stt.Provider

	// Assistant is the template for every session's controller. Analyzer,
	// Recognizer and Microphone are filled in per session.
	Assistant assistant.Config

	// Checkers are evaluated by /readyz.
	Checkers []health.Checker

	// OriginPatterns lists extra hosts allowed to open WebSockets
	// cross-origin.
	OriginPatterns []string

	// Sessions, when set, is told about every WebSocket session.
	Sessions SessionTracker

	// Metrics defaults to observe.DefaultMetrics.
	Metrics *observe.Metrics

	// MetricsHandler serves /metrics. Nil serves the default Prometheus
	// registry.
	MetricsHandler http.Handler
}

// SessionInfo describes one open WebSocket session.
type SessionInfo struct {
	ID         string
	RemoteAddr string
	StartedAt  time.Time
}

// SessionTracker observes session lifetimes. Track is called when a session
// opens; cancel ends that session. The returned func is called once the
// session has closed.
type SessionTracker interface {
	Track(info SessionInfo, cancel context.CancelFunc) (untrack func())
}

// Server holds the HTTP handlers. It is safe for concurrent use.
type Server struct {
	cfg     Config
	metrics *observe.Metrics
	health  *health.Handler

	mu        sync.RWMutex
	assistant assistant.Config
}

// New returns a Server.
func New(cfg Config) *Server {
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}
	return &Server{
		cfg:       cfg,
		metrics:   cfg.Metrics,
		health:    health.New(cfg.Checkers...),
		assistant: cfg.Assistant,
	}
}

// SetAssistant replaces the controller template. Sessions opened afterwards
// use it; open sessions keep the settings they started with.
func (s *Server) SetAssistant(tpl assistant.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assistant = tpl
}

func (s *Server) assistantTemplate() assistant.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assistant
}

// Handler returns the full route table wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, prefix := range []string{"", "/api"} {
		mux.HandleFunc("POST "+prefix+"/analyze-opportunities", s.handleAnalyze)
		mux.HandleFunc("POST "+prefix+"/search", s.handleSearch)
		mux.HandleFunc("POST "+prefix+"/generate-image", s.handleGenerateImage)
	}
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /metrics", s.cfg.MetricsHandler)
	s.health.Register(mux)

	return observe.Middleware(s.metrics)(mux)
}

func (s *Server) acceptOptions() *websocket.AcceptOptions {
	return &websocket.AcceptOptions{OriginPatterns: s.cfg.OriginPatterns}
}
