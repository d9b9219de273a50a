package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/gaia/internal/assistant"
	"github.com/MrWong99/gaia/internal/capture"
	"github.com/MrWong99/gaia/internal/observe"
	"github.com/MrWong99/gaia/pkg/provider/stt"
	"github.com/MrWong99/gaia/pkg/provider/stt/relay"
	"github.com/MrWong99/gaia/pkg/types"
)

// Client message types.
const (
	msgStart            = "start"
	msgStop             = "stop"
	msgDismiss          = "dismiss"
	msgMute             = "mute"
	msgUtterance        = "utterance"
	msgRecognitionEnd   = "recognition_end"
	msgRecognitionError = "recognition_error"
)

// clientMessage is a JSON text frame sent by the browser.
type clientMessage struct {
	Type string `json:"type"`

	// Microphone is the browser's permission answer for start: "granted" or
	// "denied". Missing means granted.
	Microphone string `json:"microphone,omitempty"`

	// ID names the card to dismiss.
	ID string `json:"id,omitempty"`

	// Text and Final carry a browser-recognized result. Final defaults to
	// true.
	Text  string `json:"text,omitempty"`
	Final *bool  `json:"final,omitempty"`

	// Error is the browser recognizer's error code, e.g. "not-allowed".
	Error string `json:"error,omitempty"`

	Muted bool `json:"muted,omitempty"`
}

// permissionErrors are browser recognizer errors that mean microphone access
// is gone.
var permissionErrors = map[string]bool{
	"not-allowed":         true,
	"service-not-allowed": true,
}

// wsSession binds one WebSocket to one controller.
type wsSession struct {
	conn  *websocket.Conn
	ctrl  *assistant.Controller
	perm  *capture.Permission
	relay *relay.Provider // nil with a server-side recognizer
	log   *slog.Logger
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, s.acceptOptions())
	if err != nil {
		observe.Logger(r.Context()).Warn("ws: accept failed", "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxFrameBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	s.metrics.ActiveSessions.Add(ctx, 1)
	defer s.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)

	info := SessionInfo{ID: uuid.NewString(), RemoteAddr: r.RemoteAddr, StartedAt: time.Now()}
	if s.cfg.Sessions != nil {
		untrack := s.cfg.Sessions.Track(info, cancel)
		defer untrack()
	}
	// A tracker cancel means the server is going away. The session loops stop
	// on ctx; the going-away frame is sent on a best-effort basis.
	stop := context.AfterFunc(ctx, func() {
		if r.Context().Err() == nil {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
	})
	defer stop()

	ctx = observe.WithSession(ctx, info.ID)
	sess := s.newSession(ctx, conn)
	defer sess.ctrl.Close()

	sess.log.Info("ws: session opened")
	err = sess.run(ctx)
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		sess.log.Info("ws: session closed")
	default:
		if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
			sess.log.Warn("ws: session ended", "err", err)
		}
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) newSession(ctx context.Context, conn *websocket.Conn) *wsSession {
	sess := &wsSession{
		conn: conn,
		perm: capture.NewPermission(true),
		log:  observe.Logger(ctx),
	}

	cfg := s.assistantTemplate()
	cfg.Analyzer = s.cfg.Analyzer
	cfg.Microphone = sess.perm
	if cfg.Metrics == nil {
		cfg.Metrics = s.metrics
	}
	if s.cfg.Recognizer != nil {
		cfg.Recognizer = s.cfg.Recognizer
	} else {
		sess.relay = relay.New()
		cfg.Recognizer = sess.relay
	}
	sess.ctrl = assistant.New(ctx, cfg)
	return sess
}

// run pumps events out and client messages in until either side stops.
func (ss *wsSession) run(ctx context.Context) error {
	events, unsubscribe := ss.ctrl.Subscribe()
	defer unsubscribe()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				if err := wsjson.Write(ctx, ss.conn, ev); err != nil {
					return err
				}
			}
		}
	})
	g.Go(func() error {
		defer ss.ctrl.StopListening()
		for {
			typ, data, err := ss.conn.Read(ctx)
			if err != nil {
				return err
			}
			if typ == websocket.MessageBinary {
				if err := ss.ctrl.SendAudio(data); err != nil {
					ss.log.Debug("ws: dropping audio frame", "err", err)
				}
				continue
			}
			var msg clientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				ss.log.Warn("ws: malformed message", "err", err)
				continue
			}
			ss.dispatch(ctx, msg)
		}
	})
	return g.Wait()
}

func (ss *wsSession) dispatch(ctx context.Context, msg clientMessage) {
	switch msg.Type {
	case msgStart:
		ss.perm.Set(msg.Microphone != "denied")
		if err := ss.ctrl.StartListening(ctx); err != nil {
			ss.log.Info("ws: start listening failed", "err", err)
		}

	case msgStop:
		ss.ctrl.StopListening()

	case msgDismiss:
		ss.ctrl.Dismiss(msg.ID)

	case msgMute:
		ss.ctrl.SetMuted(msg.Muted)

	case msgUtterance:
		final := msg.Final == nil || *msg.Final
		if ss.relay != nil && ss.relay.Active() {
			if err := ss.relay.Deliver(types.Transcript{Text: msg.Text, IsFinal: final}); err != nil {
				ss.log.Debug("ws: relay delivery failed", "err", err)
			}
			return
		}
		// Between relay sessions (a restart in progress) finals are still
		// recorded, subject to the listening and mute rules.
		if final {
			if _, err := ss.ctrl.RelayUtterance(msg.Text); err != nil {
				ss.log.Debug("ws: utterance dropped", "err", err)
			}
		}

	case msgRecognitionEnd:
		if ss.relay != nil {
			ss.relay.End()
		}

	case msgRecognitionError:
		if ss.relay == nil {
			return
		}
		if permissionErrors[msg.Error] {
			ss.relay.Fail(stt.ErrPermissionRevoked)
		} else {
			ss.relay.Fail(errors.New("browser recognition error: " + msg.Error))
		}

	default:
		ss.log.Warn("ws: unknown message type", "type", msg.Type)
	}
}
