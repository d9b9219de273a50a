// Package assistant coordinates one ambient-assistant session.
//
// The [Controller] is the single owner of session state: the transcript log,
// the opportunity cards, the listening/processing/muted flags, the speech
// capture and the analysis trigger. Everything that changes that state goes
// through it, and every change is published as an [Event] to subscribers such
// as a WebSocket connection or a terminal printer.
//
// The flow is: capture delivers a final utterance, the controller appends it
// to the transcript and pokes the debounced trigger; when speech pauses for
// the quiet period the trigger fires, the controller sends the most recent
// few utterances to the analyzer, and any cards it returns are appended to the
// card list.
package assistant

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/gaia/internal/analyzer"
	"github.com/MrWong99/gaia/internal/capture"
	"github.com/MrWong99/gaia/internal/observe"
	"github.com/MrWong99/gaia/internal/opportunity"
	"github.com/MrWong99/gaia/internal/transcript"
	"github.com/MrWong99/gaia/internal/trigger"
	"github.com/MrWong99/gaia/pkg/provider/stt"
	"github.com/MrWong99/gaia/pkg/types"
)

// Defaults applied by New for zero-valued Config fields.
const (
	DefaultWindow        = 3
	DefaultMaxCards      = 50
	DefaultMaxTranscript = 500
	DefaultSpeaker       = "You"

	subscriberBuffer = 64
)

var (
	// ErrClosed is returned by operations on a closed Controller.
	ErrClosed = errors.New("assistant: controller is closed")

	// ErrNotListening and ErrMuted are returned by RelayUtterance when the
	// session would not have captured the text itself.
	ErrNotListening = errors.New("assistant: not listening")
	ErrMuted        = errors.New("assistant: muted")
)

// Config parameterises a Controller.
type Config struct {
	// Analyzer detects opportunities. Required.
	Analyzer analyzer.Analyzer

	// Recognizer opens speech sessions. Nil makes StartListening fail with
	// capture.ErrUnsupportedPlatform.
	Recognizer stt.Provider

	// Microphone gates the audio device. Nil means always granted.
	Microphone capture.Microphone

	// Stream is the recognizer stream configuration.
	Stream stt.StreamConfig

	// Restart is the capture restart policy.
	Restart capture.RestartPolicy

	// Debounce is the analysis quiet period. Zero selects trigger.DefaultDelay.
	Debounce time.Duration

	// Window is how many recent utterances each analysis sees.
	Window int

	// MaxCards and MaxTranscript bound the stores. Zero selects the default;
	// negative disables the bound.
	MaxCards      int
	MaxTranscript int

	// Speaker labels locally captured utterances.
	Speaker string

	// AfterFunc replaces the trigger's timer factory. Tests only.
	AfterFunc trigger.AfterFunc

	// Now replaces the wall clock used for timestamps. Tests only.
	Now func() time.Time

	// Metrics defaults to observe.DefaultMetrics.
	Metrics *observe.Metrics
}

func (c *Config) defaults() {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.MaxCards == 0 {
		c.MaxCards = DefaultMaxCards
	}
	if c.MaxTranscript == 0 {
		c.MaxTranscript = DefaultMaxTranscript
	}
	if c.Speaker == "" {
		c.Speaker = DefaultSpeaker
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Metrics == nil {
		c.Metrics = observe.DefaultMetrics()
	}
}

// Controller owns one session. All methods are safe for concurrent use.
type Controller struct {
	cfg      Config
	analyzer analyzer.Analyzer
	metrics  *observe.Metrics
	capture  *capture.Capture
	trigger  *trigger.Debouncer

	// ctx carries values into analyses. It is never cancelled: analyses are
	// bounded by the analyzer's own timeout.
	ctx context.Context

	mu         sync.Mutex
	transcript *transcript.Store
	cards      *opportunity.Store
	listening  bool
	processing bool
	muted      bool
	closed     bool
	inflight   sync.WaitGroup

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// New returns an idle Controller. ctx supplies values (logger, trace) for
// background work; its cancellation is ignored.
func New(ctx context.Context, cfg Config) *Controller {
	cfg.defaults()
	c := &Controller{
		cfg:        cfg,
		analyzer:   cfg.Analyzer,
		metrics:    cfg.Metrics,
		ctx:        context.WithoutCancel(ctx),
		transcript: transcript.NewStore(max(cfg.MaxTranscript, 0)),
		cards:      opportunity.NewStore(max(cfg.MaxCards, 0), opportunity.WithClock(cfg.Now)),
		subs:       make(map[int]chan Event),
	}

	var topts []trigger.Option
	if cfg.AfterFunc != nil {
		topts = append(topts, trigger.WithAfterFunc(cfg.AfterFunc))
	}
	c.trigger = trigger.New(cfg.Debounce, c.analyze, topts...)

	c.capture = capture.New(capture.Config{
		Provider:      cfg.Recognizer,
		Microphone:    cfg.Microphone,
		Stream:        cfg.Stream,
		Restart:       cfg.Restart,
		OnUtterance:   c.onUtterance,
		OnInterim:     c.onInterim,
		OnStateChange: c.onCaptureState,
		OnError:       c.onCaptureError,
		Metrics:       cfg.Metrics,
	})
	return c
}

// StartListening begins speech capture. Permission and platform failures are
// also published as error events.
func (c *Controller) StartListening(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	if err := c.capture.Start(ctx); err != nil {
		c.publish(errorEvent(err))
		return err
	}
	return nil
}

// StopListening ends speech capture. Analyses already in flight still land.
func (c *Controller) StopListening() {
	c.capture.Stop()
}

// SendAudio forwards raw PCM to the active recognizer session.
func (c *Controller) SendAudio(chunk []byte) error {
	return c.capture.SendAudio(chunk)
}

// SetMuted toggles muting. While muted, captured utterances are dropped.
func (c *Controller) SetMuted(muted bool) {
	c.mu.Lock()
	changed := c.muted != muted
	c.muted = muted
	c.mu.Unlock()
	if changed {
		c.publish(flagEvent(EventMuted, muted))
	}
}

// AddUtterance appends text as a new transcript entry spoken by the local
// speaker and schedules an analysis.
func (c *Controller) AddUtterance(text string) (types.TranscriptEntry, error) {
	return c.addUtterance(text, c.cfg.Now())
}

// RelayUtterance records a final result recognized outside the current
// capture session, such as a browser result that lands while the recognizer
// restarts. Capture rules apply: nothing is recorded while idle or muted.
func (c *Controller) RelayUtterance(text string) (types.TranscriptEntry, error) {
	if c.capture.State() != capture.Listening {
		return types.TranscriptEntry{}, ErrNotListening
	}
	c.mu.Lock()
	muted := c.muted
	c.mu.Unlock()
	if muted {
		return types.TranscriptEntry{}, ErrMuted
	}
	return c.addUtterance(text, c.cfg.Now())
}

func (c *Controller) addUtterance(text string, at time.Time) (types.TranscriptEntry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.TranscriptEntry{}, transcript.ErrEmptyText
	}
	entry := transcript.NewEntry(text, c.cfg.Speaker, at)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return types.TranscriptEntry{}, ErrClosed
	}
	_, err := c.transcript.Append(entry)
	c.mu.Unlock()
	if err != nil {
		return types.TranscriptEntry{}, err
	}

	c.metrics.Utterances.Add(c.ctx, 1)
	c.publish(Event{Type: EventTranscriptAppended, Entry: &entry})
	c.trigger.Poke()
	return entry, nil
}

// Dismiss removes the card with id. It reports whether a card was removed;
// unknown ids are a no-op.
func (c *Controller) Dismiss(id string) bool {
	c.mu.Lock()
	card, _ := c.cards.Get(id)
	ok := c.cards.Dismiss(id)
	c.mu.Unlock()
	if !ok {
		return false
	}
	c.metrics.RecordCard(c.ctx, observe.CardDismissed, string(card.Type))
	c.publish(Event{Type: EventCardDismissed, CardID: id})
	return true
}

// Snapshot returns a copy of the current session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	s := Snapshot{
		Listening:  c.listening,
		Processing: c.processing,
		Muted:      c.muted,
		Utterances: c.transcript.Total(),
		Transcript: c.transcript.All(),
		Cards:      cardViews(c.cards.List()),
	}
	c.mu.Unlock()
	s.StatusLine = s.Status()
	return s
}

// Subscribe returns a channel of events, starting with a snapshot, and a
// function that cancels the subscription. A subscriber that falls behind
// loses events rather than stalling the session. The channel is closed by
// cancel or Close.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	// The snapshot is taken under subMu so nothing published in between is
	// missing from both the snapshot and the stream.
	c.subMu.Lock()
	if c.subs == nil {
		c.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	snap := c.Snapshot()
	ch <- Event{Type: EventSnapshot, Snapshot: &snap}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			if _, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(ch)
			}
		})
	}
}

// Close stops capture and the trigger, waits for in-flight analyses to settle
// and closes all subscriptions. Safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.capture.Stop()
	c.trigger.Stop()
	c.inflight.Wait()

	c.subMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subs = nil
	c.subMu.Unlock()
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// analyze is the trigger callback. It snapshots the analysis window and runs
// the analyzer on its own goroutine; overlapping analyses are allowed and
// each result is appended independently.
func (c *Controller) analyze() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	text := transcript.Join(c.transcript.Recent(c.cfg.Window))
	if strings.TrimSpace(text) == "" {
		c.mu.Unlock()
		return
	}
	c.processing = true
	c.inflight.Add(1)
	c.mu.Unlock()

	c.publish(flagEvent(EventProcessing, true))

	go func() {
		defer c.inflight.Done()

		found := c.analyzer.Analyze(c.ctx, text)

		c.mu.Lock()
		added, evicted := c.cards.Append(found...)
		c.processing = false
		c.mu.Unlock()

		for _, card := range added {
			c.metrics.RecordCard(c.ctx, observe.CardAppended, string(card.Type))
		}
		for _, card := range evicted {
			c.metrics.RecordCard(c.ctx, observe.CardEvicted, string(card.Type))
		}
		if len(added) > 0 {
			c.publish(Event{Type: EventCardsAppended, Cards: cardViews(added)})
		}
		for _, card := range evicted {
			c.publish(Event{Type: EventCardDismissed, CardID: card.ID})
		}
		c.publish(flagEvent(EventProcessing, false))
	}()
}

// ── capture callbacks ───────────────────────────────────────────────────────

func (c *Controller) onUtterance(text string, at time.Time) {
	c.mu.Lock()
	muted := c.muted
	c.mu.Unlock()
	if muted {
		slog.Debug("assistant: dropping utterance while muted")
		return
	}
	if _, err := c.addUtterance(text, at); err != nil && !errors.Is(err, ErrClosed) {
		slog.Warn("assistant: failed to record utterance", "err", err)
	}
}

func (c *Controller) onInterim(text string) {
	c.mu.Lock()
	muted := c.muted
	c.mu.Unlock()
	if muted {
		return
	}
	c.publish(Event{Type: EventTranscriptInterim, Interim: text})
}

func (c *Controller) onCaptureState(s capture.State) {
	listening := s == capture.Listening
	c.mu.Lock()
	c.listening = listening
	c.mu.Unlock()
	c.publish(flagEvent(EventListening, listening))
}

func (c *Controller) onCaptureError(err error) {
	c.publish(errorEvent(err))
}

// publish fans ev out to every subscriber without blocking.
func (c *Controller) publish(ev Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			slog.Debug("assistant: dropping event for slow subscriber", "type", ev.Type)
		}
	}
}
