package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/gaia/internal/observe"
	"github.com/MrWong99/gaia/pkg/provider/llm"
	"github.com/MrWong99/gaia/pkg/types"
)

// DefaultTimeout bounds a single model call when no timeout is configured.
const DefaultTimeout = 15 * time.Second

// Service is the language-model backed [Analyzer].
type Service struct {
	llm      llm.Provider
	provider string
	timeout  time.Duration
	now      func() time.Time
	metrics  *observe.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout bounds every model call. Non-positive values select
// DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock overrides the receipt-time source used to stamp cards.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics records analysis metrics to m instead of the default instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithProviderName sets the provider label used in metrics and logs.
func WithProviderName(name string) Option {
	return func(s *Service) { s.provider = name }
}

// NewService returns a Service backed by p. A nil p yields a Service that
// reports [ErrUnavailable] on every call and returns no cards.
func NewService(p llm.Provider, opts ...Option) *Service {
	s := &Service{
		llm:      p,
		provider: "llm",
		timeout:  DefaultTimeout,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Available reports whether a model is configured.
func (s *Service) Available() bool { return s.llm != nil }

// Analyze implements [Analyzer]. Failures are logged and yield no cards.
func (s *Service) Analyze(ctx context.Context, transcript string) []types.OpportunityCard {
	cards, err := s.Detect(ctx, transcript)
	if err != nil {
		log := observe.Logger(ctx).With("provider", s.provider)
		switch {
		case errors.Is(err, ErrUnavailable):
			log.Warn("opportunity analysis skipped, returning empty list", "err", err)
		case errors.Is(err, ErrSchemaValidation):
			log.Warn("discarding malformed opportunity response", "err", err)
		default:
			log.Error("opportunity analysis failed", "err", err)
		}
		return nil
	}
	return cards
}

// Detect runs one analysis and reports why it produced nothing. A blank
// transcript returns (nil, nil) without calling the model. On success every
// card is stamped with the receipt time.
func (s *Service) Detect(ctx context.Context, transcript string) ([]types.OpportunityCard, error) {
	start := time.Now()
	if s.llm == nil {
		s.metrics.RecordAnalysis(ctx, s.provider, observe.OutcomeUnavailable, 0)
		return nil, ErrUnavailable
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, nil
	}

	ctx, span := observe.StartSpan(ctx, "analyzer.detect")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", s.provider),
		attribute.Int("transcript.length", len(transcript)),
	)

	s.metrics.AnalysesInFlight.Add(ctx, 1)
	defer s.metrics.AnalysesInFlight.Add(ctx, -1)

	cards, outcome, err := s.detect(ctx, transcript)
	s.metrics.RecordAnalysis(ctx, s.provider, outcome, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}
	span.SetAttributes(attribute.Int("opportunities", len(cards)))
	return cards, nil
}

func (s *Service) detect(ctx context.Context, transcript string) ([]types.OpportunityCard, string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	callStart := time.Now()
	resp, err := s.llm.Complete(callCtx, llm.CompletionRequest{
		Messages:       []types.Message{{Role: "user", Content: buildPrompt(transcript)}},
		ResponseFormat: responseSchema(),
	})
	s.metrics.LLMDuration.Record(ctx, time.Since(callStart).Seconds(),
		metric.WithAttributes(observe.Attr("provider", s.provider)))
	if err != nil {
		s.metrics.RecordProviderRequest(ctx, s.provider, "llm", "error")
		s.metrics.RecordProviderError(ctx, s.provider, "llm")
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, observe.OutcomeTimeout, fmt.Errorf("analyzer: model call exceeded %s: %w", s.timeout, err)
		}
		return nil, observe.OutcomeError, fmt.Errorf("analyzer: complete: %w", err)
	}
	s.metrics.RecordProviderRequest(ctx, s.provider, "llm", "ok")
	if resp == nil {
		return nil, observe.OutcomeError, errors.New("analyzer: complete: empty response")
	}

	cards, err := Validate([]byte(resp.Content))
	if err != nil {
		return nil, observe.OutcomeInvalid, err
	}

	received := types.NowMillis(s.now())
	for i := range cards {
		cards[i].Timestamp = received
	}
	if len(cards) == 0 {
		return cards, observe.OutcomeEmpty, nil
	}

	slog.Debug("opportunities detected", "provider", s.provider, "count", len(cards))
	return cards, observe.OutcomeOK, nil
}

var _ Analyzer = (*Service)(nil)
