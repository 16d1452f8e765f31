// Package oracle asks several independent judgment providers about one market
// and reduces their answers into a single consensus verdict.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// Request is a single prompt sent to a provider.
type Request struct {
	Prompt string
	// JSON asks the provider for a strict JSON verdict rather than free text.
	JSON bool
}

// Provider is a remote model that answers a prompt with text.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Recorder receives consult telemetry. The metrics package implements it.
type Recorder interface {
	ObserveProvider(provider, outcome string, elapsed time.Duration)
	ObserveConsult(fallback bool, elapsed time.Duration)
}

// Provider outcomes reported to the Recorder.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeMalformed = "malformed"
)

type nopRecorder struct{}

func (nopRecorder) ObserveProvider(string, string, time.Duration) {}
func (nopRecorder) ObserveConsult(bool, time.Duration)            {}

// Option configures an Oracle.
type Option func(*Oracle)

// WithProviderTimeout bounds each provider call. A call that runs past the
// timeout counts as a provider failure.
func WithProviderTimeout(d time.Duration) Option {
	return func(o *Oracle) { o.timeout = d }
}

// WithLogger sets the logger used for per-provider diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *Oracle) { o.logger = l }
}

// WithRecorder sets the telemetry sink.
func WithRecorder(r Recorder) Option {
	return func(o *Oracle) { o.recorder = r }
}

// WithClock overrides the clock used to stamp verdicts.
func WithClock(now func() time.Time) Option {
	return func(o *Oracle) { o.now = now }
}

// Oracle fans a market out to its providers and reduces the answers.
// It holds no mutable state after construction and is safe for concurrent use.
type Oracle struct {
	providers []Provider
	timeout   time.Duration
	logger    *slog.Logger
	recorder  Recorder
	now       func() time.Time
}

// New creates an Oracle over providers, which are consulted and reduced in
// the given order.
func New(providers []Provider, opts ...Option) (*Oracle, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("oracle: new: no providers configured: %w", domain.ErrConfiguration)
	}
	o := &Oracle{
		providers: append([]Provider(nil), providers...),
		logger:    slog.Default(),
		recorder:  nopRecorder{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(slog.String("component", "oracle"))
	return o, nil
}

// Providers returns the configured provider names in order.
func (o *Oracle) Providers() []string {
	names := make([]string, len(o.providers))
	for i, p := range o.providers {
		names[i] = p.Name()
	}
	return names
}

// Consult asks every provider about m concurrently, waits for all of them to
// answer or fail, and reduces the surviving judgments. Provider failures never
// surface as an error; when none succeed the verdict falls back to a.
func (o *Oracle) Consult(ctx context.Context, m domain.Market, a domain.EdgeAnalysis) (domain.ConsensusVerdict, error) {
	if o == nil || len(o.providers) == 0 {
		return domain.ConsensusVerdict{}, fmt.Errorf("oracle: consult: no providers configured: %w", domain.ErrConfiguration)
	}
	start := time.Now()

	if a.MarketID == "" {
		a.MarketID = m.ID
	}
	results := o.Collect(ctx, BuildContext(m, a))
	v := Reduce(results, a)
	v.ID = uuid.NewString()
	v.MarketID = m.ID
	v.CreatedAt = o.now().UTC()

	o.recorder.ObserveConsult(v.Fallback, time.Since(start))
	if v.Fallback {
		o.logger.WarnContext(ctx, "all providers failed, using local fallback",
			slog.String("market_id", m.ID),
			slog.Int("providers", len(o.providers)),
		)
	}
	return v, nil
}

// Collect sends prompt to every provider and returns one result per provider
// in configuration order. Each goroutine writes only its own slot.
func (o *Oracle) Collect(ctx context.Context, prompt string) []domain.JudgmentResult {
	results := make([]domain.JudgmentResult, len(o.providers))

	var g errgroup.Group
	for i, p := range o.providers {
		g.Go(func() error {
			results[i] = o.ask(ctx, p, prompt)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *Oracle) ask(ctx context.Context, p Provider, prompt string) (res domain.JudgmentResult) {
	name := p.Name()
	res.Provider = name
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res = domain.JudgmentResult{
				Provider: name,
				Err:      fmt.Errorf("oracle: %s: panic: %v: %w", name, r, domain.ErrProvider),
			}
			o.recorder.ObserveProvider(name, OutcomeError, time.Since(start))
			o.logger.ErrorContext(ctx, "provider panicked", slog.String("provider", name), slog.Any("panic", r))
		}
	}()

	callCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	text, err := p.Complete(callCtx, Request{Prompt: prompt, JSON: true})
	if err != nil {
		if !errors.Is(err, domain.ErrProvider) {
			err = fmt.Errorf("%w: %w", domain.ErrProvider, err)
		}
		res.Err = fmt.Errorf("oracle: %s: %w", name, err)
		o.recorder.ObserveProvider(name, OutcomeError, time.Since(start))
		o.logger.WarnContext(ctx, "provider call failed",
			slog.String("provider", name),
			slog.String("error", err.Error()),
		)
		return res
	}

	j, err := ParseJudgment(text)
	if err != nil {
		res.Err = fmt.Errorf("oracle: %s: %w", name, err)
		o.recorder.ObserveProvider(name, OutcomeMalformed, time.Since(start))
		o.logger.WarnContext(ctx, "provider returned malformed judgment",
			slog.String("provider", name),
			slog.String("error", err.Error()),
		)
		return res
	}

	res.Judgment = j
	o.recorder.ObserveProvider(name, OutcomeOK, time.Since(start))
	return res
}
