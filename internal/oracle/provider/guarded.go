package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/oracle"
)

// GuardConfig sets the request budget and breaker policy for one provider.
type GuardConfig struct {
	RPS              float64
	Burst            int
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// Guarded wraps a provider with a token-bucket limiter and a circuit breaker.
// An open breaker fails fast with ErrProvider.
type Guarded struct {
	inner   oracle.Provider
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

var _ oracle.Provider = (*Guarded)(nil)

// Guard decorates p. Zero values in cfg fall back to 1 rps, burst 2, three
// consecutive failures and a 60s open period.
func Guard(p oracle.Provider, cfg GuardConfig) *Guarded {
	if cfg.RPS <= 0 {
		cfg.RPS = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 2
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 60 * time.Second
	}

	st := gobreaker.Settings{Name: p.Name()}
	st.Interval = 60 * time.Second
	st.Timeout = cfg.OpenTimeout
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= cfg.FailureThreshold
	}

	return &Guarded{
		inner:   p,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

func (g *Guarded) Name() string { return g.inner.Name() }

// State reports the breaker state: closed, half-open or open.
func (g *Guarded) State() string { return g.breaker.State().String() }

func (g *Guarded) Complete(ctx context.Context, req oracle.Request) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%s: %w: rate limit wait: %w", g.Name(), domain.ErrProvider, err)
	}
	out, err := g.breaker.Execute(func() (any, error) {
		return g.inner.Complete(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%s: %w: %w", g.Name(), domain.ErrProvider, err)
		}
		return "", err
	}
	return out.(string), nil
}
