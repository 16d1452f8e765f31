// Package feed produces the market snapshots the scanner scores each cycle.
package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// Source yields a fresh batch of markets per call.
type Source interface {
	Name() string
	Markets(ctx context.Context) ([]domain.Market, error)
}

// Fallback serves from primary and switches to secondary for any cycle where
// primary fails or returns nothing.
type Fallback struct {
	primary   Source
	secondary Source
	logger    *slog.Logger
}

var _ Source = (*Fallback)(nil)

func NewFallback(primary, secondary Source, logger *slog.Logger) *Fallback {
	return &Fallback{
		primary:   primary,
		secondary: secondary,
		logger:    logger.With(slog.String("component", "feed")),
	}
}

func (f *Fallback) Name() string {
	return fmt.Sprintf("%s+%s", f.primary.Name(), f.secondary.Name())
}

func (f *Fallback) Markets(ctx context.Context) ([]domain.Market, error) {
	markets, err := f.primary.Markets(ctx)
	if err == nil && len(markets) > 0 {
		return markets, nil
	}
	if err != nil {
		f.logger.WarnContext(ctx, "primary feed failed, falling back",
			slog.String("primary", f.primary.Name()),
			slog.String("fallback", f.secondary.Name()),
			slog.String("error", err.Error()),
		)
	} else {
		f.logger.WarnContext(ctx, "primary feed returned no markets, falling back",
			slog.String("primary", f.primary.Name()),
		)
	}
	out, ferr := f.secondary.Markets(ctx)
	if ferr != nil {
		return nil, fmt.Errorf("feed: fallback %s: %w", f.secondary.Name(), ferr)
	}
	return out, nil
}
