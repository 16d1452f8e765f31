// Package scanner runs the polling cycle: fetch markets, validate, score, and
// fan the results out to the cache, the history store, subscribers, and
// alert channels.
package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/edge"
	"github.com/alanyoungcy/polyedge/internal/feed"
	"github.com/alanyoungcy/polyedge/internal/notify"
)

// Config tunes one Scanner.
type Config struct {
	Interval      time.Duration
	MinScore      float64
	TopLimit      int
	AlertScore    float64
	AlertCooldown time.Duration
}

// DefaultConfig matches the dashboard's one-minute refresh.
func DefaultConfig() Config {
	return Config{
		Interval:      60 * time.Second,
		MinScore:      edge.DefaultMinScore,
		TopLimit:      edge.DefaultLimit,
		AlertScore:    9,
		AlertCooldown: 30 * time.Minute,
	}
}

// Recorder receives scan metrics.
type Recorder interface {
	ObserveScan(source string, ok bool, scored, dropped int)
	ObserveEdge(score float64)
	SetTopEdges(n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveScan(string, bool, int, int) {}
func (nopRecorder) ObserveEdge(float64)                 {}
func (nopRecorder) SetTopEdges(int)                     {}

// Deps are the collaborators of a Scanner. Everything except Source may be
// nil, in which case that fan-out step is skipped.
type Deps struct {
	Source    feed.Source
	Snapshots domain.SnapshotCache
	Analyses  domain.AnalysisStore
	Bus       domain.SignalBus
	Notifier  *notify.Notifier
	Recorder  Recorder
}

// Scanner owns the latest edge board. Reads are served from memory so the
// API keeps working when Redis is unavailable.
type Scanner struct {
	cfg    Config
	deps   Deps
	dedup  *Dedup
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	board    domain.EdgeBoard
	snaps    map[string]domain.MarketSnapshot
	ordered  []domain.MarketSnapshot
	lastScan time.Time
}

func New(cfg Config, deps Deps, logger *slog.Logger) (*Scanner, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("scanner: %w: no market source", domain.ErrConfiguration)
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.TopLimit == 0 {
		cfg.TopLimit = def.TopLimit
	}
	if cfg.AlertCooldown <= 0 {
		cfg.AlertCooldown = def.AlertCooldown
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	return &Scanner{
		cfg:    cfg,
		deps:   deps,
		dedup:  NewDedup(cfg.AlertCooldown),
		logger: logger.With(slog.String("component", "scanner")),
		now:    time.Now,
		snaps:  make(map[string]domain.MarketSnapshot),
		board:  domain.EdgeBoard{Edges: []domain.MarketSnapshot{}},
	}, nil
}

// RunOnce executes a single cycle and returns the new board. A feed failure
// fails the cycle and leaves the previous board in place; fan-out failures
// are logged and do not.
func (s *Scanner) RunOnce(ctx context.Context) (domain.EdgeBoard, error) {
	source := s.deps.Source.Name()

	markets, err := s.deps.Source.Markets(ctx)
	if err != nil {
		s.deps.Recorder.ObserveScan(source, false, 0, 0)
		return domain.EdgeBoard{}, fmt.Errorf("scanner: fetch markets from %s: %w", source, err)
	}

	valid, invalid := feed.Partition(markets)
	for _, verr := range invalid {
		s.logger.WarnContext(ctx, "dropping invalid market", slog.String("error", verr.Error()))
	}

	snaps := edge.ScoreAll(valid)
	for _, snap := range snaps {
		s.deps.Recorder.ObserveEdge(snap.Analysis.Score)
	}
	top := edge.TopEdges(snaps, s.cfg.MinScore, s.cfg.TopLimit)
	if top == nil {
		top = []domain.MarketSnapshot{}
	}

	board := s.commit(snaps, top)
	s.deps.Recorder.ObserveScan(source, true, len(snaps), len(invalid))
	s.deps.Recorder.SetTopEdges(len(top))

	s.fanOut(ctx, snaps, board)
	s.alert(ctx, top)

	s.logger.InfoContext(ctx, "scan complete",
		slog.Int64("cycle", board.Cycle),
		slog.String("source", source),
		slog.Int("scored", len(snaps)),
		slog.Int("dropped", len(invalid)),
		slog.Int("edges", len(top)),
	)
	return board, nil
}

func (s *Scanner) commit(snaps, top []domain.MarketSnapshot) domain.EdgeBoard {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	byID := make(map[string]domain.MarketSnapshot, len(snaps))
	for _, snap := range snaps {
		byID[snap.Market.ID] = snap
	}
	s.snaps = byID
	s.ordered = snaps
	s.lastScan = now
	s.board = domain.EdgeBoard{
		Cycle:     s.board.Cycle + 1,
		Edges:     top,
		Scanned:   len(snaps),
		UpdatedAt: now,
	}
	return s.board
}

// fanOut writes the cycle to the cache, the store, and the edges channel
// concurrently.
func (s *Scanner) fanOut(ctx context.Context, snaps []domain.MarketSnapshot, board domain.EdgeBoard) {
	var g errgroup.Group

	if c := s.deps.Snapshots; c != nil {
		g.Go(func() error {
			for _, snap := range snaps {
				if err := c.SetSnapshot(ctx, snap); err != nil {
					return fmt.Errorf("cache snapshot: %w", err)
				}
			}
			if err := c.SetBoard(ctx, board); err != nil {
				return fmt.Errorf("cache board: %w", err)
			}
			return nil
		})
	}
	if st := s.deps.Analyses; st != nil {
		g.Go(func() error {
			if err := st.InsertBatch(ctx, snaps); err != nil {
				return fmt.Errorf("persist analyses: %w", err)
			}
			return nil
		})
	}
	if bus := s.deps.Bus; bus != nil {
		g.Go(func() error {
			payload, err := json.Marshal(board)
			if err != nil {
				return fmt.Errorf("marshal board: %w", err)
			}
			if err := bus.Publish(ctx, domain.ChannelEdges, payload); err != nil {
				return fmt.Errorf("publish board: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "scan fan-out failed", slog.String("error", err.Error()))
	}
}

func (s *Scanner) alert(ctx context.Context, top []domain.MarketSnapshot) {
	if !s.deps.Notifier.Enabled() {
		return
	}
	for _, snap := range top {
		if snap.Analysis.Score < s.cfg.AlertScore {
			continue
		}
		if s.dedup.IsDuplicate(snap.Market.ID + "|" + string(snap.Analysis.Direction)) {
			continue
		}
		title, msg := notify.EdgeAlert(snap)
		if err := s.deps.Notifier.Notify(ctx, notify.EventEdge, title, msg); err != nil {
			s.logger.WarnContext(ctx, "edge alert failed",
				slog.String("market_id", snap.Market.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	s.dedup.Cleanup()
}

// RunLoop scans immediately and then on every interval tick until ctx is
// cancelled. Failed cycles are logged and retried on the next tick.
func (s *Scanner) RunLoop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "scanner starting",
		slog.String("source", s.deps.Source.Name()),
		slog.Duration("interval", s.cfg.Interval),
	)

	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scanner stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scanner) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.ErrorContext(ctx, "scan failed", slog.String("error", err.Error()))
		if s.deps.Notifier.Enabled() {
			_ = s.deps.Notifier.Notify(ctx, notify.EventScanFailure, "Scan failed", err.Error())
		}
	}
}

// Board returns the latest edge board.
func (s *Scanner) Board() domain.EdgeBoard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board
}

// Snapshot returns the latest snapshot of one market.
func (s *Scanner) Snapshot(marketID string) (domain.MarketSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[marketID]
	return snap, ok
}

// Snapshots returns every market scored in the latest cycle in feed order.
func (s *Scanner) Snapshots() []domain.MarketSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.MarketSnapshot(nil), s.ordered...)
}

// Stats reports the cycle counter, the time of the last successful scan, and
// how many markets it scored.
func (s *Scanner) Stats() (cycles int64, lastScan time.Time, tracked int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board.Cycle, s.lastScan, len(s.snaps)
}

// Source names the market feed.
func (s *Scanner) Source() string {
	return s.deps.Source.Name()
}
