// Package service holds the application services behind the HTTP API: oracle
// consultations, market lookups, and trader profiling.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/notify"
)

// Consulter produces a consensus verdict for one scored market.
type Consulter interface {
	Consult(ctx context.Context, m domain.Market, a domain.EdgeAnalysis) (domain.ConsensusVerdict, error)
	Providers() []string
}

// OracleConfig limits how often a market may be consulted.
type OracleConfig struct {
	LockTTL     time.Duration
	RateLimit   int
	RateWindow  time.Duration
	RecentLimit int
}

func DefaultOracleConfig() OracleConfig {
	return OracleConfig{
		LockTTL:     90 * time.Second,
		RateLimit:   6,
		RateWindow:  time.Minute,
		RecentLimit: 50,
	}
}

// OracleDeps are the optional collaborators of OracleService. Any of them may
// be nil.
type OracleDeps struct {
	Cache    domain.VerdictCache
	Verdicts domain.VerdictStore
	Audit    domain.AuditStore
	Locks    domain.LockManager
	Limiter  domain.RateLimiter
	Bus      domain.SignalBus
	Notifier *notify.Notifier
}

// OracleService wraps the oracle with per-market locking and rate limiting,
// and records every verdict it produces.
type OracleService struct {
	oracle Consulter
	deps   OracleDeps
	cfg    OracleConfig
	logger *slog.Logger

	mu     sync.Mutex
	recent []domain.ConsensusVerdict // newest first
}

func NewOracleService(oracle Consulter, deps OracleDeps, cfg OracleConfig, logger *slog.Logger) *OracleService {
	def := DefaultOracleConfig()
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = def.RateWindow
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = def.RecentLimit
	}
	return &OracleService{
		oracle: oracle,
		deps:   deps,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "oracle_service")),
	}
}

// Providers lists the configured judgment providers.
func (s *OracleService) Providers() []string {
	if s.oracle == nil {
		return nil
	}
	return s.oracle.Providers()
}

// Consult returns the consensus verdict for snap. Unless force is set, a
// cached verdict is returned without calling any provider. Concurrent
// consults of the same market fail with domain.ErrLockHeld, and consults
// beyond the per-market budget fail with domain.ErrRateLimited.
func (s *OracleService) Consult(ctx context.Context, snap domain.MarketSnapshot, force bool) (domain.ConsensusVerdict, error) {
	marketID := snap.Market.ID
	if s.oracle == nil {
		return domain.ConsensusVerdict{}, fmt.Errorf("oracle_service: %w: no oracle configured", domain.ErrConfiguration)
	}

	if !force && s.deps.Cache != nil {
		if v, err := s.deps.Cache.Get(ctx, marketID); err == nil {
			return v, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			s.warn(ctx, "verdict cache read failed", marketID, err)
		}
	}

	key := "consult:" + marketID
	if s.deps.Limiter != nil && s.cfg.RateLimit > 0 {
		ok, err := s.deps.Limiter.Allow(ctx, key, s.cfg.RateLimit, s.cfg.RateWindow)
		if err != nil {
			s.warn(ctx, "rate limiter unavailable", marketID, err)
		} else if !ok {
			return domain.ConsensusVerdict{}, fmt.Errorf("oracle_service: consult %s: %w", marketID, domain.ErrRateLimited)
		}
	}

	if s.deps.Locks != nil {
		unlock, err := s.deps.Locks.Acquire(ctx, key, s.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return domain.ConsensusVerdict{}, fmt.Errorf("oracle_service: consult %s: %w", marketID, err)
			}
			s.warn(ctx, "lock unavailable, consulting unlocked", marketID, err)
		} else {
			defer unlock()
		}
	}

	v, err := s.oracle.Consult(ctx, snap.Market, snap.Analysis)
	if err != nil {
		return domain.ConsensusVerdict{}, fmt.Errorf("oracle_service: consult %s: %w", marketID, err)
	}

	s.record(ctx, snap, v)
	return v, nil
}

// record fans a fresh verdict out to every configured sink. Sink failures are
// logged only.
func (s *OracleService) record(ctx context.Context, snap domain.MarketSnapshot, v domain.ConsensusVerdict) {
	s.remember(v)

	if s.deps.Verdicts != nil {
		if err := s.deps.Verdicts.Insert(ctx, v); err != nil {
			s.warn(ctx, "persist verdict failed", v.MarketID, err)
		}
	}
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Set(ctx, v); err != nil {
			s.warn(ctx, "cache verdict failed", v.MarketID, err)
		}
	}
	if s.deps.Bus != nil {
		if payload, err := json.Marshal(v); err == nil {
			if err := s.deps.Bus.Publish(ctx, domain.ChannelVerdict, payload); err != nil {
				s.warn(ctx, "publish verdict failed", v.MarketID, err)
			}
			if err := s.deps.Bus.StreamAppend(ctx, domain.StreamVerdicts, payload); err != nil {
				s.warn(ctx, "append verdict stream failed", v.MarketID, err)
			}
		}
	}
	if v.Actionable() && s.deps.Notifier.Enabled() {
		title, msg := notify.VerdictAlert(snap.Market.Question, v)
		if err := s.deps.Notifier.Notify(ctx, notify.EventVerdict, title, msg); err != nil {
			s.warn(ctx, "verdict alert failed", v.MarketID, err)
		}
	}
	if s.deps.Audit != nil {
		if err := s.deps.Audit.Log(ctx, "oracle.consult", map[string]any{
			"verdictId":  v.ID,
			"marketId":   v.MarketID,
			"score":      v.Score,
			"direction":  string(v.Direction),
			"conviction": string(v.Conviction),
			"fallback":   v.Fallback,
			"providers":  v.Providers,
		}); err != nil {
			s.warn(ctx, "audit verdict failed", v.MarketID, err)
		}
	}

	s.logger.InfoContext(ctx, "verdict recorded",
		slog.String("market_id", v.MarketID),
		slog.String("verdict_id", v.ID),
		slog.Float64("score", v.Score),
		slog.String("conviction", string(v.Conviction)),
		slog.Bool("fallback", v.Fallback),
	)
}

func (s *OracleService) remember(v domain.ConsensusVerdict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append([]domain.ConsensusVerdict{v}, s.recent...)
	if len(s.recent) > s.cfg.RecentLimit {
		s.recent = s.recent[:s.cfg.RecentLimit]
	}
}

// Latest returns the most recent verdict for a market from the cache, then the
// store, then this process's memory.
func (s *OracleService) Latest(ctx context.Context, marketID string) (domain.ConsensusVerdict, error) {
	if s.deps.Cache != nil {
		if v, err := s.deps.Cache.Get(ctx, marketID); err == nil {
			return v, nil
		}
	}
	if s.deps.Verdicts != nil {
		vs, err := s.deps.Verdicts.ListByMarket(ctx, marketID, domain.ListOpts{Limit: 1})
		if err != nil {
			return domain.ConsensusVerdict{}, fmt.Errorf("oracle_service: latest %s: %w", marketID, err)
		}
		if len(vs) > 0 {
			return vs[0], nil
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.recent {
		if v.MarketID == marketID {
			return v, nil
		}
	}
	return domain.ConsensusVerdict{}, fmt.Errorf("oracle_service: latest %s: %w", marketID, domain.ErrNotFound)
}

// Recent lists the newest verdicts across all markets.
func (s *OracleService) Recent(ctx context.Context, limit int) ([]domain.ConsensusVerdict, error) {
	if limit <= 0 || limit > s.cfg.RecentLimit {
		limit = s.cfg.RecentLimit
	}
	if s.deps.Verdicts != nil {
		vs, err := s.deps.Verdicts.ListRecent(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("oracle_service: recent: %w", err)
		}
		return vs, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(limit, len(s.recent))
	return append([]domain.ConsensusVerdict(nil), s.recent[:n]...), nil
}

// Replay reads verdicts from the durable stream after lastID ("0" for the
// start). It returns the verdicts and the ID to resume from.
func (s *OracleService) Replay(ctx context.Context, lastID string, count int) ([]domain.ConsensusVerdict, string, error) {
	if s.deps.Bus == nil {
		return nil, lastID, fmt.Errorf("oracle_service: replay: %w: no signal bus", domain.ErrConfiguration)
	}
	if lastID == "" {
		lastID = "0"
	}
	msgs, err := s.deps.Bus.StreamRead(ctx, domain.StreamVerdicts, lastID, count)
	if err != nil {
		return nil, lastID, fmt.Errorf("oracle_service: replay: %w", err)
	}
	out := make([]domain.ConsensusVerdict, 0, len(msgs))
	for _, m := range msgs {
		lastID = m.ID
		var v domain.ConsensusVerdict
		if err := json.Unmarshal(m.Payload, &v); err != nil {
			s.logger.WarnContext(ctx, "skipping undecodable stream entry",
				slog.String("id", m.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, v)
	}
	return out, lastID, nil
}

func (s *OracleService) warn(ctx context.Context, msg, marketID string, err error) {
	s.logger.WarnContext(ctx, msg,
		slog.String("market_id", marketID),
		slog.String("error", err.Error()),
	)
}
