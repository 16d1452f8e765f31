package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyedge/internal/config"
	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/feed"
	"github.com/alanyoungcy/polyedge/internal/oracle"
	"github.com/alanyoungcy/polyedge/internal/oracle/provider"
	"github.com/alanyoungcy/polyedge/internal/pipeline"
	"github.com/alanyoungcy/polyedge/internal/platform/polymarket"
	"github.com/alanyoungcy/polyedge/internal/scanner"
	"github.com/alanyoungcy/polyedge/internal/server"
	"github.com/alanyoungcy/polyedge/internal/server/handler"
	"github.com/alanyoungcy/polyedge/internal/server/ws"
	"github.com/alanyoungcy/polyedge/internal/service"
)

// ScanMode runs the scanner loop and, when configured, the archiver.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	sc, err := a.buildScanner(deps)
	if err != nil {
		return err
	}
	return a.newOrchestrator(sc, deps).Run(ctx)
}

// ServeMode runs the API alone. Edges come from the snapshot cache that a
// separate scan process keeps warm.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	markets := service.NewMarketService(nil, deps.Snapshots, a.logger)
	a.startHTTPServer(ctx, g, deps, markets, nil)
	return g.Wait()
}

// FullMode runs scanner, archiver and API in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	sc, err := a.buildScanner(deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.newOrchestrator(sc, deps).Run(ctx)
	})
	markets := service.NewMarketService(sc, deps.Snapshots, a.logger)
	a.startHTTPServer(ctx, g, deps, markets, sc)
	return g.Wait()
}

// ConsultMode scans once, consults the oracle on the target market (or the
// strongest edge when no target is set) and writes the verdict as JSON.
func (a *App) ConsultMode(ctx context.Context, deps *Dependencies) error {
	sc, err := a.buildScanner(deps)
	if err != nil {
		return err
	}
	oracleSvc, err := a.buildOracle(deps, a.buildProviders())
	if err != nil {
		return err
	}
	if oracleSvc == nil {
		return fmt.Errorf("app: consult: %w: no provider api key set", domain.ErrConfiguration)
	}

	board, err := sc.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("app: consult: scan: %w", err)
	}

	var snap domain.MarketSnapshot
	switch {
	case a.target != "":
		s, ok := sc.Snapshot(a.target)
		if !ok {
			return fmt.Errorf("app: consult: market %s: %w", a.target, domain.ErrNotFound)
		}
		snap = s
	case len(board.Edges) > 0:
		snap = board.Edges[0]
	default:
		return fmt.Errorf("app: consult: no edge scored %g or higher", a.cfg.Scanner.MinScore)
	}

	a.logger.InfoContext(ctx, "consulting oracle",
		slog.String("market_id", snap.Market.ID),
		slog.Float64("edge_score", snap.Analysis.Score),
		slog.Any("providers", oracleSvc.Providers()),
	)
	v, err := oracleSvc.Consult(ctx, snap, true)
	if err != nil {
		return fmt.Errorf("app: consult: %w", err)
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Market   domain.Market           `json:"market"`
		Analysis domain.EdgeAnalysis     `json:"analysis"`
		Verdict  domain.ConsensusVerdict `json:"verdict"`
	}{snap.Market, snap.Analysis, v})
}

func (a *App) newOrchestrator(sc *scanner.Scanner, deps *Dependencies) *pipeline.Orchestrator {
	var archiver *pipeline.Archiver
	if deps.Archiver != nil {
		archiver = pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
		if deps.Metrics != nil {
			archiver.OnError = deps.Metrics.RecordError
		}
	}
	return pipeline.NewOrchestrator(sc, archiver, a.cfg.Archive.Cron, a.logger)
}

// buildSource returns the configured market feed. The live feed falls back to
// the simulated one for any cycle where Gamma fails. With Redis available,
// Gamma polling is throttled across every scanner sharing it.
func (a *App) buildSource(deps *Dependencies) feed.Source {
	seed := a.cfg.Scanner.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sim := feed.NewSimulated(rand.New(rand.NewSource(seed)), nil)
	if a.cfg.Scanner.Feed != "gamma" {
		return sim
	}
	gamma := feed.NewGamma(
		polymarket.NewGammaClient(a.cfg.Scanner.GammaHost, nil),
		feed.NewRandomEnricher(rand.New(rand.NewSource(seed+1))),
		feed.NewHistoryTracker(domain.HistoryLength),
		a.cfg.Scanner.GammaLimit,
	)
	if deps.Limiter != nil && a.cfg.Scanner.GammaRateLimit > 0 {
		gamma.Throttle(deps.Limiter, a.cfg.Scanner.GammaRateLimit, a.cfg.Scanner.GammaRateWindow.Duration, a.logger)
	}
	return feed.NewFallback(gamma, sim, a.logger)
}

func (a *App) buildScanner(deps *Dependencies) (*scanner.Scanner, error) {
	sc := a.cfg.Scanner
	return scanner.New(scanner.Config{
		Interval:      sc.Interval.Duration,
		MinScore:      sc.MinScore,
		TopLimit:      sc.TopLimit,
		AlertScore:    sc.AlertScore,
		AlertCooldown: sc.AlertCooldown.Duration,
	}, scanner.Deps{
		Source:    a.buildSource(deps),
		Snapshots: deps.Snapshots,
		Analyses:  deps.AnalysisStore,
		Bus:       deps.Bus,
		Notifier:  deps.Notifier,
		Recorder:  deps.Metrics,
	}, a.logger)
}

// buildProviders creates a guarded client for every provider with a key, in
// the configured order.
func (a *App) buildProviders() []oracle.Provider {
	oc := a.cfg.Oracle
	guard := provider.GuardConfig{
		RPS:              oc.GuardRPS,
		Burst:            oc.GuardBurst,
		FailureThreshold: oc.GuardFailures,
		OpenTimeout:      oc.GuardOpenTimeout.Duration,
	}

	var out []oracle.Provider
	for _, name := range a.cfg.EnabledProviders() {
		pc, _ := oc.Provider(name)
		var p oracle.Provider
		switch name {
		case config.ProviderAnthropic:
			p = provider.NewAnthropic(provider.AnthropicConfig{APIKey: pc.APIKey, Model: pc.Model, BaseURL: pc.BaseURL})
		case config.ProviderOpenAI:
			p = provider.NewOpenAI(provider.OpenAIConfig{APIKey: pc.APIKey, Model: pc.Model, BaseURL: pc.BaseURL})
		case config.ProviderGemini:
			p = provider.NewGemini(provider.GeminiConfig{APIKey: pc.APIKey, Model: pc.Model, BaseURL: pc.BaseURL})
		}
		out = append(out, provider.Guard(p, guard))
	}
	return out
}

// buildOracle returns nil without error when no provider is configured; the
// API then answers consultation routes with 503.
func (a *App) buildOracle(deps *Dependencies, providers []oracle.Provider) (*service.OracleService, error) {
	if len(providers) == 0 {
		a.logger.Warn("no judgment provider configured, oracle disabled")
		return nil, nil
	}
	o, err := oracle.New(providers,
		oracle.WithProviderTimeout(a.cfg.Oracle.Timeout.Duration),
		oracle.WithLogger(a.logger),
		oracle.WithRecorder(deps.Metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("app: oracle: %w", err)
	}
	return service.NewOracleService(o, service.OracleDeps{
		Cache:    deps.Verdicts,
		Verdicts: deps.VerdictStore,
		Audit:    deps.AuditStore,
		Locks:    deps.Locks,
		Limiter:  deps.Limiter,
		Bus:      deps.Bus,
		Notifier: deps.Notifier,
	}, service.OracleConfig{
		LockTTL:    a.cfg.Oracle.LockTTL.Duration,
		RateLimit:  a.cfg.Oracle.RateLimit,
		RateWindow: a.cfg.Oracle.RateWindow.Duration,
	}, a.logger), nil
}

// profilerProvider picks the provider that writes trader profiles: Gemini
// when available, otherwise the first configured one.
func profilerProvider(providers []oracle.Provider) oracle.Provider {
	if i := slices.IndexFunc(providers, func(p oracle.Provider) bool {
		return p.Name() == config.ProviderGemini
	}); i >= 0 {
		return providers[i]
	}
	if len(providers) > 0 {
		return providers[0]
	}
	return nil
}

// startHTTPServer adds the API server, its websocket hub and the graceful
// shutdown to g. board may be nil when this process does not scan.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, markets *service.MarketService, board *scanner.Scanner) {
	providers := a.buildProviders()
	oracleSvc, err := a.buildOracle(deps, providers)
	if err != nil {
		g.Go(func() error { return err })
		return
	}

	status := func() domain.ServiceStatus {
		st := domain.ServiceStatus{
			Mode:          a.cfg.Mode,
			UptimeSeconds: int64(time.Since(a.startedAt).Seconds()),
			Feed:          "cache",
			Providers:     []string{},
		}
		if oracleSvc != nil {
			st.Providers = oracleSvc.Providers()
		}
		if board != nil {
			st.Feed = board.Source()
			st.ScanCycles, st.LastScan, st.Tracked = board.Stats()
		}
		return st
	}

	checks := make(map[string]handler.Pinger, len(deps.Checks))
	for name, ping := range deps.Checks {
		checks[name] = ping
	}

	h := server.Handlers{
		Health:  handler.NewHealthHandler(checks, a.logger),
		Status:  handler.NewStatusHandler(status),
		Markets: handler.NewMarketHandler(markets, nil, a.logger),
		Traders: handler.NewTraderHandler(
			service.NewTraderService(oracle.NewProfiler(profilerProvider(providers), a.logger)),
			a.logger,
		),
		Metrics: deps.Metrics.Handler(),
	}
	if deps.ArchiveReader != nil {
		h.Archive = handler.NewArchiveHandler(deps.ArchiveReader, a.logger)
	}
	if oracleSvc != nil {
		h.Markets = handler.NewMarketHandler(markets, oracleSvc, a.logger)
		h.Oracle = handler.NewOracleHandler(markets, oracleSvc, a.logger)
	}

	hub := ws.NewHub(deps.Bus, status, a.originChecker(), a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, h, server.Options{
		Hub:      hub,
		Limiter:  deps.Limiter,
		Observer: deps.Metrics,
	}, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// originChecker restricts websocket upgrades to the CORS origins. An empty
// list or "*" allows every origin.
func (a *App) originChecker() func(*http.Request) bool {
	origins := a.cfg.Server.CORSOrigins
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.ContainsFunc(origins, func(o string) bool {
			return strings.EqualFold(o, origin)
		})
	}
}
