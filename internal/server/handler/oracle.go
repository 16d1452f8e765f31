package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// Consultant runs and lists consensus verdicts.
type Consultant interface {
	Consult(ctx context.Context, snap domain.MarketSnapshot, force bool) (domain.ConsensusVerdict, error)
	Recent(ctx context.Context, limit int) ([]domain.ConsensusVerdict, error)
	Replay(ctx context.Context, lastID string, count int) ([]domain.ConsensusVerdict, string, error)
}

type OracleHandler struct {
	markets MarketReader
	oracle  Consultant
	logger  *slog.Logger
}

func NewOracleHandler(markets MarketReader, oracle Consultant, logger *slog.Logger) *OracleHandler {
	return &OracleHandler{markets: markets, oracle: oracle, logger: logHandler(logger, "oracle")}
}

// Consult handles POST /api/markets/{id}/consult. ?force=true skips the
// verdict cache.
func (h *OracleHandler) Consult(w http.ResponseWriter, r *http.Request) {
	snap, err := h.markets.Market(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	v, err := h.oracle.Consult(r.Context(), snap, force)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// ListRecent handles GET /api/verdicts/recent?limit=20.
func (h *OracleHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	vs, err := h.oracle.Recent(r.Context(), queryInt(r, "limit", 20, 50))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	if vs == nil {
		vs = []domain.ConsensusVerdict{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"verdicts": vs})
}

// Stream handles GET /api/verdicts/stream?after=0&count=100, paging through
// the durable verdict log.
func (h *OracleHandler) Stream(w http.ResponseWriter, r *http.Request) {
	vs, next, err := h.oracle.Replay(r.Context(), r.URL.Query().Get("after"), queryInt(r, "count", 100, 1000))
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	if vs == nil {
		vs = []domain.ConsensusVerdict{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"verdicts": vs, "next": next})
}
