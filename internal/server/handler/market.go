package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/intent"
)

// MarketReader serves scored markets.
type MarketReader interface {
	Board(ctx context.Context) (domain.EdgeBoard, error)
	Markets(ctx context.Context) []domain.MarketSnapshot
	Market(ctx context.Context, id string) (domain.MarketSnapshot, error)
	Intent(ctx context.Context, id string, sizeUSD float64) (domain.ExecutionIntent, error)
}

// VerdictReader looks up the last verdict of a market.
type VerdictReader interface {
	Latest(ctx context.Context, marketID string) (domain.ConsensusVerdict, error)
}

type MarketHandler struct {
	markets  MarketReader
	verdicts VerdictReader
	logger   *slog.Logger
}

func NewMarketHandler(markets MarketReader, verdicts VerdictReader, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, verdicts: verdicts, logger: logHandler(logger, "market")}
}

// ListEdges handles GET /api/edges.
func (h *MarketHandler) ListEdges(w http.ResponseWriter, r *http.Request) {
	board, err := h.markets.Board(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// ListMarkets handles GET /api/markets.
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"markets": h.markets.Markets(r.Context())})
}

type marketResponse struct {
	domain.MarketSnapshot
	Verdict *domain.ConsensusVerdict `json:"verdict,omitempty"`
}

// GetMarket handles GET /api/markets/{id}. The latest verdict is attached when
// one exists.
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, err := h.markets.Market(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	resp := marketResponse{MarketSnapshot: snap}
	if h.verdicts != nil {
		v, err := h.verdicts.Latest(r.Context(), id)
		switch {
		case err == nil:
			resp.Verdict = &v
		case !errors.Is(err, domain.ErrNotFound):
			h.logger.WarnContext(r.Context(), "verdict lookup failed",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetIntent handles GET /api/markets/{id}/intent?size=250.
func (h *MarketHandler) GetIntent(w http.ResponseWriter, r *http.Request) {
	size := float64(intent.DefaultSizeUSD)
	if v := r.URL.Query().Get("size"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "size must be a number")
			return
		}
		size = parsed
	}

	in, err := h.markets.Intent(r.Context(), r.PathValue("id"), size)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}
