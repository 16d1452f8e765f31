package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// TraderDirectory lists tracked traders and profiles them.
type TraderDirectory interface {
	Leaderboard() []domain.Trader
	Profile(ctx context.Context, rank int) (domain.Trader, string, error)
}

type TraderHandler struct {
	traders TraderDirectory
	logger  *slog.Logger
}

func NewTraderHandler(traders TraderDirectory, logger *slog.Logger) *TraderHandler {
	return &TraderHandler{traders: traders, logger: logHandler(logger, "trader")}
}

// ListTraders handles GET /api/traders.
func (h *TraderHandler) ListTraders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"traders": h.traders.Leaderboard()})
}

// Profile handles POST /api/traders/{rank}/profile.
func (h *TraderHandler) Profile(w http.ResponseWriter, r *http.Request) {
	rank, err := strconv.Atoi(r.PathValue("rank"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "rank must be an integer")
		return
	}
	t, profile, err := h.traders.Profile(r.Context(), rank)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trader": t, "profile": profile})
}
