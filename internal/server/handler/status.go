package handler

import (
	"net/http"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// StatusHandler serves the operational summary shown in the dashboard header.
type StatusHandler struct {
	status func() domain.ServiceStatus
}

func NewStatusHandler(status func() domain.ServiceStatus) *StatusHandler {
	return &StatusHandler{status: status}
}

// GetStatus handles GET /api/status.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.status())
}
