package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// ArchiveBrowser reads the cold-storage archive.
type ArchiveBrowser interface {
	List(ctx context.Context, prefix string) ([]domain.BlobInfo, error)
	Get(ctx context.Context, path string) (io.ReadCloser, error)
}

type ArchiveHandler struct {
	blobs  ArchiveBrowser
	logger *slog.Logger
}

func NewArchiveHandler(blobs ArchiveBrowser, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{blobs: blobs, logger: logHandler(logger, "archive")}
}

var archiveKinds = map[string]bool{"verdicts": true, "analyses": true}

// List handles GET /api/archive?kind=verdicts&date=2026-01-31.
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = "verdicts"
	}
	if !archiveKinds[kind] {
		writeError(w, http.StatusBadRequest, "kind must be verdicts or analyses")
		return
	}
	prefix := "archive/" + kind + "/"
	if date := r.URL.Query().Get("date"); date != "" {
		if strings.ContainsAny(date, "/.") {
			writeError(w, http.StatusBadRequest, "invalid date")
			return
		}
		prefix += date + "/"
	}

	infos, err := h.blobs.List(r.Context(), prefix)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	if infos == nil {
		infos = []domain.BlobInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"objects": infos})
}

// Download handles GET /api/archive/{path...}, streaming one JSONL object.
func (h *ArchiveHandler) Download(w http.ResponseWriter, r *http.Request) {
	p := r.PathValue("path")
	if clean := path.Clean("/" + p); clean != "/"+p || !strings.HasSuffix(p, ".jsonl") {
		writeError(w, http.StatusBadRequest, "invalid archive path")
		return
	}

	body, err := h.blobs.Get(r.Context(), "archive/"+p)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "archive download interrupted",
			slog.String("path", p),
			slog.String("error", err.Error()),
		)
	}
}
