package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

type fakeArchive struct {
	prefix  string
	objects map[string]string
}

func (f *fakeArchive) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	f.prefix = prefix
	var out []domain.BlobInfo
	for p, body := range f.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, domain.BlobInfo{Path: p, Size: int64(len(body)), LastModified: time.Unix(0, 0).UTC()})
		}
	}
	return out, nil
}

func (f *fakeArchive) Get(_ context.Context, path string) (io.ReadCloser, error) {
	body, ok := f.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func archiveMux(f *fakeArchive) *http.ServeMux {
	h := NewArchiveHandler(f, discard())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/archive", h.List)
	mux.HandleFunc("GET /api/archive/{path...}", h.Download)
	return mux
}

func TestArchiveList(t *testing.T) {
	f := &fakeArchive{objects: map[string]string{
		"archive/verdicts/2026-10-14/20261014T030000Z.jsonl": "{}\n",
		"archive/analyses/2026-10-14/20261014T030000Z.jsonl": "{}\n",
	}}
	mux := archiveMux(f)

	rec, body := do(t, mux, http.MethodGet, "/api/archive?date=2026-10-14")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "archive/verdicts/2026-10-14/", f.prefix)
	assert.Len(t, body["objects"], 1)

	rec, _ = do(t, mux, http.MethodGet, "/api/archive?kind=trades")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, mux, http.MethodGet, "/api/archive?kind=analyses&date=2026-10-15")
	assert.JSONEq(t, `{"objects":[]}`, rec.Body.String())
}

func TestArchiveDownload(t *testing.T) {
	mux := archiveMux(&fakeArchive{objects: map[string]string{
		"archive/verdicts/2026-10-14/20261014T030000Z.jsonl": "{\"id\":\"v1\"}\n",
	}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/archive/verdicts/2026-10-14/20261014T030000Z.jsonl", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	assert.Equal(t, "{\"id\":\"v1\"}\n", rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/archive/verdicts/2026-10-14/missing.jsonl", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/archive/verdicts/secret.txt", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
