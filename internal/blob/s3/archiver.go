package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

const contentTypeJSONL = "application/x-ndjson"

// DefaultBatchSize caps how many rows one archive object holds.
const DefaultBatchSize = 50000

// Archiver implements domain.Archiver. It copies rows older than the cutoff
// into a JSONL object and deletes them from the database once the upload
// succeeded. When a table holds more than one batch of old rows, only the
// rows strictly older than the last archived timestamp are deleted, and the
// remainder is picked up by the next run.
type Archiver struct {
	writer    domain.BlobWriter
	verdicts  domain.VerdictStore
	analyses  domain.AnalysisStore
	audit     domain.AuditStore
	batchSize int
	now       func() time.Time
}

// NewArchiver creates an Archiver. audit may be nil.
func NewArchiver(writer domain.BlobWriter, verdicts domain.VerdictStore, analyses domain.AnalysisStore, audit domain.AuditStore, batchSize int) *Archiver {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Archiver{
		writer:    writer,
		verdicts:  verdicts,
		analyses:  analyses,
		audit:     audit,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// ArchiveVerdicts moves verdicts created before the cutoff to
// archive/verdicts/.
func (a *Archiver) ArchiveVerdicts(ctx context.Context, before time.Time) (int64, error) {
	rows, err := a.verdicts.ListBefore(ctx, before, a.batchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive verdicts query: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	last := rows[len(rows)-1].CreatedAt
	return archiveRows(ctx, a, "verdicts", before, rows, last, a.verdicts.DeleteBefore)
}

// ArchiveAnalyses moves edge analyses observed before the cutoff to
// archive/analyses/.
func (a *Archiver) ArchiveAnalyses(ctx context.Context, before time.Time) (int64, error) {
	rows, err := a.analyses.ListBefore(ctx, before, a.batchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive analyses query: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	last := rows[len(rows)-1].Market.ObservedAt
	return archiveRows(ctx, a, "analyses", before, rows, last, a.analyses.DeleteBefore)
}

// archiveRows uploads one batch and deletes what it covered. last is the
// timestamp of the newest row in the batch.
func archiveRows[T any](ctx context.Context, a *Archiver, kind string, before time.Time, rows []T, last time.Time, deleteBefore func(context.Context, time.Time) (int64, error)) (int64, error) {
	buf, err := marshalJSONL(rows)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}

	path := archivePath(kind, a.now())
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), contentTypeJSONL); err != nil {
		return 0, fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}

	count := int64(len(rows))
	cutoff := before
	if len(rows) >= a.batchSize {
		cutoff = last
	}
	deleted, err := deleteBefore(ctx, cutoff)
	if err != nil {
		return count, fmt.Errorf("s3blob: archive %s delete: %w", kind, err)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive."+kind, map[string]any{
			"path":    path,
			"count":   count,
			"deleted": deleted,
			"before":  before.UTC().Format(time.RFC3339),
			"cutoff":  cutoff.UTC().Format(time.RFC3339),
		}); err != nil {
			return count, fmt.Errorf("s3blob: archive %s audit log: %w", kind, err)
		}
	}
	return count, nil
}

// archivePath partitions objects by UTC day and stamps the run time so
// repeated runs on the same day never overwrite each other:
//
//	archive/verdicts/2026-10-14/20261014T030000Z.jsonl
func archivePath(kind string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("archive/%s/%s/%s.jsonl", kind, at.Format("2006-01-02"), at.Format("20060102T150405Z"))
}

// marshalJSONL encodes each record as one compact JSON line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*Archiver)(nil)
