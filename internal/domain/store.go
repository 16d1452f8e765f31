package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AnalysisStore persists the edge analysis history produced by each scan.
type AnalysisStore interface {
	InsertBatch(ctx context.Context, snaps []MarketSnapshot) error
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]MarketSnapshot, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]MarketSnapshot, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// VerdictStore persists consensus verdicts.
type VerdictStore interface {
	Insert(ctx context.Context, v ConsensusVerdict) error
	GetByID(ctx context.Context, id string) (ConsensusVerdict, error)
	ListRecent(ctx context.Context, limit int) ([]ConsensusVerdict, error)
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]ConsensusVerdict, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]ConsensusVerdict, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
