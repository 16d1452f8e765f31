package domain

import (
	"context"
	"time"
)

// SnapshotCache keeps the latest market snapshots and the current edge board.
type SnapshotCache interface {
	SetSnapshot(ctx context.Context, snap MarketSnapshot) error
	GetSnapshot(ctx context.Context, marketID string) (MarketSnapshot, error)
	SetBoard(ctx context.Context, board EdgeBoard) error
	GetBoard(ctx context.Context) (EdgeBoard, error)
}

// VerdictCache holds the most recent consensus verdict per market.
type VerdictCache interface {
	Set(ctx context.Context, v ConsensusVerdict) error
	Get(ctx context.Context, marketID string) (ConsensusVerdict, error)
	Invalidate(ctx context.Context, marketID string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	// Wait blocks until a request fits the budget or ctx ends.
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
