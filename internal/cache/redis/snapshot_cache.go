package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// SnapshotCache implements domain.SnapshotCache using Redis hashes holding
// JSON-serialized snapshots.
//
// Key schema:
//
//	snapshot:{marketID} - hash with field "data" containing JSON
//	edges:board         - string with the JSON edge board
type SnapshotCache struct {
	c   *Client
	ttl time.Duration
}

// NewSnapshotCache creates a SnapshotCache. Entries expire after ttl, which
// should exceed the scan interval so a missed cycle does not empty the cache.
func NewSnapshotCache(c *Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SnapshotCache{c: c, ttl: ttl}
}

func (sc *SnapshotCache) snapshotKey(id string) string { return sc.c.Key("snapshot", id) }
func (sc *SnapshotCache) boardKey() string             { return sc.c.Key("edges", "board") }

// SetSnapshot stores a snapshot with the configured TTL.
func (sc *SnapshotCache) SetSnapshot(ctx context.Context, snap domain.MarketSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %s: %w", snap.Market.ID, err)
	}

	key := sc.snapshotKey(snap.Market.ID)
	pipe := sc.c.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, sc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", snap.Market.ID, err)
	}
	return nil
}

// GetSnapshot returns domain.ErrNotFound when the market is not cached.
func (sc *SnapshotCache) GetSnapshot(ctx context.Context, marketID string) (domain.MarketSnapshot, error) {
	data, err := sc.c.rdb.HGet(ctx, sc.snapshotKey(marketID), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MarketSnapshot{}, domain.ErrNotFound
		}
		return domain.MarketSnapshot{}, fmt.Errorf("redis: get snapshot %s: %w", marketID, err)
	}

	var snap domain.MarketSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("redis: unmarshal snapshot %s: %w", marketID, err)
	}
	return snap, nil
}

// SetBoard replaces the current edge board.
func (sc *SnapshotCache) SetBoard(ctx context.Context, board domain.EdgeBoard) error {
	data, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("redis: marshal board: %w", err)
	}
	if err := sc.c.rdb.Set(ctx, sc.boardKey(), data, sc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set board: %w", err)
	}
	return nil
}

// GetBoard returns domain.ErrNotFound before the first scan completes.
func (sc *SnapshotCache) GetBoard(ctx context.Context) (domain.EdgeBoard, error) {
	data, err := sc.c.rdb.Get(ctx, sc.boardKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.EdgeBoard{}, domain.ErrNotFound
		}
		return domain.EdgeBoard{}, fmt.Errorf("redis: get board: %w", err)
	}
	var board domain.EdgeBoard
	if err := json.Unmarshal(data, &board); err != nil {
		return domain.EdgeBoard{}, fmt.Errorf("redis: unmarshal board: %w", err)
	}
	return board, nil
}

// Compile-time interface check.
var _ domain.SnapshotCache = (*SnapshotCache)(nil)
