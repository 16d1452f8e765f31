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

// VerdictCache implements domain.VerdictCache with one JSON string per
// market under verdict:{marketID}.
type VerdictCache struct {
	c   *Client
	ttl time.Duration
}

func NewVerdictCache(c *Client, ttl time.Duration) *VerdictCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &VerdictCache{c: c, ttl: ttl}
}

func (vc *VerdictCache) key(marketID string) string { return vc.c.Key("verdict", marketID) }

func (vc *VerdictCache) Set(ctx context.Context, v domain.ConsensusVerdict) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: marshal verdict %s: %w", v.MarketID, err)
	}
	if err := vc.c.rdb.Set(ctx, vc.key(v.MarketID), data, vc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set verdict %s: %w", v.MarketID, err)
	}
	return nil
}

// Get returns domain.ErrNotFound on a miss or after expiry.
func (vc *VerdictCache) Get(ctx context.Context, marketID string) (domain.ConsensusVerdict, error) {
	data, err := vc.c.rdb.Get(ctx, vc.key(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ConsensusVerdict{}, domain.ErrNotFound
		}
		return domain.ConsensusVerdict{}, fmt.Errorf("redis: get verdict %s: %w", marketID, err)
	}
	var v domain.ConsensusVerdict
	if err := json.Unmarshal(data, &v); err != nil {
		return domain.ConsensusVerdict{}, fmt.Errorf("redis: unmarshal verdict %s: %w", marketID, err)
	}
	return v, nil
}

func (vc *VerdictCache) Invalidate(ctx context.Context, marketID string) error {
	if err := vc.c.rdb.Del(ctx, vc.key(marketID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate verdict %s: %w", marketID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.VerdictCache = (*VerdictCache)(nil)
