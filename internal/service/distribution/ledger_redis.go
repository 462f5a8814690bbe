package distribution

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/beaivisible/discovery-engine/internal/domain"
)

// ledgerTTL bounds how long an idempotency record is kept. Re-invoking a
// sync after this window re-pushes, which is acceptable for a ledger
// whose job is to stop accidental immediate double-submits.
const ledgerTTL = 7 * 24 * time.Hour

// RedisLedger implements Ledger on Redis. Records are JSON outcomes
// keyed by tenant, idempotency key, and category.
type RedisLedger struct {
	redis *redis.Client
}

// NewRedisLedger creates a ledger over the given Redis client.
func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{redis: client}
}

func ledgerKey(tenantID, key, category string) string {
	return fmt.Sprintf("sync:ledger:%s:%s:%s", tenantID, key, category)
}

// Outcome returns the recorded outcome for the pair, if any.
func (l *RedisLedger) Outcome(ctx context.Context, tenantID, key, category string) (*domain.CategorySyncOutcome, bool, error) {
	data, err := l.redis.Get(ctx, ledgerKey(tenantID, key, category)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ledger get: %w", err)
	}

	var out domain.CategorySyncOutcome
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false, fmt.Errorf("ledger decode: %w", err)
	}
	return &out, true, nil
}

// Record stores the outcome for the pair.
func (l *RedisLedger) Record(ctx context.Context, tenantID, key, category string, out domain.CategorySyncOutcome) error {
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("ledger encode: %w", err)
	}
	if err := l.redis.Set(ctx, ledgerKey(tenantID, key, category), data, ledgerTTL).Err(); err != nil {
		return fmt.Errorf("ledger set: %w", err)
	}
	return nil
}
