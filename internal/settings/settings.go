// Package settings holds runtime-tunable notification toggles backed by
// Redis, so operators can mute a notification class without a redeploy.
package settings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Redis keys for the notification toggles. Values are "0" (off) or "1" (on);
// a missing key means the toggle is on.
const (
	KeyOrderCreated  = "storefront:notifications:order_created"
	KeyStatusChanged = "storefront:notifications:status_changed"
	KeyLowStock      = "storefront:notifications:low_stock"
)

// Snapshot is one consistent read of all notification toggles.
type Snapshot struct {
	OrderCreated  bool
	StatusChanged bool
	LowStock      bool
}

// defaultSnapshot has every notification enabled.
func defaultSnapshot() Snapshot {
	return Snapshot{OrderCreated: true, StatusChanged: true, LowStock: true}
}

// Store reads and writes notification toggles. Reads degrade to the
// all-enabled default when Redis is unreachable; muting notifications is a
// convenience, losing them is not acceptable.
type Store struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewStore creates a settings store over the given Redis client.
func NewStore(rdb *redis.Client, logger *slog.Logger) *Store {
	return &Store{rdb: rdb, logger: logger}
}

// Load reads all toggles in one round trip.
func (s *Store) Load(ctx context.Context) Snapshot {
	snap := defaultSnapshot()
	if s.rdb == nil {
		return snap
	}

	vals, err := s.rdb.MGet(ctx, KeyOrderCreated, KeyStatusChanged, KeyLowStock).Result()
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load notification settings, using defaults",
			slog.String("error", err.Error()),
		)
		return snap
	}

	snap.OrderCreated = toggleValue(vals[0])
	snap.StatusChanged = toggleValue(vals[1])
	snap.LowStock = toggleValue(vals[2])
	return snap
}

// SetToggle writes a single toggle.
func (s *Store) SetToggle(ctx context.Context, key string, enabled bool) error {
	if s.rdb == nil {
		return fmt.Errorf("settings store has no redis backend")
	}

	val := "1"
	if !enabled {
		val = "0"
	}
	if err := s.rdb.Set(ctx, key, val, 0).Err(); err != nil {
		return fmt.Errorf("set notification toggle %s: %w", key, err)
	}
	return nil
}

func toggleValue(v any) bool {
	s, ok := v.(string)
	if !ok {
		return true // missing key: toggle defaults to on
	}
	return s != "0"
}
