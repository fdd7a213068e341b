package cache

import (
	"time"

	"github.com/bluele/gcache"

	"agora/contexts/polling/results-service/domain/entities"
)

const (
	defaultSnapshotCacheSize = 10_000
	defaultSnapshotTTL       = 15 * time.Second
	defaultFinalSnapshotTTL  = 24 * time.Hour
)

// SnapshotCache is an LRU cache over result snapshots. Live entries expire
// quickly so the sweeper's numbers win; final entries stay for a day and are
// re-read from the durable store after eviction.
type SnapshotCache struct {
	gc       gcache.Cache
	finalTTL time.Duration
}

func NewSnapshotCache(size int, ttl time.Duration, finalTTL time.Duration) *SnapshotCache {
	if size <= 0 {
		size = defaultSnapshotCacheSize
	}
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	if finalTTL <= 0 {
		finalTTL = defaultFinalSnapshotTTL
	}
	gc := gcache.New(size).
		LRU().
		Expiration(ttl).
		Build()
	return &SnapshotCache{
		gc:       gc,
		finalTTL: finalTTL,
	}
}

func (c *SnapshotCache) Get(pollID string) (entities.ResultSnapshot, bool) {
	value, err := c.gc.Get(pollID)
	if err != nil {
		return entities.ResultSnapshot{}, false
	}
	snapshot, ok := value.(entities.ResultSnapshot)
	if !ok {
		return entities.ResultSnapshot{}, false
	}
	return snapshot.Copy(), true
}

func (c *SnapshotCache) Set(snapshot entities.ResultSnapshot) {
	stored := snapshot.Copy()
	if stored.Final {
		_ = c.gc.SetWithExpire(stored.PollID, stored, c.finalTTL)
		return
	}
	_ = c.gc.Set(stored.PollID, stored)
}

func (c *SnapshotCache) Invalidate(pollID string) {
	c.gc.Remove(pollID)
}

// Purge empties the cache. Test hook.
func (c *SnapshotCache) Purge() {
	c.gc.Purge()
}
