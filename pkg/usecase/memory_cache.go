package usecase

import (
	"sync"
	"time"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/model"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
)

const (
	snapshotCacheTTL = 30 * time.Minute
)

type snapshotCacheKey struct {
	threadID types.ThreadID
	userID   types.UserID
}

type cachedSnapshot struct {
	snapshot *model.MemorySnapshot
	cachedAt time.Time
}

// snapshotCache keeps recently used memory snapshots with lazy TTL
// expiry: a stale entry is dropped on the read that finds it, no sweep
// goroutine. The entry count is not bounded here; live keys track the
// session pool, which is.
type snapshotCache struct {
	cache sync.Map
	ttl   time.Duration
	now   func() time.Time
}

func newSnapshotCache(ttl time.Duration) *snapshotCache {
	if ttl <= 0 {
		ttl = snapshotCacheTTL
	}
	return &snapshotCache{
		ttl: ttl,
		now: time.Now,
	}
}

func (c *snapshotCache) get(threadID types.ThreadID, userID types.UserID) (*model.MemorySnapshot, bool) {
	key := snapshotCacheKey{threadID: threadID, userID: userID}
	val, ok := c.cache.Load(key)
	if !ok {
		return nil, false
	}

	// valid while now - cachedAt < ttl; an entry exactly ttl old is stale
	cached := val.(*cachedSnapshot)
	if c.now().Sub(cached.cachedAt) >= c.ttl {
		c.cache.Delete(key)
		return nil, false
	}

	return cached.snapshot.Clone(), true
}

func (c *snapshotCache) set(snapshot *model.MemorySnapshot) {
	cached := &cachedSnapshot{
		snapshot: snapshot.Clone(),
		cachedAt: c.now(),
	}
	c.cache.Store(snapshotCacheKey{threadID: snapshot.ThreadID, userID: snapshot.UserID}, cached)
}

func (c *snapshotCache) remove(threadID types.ThreadID, userID types.UserID) {
	c.cache.Delete(snapshotCacheKey{threadID: threadID, userID: userID})
}

func (c *snapshotCache) removeByUser(userID types.UserID) int {
	removed := 0
	c.cache.Range(func(key, _ any) bool {
		if key.(snapshotCacheKey).userID == userID {
			c.cache.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

func (c *snapshotCache) removeByThread(threadID types.ThreadID) int {
	removed := 0
	c.cache.Range(func(key, _ any) bool {
		if key.(snapshotCacheKey).threadID == threadID {
			c.cache.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

func (c *snapshotCache) clear() {
	c.cache.Range(func(key, _ any) bool {
		c.cache.Delete(key)
		return true
	})
}
