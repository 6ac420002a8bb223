package composer

import (
	"sync"
	"time"
)

const capsuleHistoryPerThread = 16

// cachedCapsule is the cache's retained view of a previously composed
// capsule: enough to compute a delta and to serve undo.
type cachedCapsule struct {
	capsule   Capsule
	memoryIDs map[string]bool
	expiresAt time.Time
}

// ThreadCache holds the last N capsules per thread_key, evicting the
// oldest on overflow and lazily dropping expired entries on access. A
// per-thread mutex linearizes composes for the same thread, matching the
// concurrency model's ordering guarantee.
type ThreadCache struct {
	mu      sync.Mutex
	perKey  map[string][]*cachedCapsule // most-recent first
	locks   map[string]*sync.Mutex
	maxSize int
}

// NewThreadCache builds an empty cache holding up to maxSize capsules per
// thread (0 uses the specification's default of 16).
func NewThreadCache(maxSize int) *ThreadCache {
	if maxSize <= 0 {
		maxSize = capsuleHistoryPerThread
	}
	return &ThreadCache{
		perKey:  map[string][]*cachedCapsule{},
		locks:   map[string]*sync.Mutex{},
		maxSize: maxSize,
	}
}

// Lock returns the mutex serializing composes for threadKey, creating it on
// first use.
func (c *ThreadCache) Lock(threadKey string) func() {
	if threadKey == "" {
		return func() {}
	}
	c.mu.Lock()
	l, ok := c.locks[threadKey]
	if !ok {
		l = &sync.Mutex{}
		c.locks[threadKey] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Put records a freshly composed capsule for threadKey, evicting the
// oldest entry if the per-thread history is full.
func (c *ThreadCache) Put(threadKey string, capsule Capsule, memoryIDs []string, now time.Time) {
	if threadKey == "" {
		return
	}
	ids := map[string]bool{}
	for _, id := range memoryIDs {
		ids[id] = true
	}
	entry := &cachedCapsule{
		capsule:   capsule,
		memoryIDs: ids,
		expiresAt: now.Add(time.Duration(capsule.TTLSeconds) * time.Second),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	list := append([]*cachedCapsule{entry}, c.perKey[threadKey]...)
	if len(list) > c.maxSize {
		list = list[:c.maxSize]
	}
	c.perKey[threadKey] = list
}

// Get looks up a capsule by id within threadKey's history, dropping it (and
// any other expired entries it finds along the way) if expired.
func (c *ThreadCache) Get(threadKey, capsuleID string, now time.Time) (cachedCapsule, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := c.perKey[threadKey]
	fresh := make([]*cachedCapsule, 0, len(list))
	var found *cachedCapsule
	for _, e := range list {
		if now.After(e.expiresAt) {
			continue
		}
		fresh = append(fresh, e)
		if e.capsule.CapsuleID == capsuleID && found == nil {
			found = e
		}
	}
	c.perKey[threadKey] = fresh
	if found == nil {
		return cachedCapsule{}, false
	}
	return *found, true
}

// Remove deletes a capsule from threadKey's history, reporting whether it
// was present (and unexpired).
func (c *ThreadCache) Remove(threadKey, capsuleID string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := c.perKey[threadKey]
	out := make([]*cachedCapsule, 0, len(list))
	removed := false
	for _, e := range list {
		if now.After(e.expiresAt) {
			continue
		}
		if e.capsule.CapsuleID == capsuleID {
			removed = true
			continue
		}
		out = append(out, e)
	}
	c.perKey[threadKey] = out
	return removed
}
