package keys

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// keyCache is an identity-keyed, compute-once fingerprint cache. Concurrent
// callers requesting the same key compute the value exactly once and all
// observe the same result; failures are not cached. Its lifetime is tied to
// one factory, i.e. one build invocation.
type keyCache struct {
	mu     sync.RWMutex
	keys   map[string]RuleKey
	flight singleflight.Group
}

func newKeyCache() *keyCache {
	return &keyCache{keys: make(map[string]RuleKey)}
}

// getOrCompute returns the cached key for id or computes it once. onLookup
// observes whether the fast path hit, for instrumentation.
func (c *keyCache) getOrCompute(id string, compute func() (RuleKey, error), onLookup func(hit bool)) (RuleKey, error) {
	c.mu.RLock()
	key, ok := c.keys[id]
	c.mu.RUnlock()
	if onLookup != nil {
		onLookup(ok)
	}
	if ok {
		return key, nil
	}

	v, err, _ := c.flight.Do(id, func() (any, error) {
		// A concurrent computation may have landed between the read
		// lock and the flight.
		c.mu.RLock()
		key, ok := c.keys[id]
		c.mu.RUnlock()
		if ok {
			return key, nil
		}

		key, err := compute()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.keys[id] = key
		c.mu.Unlock()
		return key, nil
	})
	if err != nil {
		return RuleKey{}, err
	}
	return v.(RuleKey), nil
}

// len reports the number of cached entries.
func (c *keyCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}
