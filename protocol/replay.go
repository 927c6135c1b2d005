package protocol

import (
	lru "github.com/hashicorp/golang-lru"
)

// replayCache remembers recently observed (peer, challenge) pairs in a
// bounded LRU, backing the session-level challenge freshness check.
type replayCache struct {
	cache *lru.Cache
}

func newReplayCache(size int) (*replayCache, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &replayCache{cache: cache}, nil
}

type replayKey struct {
	peer      uint64
	challenge uint64
}

// Observe reports whether the pair was seen before and records it.
func (c *replayCache) Observe(peerCommitment, challenge uint64) bool {
	key := replayKey{peer: peerCommitment, challenge: challenge}
	if _, ok := c.cache.Get(key); ok {
		return true
	}
	c.cache.Add(key, struct{}{})
	return false
}
