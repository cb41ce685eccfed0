package pipeline

import (
	lru "github.com/hashicorp/golang-lru"
)

// dedupCacheSize bounds the Stage 1 cache's memory footprint.
const dedupCacheSize = 50000

// dedup is Stage 1: a bounded cache over raw transaction bytes that
// rejects repeats without running them through the rest of the pipeline.
type dedup struct {
	cache *lru.Cache
}

func newDedup() *dedup {
	cache, err := lru.New(dedupCacheSize)
	if err != nil {
		// lru.New only errors for a non-positive size, which dedupCacheSize never is.
		panic(err)
	}

	return &dedup{cache: cache}
}

// seen reports whether raw was already processed and marks it seen
// either way, so a concurrent duplicate racing in right behind it is
// also caught.
func (d *dedup) seen(raw []byte) bool {
	key := string(raw)

	_, alreadySeen := d.cache.Get(key)
	d.cache.Add(key, struct{}{})

	return alreadySeen
}
