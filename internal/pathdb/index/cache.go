// Package index implements the secondary indexes layered over a PathDB
// image: a type index, a bounded-depth path index, a per-attribute
// inverted text index, and a fact-node index keyed by relation/schema/
// context/key-constraint. All four follow the same staleness model: a
// build is tagged with the PathDB generation it was built from, and a
// reader that observes a stale cache either triggers an asynchronous
// rebuild and falls back to a synchronous column scan for that one call,
// or — if a build is already in flight — falls back immediately without
// queuing a second one.
package index

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// generationSource is satisfied by *pathdb.PathDB; kept narrow so this package
// never needs to import pathdb for its own sake beyond the types it
// indexes.
type generationSource interface {
	Generation() uint64
}

// cache is the shared staleness/rebuild bookkeeping used by every index
// in this package: a built_generation watermark, a singleflight group
// keyed by generation to coalesce concurrent rebuild requests, and a
// background-goroutine dispatch that discards its result if the source
// has moved on to a newer generation by the time the build finishes.
type cache[T any] struct {
	builtGeneration atomic.Uint64 // sentinel: ^uint64(0) means "never built"
	mu              sync.RWMutex
	value           T
	group           singleflight.Group
}

const neverBuilt = ^uint64(0)

func newCache[T any]() *cache[T] {
	c := &cache[T]{}
	c.builtGeneration.Store(neverBuilt)
	return c
}

// snapshot returns the cached value and whether it is current for gen.
func (c *cache[T]) snapshot(gen uint64) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.builtGeneration.Load() != gen {
		var zero T
		return zero, false
	}
	return c.value, true
}

func (c *cache[T]) store(gen uint64, v T) {
	c.mu.Lock()
	c.value = v
	c.mu.Unlock()
	c.builtGeneration.Store(gen)
}

// withIndexOrFallback is the public read path shared by every index:
// if a build tagged with the current generation exists, use it; else
// kick off (or join) a rebuild in the background and answer this one
// call with fallback instead of blocking on it.
func withIndexOrFallback[T any, R any](c *cache[T], src generationSource, build func() T, fallback func() R, use func(T) R) R {
	gen := src.Generation()
	if v, ok := c.snapshot(gen); ok {
		return use(v)
	}

	built := make(chan struct{})
	go func() {
		defer close(built)
		c.group.Do(keyOf(gen), func() (interface{}, error) {
			v := build()
			// Only install if the source hasn't moved past gen while we
			// were building — an in-flight build for a stale generation
			// is simply discarded (§ async rebuild discard-on-stale).
			if src.Generation() == gen {
				c.store(gen, v)
			}
			return nil, nil
		})
	}()
	return fallback()
}

func keyOf(gen uint64) string {
	// decimal is plenty: singleflight keys are process-local strings.
	const digits = "0123456789"
	if gen == 0 {
		return "0"
	}
	buf := make([]byte, 0, 20)
	for gen > 0 {
		buf = append(buf, digits[gen%10])
		gen /= 10
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}
