// Package singleflight coalesces concurrent fetches for the same cache key
// so a burst of misses issues a single secondary-tier read.
package singleflight

import (
	"context"
	"sync"
)

// Group deduplicates calls to fn per string key: the first caller becomes
// the leader and runs fn, later callers wait for the shared result.
//
// Publishing (val, err) happens-before close(done), so followers reading
// after <-done observe the final values. Cancelling a follower's ctx
// unblocks only that follower; the leader's fn keeps running.
type Group[V any] struct {
	mu sync.Mutex
	m  map[string]*flight[V]
}

type flight[V any] struct {
	done chan struct{} // closed once val/err are published
	val  V
	err  error
}

// Do runs fn at most once per in-flight key. Followers wait for the
// leader's result or their own ctx, whichever comes first.
func (g *Group[V]) Do(ctx context.Context, key string, fn func() (V, error)) (V, error) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[string]*flight[V])
	}
	if f, ok := g.m[key]; ok {
		g.mu.Unlock()
		select {
		case <-f.done:
			return f.val, f.err
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		}
	}

	f := &flight[V]{done: make(chan struct{})}
	g.m[key] = f
	g.mu.Unlock()

	f.val, f.err = fn()
	close(f.done)

	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()

	return f.val, f.err
}
