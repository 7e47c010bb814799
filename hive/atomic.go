package hive

import "sync/atomic"

// atomic64 is a thin CAS-loop wrapper around atomic.Uint64 for the
// handful of "read, maybe update" operations Config.NumThreads needs
// (add, raise-to-at-least) that atomic.Uint64 doesn't provide directly.
type atomic64 struct {
	v atomic.Uint64
}

func (a *atomic64) load() uint64 { return a.v.Load() }

func (a *atomic64) store(n uint64) { a.v.Store(n) }

// add atomically adds n and returns the value before the add.
func (a *atomic64) add(n uint64) uint64 {
	for {
		old := a.v.Load()
		if a.v.CompareAndSwap(old, old+n) {
			return old
		}
	}
}

// ensureAtLeast atomically raises the value to n if it's currently
// less than n, and returns the value before the call either way.
func (a *atomic64) ensureAtLeast(n uint64) uint64 {
	for {
		old := a.v.Load()
		if old >= n {
			return old
		}
		if a.v.CompareAndSwap(old, n) {
			return old
		}
	}
}
