// Package hive implements a generic, growable worker pool: a Hive of
// bee.Worker instances, each built by a shared bee.Queen, pulling
// Tasks from one coordination core (shared) and reporting a terminal
// Outcome for every task submitted - exactly once, unless the Hive is
// dropped with workers still running.
package hive

import (
	"context"
	"iter"
	"slices"

	"github.com/joeycumines/hive/bee"
)

// Hive is the public handle to a running worker pool. Multiple Hive
// handles can share one underlying pool via Clone; the pool's task
// channel is only closed once the last handle calls Close, since Go
// has no destructor to do that automatically when a handle goes out
// of scope.
type Hive[I, O any] struct {
	s *shared[I, O]
}

// Build constructs a Hive from b and queen, spawning Config.NumThreads
// worker goroutines (defaulting to runtime.GOMAXPROCS(0) if b was never
// given an explicit count).
func Build[I, O any](b *Builder, queen bee.Queen[I, O]) (*Hive[I, O], error) {
	cfg := b.buildConfig()
	s := newShared[I, O](cfg, queen)
	h := &Hive[I, O]{s: s}
	if err := s.spawnUpTo(cfg.NumThreads()); err != nil {
		return nil, err
	}
	return h, nil
}

// BuildFunc is a convenience over Build for callers whose Worker needs
// no per-instance state beyond the function itself.
func BuildFunc[I, O any](b *Builder, newWorker func() bee.Worker[I, O]) (*Hive[I, O], error) {
	return Build[I, O](b, bee.QueenFunc[I, O](newWorker))
}

// Grow adds n to the pool's target thread count and spawns the
// corresponding new worker goroutines.
func (h *Hive[I, O]) Grow(n uint64) error {
	prev := h.s.cfg.AddThreads(n)
	return h.s.spawnUpTo(prev + n)
}

// EnsureThreads raises the pool's target thread count to at least n
// (never lowering it) and spawns any new worker goroutines needed to
// reach it.
func (h *Hive[I, O]) EnsureThreads(n uint64) error {
	h.s.cfg.EnsureThreads(n)
	return h.s.spawnUpTo(n)
}

// NumThreads returns the pool's current target thread count. This may
// be ahead of the number of goroutines actually running if a Grow or
// EnsureThreads call is still spawning them.
func (h *Hive[I, O]) NumThreads() uint64 { return h.s.cfg.NumThreads() }

// NumTasks reports the number of tasks queued and currently active.
func (h *Hive[I, O]) NumTasks() (queued, active uint64) { return h.s.numTasks() }

// NumPanics reports how many tasks have panicked over the Hive's
// lifetime.
func (h *Hive[I, O]) NumPanics() uint64 { return h.s.numPanics.Load() }

// Outcomes returns the store of outcomes accumulated for tasks that
// were never sent to an explicit channel (or whose send would have
// blocked).
func (h *Hive[I, O]) Outcomes() *OutcomeStore[I, O] { return h.s.outcomes }

// Apply submits input and blocks until its Outcome is ready or ctx is
// done.
func (h *Hive[I, O]) Apply(ctx context.Context, input I) (*Outcome[I, O], error) {
	tx := make(chan *Outcome[I, O], 1)
	if _, err := h.ApplySend(input, tx); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-tx:
		return o, nil
	}
}

// ApplySend submits input, routing its eventual Outcome to tx (a
// non-blocking try-send: if tx is full when the worker finishes, the
// outcome is stored instead, retrievable via Outcomes). It returns the
// task's index immediately, without waiting for it to run.
func (h *Hive[I, O]) ApplySend(input I, tx chan<- *Outcome[I, O]) (uint64, error) {
	task, err := h.s.prepareTask(input, tx)
	if err != nil {
		return 0, err
	}
	if !h.s.taskRx.send(task) {
		return 0, ErrDisconnected
	}
	return task.Index(), nil
}

// ApplyStore submits input and stores its Outcome in Outcomes once
// ready, returning the task's index immediately.
func (h *Hive[I, O]) ApplyStore(input I) (uint64, error) {
	return h.ApplySend(input, nil)
}

// Swarm submits every input, discarding their indices and storing each
// Outcome once ready. Use SwarmStore if the indices are needed to look
// the outcomes up later.
func (h *Hive[I, O]) Swarm(inputs []I) error {
	_, err := h.swarm(inputs, nil)
	return err
}

// SwarmSend submits every input, routing each Outcome to tx, and
// returns the indices assigned, in submission order.
func (h *Hive[I, O]) SwarmSend(inputs []I, tx chan<- *Outcome[I, O]) ([]uint64, error) {
	return h.swarm(inputs, tx)
}

// SwarmStore submits every input, storing each Outcome once ready, and
// returns the indices assigned, in submission order.
func (h *Hive[I, O]) SwarmStore(inputs []I) ([]uint64, error) {
	return h.swarm(inputs, nil)
}

func (h *Hive[I, O]) swarm(inputs []I, tx chan<- *Outcome[I, O]) ([]uint64, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	indices := make([]uint64, 0, len(inputs))
	for task := range h.s.prepareBatch(len(inputs), slices.Values(inputs), tx) {
		if !h.s.taskRx.send(task) {
			return indices, ErrDisconnected
		}
		indices = append(indices, task.Index())
	}
	return indices, nil
}

// Map submits every input and returns a lazily-consumed iterator of
// their Outcomes, in submission order (outcomes that arrive out of
// order are buffered until their turn comes).
func (h *Hive[I, O]) Map(inputs []I) iter.Seq[*Outcome[I, O]] {
	return func(yield func(*Outcome[I, O]) bool) {
		if len(inputs) == 0 {
			return
		}
		tx := make(chan *Outcome[I, O], len(inputs))
		indices := make([]uint64, 0, len(inputs))
		for task := range h.s.prepareBatch(len(inputs), slices.Values(inputs), tx) {
			if !h.s.taskRx.send(task) {
				break
			}
			indices = append(indices, task.Index())
		}

		pending := make(map[uint64]*Outcome[I, O], len(indices))
		next := 0
		for next < len(indices) {
			if o, ok := pending[indices[next]]; ok {
				delete(pending, indices[next])
				next++
				if !yield(o) {
					return
				}
				continue
			}
			o, ok := <-tx
			if !ok {
				return
			}
			pending[o.Index] = o
		}
	}
}

// Suspend pauses task dispatch: workers finish whatever they're
// running, then block instead of pulling new tasks, until Resume is
// called. It returns false if the Hive was already suspended.
func (h *Hive[I, O]) Suspend() bool { return h.s.setSuspended(true) }

// Resume undoes Suspend. It returns false if the Hive was not
// suspended.
func (h *Hive[I, O]) Resume() bool { return h.s.setSuspended(false) }

// IsSuspended reports whether the Hive is currently suspended.
func (h *Hive[I, O]) IsSuspended() bool { return h.s.isSuspended() }

// Join blocks until there is no queued or active work. A suspended
// Hive with only queued (not active) work is considered idle for this
// purpose, matching hasWork's definition.
func (h *Hive[I, O]) Join() { h.s.waitOnDone() }

// Clone returns a new handle to the same underlying pool, incrementing
// its referrer count. The pool's task channel is only closed once
// every clone (and the original) has called Close.
func (h *Hive[I, O]) Clone() *Hive[I, O] {
	h.s.referrerIsCloning()
	return &Hive[I, O]{s: h.s}
}

// Close releases this handle. If it was the last referrer, the pool's
// task channel is closed, so worker goroutines exit once they've
// drained whatever was already queued.
func (h *Hive[I, O]) Close() {
	if h.s.referrerIsDropping() == 1 {
		h.s.taskRx.close()
	}
}

// TryIntoHusk poisons the Hive (no further tasks will be started;
// submission calls are not rejected afterwards, and a task submitted
// after this call is queued but never run) and returns a Husk
// snapshotting its queen, panic count, and accumulated outcomes. The Husk shares the pool's outcome store, so a
// task already running when this is called may still complete and
// land its outcome there after the fact; call Join first if every
// outcome must be present before inspecting the Husk.
func (h *Hive[I, O]) TryIntoHusk() *Husk[I, O] {
	h.s.poison()
	return newHuskFromShared(h.s)
}
