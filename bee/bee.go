// Package bee defines the contracts a Hive schedules against: the
// Worker a caller implements, the Queen that manufactures Workers, and
// the per-task Context a Worker receives alongside its input.
//
// None of this package coordinates anything itself. It exists so that
// github.com/joeycumines/hive/hive can be written against stable
// interfaces rather than against any one caller's types.
package bee

import (
	"context"
	"sync/atomic"
)

type (
	// Worker processes one input at a time, producing an output or an
	// error. Apply may panic; the caller running the Worker is
	// responsible for recovering it.
	//
	// The pool asks its Queen for one Worker per pool slot, and each
	// slot calls its Worker from one goroutine at a time. If the Queen
	// returns a fresh instance per call, Apply need not be safe for
	// concurrent use; if it returns one shared instance (as
	// DefaultQueen does), that instance is called concurrently by every
	// slot and must be safe for concurrent use.
	Worker[I, O any] interface {
		Apply(ctx context.Context, input I, tctx *Context) (O, error)
	}

	// Queen manufactures Worker instances. Create is called under a
	// mutex shared by the whole pool, so it should be cheap, or the
	// Worker it returns should do its own expensive setup lazily.
	Queen[I, O any] interface {
		Create() Worker[I, O]
	}

	// QueenFunc adapts a plain function to Queen.
	QueenFunc[I, O any] func() Worker[I, O]

	// WorkerFunc adapts a plain function to Worker, for callers whose
	// processor needs no state beyond the closure.
	WorkerFunc[I, O any] func(ctx context.Context, input I, tctx *Context) (O, error)
)

// Create implements Queen.
func (f QueenFunc[I, O]) Create() Worker[I, O] { return f() }

// Apply implements Worker.
func (f WorkerFunc[I, O]) Apply(ctx context.Context, input I, tctx *Context) (O, error) {
	return f(ctx, input, tctx)
}

// Context is the per-task execution context passed to Worker.Apply. It
// carries the task's immutable index, its current retry attempt, and a
// read-only view of the pool's suspended flag, so a long-running
// Worker can observe cooperative suspension without the pool needing
// to interrupt it.
type Context struct {
	index     uint64
	attempt   uint32
	suspended *atomic.Bool
}

// NewContext constructs a Context. It is exported for use by
// github.com/joeycumines/hive/hive, which owns the index/attempt
// sequencing and the shared suspended flag; callers implementing
// Worker should treat Context as read-only.
func NewContext(index uint64, attempt uint32, suspended *atomic.Bool) *Context {
	return &Context{index: index, attempt: attempt, suspended: suspended}
}

// Index returns the task's unique, monotonically-assigned index.
func (c *Context) Index() uint64 { return c.index }

// Attempt returns the number of prior retry attempts for this task
// (0 on the first execution).
func (c *Context) Attempt() uint32 { return c.attempt }

// IsSuspended reports whether the owning pool is currently suspended.
// A Worker may use this to yield early from a long-running Apply, but
// is never required to: suspension in the Hive is cooperative at task
// granularity, never preemptive.
func (c *Context) IsSuspended() bool {
	return c.suspended != nil && c.suspended.Load()
}

// WithAttempt returns a copy of c with the attempt counter advanced to
// attempt. Used by the retry path when requeuing a failed task.
func (c *Context) WithAttempt(attempt uint32) *Context {
	return &Context{index: c.index, attempt: attempt, suspended: c.suspended}
}
