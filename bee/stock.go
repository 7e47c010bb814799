package bee

import "context"

type (
	// Thunk wraps a zero-argument function as a ThunkWorker input, for
	// tests and examples where the "work" is an arbitrary closure rather
	// than a value flowing through a typed pipeline.
	Thunk[O any] struct {
		F func() O
	}

	// ThunkWorker runs the Thunk it's given and returns its result.
	// It never fails on its own; it exists mainly for tests and
	// examples where the "work" is an arbitrary closure.
	ThunkWorker[O any] struct{}

	// PunkWorker is a ThunkWorker that additionally panics if the
	// Thunk's function panics - which, since Go closures propagate
	// panics naturally, is identical behavior to ThunkWorker. It's kept
	// as a distinct type only to make test intent explicit: a Worker
	// that is *expected* to panic under some inputs.
	PunkWorker[O any] struct{}
)

// Of wraps f as a Thunk.
func Of[O any](f func() O) Thunk[O] { return Thunk[O]{F: f} }

// Apply implements bee.Worker.
func (ThunkWorker[O]) Apply(_ context.Context, input Thunk[O], _ *Context) (O, error) {
	return input.F(), nil
}

// Apply implements bee.Worker.
func (PunkWorker[O]) Apply(_ context.Context, input Thunk[O], _ *Context) (O, error) {
	return input.F(), nil
}

// DefaultQueen adapts a single shared Worker instance into a Queen,
// for callers whose Worker holds no per-instance state and so has no
// need of one instance per pool slot.
type DefaultQueen[I, O any] struct {
	Worker Worker[I, O]
}

// Create implements Queen.
func (q DefaultQueen[I, O]) Create() Worker[I, O] { return q.Worker }
