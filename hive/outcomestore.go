package hive

import "sync"

// OutcomeStore is a mutex-guarded index->Outcome map. It's shared by
// Shared (where outcomes accumulate when no send channel is given, or
// a send would have blocked) and by Husk, which keeps a reference to
// the same store when a Hive is torn down.
type OutcomeStore[I, O any] struct {
	mu sync.Mutex
	m  map[uint64]*Outcome[I, O]
}

func newOutcomeStore[I, O any]() *OutcomeStore[I, O] {
	return &OutcomeStore[I, O]{m: make(map[uint64]*Outcome[I, O])}
}

func newOutcomeStoreFromMap[I, O any](m map[uint64]*Outcome[I, O]) *OutcomeStore[I, O] {
	if m == nil {
		m = make(map[uint64]*Outcome[I, O])
	}
	return &OutcomeStore[I, O]{m: m}
}

// Insert stores o, keyed by its Index, overwriting any existing entry.
func (s *OutcomeStore[I, O]) Insert(o *Outcome[I, O]) {
	s.mu.Lock()
	s.m[o.Index] = o
	s.mu.Unlock()
}

// Get returns the outcome at index, if present.
func (s *OutcomeStore[I, O]) Get(index uint64) (*Outcome[I, O], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.m[index]
	return o, ok
}

// Remove deletes and returns the outcome at index, if present.
func (s *OutcomeStore[I, O]) Remove(index uint64) (*Outcome[I, O], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.m[index]
	if ok {
		delete(s.m, index)
	}
	return o, ok
}

// Len reports the number of stored outcomes.
func (s *OutcomeStore[I, O]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// IsEmpty reports whether the store holds no outcomes.
func (s *OutcomeStore[I, O]) IsEmpty() bool { return s.Len() == 0 }

// TakeAll empties the store and returns everything it held.
func (s *OutcomeStore[I, O]) TakeAll() map[uint64]*Outcome[I, O] {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.m
	s.m = make(map[uint64]*Outcome[I, O])
	return m
}

// filter returns a new slice of the stored outcomes matching pred,
// without removing them.
func (s *OutcomeStore[I, O]) filter(pred func(*Outcome[I, O]) bool) []*Outcome[I, O] {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Outcome[I, O]
	for _, o := range s.m {
		if pred(o) {
			out = append(out, o)
		}
	}
	return out
}

// Successes returns every stored Success outcome.
func (s *OutcomeStore[I, O]) Successes() []*Outcome[I, O] {
	return s.filter((*Outcome[I, O]).IsSuccess)
}

// Failures returns every stored Failure outcome.
func (s *OutcomeStore[I, O]) Failures() []*Outcome[I, O] {
	return s.filter((*Outcome[I, O]).IsFailure)
}

// Panics returns every stored Panic outcome.
func (s *OutcomeStore[I, O]) Panics() []*Outcome[I, O] {
	return s.filter((*Outcome[I, O]).IsPanic)
}

// Unprocessed returns every stored Unprocessed outcome.
func (s *OutcomeStore[I, O]) Unprocessed() []*Outcome[I, O] {
	return s.filter((*Outcome[I, O]).IsUnprocessed)
}

// MaxRetriesAttempted returns every stored MaxRetriesAttempted outcome.
func (s *OutcomeStore[I, O]) MaxRetriesAttempted() []*Outcome[I, O] {
	return s.filter((*Outcome[I, O]).IsMaxRetriesAttempted)
}

// HasUnprocessed reports whether the store holds any Unprocessed
// outcome, without copying them out.
func (s *OutcomeStore[I, O]) HasUnprocessed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.m {
		if o.IsUnprocessed() {
			return true
		}
	}
	return false
}

// TakeUnprocessed removes and returns every Unprocessed outcome,
// leaving all other outcomes in place.
func (s *OutcomeStore[I, O]) TakeUnprocessed() []*Outcome[I, O] {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Outcome[I, O]
	for idx, o := range s.m {
		if o.IsUnprocessed() {
			out = append(out, o)
			delete(s.m, idx)
		}
	}
	return out
}

// OutcomeBatch is a snapshot of outcome values paired with an error
// policy for collapsing them into a single ([]O, error) result, for
// callers that would rather fail fast than inspect each Outcome.
type OutcomeBatch[I, O any] struct {
	Outcomes []*Outcome[I, O]
}

// Into collapses the batch into values, in the order given. If
// panicOnError is true, any non-Success outcome panics, for callers
// that have already decided failures are unrecoverable bugs; otherwise
// the first non-Success outcome's error is returned.
func (b OutcomeBatch[I, O]) Into(panicOnError bool) ([]O, error) {
	out := make([]O, 0, len(b.Outcomes))
	for _, o := range b.Outcomes {
		v, err := o.Unwrap()
		if err != nil {
			if panicOnError {
				panic(err)
			}
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
