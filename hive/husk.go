package hive

import "github.com/joeycumines/hive/bee"

// Husk is what remains of a Hive once it's been torn down: its Config
// (as a snapshot), its Queen, how many tasks panicked, and whatever
// outcomes were accumulated in its store rather than sent to a
// caller-provided channel. It exists to let a caller inspect a
// finished pool's results, or rebuild a fresh pool from the same
// configuration and Queen without having to have kept a Builder
// around.
type Husk[I, O any] struct {
	cfg       ConfigSnapshot
	queen     bee.Queen[I, O]
	numPanics uint64
	outcomes  *OutcomeStore[I, O]
}

func newHuskFromShared[I, O any](s *shared[I, O]) *Husk[I, O] {
	return &Husk[I, O]{
		cfg:       s.cfg.Snapshot(),
		queen:     s.queen,
		numPanics: s.numPanics.Load(),
		outcomes:  s.outcomes,
	}
}

// Queen returns the Husk's Queen.
func (h *Husk[I, O]) Queen() bee.Queen[I, O] { return h.queen }

// NumPanics returns how many tasks panicked over the pool's lifetime.
func (h *Husk[I, O]) NumPanics() uint64 { return h.numPanics }

// Outcomes returns the store of outcomes the pool accumulated.
func (h *Husk[I, O]) Outcomes() *OutcomeStore[I, O] { return h.outcomes }

// IntoParts consumes the Husk, returning its Queen and every
// accumulated outcome.
func (h *Husk[I, O]) IntoParts() (bee.Queen[I, O], map[uint64]*Outcome[I, O]) {
	return h.queen, h.outcomes.TakeAll()
}

// AsBuilder returns a new Builder pre-populated from the Husk's
// snapshotted Config, without consuming the Husk - so several new
// Hives can be built from one Husk's settings.
func (h *Husk[I, O]) AsBuilder() *Builder { return FromSnapshot(h.cfg) }

// IntoHive rebuilds a running Hive from the Husk's Config and Queen.
// Accumulated outcomes are left in the Husk (use IntoParts first if
// they should be discarded, or one of the IntoHiveSwarmUnprocessed*
// variants to resubmit unprocessed inputs to the new Hive).
func (h *Husk[I, O]) IntoHive() (*Hive[I, O], error) {
	return Build(h.AsBuilder(), h.queen)
}

func collectUnprocessedInputs[I, O any](outcomes []*Outcome[I, O]) []I {
	inputs := make([]I, len(outcomes))
	for i, o := range outcomes {
		inputs[i] = o.Input
	}
	return inputs
}

// IntoHiveSwarmUnprocessedStore rebuilds a Hive and resubmits every
// Unprocessed outcome's input to it via SwarmStore, returning the new
// Hive and the indices assigned to the resubmitted inputs.
func (h *Husk[I, O]) IntoHiveSwarmUnprocessedStore() (*Hive[I, O], []uint64, error) {
	hv, err := h.IntoHive()
	if err != nil {
		return nil, nil, err
	}
	inputs := collectUnprocessedInputs(h.outcomes.TakeUnprocessed())
	indices, err := hv.SwarmStore(inputs)
	return hv, indices, err
}

// IntoHiveSwarmUnprocessedTo rebuilds a Hive and resubmits every
// Unprocessed outcome's input to it via SwarmSend(tx), returning the
// new Hive and the indices assigned to the resubmitted inputs.
func (h *Husk[I, O]) IntoHiveSwarmUnprocessedTo(tx chan<- *Outcome[I, O]) (*Hive[I, O], []uint64, error) {
	hv, err := h.IntoHive()
	if err != nil {
		return nil, nil, err
	}
	inputs := collectUnprocessedInputs(h.outcomes.TakeUnprocessed())
	indices, err := hv.SwarmSend(inputs, tx)
	return hv, indices, err
}
