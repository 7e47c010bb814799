package hive

import "github.com/joeycumines/hive/bee"

// Task is one unit of work in flight: an input, the execution context
// a Worker will see, and the channel (if any) its Outcome should be
// sent to once finished. A nil outcomeTx means "store it instead" (see
// shared.sendOrStoreOutcome).
type Task[I, O any] struct {
	input     I
	ctx       *bee.Context
	outcomeTx chan<- *Outcome[I, O]
}

func newTask[I, O any](input I, ctx *bee.Context, outcomeTx chan<- *Outcome[I, O]) Task[I, O] {
	return Task[I, O]{input: input, ctx: ctx, outcomeTx: outcomeTx}
}

// Index returns the task's unique, monotonically-assigned index.
func (t Task[I, O]) Index() uint64 { return t.ctx.Index() }

// intoUnprocessedTrySend builds an Unprocessed Outcome for t and tries
// to deliver it to t's outcome channel without blocking. If there's no
// channel, or the send would block, it returns the Outcome so the
// caller can store it instead; otherwise it returns nil.
func (t Task[I, O]) intoUnprocessedTrySend() *Outcome[I, O] {
	o := &Outcome[I, O]{Kind: OutcomeUnprocessed, Index: t.ctx.Index(), Input: t.input}
	if t.outcomeTx != nil {
		select {
		case t.outcomeTx <- o:
			return nil
		default:
		}
	}
	return o
}
