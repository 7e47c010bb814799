package hive

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/hive/bee"
	"github.com/rs/zerolog"
)

// shared is the coordination record every worker goroutine and every
// Hive handle holds a pointer to. There's exactly one per pool; Hive is
// the thin public facade in front of it.
type shared[I, O any] struct {
	cfg *Config

	queenMu sync.Mutex
	queen   bee.Queen[I, O]

	taskRx *taskChannel[I, O]

	counter   dualCounter
	nextIndex atomic.Uint64
	numPanics atomic.Uint64

	numReferrers atomic.Int64

	poisoned  atomic.Bool
	suspended atomic.Bool

	resumeMu   sync.Mutex
	resumeCond *sync.Cond

	joinMu   sync.Mutex
	joinCond *sync.Cond

	outcomes *OutcomeStore[I, O]

	retryQueue *retryQueue[I, O] // nil if MaxRetries was never configured
	nextRetry  atomic.Int64      // UnixNano of the earliest pending retry, 0 if none

	spawned atomic.Uint64
	wg      sync.WaitGroup

	logger zerolog.Logger
}

func newShared[I, O any](cfg *Config, queen bee.Queen[I, O]) *shared[I, O] {
	s := &shared[I, O]{
		cfg:      cfg,
		queen:    queen,
		taskRx:   newTaskChannel[I, O](),
		outcomes: newOutcomeStore[I, O](),
		logger:   cfg.Logger(),
	}
	s.numReferrers.Store(1)
	s.resumeCond = sync.NewCond(&s.resumeMu)
	s.joinCond = sync.NewCond(&s.joinMu)
	if _, ok := cfg.MaxRetries(); ok {
		s.retryQueue = newRetryQueue[I, O]()
	}
	return s
}

func (s *shared[I, O]) createWorker() bee.Worker[I, O] {
	s.queenMu.Lock()
	defer s.queenMu.Unlock()
	return s.queen.Create()
}

// prepareTask reserves one queue slot and assigns input its index.
func (s *shared[I, O]) prepareTask(input I, outcomeTx chan<- *Outcome[I, O]) (Task[I, O], error) {
	if err := s.counter.incrementLeft(1); err != nil {
		s.poison()
		var zero Task[I, O]
		return zero, err
	}
	idx := s.nextIndex.Add(1) - 1
	ctx := bee.NewContext(idx, 0, &s.suspended)
	return newTask(input, ctx, outcomeTx), nil
}

// prepareBatch reserves minSize queue slots up front (an optimistic
// bulk reservation, cheaper than one incrementLeft(1) per input), then
// streams inputs through it as it's ranged over. If the iterator
// produces more than minSize items, the excess falls back to
// prepareTask (one incrementLeft(1) each); if it produces fewer, the
// over-reservation is a caller contract violation and panics, since
// there is no way to "give back" indices that a consumer may already
// be waiting to exist.
func (s *shared[I, O]) prepareBatch(minSize int, inputs iter.Seq[I], outcomeTx chan<- *Outcome[I, O]) iter.Seq[Task[I, O]] {
	return func(yield func(Task[I, O]) bool) {
		if minSize > 0 {
			if err := s.counter.incrementLeft(uint64(minSize)); err != nil {
				s.poison()
				panic(err)
			}
		}
		next := s.nextIndex.Add(uint64(minSize)) - uint64(minSize)
		produced := 0
		for input := range inputs {
			if produced < minSize {
				ctx := bee.NewContext(next, 0, &s.suspended)
				next++
				produced++
				if !yield(newTask(input, ctx, outcomeTx)) {
					return
				}
				continue
			}
			task, err := s.prepareTask(input, outcomeTx)
			if err != nil {
				panic(err)
			}
			if !yield(task) {
				return
			}
		}
		if produced < minSize {
			panic(fmt.Errorf("hive: batch iterator produced %d items, fewer than the reserved %d", produced, minSize))
		}
	}
}

func (s *shared[I, O]) sendOrStoreOutcome(o *Outcome[I, O], outcomeTx chan<- *Outcome[I, O]) {
	if outcomeTx != nil {
		select {
		case outcomeTx <- o:
			return
		default:
		}
	}
	s.outcomes.Insert(o)
}

// sendOrStoreAsUnprocessed converts every task in tasks to an
// Unprocessed outcome and routes each the same way a completed task's
// outcome would be, returning the indices involved.
func (s *shared[I, O]) sendOrStoreAsUnprocessed(tasks []Task[I, O]) []uint64 {
	indices := make([]uint64, len(tasks))
	for i, t := range tasks {
		indices[i] = t.Index()
		if o := t.intoUnprocessedTrySend(); o != nil {
			s.outcomes.Insert(o)
		}
	}
	return indices
}

func (s *shared[I, O]) finishTask(panicking bool) {
	if err := s.counter.decrementRight(1); err != nil {
		// Bookkeeping can only reach this state if the core itself has
		// a bug; unlike a caller-facing error this is not recoverable.
		panic(err)
	}
	if panicking {
		s.numPanics.Add(1)
	}
	s.noWorkNotifyAll()
}

func (s *shared[I, O]) numTasks() (queued, active uint64) { return s.counter.get() }

func (s *shared[I, O]) hasWork() bool {
	if s.isPoisoned() {
		return false
	}
	queued, active := s.numTasks()
	return active > 0 || (!s.isSuspended() && queued > 0)
}

func (s *shared[I, O]) waitOnDone() {
	s.joinMu.Lock()
	for s.hasWork() {
		s.joinCond.Wait()
	}
	s.joinMu.Unlock()
}

func (s *shared[I, O]) noWorkNotifyAll() {
	if s.hasWork() {
		return
	}
	s.joinMu.Lock()
	s.joinCond.Broadcast()
	s.joinMu.Unlock()
}

func (s *shared[I, O]) referrerIsCloning() int64 { return s.numReferrers.Add(1) - 1 }

// referrerIsDropping returns the referrer count as it was immediately
// before this call, so the caller can tell whether it was the last one
// (a return value of 1 means "you were the last referrer").
func (s *shared[I, O]) referrerIsDropping() int64 { return s.numReferrers.Add(-1) + 1 }

func (s *shared[I, O]) poison() {
	if s.poisoned.Swap(true) {
		return
	}
	s.logger.Warn().Msg("hive poisoned")
	// Wake anything blocked waiting to resume, so it can observe the
	// poisoned flag and exit instead of waiting forever.
	s.resumeMu.Lock()
	s.resumeCond.Broadcast()
	s.resumeMu.Unlock()
	s.drainTasksIntoUnprocessed()
	s.noWorkNotifyAll()
}

func (s *shared[I, O]) isPoisoned() bool { return s.poisoned.Load() }

func (s *shared[I, O]) setSuspended(v bool) bool {
	if s.suspended.Swap(v) == v {
		return false
	}
	if !v {
		s.resumeMu.Lock()
		s.resumeCond.Broadcast()
		s.resumeMu.Unlock()
	}
	return true
}

func (s *shared[I, O]) isSuspended() bool { return s.suspended.Load() }

// drainTasksIntoUnprocessed moves every task sitting in the task
// channel and (if enabled) the retry queue into Unprocessed outcomes.
// No two of the locks involved (task channel, retry queue, outcome
// store) are ever held at once, so the order they're drained in has no
// deadlock consequence.
func (s *shared[I, O]) drainTasksIntoUnprocessed() {
	for _, t := range s.taskRx.drainAll() {
		if o := t.intoUnprocessedTrySend(); o != nil {
			s.outcomes.Insert(o)
		}
	}
	if s.retryQueue != nil {
		for _, t := range s.retryQueue.drain() {
			if o := t.intoUnprocessedTrySend(); o != nil {
				s.outcomes.Insert(o)
			}
		}
		s.nextRetry.Store(0)
	}
}

func (s *shared[I, O]) refreshNextRetry() {
	if t, ok := s.retryQueue.nextAvailable(); ok {
		s.nextRetry.Store(t.UnixNano())
	} else {
		s.nextRetry.Store(0)
	}
}

// canRetry reports whether ctx (the attempt that just failed) still has
// a retry left in the configured budget. Callers check this before
// bumping the attempt counter for the next try.
func (s *shared[I, O]) canRetry(ctx *bee.Context) bool {
	max, ok := s.cfg.MaxRetries()
	if !ok {
		return false
	}
	return ctx.Attempt() < max
}

// queueRetry reserves a queue slot for input and schedules it to run
// again after an exponential backoff based on ctx.Attempt(): the first
// retry (attempt 1) waits one retryFactor, the second (attempt 2) waits
// two, the third waits four, and so on.
func (s *shared[I, O]) queueRetry(input I, ctx *bee.Context, outcomeTx chan<- *Outcome[I, O]) {
	delay := s.retryDelay(ctx.Attempt())

	if err := s.counter.incrementLeft(1); err != nil {
		// Like prepareTask, an overflow poisons the hive; incrementLeft
		// can only fail here if the pool has been driven far beyond any
		// realistic queue depth.
		s.poison()
		panic(err)
	}
	task := newTask(input, ctx, outcomeTx)
	s.retryQueue.push(task, delay)
	s.refreshNextRetry()
}

func (s *shared[I, O]) retryDelay(attempt uint32) time.Duration {
	factor, ok := s.cfg.RetryFactor()
	if !ok || attempt == 0 {
		return 0
	}
	exp := attempt - 1
	multiplier, overflow := checkedPow2(exp)
	if overflow {
		return time.Duration(math.MaxInt64)
	}
	nanos, overflow := checkedMulUint64(uint64(factor), multiplier)
	if overflow {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(nanos)
}

func checkedPow2(exp uint32) (uint64, bool) {
	if exp >= 64 {
		return 0, true
	}
	return uint64(1) << exp, false
}

func checkedMulUint64(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, false
	}
	result := a * b
	if result/b != a {
		return 0, true
	}
	return result, false
}

// nextTask blocks until a task is ready to run, the pool is poisoned,
// or the task channel is disconnected.
//
// Retry handling differs depending on whether retries are configured
// at all: with a retry queue, a counter-transfer failure (InvalidCounter)
// does not poison the hive, whereas without one it does. See
// DESIGN.md's Open Questions for the reasoning behind this asymmetry.
func (s *shared[I, O]) nextTask() (Task[I, O], error) {
	for {
		s.resumeMu.Lock()
		for s.isSuspended() && !s.isPoisoned() {
			s.resumeCond.Wait()
		}
		s.resumeMu.Unlock()

		if s.isPoisoned() {
			var zero Task[I, O]
			return zero, ErrPoisoned
		}

		if s.retryQueue != nil {
			if deadline := s.nextRetry.Load(); deadline != 0 && time.Now().UnixNano() >= deadline {
				if task, ok := s.retryQueue.tryPop(); ok {
					s.refreshNextRetry()
					return s.transferTask(task)
				}
			}
		}

		task, err := s.taskRx.recvTimeout(defaultRecvTimeout)
		switch {
		case err == nil:
			return s.transferTask(task)
		case errors.Is(err, errRecvTimeout):
			continue
		default:
			var zero Task[I, O]
			return zero, err
		}
	}
}

func (s *shared[I, O]) transferTask(task Task[I, O]) (Task[I, O], error) {
	if err := s.counter.transfer(1); err != nil {
		// TODO(hive): the retry-enabled build deliberately does not
		// poison on a transfer failure here. See DESIGN.md's Open
		// Questions.
		if s.retryQueue == nil {
			s.poison()
		}
		var zero Task[I, O]
		return zero, &InvalidCounterError{Err: err}
	}
	return task, nil
}
