package hive

import (
	"context"
	"runtime/pprof"

	"github.com/joeycumines/hive/bee"
)

// runWorker is the body of one worker goroutine: fetch a task, execute
// it, route its outcome, repeat until nextTask reports the pool is done
// with it (poisoned or disconnected).
func runWorker[I, O any](s *shared[I, O], slot int) {
	pinWorkerAffinity(s.cfg, slot)

	worker := s.createWorker()
	loop := func() {
		for {
			task, err := s.nextTask()
			if err != nil {
				s.logger.Debug().Int("slot", slot).Err(err).Msg("worker exiting")
				return
			}
			s.executeTask(worker, task)
		}
	}

	if name, ok := s.cfg.ThreadName(); ok {
		pprof.Do(context.Background(), pprof.Labels("hive_worker", name), func(context.Context) { loop() })
	} else {
		loop()
	}
}

// executeTask runs worker.Apply for task, recovering any panic, and
// routes the resulting Outcome (or schedules a retry).
func (s *shared[I, O]) executeTask(worker bee.Worker[I, O], task Task[I, O]) {
	var (
		output   O
		applyErr error
		panicVal any
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				panicVal = r
			}
		}()
		output, applyErr = worker.Apply(context.Background(), task.input, task.ctx)
	}()

	switch {
	case panicVal != nil:
		s.logger.Error().Uint64("index", task.Index()).Interface("panic", panicVal).Msg("worker panicked")
		s.sendOrStoreOutcome(&Outcome[I, O]{Kind: OutcomePanic, Index: task.Index(), Panic: panicVal}, task.outcomeTx)
		s.finishTask(true)

	case applyErr != nil:
		if s.retryQueue != nil {
			if s.canRetry(task.ctx) {
				nextCtx := task.ctx.WithAttempt(task.ctx.Attempt() + 1)
				s.logger.Debug().Uint64("index", task.Index()).Uint32("attempt", nextCtx.Attempt()).Msg("scheduling retry")
				s.queueRetry(task.input, nextCtx, task.outcomeTx)
			} else {
				s.logger.Warn().Uint64("index", task.Index()).Uint32("attempt", task.ctx.Attempt()).Msg("retries exhausted")
				s.sendOrStoreOutcome(&Outcome[I, O]{
					Kind:  OutcomeMaxRetriesAttempted,
					Index: task.Index(),
					Input: task.input,
					Err:   applyErr,
				}, task.outcomeTx)
			}
		} else {
			s.sendOrStoreOutcome(&Outcome[I, O]{Kind: OutcomeFailure, Index: task.Index(), Err: applyErr}, task.outcomeTx)
		}
		s.finishTask(false)

	default:
		s.sendOrStoreOutcome(&Outcome[I, O]{Kind: OutcomeSuccess, Index: task.Index(), Value: output}, task.outcomeTx)
		s.finishTask(false)
	}
}

// spawnUpTo starts worker goroutines until s.spawned reaches target,
// each pulling its slot number from the running counter so affinity
// pinning is stable even if spawnUpTo is called concurrently from
// Grow and EnsureThreads.
func (s *shared[I, O]) spawnUpTo(target uint64) error {
	for {
		cur := s.spawned.Load()
		if cur >= target {
			return nil
		}
		if !s.spawned.CompareAndSwap(cur, cur+1) {
			continue
		}
		slot := int(cur)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			runWorker(s, slot)
		}()
	}
}
