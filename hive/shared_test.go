package hive

import (
	"context"
	"testing"
	"time"

	"github.com/joeycumines/hive/bee"
	"github.com/stretchr/testify/require"
)

func echoQueen() bee.Queen[int, int] {
	return bee.DefaultQueen[int, int]{
		Worker: bee.WorkerFunc[int, int](func(_ context.Context, input int, _ *bee.Context) (int, error) {
			return input, nil
		}),
	}
}

func TestShared_PrepareTaskAssignsSequentialIndices(t *testing.T) {
	s := newShared[int, int](NewBuilder().NumThreads(1).buildConfig(), echoQueen())

	t1, err := s.prepareTask(1, nil)
	require.NoError(t, err)
	t2, err := s.prepareTask(2, nil)
	require.NoError(t, err)

	require.Equal(t, uint64(0), t1.Index())
	require.Equal(t, uint64(1), t2.Index())

	queued, active := s.numTasks()
	require.EqualValues(t, 2, queued)
	require.EqualValues(t, 0, active)
}

func TestShared_FinishTaskTracksPanics(t *testing.T) {
	s := newShared[int, int](NewBuilder().NumThreads(1).buildConfig(), echoQueen())
	task, err := s.prepareTask(1, nil)
	require.NoError(t, err)
	_, err = s.transferTask(task)
	require.NoError(t, err)

	s.finishTask(true)
	require.EqualValues(t, 1, s.numPanics.Load())

	queued, active := s.numTasks()
	require.EqualValues(t, 0, queued)
	require.EqualValues(t, 0, active)
}

func TestShared_SendOrStoreOutcome_StoresWhenNoChannel(t *testing.T) {
	s := newShared[int, int](NewBuilder().NumThreads(1).buildConfig(), echoQueen())
	o := &Outcome[int, int]{Kind: OutcomeSuccess, Index: 1, Value: 9}
	s.sendOrStoreOutcome(o, nil)

	got, ok := s.outcomes.Get(1)
	require.True(t, ok)
	require.Same(t, o, got)
}

func TestShared_SendOrStoreOutcome_SendsWhenPossible(t *testing.T) {
	s := newShared[int, int](NewBuilder().NumThreads(1).buildConfig(), echoQueen())
	tx := make(chan *Outcome[int, int], 1)
	o := &Outcome[int, int]{Kind: OutcomeSuccess, Index: 1, Value: 9}
	s.sendOrStoreOutcome(o, tx)

	select {
	case got := <-tx:
		require.Same(t, o, got)
	default:
		t.Fatal("expected outcome on channel")
	}
	require.True(t, s.outcomes.IsEmpty())
}

func TestShared_PoisonDrainsTasksAsUnprocessed(t *testing.T) {
	s := newShared[int, int](NewBuilder().NumThreads(1).buildConfig(), echoQueen())
	task, err := s.prepareTask(42, nil)
	require.NoError(t, err)
	require.True(t, s.taskRx.send(task))

	s.poison()

	require.True(t, s.isPoisoned())
	unprocessed := s.outcomes.Unprocessed()
	require.Len(t, unprocessed, 1)
	require.EqualValues(t, 42, unprocessed[0].Input)
}

func TestShared_NextTask_ReturnsPoisonedAfterPoison(t *testing.T) {
	s := newShared[int, int](NewBuilder().NumThreads(1).buildConfig(), echoQueen())
	s.poison()
	_, err := s.nextTask()
	require.ErrorIs(t, err, ErrPoisoned)
}

func TestShared_NextTask_ReturnsDisconnectedAfterClose(t *testing.T) {
	s := newShared[int, int](NewBuilder().NumThreads(1).buildConfig(), echoQueen())
	s.taskRx.close()
	_, err := s.nextTask()
	require.ErrorIs(t, err, ErrDisconnected)
}

func TestShared_SuspendBlocksNextTaskUntilResumed(t *testing.T) {
	s := newShared[int, int](NewBuilder().NumThreads(1).buildConfig(), echoQueen())
	require.True(t, s.setSuspended(true))

	task, err := s.prepareTask(1, nil)
	require.NoError(t, err)
	require.True(t, s.taskRx.send(task))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := s.nextTask()
		require.NoError(t, err)
	}()

	select {
	case <-done:
		t.Fatal("nextTask returned while suspended")
	case <-time.After(50 * time.Millisecond):
	}

	require.True(t, s.setSuspended(false))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nextTask did not return after resume")
	}
}

func TestShared_RetryQueueScheduling(t *testing.T) {
	cfg := NewBuilder().NumThreads(1).MaxRetries(2).RetryFactor(time.Millisecond).buildConfig()
	s := newShared[int, int](cfg, echoQueen())
	require.NotNil(t, s.retryQueue)

	ctx := bee.NewContext(5, 0, nil)
	require.True(t, s.canRetry(ctx.WithAttempt(0)))
	require.True(t, s.canRetry(ctx.WithAttempt(1)))
	require.False(t, s.canRetry(ctx.WithAttempt(2)))

	s.queueRetry(7, ctx.WithAttempt(1), nil)
	require.Equal(t, 1, s.retryQueue.len())

	time.Sleep(5 * time.Millisecond)
	task, err := s.nextTask()
	require.NoError(t, err)
	require.Equal(t, uint64(5), task.Index())
}

func TestShared_ReferrerCounting(t *testing.T) {
	s := newShared[int, int](NewBuilder().NumThreads(1).buildConfig(), echoQueen())
	require.EqualValues(t, 1, s.referrerIsCloning())
	require.EqualValues(t, 2, s.numReferrers.Load())
	require.EqualValues(t, 2, s.referrerIsDropping())
	require.EqualValues(t, 1, s.numReferrers.Load())
}

func TestChecked_Pow2AndMul(t *testing.T) {
	v, overflow := checkedPow2(3)
	require.False(t, overflow)
	require.EqualValues(t, 8, v)

	_, overflow = checkedPow2(64)
	require.True(t, overflow)

	v, overflow = checkedMulUint64(3, 4)
	require.False(t, overflow)
	require.EqualValues(t, 12, v)

	_, overflow = checkedMulUint64(1<<63, 2)
	require.True(t, overflow)
}
