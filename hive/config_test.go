package hive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCell_NotSet(t *testing.T) {
	c := newUnsetCell[int]()
	_, ok := c.Get()
	require.False(t, ok)
	require.ErrorIs(t, c.tryUpdate(func(v int) int { return v + 1 }), ErrCellUnsync)
}

func TestCell_Immutable(t *testing.T) {
	c := newImmutableCell(5)
	v, ok := c.Get()
	require.True(t, ok)
	require.Equal(t, 5, v)
	require.ErrorIs(t, c.tryUpdate(func(v int) int { return v + 1 }), ErrCellUnsync)
}

func TestCell_Mutable(t *testing.T) {
	c := newMutableCell(5)
	require.NoError(t, c.tryUpdate(func(v int) int { return v + 1 }))
	v, ok := c.Get()
	require.True(t, ok)
	require.Equal(t, 6, v)
}

func TestBuilder_DefaultsAndOverrides(t *testing.T) {
	b := NewBuilder().
		NumThreads(4).
		ThreadName("worker").
		MaxRetries(3).
		RetryFactor(time.Millisecond).
		Affinity([]int{2, 0})

	cfg := b.buildConfig()
	require.EqualValues(t, 4, cfg.NumThreads())

	name, ok := cfg.ThreadName()
	require.True(t, ok)
	require.Equal(t, "worker", name)

	retries, ok := cfg.MaxRetries()
	require.True(t, ok)
	require.EqualValues(t, 3, retries)

	factor, ok := cfg.RetryFactor()
	require.True(t, ok)
	require.Equal(t, time.Millisecond, factor)

	affinity, ok := cfg.Affinity()
	require.True(t, ok)
	require.Equal(t, []int{0, 2}, affinity)
}

func TestBuilder_NumThreadsDefaultsWhenUnset(t *testing.T) {
	cfg := NewBuilder().buildConfig()
	require.GreaterOrEqual(t, cfg.NumThreads(), uint64(1))
}

func TestConfig_UnionAffinity(t *testing.T) {
	cfg := NewBuilder().Affinity([]int{1}).buildConfig()
	require.NoError(t, cfg.UnionAffinity([]int{3, 1, 2}))
	got, ok := cfg.Affinity()
	require.True(t, ok)
	require.Equal(t, []int{1, 2, 3}, got)
}

func TestConfig_UnionAffinity_NotSet(t *testing.T) {
	cfg := NewBuilder().buildConfig()
	require.ErrorIs(t, cfg.UnionAffinity([]int{1}), ErrCellUnsync)
}

func TestConfig_AddEnsureThreads(t *testing.T) {
	cfg := NewBuilder().NumThreads(2).buildConfig()

	prev := cfg.AddThreads(3)
	require.EqualValues(t, 2, prev)
	require.EqualValues(t, 5, cfg.NumThreads())

	prev = cfg.EnsureThreads(2)
	require.EqualValues(t, 5, prev, "EnsureThreads never lowers")
	require.EqualValues(t, 5, cfg.NumThreads())

	prev = cfg.EnsureThreads(10)
	require.EqualValues(t, 5, prev)
	require.EqualValues(t, 10, cfg.NumThreads())
}

func TestConfig_Snapshot_RoundTripsThroughBuilder(t *testing.T) {
	cfg := NewBuilder().
		NumThreads(4).
		ThreadName("w").
		MaxRetries(2).
		RetryFactor(time.Millisecond).
		Affinity([]int{0, 1}).
		buildConfig()

	snap := cfg.Snapshot()
	rebuilt := FromSnapshot(snap).buildConfig()

	require.Equal(t, cfg.NumThreads(), rebuilt.NumThreads())
	name1, _ := cfg.ThreadName()
	name2, _ := rebuilt.ThreadName()
	require.Equal(t, name1, name2)
	aff1, _ := cfg.Affinity()
	aff2, _ := rebuilt.Affinity()
	require.Equal(t, aff1, aff2)
}

func TestFileConfig_ApplyTo(t *testing.T) {
	fc := FileConfig{NumThreads: 8, ThreadName: "file-worker", MaxRetries: 5, RetryFactor: "2ms"}
	b := NewBuilder()
	_, err := fc.ApplyTo(b)
	require.NoError(t, err)

	cfg := b.buildConfig()
	require.EqualValues(t, 8, cfg.NumThreads())
	name, _ := cfg.ThreadName()
	require.Equal(t, "file-worker", name)
	factor, _ := cfg.RetryFactor()
	require.Equal(t, 2*time.Millisecond, factor)
}

func TestFileConfig_ApplyTo_InvalidDuration(t *testing.T) {
	fc := FileConfig{RetryFactor: "not-a-duration"}
	_, err := fc.ApplyTo(NewBuilder())
	require.Error(t, err)
}
