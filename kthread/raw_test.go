package kthread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/uintbeef/kcore/kid"
	"github.com/uintbeef/kcore/platform"
)

func TestRawReadyHighest_PicksHighestPriorityThenLongestWaiting(t *testing.T) {
	tbl := NewTable(16, platform.NewSimulated(), nil)

	_, err := tbl.CreateThread(kid.TaskID(0), func(any) {}, nil, 4096, PriorityLow, Flags{}, "low")
	require.NoError(t, err)
	high1, err := tbl.CreateThread(kid.TaskID(0), func(any) {}, nil, 4096, PriorityHigh, Flags{}, "high1")
	require.NoError(t, err)
	high2, err := tbl.CreateThread(kid.TaskID(0), func(any) {}, nil, 4096, PriorityHigh, Flags{}, "high2")
	require.NoError(t, err)

	id, prio, ok := tbl.RawReadyHighest()
	require.True(t, ok)
	require.Equal(t, PriorityHigh, prio)
	require.Equal(t, high1, id, "ties broken by longest-waiting, i.e. first enqueued")

	tbl.dequeueReadyLocked(high1)
	id, prio, ok = tbl.RawReadyHighest()
	require.True(t, ok)
	require.Equal(t, PriorityHigh, prio)
	require.Equal(t, high2, id)
}

func TestRawReadyHighest_EmptyReturnsFalse(t *testing.T) {
	tbl := NewTable(4, platform.NewSimulated(), nil)
	_, _, ok := tbl.RawReadyHighest()
	require.False(t, ok)
}

func TestRawWheelExpired_OnlyPopsDueEntries(t *testing.T) {
	tbl := NewTable(16, platform.NewSimulated(), nil)
	tbl.SetPolicy(fakePolicy{})

	var a kid.ThreadID
	var err error
	a, err = tbl.CreateThread(kid.TaskID(0), func(any) { _ = tbl.SleepThread(a, 0, 10) }, nil, 4096, PriorityNormal, Flags{}, "a")
	require.NoError(t, err)
	require.NoError(t, tbl.Start())
	require.Eventually(t, func() bool {
		s, _ := tbl.State(a)
		return s == StateBlocked
	}, 2*time.Second, time.Millisecond)

	woken := tbl.RawWheelExpired(5 * 1_000_000)
	require.Empty(t, woken, "not yet due")

	woken = tbl.RawWheelExpired(10 * 1_000_000)
	require.Equal(t, []kid.ThreadID{a}, woken)
}

func TestRawIncrSliceTickAndMarkPreemptPending(t *testing.T) {
	tbl := NewTable(4, platform.NewSimulated(), nil)
	id, err := tbl.CreateThread(kid.TaskID(0), func(any) {}, nil, 4096, PriorityNormal, Flags{}, "t")
	require.NoError(t, err)

	require.Equal(t, 0, tbl.RawSliceTicks(id))
	tbl.RawIncrSliceTick(id)
	tbl.RawIncrSliceTick(id)
	require.Equal(t, 2, tbl.RawSliceTicks(id))

	tbl.RawMarkPreemptPending(id)
	st := tbl.Lock()
	th, err := tbl.lookupLocked(id)
	tbl.Unlock(st)
	require.NoError(t, err)
	require.True(t, th.preemptPending)
}
