package kthread

import (
	"container/heap"

	"github.com/uintbeef/kcore/kid"
)

// The Raw* methods below assume the caller already holds the table lock
// (via Lock/Unlock). They exist so ksched's tick handler and Policy
// implementation can read and mutate table state atomically with its own
// bookkeeping, without re-entering this package's (non-reentrant)
// spinlock or needing access to unexported fields.

// RawRunning returns the currently running thread, or kid.InvalidThread.
func (t *Table) RawRunning() kid.ThreadID { return t.running }

// RawPriority returns a thread's priority.
func (t *Table) RawPriority(id kid.ThreadID) Priority {
	if int(id) < 0 || int(id) >= len(t.threads) {
		return PriorityLowest
	}
	return t.threads[id].priority
}

// RawState returns a thread's lifecycle state.
func (t *Table) RawState(id kid.ThreadID) State {
	if int(id) < 0 || int(id) >= len(t.threads) {
		return StateDead
	}
	return t.threads[id].state
}

// RawSliceTicks returns how many ticks the running thread has consumed in
// its current scheduling slot.
func (t *Table) RawSliceTicks(id kid.ThreadID) int {
	if int(id) < 0 || int(id) >= len(t.threads) {
		return 0
	}
	return t.threads[id].sliceTicks
}

// RawIncrSliceTick bumps the running thread's consumed-tick count,
// resetting on the next switch-in (see doSwitch).
func (t *Table) RawIncrSliceTick(id kid.ThreadID) {
	if int(id) < 0 || int(id) >= len(t.threads) {
		return
	}
	t.threads[id].sliceTicks++
}

// RawMarkPreemptPending records that the tick handler wants this thread
// switched out at its next Checkpoint.
func (t *Table) RawMarkPreemptPending(id kid.ThreadID) {
	if int(id) < 0 || int(id) >= len(t.threads) {
		return
	}
	t.threads[id].preemptPending = true
}

// RawReadyHighest returns the longest-waiting thread in the
// highest-priority nonempty ready bucket.
func (t *Table) RawReadyHighest() (kid.ThreadID, Priority, bool) {
	for p := priorityCount - 1; p >= 0; p-- {
		if len(t.ready[p]) > 0 {
			return t.ready[p][0], p, true
		}
	}
	return kid.InvalidThread, 0, false
}

// RawWheelExpired pops every sleeping thread whose deadline has passed,
// moves it to Ready, and returns the woken ids. Intended to be called
// once per tick by ksched before evaluating the scheduling policy.
func (t *Table) RawWheelExpired(nowNS uint64) []kid.ThreadID {
	var woken []kid.ThreadID
	for len(t.wheel) > 0 && t.wheel[0].wakeAt <= nowNS {
		e := heap.Pop(&t.wheel).(sleepEntry)
		th := &t.threads[e.id]
		if th.state != StateBlocked {
			continue // detached/reclaimed in the meantime
		}
		th.state = StateReady
		t.ready[th.priority] = append(t.ready[th.priority], e.id)
		woken = append(woken, e.id)
	}
	return woken
}
