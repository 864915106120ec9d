package ksched

import (
	"github.com/uintbeef/kcore/kid"
	"github.com/uintbeef/kcore/klog"
	"github.com/uintbeef/kcore/kthread"
)

func logEntrySwitchFlapping(p kthread.Priority) klog.Entry {
	return klog.Entry{
		Level:    klog.LevelWarn,
		Category: "sched",
		Message:  "switch rate exceeded configured budget",
		Fields:   map[string]any{"priority": p.String()},
	}
}

// Start grants the CPU to the highest-priority ready thread. Call once at
// boot, after every initial thread has been created.
func (s *Scheduler) Start() error {
	return s.tbl.Start()
}

// Tick is the timer-tick handler (interrupt context): bump accounting,
// check the sleep wheel, and decide whether the running thread should be
// preempted. The decision and the actual switch are necessarily split
// across this call and the running thread's next kthread.Checkpoint, since
// Go cannot suspend a running goroutine's user code from outside. Returns
// the observed running thread (for tests).
func (s *Scheduler) Tick(nowNS uint64) kid.ThreadID {
	s.Stats.TickCount.Add(1)

	st := s.tbl.Lock()

	s.tbl.RawWheelExpired(nowNS)

	if s.preemptionDisabled() {
		s.tbl.Unlock(st)
		return s.tbl.CurrentThreadID()
	}

	running := s.tbl.RawRunning()
	if running == kid.InvalidThread {
		// Nothing running (idle); let Start or an unblock bring something
		// onto the CPU next time around.
		s.tbl.Unlock(st)
		return kid.InvalidThread
	}

	runningPrio := s.tbl.RawPriority(running)
	_, topPrio, hasReady := s.tbl.RawReadyHighest()

	switch {
	case hasReady && topPrio > runningPrio:
		// Strictly higher priority candidate: preempt.
		s.tbl.RawMarkPreemptPending(running)
	case hasReady && topPrio == runningPrio && s.tbl.RawSliceTicks(running) >= 1:
		// Round-robin among equals (also covers the real-time
		// run-to-quantum rule: RealTime can never satisfy the first case
		// since it is the maximum level, so it only rotates here, and only
		// against other RealTime threads, exactly once its quantum - one
		// tick - has been consumed).
		s.tbl.RawMarkPreemptPending(running)
	default:
		s.tbl.RawIncrSliceTick(running)
	}

	s.tbl.Unlock(st)
	return running
}
