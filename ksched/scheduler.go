package ksched

import (
	"github.com/uintbeef/kcore/kid"
	"github.com/uintbeef/kcore/ksync"
	"github.com/uintbeef/kcore/kthread"
)

// Current returns the thread id the scheduler currently considers
// running. Implements ksync.Scheduler.
func (s *Scheduler) Current() kid.ThreadID {
	return s.tbl.CurrentThreadID()
}

// Block implements ksync.Scheduler: parks the given thread off the ready
// list. Must only be called by that thread's own goroutine (ksync's
// primitives only ever call this on behalf of their caller).
func (s *Scheduler) Block(id kid.ThreadID) {
	_ = s.tbl.BlockThread(id)
}

// Unblock implements ksync.Scheduler.
func (s *Scheduler) Unblock(id kid.ThreadID) {
	_ = s.tbl.UnblockThread(id)
}

// DisablePreemption implements ksync.Scheduler: increments the nesting
// count, recording when the processor first went preempt-disabled so
// PreemptDisabledNS/LongestPreemptDisabledRun can be charged on release.
func (s *Scheduler) DisablePreemption() ksync.PreemptToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preemptDisableCnt == 0 {
		s.preemptDisabledAt = s.host.MonotonicTimeNS()
	}
	s.preemptDisableCnt++
	return ksync.PreemptToken{}
}

// EnablePreemption implements ksync.Scheduler.
func (s *Scheduler) EnablePreemption(_ ksync.PreemptToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preemptDisableCnt == 0 {
		return
	}
	s.preemptDisableCnt--
	if s.preemptDisableCnt == 0 {
		run := s.host.MonotonicTimeNS() - s.preemptDisabledAt
		s.Stats.PreemptDisabledNS.Add(run)
		for {
			longest := s.Stats.LongestPreemptDisabledRun.Load()
			if run <= longest || s.Stats.LongestPreemptDisabledRun.CompareAndSwap(longest, run) {
				break
			}
		}
	}
}

func (s *Scheduler) preemptionDisabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preemptDisableCnt > 0
}

// SelectOnYield implements kthread.Policy: unconditionally the
// highest-priority ready thread, ties broken by longest-waiting. Backs
// every voluntary transfer of control - Yield, Sleep, Block and Exit - so a
// successful selection here is charged to VoluntarySwitches.
func (s *Scheduler) SelectOnYield(tbl *kthread.Table) (kid.ThreadID, bool) {
	id, _, ok := tbl.RawReadyHighest()
	if ok {
		s.Stats.VoluntarySwitches.Add(1)
	}
	return id, ok
}

// SelectOnCheckpoint implements kthread.Policy: the deferred half of a
// tick-requested preemption. Re-derives the same highest-ready candidate
// (the decision already made at tick time) and, if a switch actually
// occurs, charges the involuntary-switch counter and records it for the
// rolling switch-rate view.
func (s *Scheduler) SelectOnCheckpoint(tbl *kthread.Table) (kid.ThreadID, bool) {
	id, prio, ok := tbl.RawReadyHighest()
	if ok {
		s.Stats.InvoluntarySwitches.Add(1)
		if !s.Stats.recordSwitch(prio) {
			s.log.Log(logEntrySwitchFlapping(prio))
		}
	}
	return id, ok
}
