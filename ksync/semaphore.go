package ksync

import (
	"github.com/uintbeef/kcore/kid"
	"github.com/uintbeef/kcore/platform"
)

// Semaphore is a non-negative counter bounded above by max, plus a wait
// set. wait decrements the counter or parks; signal increments it (never
// past max) or wakes one waiter.
type Semaphore struct {
	spin  *Spinlock
	sched Scheduler
	count int
	max   int
	wait  []kid.ThreadID
}

// NewSemaphore constructs a semaphore with the given initial count bounded by max.
func NewSemaphore(host platform.Host, sched Scheduler, initial, max int) *Semaphore {
	return &Semaphore{
		spin:  NewSpinlock(host),
		sched: sched,
		count: initial,
		max:   max,
	}
}

// Wait decrements the count if positive, otherwise parks the caller.
func (s *Semaphore) Wait() {
	st := s.spin.Acquire()
	if s.count > 0 {
		s.count--
		s.spin.Release(st)
		return
	}
	self := s.sched.Current()
	s.wait = append(s.wait, self)
	s.spin.Release(st)
	s.sched.Block(self)
	// Signal wakes the head waiter directly without touching count, so the
	// permit is ours the moment we wake; nothing left to recheck.
}

// TryWait is the non-blocking variant of Wait: it fails instead of parking.
func (s *Semaphore) TryWait() bool {
	st := s.spin.Acquire()
	defer s.spin.Release(st)
	if s.count > 0 {
		s.count--
		return true
	}
	return false
}

// Signal wakes the head waiter if any are parked (count unchanged), else
// increments count up to max; a signal past max is silently discarded,
// the caller's responsibility to avoid.
func (s *Semaphore) Signal() {
	st := s.spin.Acquire()
	if len(s.wait) > 0 {
		next := s.wait[0]
		s.wait = s.wait[1:]
		s.spin.Release(st)
		s.sched.Unblock(next)
		return
	}
	if s.count < s.max {
		s.count++
	}
	s.spin.Release(st)
}

// Count reports the current value. Intended for diagnostics and tests.
func (s *Semaphore) Count() int {
	st := s.spin.Acquire()
	defer s.spin.Release(st)
	return s.count
}
