package ksync

import (
	"github.com/uintbeef/kcore/kid"
	"github.com/uintbeef/kcore/platform"
)

// Cond is a condition variable coupled to an external Mutex. Resolving the
// ordering Open Question: Wait takes the cv's own internal spinlock before
// unlocking the caller's mutex, so no Signal/Broadcast between the unlock
// and the park can be lost. Spurious wake is permitted; callers must
// re-check their predicate.
type Cond struct {
	spin *Spinlock
	sched Scheduler
	wait  []kid.ThreadID
}

// NewCond constructs a condition variable.
func NewCond(host platform.Host, sched Scheduler) *Cond {
	return &Cond{spin: NewSpinlock(host), sched: sched}
}

// Wait requires the caller to already hold m. It atomically (under the cv's
// own spinlock) unlocks m and parks the caller on the cv's wait set, then
// re-acquires m before returning.
func (c *Cond) Wait(m *Mutex) error {
	st := c.spin.Acquire()
	self := c.sched.Current()
	c.wait = append(c.wait, self)
	// Unlock m while still holding the cv's spinlock, so a concurrent
	// Signal/Broadcast cannot run between the unlock and the park.
	if err := m.Unlock(); err != nil {
		c.spin.Release(st)
		return err
	}
	c.spin.Release(st)
	c.sched.Block(self)
	m.Lock()
	return nil
}

// Signal wakes one waiter, if any.
func (c *Cond) Signal() {
	st := c.spin.Acquire()
	if len(c.wait) == 0 {
		c.spin.Release(st)
		return
	}
	next := c.wait[0]
	c.wait = c.wait[1:]
	c.spin.Release(st)
	c.sched.Unblock(next)
}

// Broadcast wakes every waiter.
func (c *Cond) Broadcast() {
	st := c.spin.Acquire()
	woken := c.wait
	c.wait = nil
	c.spin.Release(st)
	for _, t := range woken {
		c.sched.Unblock(t)
	}
}
