package ksync

import (
	"github.com/uintbeef/kcore/kerr"
	"github.com/uintbeef/kcore/kid"
	"github.com/uintbeef/kcore/platform"
)

// Mutex is a spinlock plus an owner thread id and a recursion depth. The
// same thread may lock it repeatedly (depth increments); a contended lock
// parks the caller via the scheduler rather than busy-waiting.
type Mutex struct {
	spin  *Spinlock
	sched Scheduler
	owner kid.ThreadID
	depth int
	wait  []kid.ThreadID
}

// NewMutex constructs an unlocked mutex.
func NewMutex(host platform.Host, sched Scheduler) *Mutex {
	return &Mutex{
		spin:  NewSpinlock(host),
		sched: sched,
		owner: kid.InvalidThread,
	}
}

// Lock acquires the mutex, parking the caller if it is held by another
// thread. Recursive acquisition by the owner just increments depth.
func (m *Mutex) Lock() {
	st := m.spin.Acquire()
	self := m.sched.Current()
	switch {
	case m.owner == kid.InvalidThread:
		m.owner = self
		m.depth = 1
		m.spin.Release(st)
		return
	case m.owner == self:
		m.depth++
		m.spin.Release(st)
		return
	default:
		m.wait = append(m.wait, self)
		m.spin.Release(st)
		m.sched.Block(self)
		// Unlock transfers ownership straight to us (owner=self, depth=1)
		// before waking us, so there is nothing left to do on return.
	}
}

// TryLock behaves like Lock but reports failure instead of blocking.
func (m *Mutex) TryLock() bool {
	st := m.spin.Acquire()
	defer m.spin.Release(st)
	self := m.sched.Current()
	switch m.owner {
	case kid.InvalidThread:
		m.owner = self
		m.depth = 1
		return true
	case self:
		m.depth++
		return true
	default:
		return false
	}
}

// Unlock releases one level of ownership. When depth reaches zero and a
// waiter is queued, ownership transfers directly to the head waiter
// (depth reset to 1) and that thread is made ready; otherwise the mutex
// becomes unowned.
//
// Returns kerr.ErrNotOwner if the calling thread is not the current owner.
func (m *Mutex) Unlock() error {
	st := m.spin.Acquire()
	self := m.sched.Current()
	if m.owner != self {
		m.spin.Release(st)
		return kerr.ErrNotOwner
	}
	m.depth--
	if m.depth > 0 {
		m.spin.Release(st)
		return nil
	}
	if len(m.wait) > 0 {
		next := m.wait[0]
		m.wait = m.wait[1:]
		m.owner = next
		m.depth = 1
		m.spin.Release(st)
		m.sched.Unblock(next)
		return nil
	}
	m.owner = kid.InvalidThread
	m.spin.Release(st)
	return nil
}

// Owner reports the current owner thread, or kid.InvalidThread if unowned.
// Intended for diagnostics and tests.
func (m *Mutex) Owner() kid.ThreadID {
	st := m.spin.Acquire()
	defer m.spin.Release(st)
	return m.owner
}
