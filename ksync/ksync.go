// Package ksync implements the kernel core's synchronization primitives:
// Spinlock, Mutex, Semaphore and Cond, coupled to the scheduler through a
// narrow interface this package declares itself (see Scheduler below) rather
// than importing the scheduler package directly - ksched composes
// ksync-style internal locks for its own tables, so the dependency can only
// run one way.
//
// Grounded on eventloop.FastState (state.go) for the lock-free CAS style,
// and on dijkstracula/go-ilock for the "pack a small state word, CAS loop,
// condvar-as-barrier" shape of a from-scratch Go lock.
package ksync

import "github.com/uintbeef/kcore/kid"

// Scheduler is the slice of scheduler behavior the primitives in this
// package need. ksched.Scheduler satisfies it; declaring it here (rather
// than in ksched) avoids an import cycle.
type Scheduler interface {
	// Current returns the calling goroutine's simulated thread id.
	Current() kid.ThreadID
	// Block parks the given thread until a matching Unblock, removing it
	// from the ready list. Must not be called while holding a spinlock.
	Block(kid.ThreadID)
	// Unblock makes a parked thread ready again. Safe to call from
	// interrupt context or while holding a spinlock.
	Unblock(kid.ThreadID)
	// DisablePreemption increments the scheduler's preemption-disable
	// count and returns a token that must be passed to EnablePreemption.
	DisablePreemption() PreemptToken
	// EnablePreemption decrements the count; preemption resumes being
	// possible once it reaches zero.
	EnablePreemption(PreemptToken)
}

// PreemptToken is the opaque nesting token for DisablePreemption/EnablePreemption.
type PreemptToken struct{ depth int }
