package ksync

import (
	"sync/atomic"

	"github.com/uintbeef/kcore/platform"
)

const (
	spinUnlocked uint32 = 0
	spinLocked   uint32 = 1
)

// Spinlock is a word-sized atomic lock: at most one holder, acquired by
// busy-waiting on a compare-and-set with interrupts disabled for the
// duration of the hold. Recursive acquisition is not permitted - a thread
// that acquires twice deadlocks itself, matching the contract.
//
// Grounded on eventloop.FastState's CAS-loop shape (state.go), narrowed to
// a two-value lock word instead of a general state machine.
type Spinlock struct {
	word atomic.Uint32
	host platform.Host
}

// NewSpinlock constructs an unlocked spinlock. host supplies
// save/disable/restore for the local processor's interrupt mask.
func NewSpinlock(host platform.Host) *Spinlock {
	l := &Spinlock{host: host}
	l.word.Store(spinUnlocked)
	return l
}

// Acquire disables interrupts, then busy-waits until the lock word
// transitions unlocked -> locked. The returned IRQState must be passed to
// the matching Release.
func (l *Spinlock) Acquire() platform.IRQState {
	st := l.host.InterruptSaveAndDisable()
	for !l.word.CompareAndSwap(spinUnlocked, spinLocked) {
		// Busy-wait: a real spinlock never yields the processor, because
		// the thread that would make progress may be the one we'd yield to.
	}
	return st
}

// TryAcquire attempts the CAS once. On failure it restores the interrupt
// state it just saved and reports false; the caller holds nothing.
func (l *Spinlock) TryAcquire() (platform.IRQState, bool) {
	st := l.host.InterruptSaveAndDisable()
	if l.word.CompareAndSwap(spinUnlocked, spinLocked) {
		return st, true
	}
	l.host.InterruptRestore(st)
	return platform.IRQState{}, false
}

// Release stores unlocked and restores the interrupt state saved by the
// matching Acquire/TryAcquire.
func (l *Spinlock) Release(st platform.IRQState) {
	l.word.Store(spinUnlocked)
	l.host.InterruptRestore(st)
}

// IsHeld reports whether the lock is currently held by anyone. Intended for
// assertions and tests, not for synchronization decisions.
func (l *Spinlock) IsHeld() bool {
	return l.word.Load() == spinLocked
}
