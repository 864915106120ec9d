// Package kthread implements the thread runtime: thread control blocks,
// the ready/blocked bookkeeping, the wrapper-function bootstrap, and the
// operations threads and the scheduler use to move between them.
//
// Go offers no freestanding mode, so "context save/restore" becomes: each
// thread is a real goroutine gated by its own per-thread handoff channel,
// parked immediately on creation until the scheduler's first grant - the
// safe equivalent of forging an initial stack that returns into a fixed
// wrapper. Only the goroutine holding the current grant is ever doing
// kernel-visible work; every other thread's goroutine is blocked receiving
// on its own gate. Involuntary preemption can't interrupt a running
// goroutine's user code from outside, so it is realized cooperatively: the
// scheduler marks a thread "preempt requested" and the thread discovers
// this at its next Checkpoint call, which the thread's own code makes
// explicitly (Yield, Sleep and the blocking primitives do not call it) -
// the same cooperative contract
// pre-1.14 Go and Lua coroutines use, a flag observed at the next
// checkpoint rather than a stack hijack.
package kthread

import (
	"container/heap"
	"sync"

	"github.com/uintbeef/kcore/kid"
	"github.com/uintbeef/kcore/klog"
	"github.com/uintbeef/kcore/ksync"
	"github.com/uintbeef/kcore/platform"
)

// Priority is the thread priority, RealTime being the highest and
// admitted to run-to-quantum rules the other levels don't get.
type Priority int32

const (
	PriorityLowest Priority = iota
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityHighest
	PriorityRealTime
	priorityCount
)

func (p Priority) String() string {
	switch p {
	case PriorityLowest:
		return "lowest"
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityHighest:
		return "highest"
	case PriorityRealTime:
		return "realtime"
	default:
		return "unknown"
	}
}

// State is a thread's lifecycle state.
type State int32

const (
	StateNew State = iota
	StateReady
	StateRunning
	StateBlocked
	StateZombie
	StateDead
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateBlocked:
		return "blocked"
	case StateZombie:
		return "zombie"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Entry is a thread's entry function: the kernel-visible equivalent of the
// function pointer + opaque argument a forged stack would jump into.
type Entry func(arg any)

// Flags holds per-thread behavior bits.
type Flags struct {
	Detached bool
	System   bool
}

// Policy is the narrow slice of scheduling-policy behavior Table needs to
// decide who runs next on a voluntary yield or a cooperative checkpoint.
// ksched.Scheduler satisfies this; declaring it here (instead of importing
// ksched) keeps the dependency one-directional, the same shape as
// ksync.Scheduler.
type Policy interface {
	// SelectOnYield picks the next thread to run after a voluntary yield:
	// unconditionally the highest-priority ready thread, ties broken by
	// longest-waiting. ok is false if nothing is ready (continue running).
	SelectOnYield(tbl *Table) (next kid.ThreadID, ok bool)
	// SelectOnCheckpoint decides, when a preempt was requested of the
	// running thread, who should run next.
	SelectOnCheckpoint(tbl *Table) (next kid.ThreadID, ok bool)
}

// thread is one thread control block.
type thread struct {
	id       kid.ThreadID
	taskID   kid.TaskID
	name     string
	priority Priority
	flags    Flags
	state    State
	stackLen int
	entry    Entry
	arg      any
	exitCode int32

	gate chan struct{}

	joiners []kid.ThreadID

	preemptPending bool
	sliceTicks     int
}

// Table is the arena-indexed thread table: control blocks, the
// priority-bucketed ready list, and the sleep timer wheel. The thread table
// and the ready list are protected by a single global thread-lock, a
// spinlock, owned by Table itself.
type Table struct {
	lock *ksync.Spinlock
	host platform.Host
	log  klog.Logger

	threads  []thread
	occupied []bool
	free     []int

	ready     [priorityCount][]kid.ThreadID
	running   kid.ThreadID
	wheel     sleepWheel

	policy Policy

	// wg lets callers wait for bootstrap goroutines to have at least
	// started; a test/shutdown convenience.
	wg sync.WaitGroup
}

// DefaultCapacity mirrors ktask's default; thread tables are usually
// sized larger than task tables since a task commonly owns several threads.
const DefaultCapacity = 1024

// NewTable constructs an empty thread table. The policy must be attached
// with SetPolicy before any thread can yield, sleep, block or checkpoint -
// wiring it eagerly would require kthread to import ksched.
func NewTable(capacity int, host platform.Host, log klog.Logger) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if log == nil {
		log = klog.NoOp()
	}
	t := &Table{
		lock:     ksync.NewSpinlock(host),
		host:     host,
		log:      log,
		threads:  make([]thread, capacity),
		occupied: make([]bool, capacity),
		running:  kid.InvalidThread,
	}
	for i := capacity - 1; i >= 0; i-- {
		t.free = append(t.free, i)
	}
	heap.Init(&t.wheel)
	return t
}

// SetPolicy attaches the scheduling policy (normally *ksched.Scheduler).
func (t *Table) SetPolicy(p Policy) { t.policy = p }

// Lock acquires the thread-table spinlock and returns the interrupt token
// the matching Unlock requires. Exported so ksched can perform
// tick-handler bookkeeping (ready-queue scans, priority comparisons)
// atomically with the table's own state.
func (t *Table) Lock() platform.IRQState { return t.lock.Acquire() }

// Unlock releases the lock acquired by Lock.
func (t *Table) Unlock(st platform.IRQState) { t.lock.Release(st) }
