package kthread

import (
	"container/heap"

	"github.com/uintbeef/kcore/kerr"
	"github.com/uintbeef/kcore/kid"
	"github.com/uintbeef/kcore/platform"
)

// Start grants the CPU to the highest-priority ready thread, used once at
// boot when there is no currently running thread to switch away from.
func (t *Table) Start() error {
	st := t.Lock()
	id, _, ok := t.RawReadyHighest()
	if !ok {
		t.Unlock(st)
		return kerr.ErrNotFound
	}
	t.dequeueReadyLocked(id)
	th := &t.threads[id]
	th.state = StateRunning
	th.sliceTicks = 0
	t.running = id
	t.Unlock(st)
	th.gate <- struct{}{}
	return nil
}

// Wait blocks until every thread's bootstrap goroutine has returned.
// Convenience for tests and cmd/kcoredemo shutdown.
func (t *Table) Wait() { t.wg.Wait() }

// CreateThread allocates a stack (accounted for, not actually mapped - the
// core has no paging) and forges an initial control block whose first
// resumption lands in bootstrap, the safe equivalent of a wrapper address
// written onto a fresh stack. The thread starts Ready.
func (t *Table) CreateThread(taskID kid.TaskID, entry Entry, arg any, stackSize int, priority Priority, flags Flags, name string) (kid.ThreadID, error) {
	st := t.Lock()
	if len(t.free) == 0 {
		t.Unlock(st)
		return kid.InvalidThread, kerr.ErrResourceExhausted
	}
	idx := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]
	t.occupied[idx] = true
	id := kid.ThreadID(idx)
	t.threads[idx] = thread{
		id:       id,
		taskID:   taskID,
		name:     name,
		priority: priority,
		flags:    flags,
		state:    StateReady,
		stackLen: stackSize,
		entry:    entry,
		arg:      arg,
		gate:     make(chan struct{}, 1),
	}
	th := &t.threads[idx]
	t.ready[priority] = append(t.ready[priority], id)
	t.Unlock(st)

	t.wg.Add(1)
	go t.bootstrap(th)
	return id, nil
}

// bootstrap is the fixed wrapper every thread's goroutine runs: park until
// granted the CPU, invoke the entry function, then exit with code 0 if it
// returns. A thread can never fall off the end of its stack into undefined
// memory because there is no "end" - there is only this function returning.
func (t *Table) bootstrap(th *thread) {
	defer t.wg.Done()
	<-th.gate
	th.entry(th.arg)
	_ = t.ExitThread(th.id, 0)
}

// CurrentThreadID returns the id of the thread the scheduler currently
// considers "running". Any legitimate caller is that thread's own
// goroutine, since every other thread is blocked on its own gate.
func (t *Table) CurrentThreadID() kid.ThreadID {
	st := t.Lock()
	defer t.Unlock(st)
	return t.running
}

// State reports a thread's current lifecycle state.
func (t *Table) State(id kid.ThreadID) (State, error) {
	st := t.Lock()
	defer t.Unlock(st)
	th, err := t.lookupLocked(id)
	if err != nil {
		return 0, err
	}
	return th.state, nil
}

// SetPriority changes a thread's scheduling priority.
func (t *Table) SetPriority(id kid.ThreadID, p Priority) error {
	st := t.Lock()
	defer t.Unlock(st)
	th, err := t.lookupLocked(id)
	if err != nil {
		return err
	}
	th.priority = p
	return nil
}

// GetPriority reports a thread's scheduling priority.
func (t *Table) GetPriority(id kid.ThreadID) (Priority, error) {
	st := t.Lock()
	defer t.Unlock(st)
	th, err := t.lookupLocked(id)
	if err != nil {
		return 0, err
	}
	return th.priority, nil
}

// SetName renames a thread.
func (t *Table) SetName(id kid.ThreadID, name string) error {
	st := t.Lock()
	defer t.Unlock(st)
	th, err := t.lookupLocked(id)
	if err != nil {
		return err
	}
	th.name = name
	return nil
}

// GetName reports a thread's name.
func (t *Table) GetName(id kid.ThreadID) (string, error) {
	st := t.Lock()
	defer t.Unlock(st)
	th, err := t.lookupLocked(id)
	if err != nil {
		return "", err
	}
	return th.name, nil
}

// YieldThread cooperatively reschedules: unconditionally pick the
// highest-priority ready thread (ties broken by longest-waiting); if none
// is ready, continue running.
func (t *Table) YieldThread(id kid.ThreadID) error {
	st := t.Lock()
	cur, err := t.lookupLocked(id)
	if err != nil {
		t.Unlock(st)
		return err
	}
	if t.policy == nil {
		t.Unlock(st)
		return nil
	}
	next, ok := t.policy.SelectOnYield(t)
	if !ok || next == id {
		t.Unlock(st)
		return nil
	}
	t.doSwitch(st, cur, StateReady, next, true)
	return nil
}

// Checkpoint is called explicitly by the running thread's own code; no
// other function in this package (Yield, Sleep, Block, bootstrap) calls it.
// If the scheduler has marked this thread "preempt requested" (set by the
// timer tick handler), this performs the deferred involuntary switch now -
// the only place a tick-driven preempt actually takes effect, since Go
// cannot interrupt running user code from outside.
func (t *Table) Checkpoint(id kid.ThreadID) error {
	st := t.Lock()
	cur, err := t.lookupLocked(id)
	if err != nil {
		t.Unlock(st)
		return err
	}
	if !cur.preemptPending {
		t.Unlock(st)
		return nil
	}
	cur.preemptPending = false
	if t.policy == nil {
		t.Unlock(st)
		return nil
	}
	next, ok := t.policy.SelectOnCheckpoint(t)
	if !ok || next == id {
		t.Unlock(st)
		return nil
	}
	t.doSwitch(st, cur, StateReady, next, true)
	return nil
}

// SleepThread parks the caller in the sleep wheel until at least ms have
// elapsed on the monotonic clock, guaranteeing CPU release - never a
// busy-yield loop.
func (t *Table) SleepThread(id kid.ThreadID, nowNS uint64, ms uint64) error {
	st := t.Lock()
	cur, err := t.lookupLocked(id)
	if err != nil {
		t.Unlock(st)
		return err
	}
	heap.Push(&t.wheel, sleepEntry{id: id, wakeAt: nowNS + ms*1_000_000})
	var next kid.ThreadID
	ok := false
	if t.policy != nil {
		next, ok = t.policy.SelectOnYield(t)
	}
	if !ok {
		next = kid.InvalidThread
	}
	t.doSwitch(st, cur, StateBlocked, next, true)
	return nil
}

// BlockThread parks the calling thread outside of the ready list until a
// matching UnblockThread. Used by ksync primitives on contention.
func (t *Table) BlockThread(id kid.ThreadID) error {
	st := t.Lock()
	cur, err := t.lookupLocked(id)
	if err != nil {
		t.Unlock(st)
		return err
	}
	var next kid.ThreadID
	ok := false
	if t.policy != nil {
		next, ok = t.policy.SelectOnYield(t)
	}
	if !ok {
		next = kid.InvalidThread
	}
	t.doSwitch(st, cur, StateBlocked, next, true)
	return nil
}

// UnblockThread makes a parked thread ready again. Safe to call from
// interrupt context or while already holding a spinlock elsewhere, since
// it only takes this table's own lock.
//
// If the processor is currently idle (no thread running - the state
// Tick's own doc comment calls out as "let Start or an unblock bring
// something onto the CPU"), the unblocked thread is granted the CPU
// directly instead of merely being marked ready, since otherwise nothing
// would ever pick it back up.
func (t *Table) UnblockThread(id kid.ThreadID) error {
	st := t.Lock()
	th, err := t.lookupLocked(id)
	if err != nil {
		t.Unlock(st)
		return err
	}
	if th.state != StateBlocked {
		t.Unlock(st)
		return nil
	}
	if t.running == kid.InvalidThread {
		th.state = StateRunning
		th.sliceTicks = 0
		t.running = id
		t.Unlock(st)
		th.gate <- struct{}{}
		return nil
	}
	th.state = StateReady
	t.ready[th.priority] = append(t.ready[th.priority], id)
	t.Unlock(st)
	return nil
}

// ExitThread marks the current thread a zombie, wakes any threads parked
// in JoinThread against it, removes it from the ready list and switches
// away. If detached, reclaim happens inline instead of waiting for a
// joiner.
func (t *Table) ExitThread(id kid.ThreadID, code int32) error {
	st := t.Lock()
	cur, err := t.lookupLocked(id)
	if err != nil {
		t.Unlock(st)
		return err
	}
	cur.exitCode = code
	cur.state = StateZombie
	detached := cur.flags.Detached
	if detached {
		cur.state = StateDead
		t.reclaimLocked(id)
	}
	joiners := cur.joiners
	cur.joiners = nil
	var next kid.ThreadID
	ok := false
	if t.policy != nil {
		next, ok = t.policy.SelectOnYield(t)
	}
	if !ok {
		next = kid.InvalidThread
	}
	t.doSwitch(st, cur, cur.state, next, false)
	// Joiners parked in JoinThread are woken only here, after the lock is
	// released, same as any other UnblockThread call.
	for _, j := range joiners {
		_ = t.UnblockThread(j)
	}
	return nil
}

// JoinThread waits for id to become a zombie, reclaims its record and
// reports the exit code. It may not target the caller itself or a
// detached thread.
//
// A not-yet-zombie target parks the caller exactly like BlockThread,
// handing the CPU to another ready thread rather than stalling the
// goroutine on a channel recv the table knows nothing about - this
// thread table has exactly one runnable goroutine at a time, and a plain
// channel wait would leave the target permanently starved of the CPU it
// needs to reach exit.
func (t *Table) JoinThread(caller, id kid.ThreadID) (int32, error) {
	if caller == id {
		return 0, kerr.ErrSelfJoin
	}
	for {
		st := t.Lock()
		th, err := t.lookupLocked(id)
		if err != nil {
			t.Unlock(st)
			return 0, err
		}
		if th.flags.Detached {
			t.Unlock(st)
			return 0, kerr.ErrDetached
		}
		if th.state == StateZombie {
			code := th.exitCode
			t.reclaimLocked(id)
			t.Unlock(st)
			return code, nil
		}
		th.joiners = append(th.joiners, caller)
		cur, err := t.lookupLocked(caller)
		if err != nil {
			t.Unlock(st)
			return 0, err
		}
		var next kid.ThreadID
		ok := false
		if t.policy != nil {
			next, ok = t.policy.SelectOnYield(t)
		}
		if !ok {
			next = kid.InvalidThread
		}
		t.doSwitch(st, cur, StateBlocked, next, true)
		// Woken by ExitThread's UnblockThread; loop re-checks state,
		// since the target may have only just become a zombie, not yet
		// reclaimed by anyone else.
	}
}

// DetachThread marks a thread detached; if it is already a zombie, it is
// reclaimed immediately.
func (t *Table) DetachThread(id kid.ThreadID) error {
	st := t.Lock()
	defer t.Unlock(st)
	th, err := t.lookupLocked(id)
	if err != nil {
		return err
	}
	th.flags.Detached = true
	if th.state == StateZombie {
		th.state = StateDead
		t.reclaimLocked(id)
	}
	return nil
}

func (t *Table) lookupLocked(id kid.ThreadID) (*thread, error) {
	if int(id) < 0 || int(id) >= len(t.threads) || !t.occupied[id] {
		return nil, kerr.ErrNotFound
	}
	return &t.threads[id], nil
}

// reclaimLocked frees a dead thread's table slot. Caller holds the lock.
func (t *Table) reclaimLocked(id kid.ThreadID) {
	t.occupied[id] = false
	t.free = append(t.free, int(id))
}

// doSwitch performs the mechanical half of a context switch: it must be
// called with the lock held (st is the token from that acquisition). If
// curState is Ready, cur is re-enqueued at the tail of its priority
// bucket; otherwise cur is left in whatever state the caller already set
// (Blocked, Zombie) and is expected to already be linked into the
// relevant wait set. The lock is released before any gate is touched, so
// the actual handoff never happens while a spinlock is held. When
// parkSelf is true, the calling goroutine (which must be cur's own) waits
// on its own gate afterward; Exit passes false since its goroutine is
// terminating, not resuming.
func (t *Table) doSwitch(st platform.IRQState, cur *thread, curState State, next kid.ThreadID, parkSelf bool) {
	cur.state = curState
	if curState == StateReady {
		t.ready[cur.priority] = append(t.ready[cur.priority], cur.id)
	}

	var nextTh *thread
	if next != kid.InvalidThread {
		nextTh = &t.threads[next]
		t.dequeueReadyLocked(next)
		nextTh.state = StateRunning
		nextTh.sliceTicks = 0
		t.running = next
	} else {
		t.running = kid.InvalidThread
	}
	t.Unlock(st)

	if nextTh != nil && next != cur.id {
		select {
		case nextTh.gate <- struct{}{}:
		default:
		}
	}
	if parkSelf {
		<-cur.gate
	}
}

// dequeueReadyLocked removes id from whatever priority bucket it is
// queued in. Caller holds the lock.
func (t *Table) dequeueReadyLocked(id kid.ThreadID) {
	prio := t.threads[id].priority
	bucket := t.ready[prio]
	for i, v := range bucket {
		if v == id {
			t.ready[prio] = append(bucket[:i], bucket[i+1:]...)
			return
		}
	}
}
