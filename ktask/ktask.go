// Package ktask implements the task table: task control blocks and the
// address-space handle each owns, plus the per-task thread roster.
//
// Uses an arena-style table: a fixed-capacity slice indexed by a small
// integer id rather than pointer-linked nodes, and kid for the shared
// identifier types that let this package and kthread refer to each other's
// handles without an import cycle.
package ktask

import (
	"sync"

	"github.com/uintbeef/kcore/kerr"
	"github.com/uintbeef/kcore/kid"
)

// State is a task's aggregate lifecycle state.
type State int32

const (
	StateNew State = iota
	StateRunning
	StateExited
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// AddressSpace is the opaque page-table-root handle a task owns. The core
// does not implement paging; it only carries the handle so that drivers
// and a future MMU layer have somewhere to attach one.
type AddressSpace struct {
	Root uintptr
}

// Task is a task control block: an isolated address space and the unit of
// resource ownership.
type Task struct {
	ID         kid.TaskID
	Name       string
	Space      AddressSpace
	ParentID   kid.TaskID
	State      State
	ExitCode   int32
	CPUTimeNS  uint64
	Threads    []kid.ThreadID
	Payload    any
}

// Table is the fixed-capacity, arena-indexed task table. Capacity 0 uses
// DefaultCapacity.
type Table struct {
	mu       sync.Mutex
	tasks    []Task
	occupied []bool
	free     []int
}

// DefaultCapacity is the fallback task-slot count when a caller passes zero.
const DefaultCapacity = 256

// NewTable allocates a task table with room for capacity tasks. Task id 0
// is reserved for the initial "system" task and is pre-allocated here by
// the caller via CreateTask, not implicitly by NewTable.
func NewTable(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	t := &Table{
		tasks:    make([]Task, capacity),
		occupied: make([]bool, capacity),
	}
	for i := capacity - 1; i >= 0; i-- {
		t.free = append(t.free, i)
	}
	return t
}

// CreateTask allocates a task control block. The initial thread is created
// separately via kthread, then attached with SpawnMainThread.
func (t *Table) CreateTask(name string, parent kid.TaskID) (kid.TaskID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.free) == 0 {
		return kid.InvalidTask, kerr.ErrResourceExhausted
	}
	idx := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]
	t.occupied[idx] = true
	t.tasks[idx] = Task{
		ID:       kid.TaskID(idx),
		Name:     name,
		ParentID: parent,
		State:    StateNew,
	}
	return kid.TaskID(idx), nil
}

// SpawnMainThread attaches the task's first thread, moving the task to
// the running state. A task must have at least one live thread while not
// exited; this is the call that establishes that invariant.
func (t *Table) SpawnMainThread(id kid.TaskID, thread kid.ThreadID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	tk, err := t.lookupLocked(id)
	if err != nil {
		return err
	}
	tk.Threads = append(tk.Threads, thread)
	tk.State = StateRunning
	t.tasks[id] = *tk
	return nil
}

// AttachThread records an additional thread created inside an already
// running task.
func (t *Table) AttachThread(id kid.TaskID, thread kid.ThreadID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	tk, err := t.lookupLocked(id)
	if err != nil {
		return err
	}
	tk.Threads = append(tk.Threads, thread)
	t.tasks[id] = *tk
	return nil
}

// DetachThread removes a thread from its task's roster, used when a
// thread terminates. Returns the number of threads remaining.
func (t *Table) DetachThread(id kid.TaskID, thread kid.ThreadID) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tk, err := t.lookupLocked(id)
	if err != nil {
		return 0, err
	}
	for i, th := range tk.Threads {
		if th == thread {
			tk.Threads = append(tk.Threads[:i], tk.Threads[i+1:]...)
			break
		}
	}
	t.tasks[id] = *tk
	return len(tk.Threads), nil
}

// ExitTask marks a task exited with the given code. The caller
// (kthread, when the last thread of a task terminates) is responsible
// for having already propagated exit to the task's threads.
func (t *Table) ExitTask(id kid.TaskID, code int32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	tk, err := t.lookupLocked(id)
	if err != nil {
		return err
	}
	tk.State = StateExited
	tk.ExitCode = code
	t.tasks[id] = *tk
	return nil
}

// FindTask looks up a task by id.
func (t *Table) FindTask(id kid.TaskID) (Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tk, err := t.lookupLocked(id)
	if err != nil {
		return Task{}, err
	}
	return *tk, nil
}

// FindTaskByName returns the first task whose name matches.
func (t *Table) FindTaskByName(name string) (Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, occ := range t.occupied {
		if occ && t.tasks[i].Name == name {
			return t.tasks[i], nil
		}
	}
	return Task{}, kerr.ErrNotFound
}

// ListTasks returns a snapshot of every live task.
func (t *Table) ListTasks() []Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Task, 0, len(t.tasks)-len(t.free))
	for i, occ := range t.occupied {
		if occ {
			out = append(out, t.tasks[i])
		}
	}
	return out
}

func (t *Table) lookupLocked(id kid.TaskID) (*Task, error) {
	if int(id) < 0 || int(id) >= len(t.tasks) || !t.occupied[id] {
		return nil, kerr.ErrNotFound
	}
	return &t.tasks[id], nil
}
