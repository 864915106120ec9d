// Package kid defines the opaque identifier types shared by the task table,
// thread runtime, scheduler and sync primitives, so those packages can refer
// to each other's handles without importing each other's arenas.
package kid

import "fmt"

// ThreadID identifies a thread for the lifetime of the kernel instance that
// created it. Thread 0 is reserved for the bootstrap thread of the system
// task.
type ThreadID uint32

// InvalidThread is the sentinel meaning "no thread". It is not the zero
// value: thread 0, the bootstrap thread, is a valid id, so callers that
// need to represent "none" use InvalidThread.
const InvalidThread ThreadID = 1<<32 - 1

// String implements fmt.Stringer.
func (t ThreadID) String() string {
	if t == InvalidThread {
		return "thread<none>"
	}
	return fmt.Sprintf("thread<%d>", uint32(t))
}

// TaskID identifies a task for the lifetime of the kernel instance. Task 0
// is reserved for the initial "system" task.
type TaskID uint32

// InvalidTask is the sentinel meaning "no task".
const InvalidTask TaskID = 1<<32 - 1

// String implements fmt.Stringer.
func (t TaskID) String() string {
	if t == InvalidTask {
		return "task<none>"
	}
	return fmt.Sprintf("task<%d>", uint32(t))
}
