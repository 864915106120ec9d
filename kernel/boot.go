package kernel

import (
	"github.com/uintbeef/kcore/kid"
	"github.com/uintbeef/kcore/kthread"
)

// SpawnTask creates a new task plus its first thread, attaches the thread
// to the task roster, and returns both ids. The thread starts Ready; it
// does not run until Start or a switch grants it the CPU.
func (k *Kernel) SpawnTask(name string, parent kid.TaskID, entry kthread.Entry, arg any, stackSize int, priority kthread.Priority, flags kthread.Flags) (kid.TaskID, kid.ThreadID, error) {
	taskID, err := k.Tasks.CreateTask(name, parent)
	if err != nil {
		return kid.InvalidTask, kid.InvalidThread, err
	}
	threadID, err := k.Threads.CreateThread(taskID, entry, arg, stackSize, priority, flags, name)
	if err != nil {
		return kid.InvalidTask, kid.InvalidThread, err
	}
	if err := k.Tasks.SpawnMainThread(taskID, threadID); err != nil {
		return kid.InvalidTask, kid.InvalidThread, err
	}
	return taskID, threadID, nil
}

// SpawnThread creates an additional thread inside an already-running task.
func (k *Kernel) SpawnThread(taskID kid.TaskID, entry kthread.Entry, arg any, stackSize int, priority kthread.Priority, flags kthread.Flags, name string) (kid.ThreadID, error) {
	threadID, err := k.Threads.CreateThread(taskID, entry, arg, stackSize, priority, flags, name)
	if err != nil {
		return kid.InvalidThread, err
	}
	if err := k.Tasks.AttachThread(taskID, threadID); err != nil {
		return kid.InvalidThread, err
	}
	return threadID, nil
}

// Boot grants the CPU to the highest-priority ready thread. Call once,
// after every boot-time thread has been created.
func (k *Kernel) Boot() error {
	return k.Scheduler.Start()
}
