// Package kernel is the explicit kernel-context object used in place of
// package-level globals: one instance each of the task table, thread table,
// scheduler and device registry, wired together so every test or demo gets
// its own independent instance instead of sharing process-wide state.
package kernel

import (
	"github.com/uintbeef/kcore/kdevice"
	"github.com/uintbeef/kcore/klog"
	"github.com/uintbeef/kcore/ksched"
	"github.com/uintbeef/kcore/kthread"
	"github.com/uintbeef/kcore/ktask"
	"github.com/uintbeef/kcore/platform"
)

// Config controls table sizing and logging for a Kernel. A zero Config is
// valid and uses every package's own defaults.
type Config struct {
	TaskCapacity   int
	ThreadCapacity int
	Log            klog.Logger
}

// Kernel owns the whole concurrency substrate for one simulated machine.
type Kernel struct {
	Host      platform.Host
	Tasks     *ktask.Table
	Threads   *kthread.Table
	Scheduler *ksched.Scheduler
	Devices   *kdevice.Registry
	Log       klog.Logger
}

// New constructs a Kernel over host, wiring kthread.Table.SetPolicy(sched)
// to close the dependency-injection loop kthread/ksync declare narrow
// interfaces for instead of importing ksched directly.
func New(host platform.Host, cfg Config) *Kernel {
	log := cfg.Log
	if log == nil {
		log = klog.NoOp()
	}
	tasks := ktask.NewTable(cfg.TaskCapacity)
	threads := kthread.NewTable(cfg.ThreadCapacity, host, log)
	sched := ksched.New(threads, host, log)
	threads.SetPolicy(sched)

	return &Kernel{
		Host:      host,
		Tasks:     tasks,
		Threads:   threads,
		Scheduler: sched,
		Devices:   kdevice.NewRegistry(host, log),
		Log:       log,
	}
}

// Fault reports a detected internal invariant violation: misuse of a
// primitive, a corrupted table. There is nothing left to return an error
// to, so it dumps state through the kernel's logger and halts, matching the
// "kernel panic for unrecoverable faults" contract.
func (k *Kernel) Fault(category, message string, fields map[string]any) {
	klog.Panic(k.Log, klog.Entry{
		Level:    klog.LevelPanic,
		Category: category,
		Message:  message,
		Fields:   fields,
	})
}
