// Package ksched implements the preemption scheduler: the periodic tick
// handler, the priority + round-robin scheduling policy, yield/sleep
// wake-up plumbing, and scheduling statistics.
//
// The tick handler does bounded bookkeeping and defers the real work to the
// next scheduling pass; github.com/joeycumines/go-catrate backs a rolling
// switch-rate diagnostic view layered on top of the five required counters.
package ksched

import (
	"sync"
	"sync/atomic"
	"time"

	catrate "github.com/joeycumines/go-catrate"

	"github.com/uintbeef/kcore/klog"
	"github.com/uintbeef/kcore/kthread"
	"github.com/uintbeef/kcore/platform"
)

// Stats holds the required scheduling counters, plus a rolling switch-rate
// diagnostic view backed by a catrate.Limiter keyed by priority, so a
// diagnostic shell can ask "how many switches/sec at priority P over the
// last 1s/10s/60s" without the tick path doing any extra bookkeeping of its
// own.
type Stats struct {
	TickCount                 atomic.Uint64
	InvoluntarySwitches       atomic.Uint64
	VoluntarySwitches         atomic.Uint64
	PreemptDisabledNS         atomic.Uint64
	LongestPreemptDisabledRun atomic.Uint64

	switchRate *catrate.Limiter
}

func newStats() *Stats {
	return &Stats{
		switchRate: catrate.NewLimiter(map[time.Duration]int{
			time.Second:     64,
			10 * time.Second: 256,
			time.Minute:     1024,
		}),
	}
}

// recordSwitch records one context switch at the given priority for the
// rolling-rate view and returns whether the switch is still within the
// configured budget (false means the priority level is switching faster
// than the configured windows expect - a flapping workload, worth logging).
func (s *Stats) recordSwitch(p kthread.Priority) bool {
	_, ok := s.switchRate.Allow(p)
	return ok
}

// Scheduler ties a kthread.Table to the scheduling policy and tick
// handler. It implements both ksync.Scheduler (Block/Unblock/Current/
// DisablePreemption/EnablePreemption) and kthread.Policy
// (SelectOnYield/SelectOnCheckpoint), closing the dependency loop the two
// lower packages declare narrow interfaces for.
type Scheduler struct {
	tbl  *kthread.Table
	host platform.Host
	log  klog.Logger

	mu                sync.Mutex
	preemptDisableCnt int
	preemptDisabledAt uint64

	Stats *Stats
}

// New constructs a Scheduler over tbl. The caller must still call
// tbl.SetPolicy(scheduler) to finish wiring (kernel.New does this).
func New(tbl *kthread.Table, host platform.Host, log klog.Logger) *Scheduler {
	if log == nil {
		log = klog.NoOp()
	}
	return &Scheduler{tbl: tbl, host: host, log: log, Stats: newStats()}
}

// StartTicking programs and starts the platform timer at frequencyHz,
// wiring its periodic callback to Tick. This is the default 100 Hz
// production path; tests drive Tick manually instead, to stay
// deterministic.
func (s *Scheduler) StartTicking(frequencyHz int, vector int) error {
	if err := s.host.TimerConfigure(frequencyHz, vector, func() {
		s.Tick(s.host.MonotonicTimeNS())
	}); err != nil {
		return err
	}
	return s.host.TimerStart()
}

// StopTicking halts the periodic timer.
func (s *Scheduler) StopTicking() error {
	return s.host.TimerStop()
}
