package kthread

import "github.com/uintbeef/kcore/kid"

// sleepEntry pairs a sleeping thread with its wake deadline.
type sleepEntry struct {
	id     kid.ThreadID
	wakeAt uint64 // monotonic ns
}

// sleepWheel is a min-heap of sleeping threads keyed by wake deadline.
// Sleeping threads guarantee CPU release (they are parked, not
// busy-yielding) and are woken by the scheduler's tick handler checking
// wheel expiry, never a livelock-prone yield loop.
type sleepWheel []sleepEntry

func (w sleepWheel) Len() int            { return len(w) }
func (w sleepWheel) Less(i, j int) bool  { return w[i].wakeAt < w[j].wakeAt }
func (w sleepWheel) Swap(i, j int)       { w[i], w[j] = w[j], w[i] }
func (w *sleepWheel) Push(x any)         { *w = append(*w, x.(sleepEntry)) }

func (w *sleepWheel) Pop() any {
	old := *w
	n := len(old)
	x := old[n-1]
	*w = old[:n-1]
	return x
}
