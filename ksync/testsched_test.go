package ksync

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"

	"github.com/uintbeef/kcore/kid"
)

// goroutineID extracts the calling goroutine's runtime id by parsing its
// own stack trace header ("goroutine 123 [running]:") - the same technique
// small Go libraries reach for when they need a stable per-goroutine key and
// have no true thread-local storage to use instead.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	id, _ := strconv.ParseInt(string(fields[1]), 10, 64)
	return id
}

// testScheduler is a minimal ksync.Scheduler for exercising the primitives
// in this package without depending on kthread/ksched (which would import
// ksync itself). Each simulated thread is a real goroutine; Current maps
// the calling goroutine to the ThreadID it was registered under, and
// Block/Unblock are a straightforward per-thread gate channel, mirroring
// kthread's own "park on a channel, signalled on unblock" mechanism at
// smaller scale.
type testScheduler struct {
	mu    sync.Mutex
	byGID map[int64]kid.ThreadID
	gates map[kid.ThreadID]chan struct{}
}

func newTestScheduler() *testScheduler {
	return &testScheduler{
		byGID: make(map[int64]kid.ThreadID),
		gates: make(map[kid.ThreadID]chan struct{}),
	}
}

// register binds the calling goroutine to id; call at the top of each
// simulated thread's goroutine body.
func (s *testScheduler) register(id kid.ThreadID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byGID[goroutineID()] = id
	if s.gates[id] == nil {
		s.gates[id] = make(chan struct{}, 1)
	}
}

func (s *testScheduler) Current() kid.ThreadID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byGID[goroutineID()]
}

// Block parks the calling thread on its gate. The gate is a 1-buffered
// channel carrying a wake credit rather than a "blocked" flag: an Unblock
// that lands before the matching Block still deposits its credit in the
// buffer, so a park-after-wake never stalls forever waiting on a signal
// that already happened.
func (s *testScheduler) Block(id kid.ThreadID) {
	s.mu.Lock()
	gate := s.gates[id]
	s.mu.Unlock()
	<-gate
}

func (s *testScheduler) Unblock(id kid.ThreadID) {
	s.mu.Lock()
	gate := s.gates[id]
	s.mu.Unlock()
	select {
	case gate <- struct{}{}:
	default:
	}
}

func (s *testScheduler) DisablePreemption() PreemptToken { return PreemptToken{} }
func (s *testScheduler) EnablePreemption(PreemptToken)   {}
