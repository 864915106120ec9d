package ksync

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/uintbeef/kcore/kid"
	"github.com/uintbeef/kcore/platform"
)

func TestCond_SignalWakesOneWaiter(t *testing.T) {
	host := platform.NewSimulated()
	sched := newTestScheduler()
	m := NewMutex(host, sched)
	c := NewCond(host, sched)

	ready := false
	var wg sync.WaitGroup
	wg.Add(1)
	woke := make(chan struct{})
	go func() {
		defer wg.Done()
		sched.register(1)
		m.Lock()
		for !ready {
			require.NoError(t, c.Wait(m))
		}
		m.Unlock()
		close(woke)
	}()

	select {
	case <-woke:
		t.Fatal("waiter should not have woken before Signal")
	case <-time.After(20 * time.Millisecond):
	}

	sched.register(2)
	m.Lock()
	ready = true
	m.Unlock()
	c.Signal()

	wg.Wait()
	<-woke
}

func TestCond_BroadcastWakesAllWaiters(t *testing.T) {
	host := platform.NewSimulated()
	sched := newTestScheduler()
	m := NewMutex(host, sched)
	c := NewCond(host, sched)

	ready := false
	const n = 5
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		id := kid.ThreadID(i + 1)
		go func() {
			defer wg.Done()
			sched.register(id)
			m.Lock()
			for !ready {
				require.NoError(t, c.Wait(m))
			}
			m.Unlock()
		}()
	}

	time.Sleep(20 * time.Millisecond)

	sched.register(kid.ThreadID(100))
	m.Lock()
	ready = true
	m.Unlock()
	c.Broadcast()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast failed to wake every waiter")
	}
}
