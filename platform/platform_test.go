package platform

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSimulated_PortIO_RoundTrips(t *testing.T) {
	s := NewSimulated()

	s.PortOut8(0x60, 0xAB)
	require.Equal(t, uint8(0xAB), s.PortIn8(0x60))

	s.PortOut16(0x3F8, 0xBEEF)
	require.Equal(t, uint16(0xBEEF), s.PortIn16(0x3F8))

	s.PortOut32(0xCF8, 0xDEADBEEF)
	require.Equal(t, uint32(0xDEADBEEF), s.PortIn32(0xCF8))
}

func TestSimulated_MemoryMapUnmap(t *testing.T) {
	s := NewSimulated()

	virt, err := s.MemoryMapPhysical(0x1000, 4096, Cacheable)
	require.NoError(t, err)

	phys, err := s.MemoryGetPhysical(virt)
	require.NoError(t, err)
	require.Equal(t, virt, phys, "simulation identity-maps virtual to physical")

	require.NoError(t, s.MemoryUnmap(virt, 4096))
	_, err = s.MemoryGetPhysical(virt)
	require.ErrorIs(t, err, ErrNotMapped)
}

func TestSimulated_PCIConfigReadWrite(t *testing.T) {
	s := NewSimulated()

	require.NoError(t, s.PCIConfigWrite(0, 1, 0, 0x10, 0x12345678))
	v, err := s.PCIConfigRead(0, 1, 0, 0x10)
	require.NoError(t, err)
	require.Equal(t, uint32(0x12345678), v)
}

func TestSimulated_InterruptRegisterUnregister(t *testing.T) {
	s := NewSimulated()

	var called atomic.Bool
	require.NoError(t, s.InterruptRegister(32, func(ctx any) { called.Store(true) }, nil))
	require.ErrorIs(t, s.InterruptRegister(32, nil, nil), ErrVectorInUse)

	s.deliver(32)
	require.True(t, called.Load())

	require.NoError(t, s.InterruptUnregister(32))
	require.ErrorIs(t, s.InterruptUnregister(32), ErrVectorUnknown)
}

func TestInterruptSaveAndDisable_NestsCorrectly(t *testing.T) {
	interruptEnableGlobally()
	require.True(t, InterruptsEnabled())

	outer := interruptSaveAndDisable()
	require.False(t, InterruptsEnabled())
	inner := interruptSaveAndDisable()
	require.False(t, InterruptsEnabled())

	interruptRestore(inner)
	require.False(t, InterruptsEnabled(), "still disabled, outer nesting level not released")
	interruptRestore(outer)
	require.True(t, InterruptsEnabled())
}

func TestSimulated_TimerConfigureRejectsNonPositiveFrequency(t *testing.T) {
	s := NewSimulated()
	require.ErrorIs(t, s.TimerConfigure(0, 32, nil), ErrInvalidFrequency)
}

func TestSimulated_TimerStartStopDeliversTicks(t *testing.T) {
	s := NewSimulated()
	var count atomic.Int64
	require.NoError(t, s.TimerConfigure(1000, 32, func() { count.Add(1) }))
	require.NoError(t, s.TimerStart())

	require.Eventually(t, func() bool { return count.Load() > 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.TimerStop())
	seen := count.Load()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, seen, count.Load(), "no further ticks once stopped")
}

func TestSimulated_TimerStopWithoutStartIsSafe(t *testing.T) {
	s := NewSimulated()
	require.NoError(t, s.TimerStop())
}

func TestSimulated_MonotonicTimeNSIsMonotonic(t *testing.T) {
	s := NewSimulated()
	a := s.MonotonicTimeNS()
	time.Sleep(time.Millisecond)
	b := s.MonotonicTimeNS()
	require.Greater(t, b, a)
}
