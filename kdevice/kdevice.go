// Package kdevice implements the device/driver registry: uniform device
// and driver tables, the operation vtable external drivers implement
// against, and the probe/bind algorithm that pairs them up. The scheduler
// never touches this package except through the narrow Scheduler-shaped
// interfaces the sync primitives declare; it is purely a registration
// surface for external collaborators.
//
// Device and driver tables are maps keyed by id, guarded by a single lock. Uses
// github.com/joeycumines/go-microbatch for bounded-concurrency probing
// (RegisterDriver's device walk), and github.com/joeycumines/go-catrate for
// probe-failure log throttling - the same limiter shape ksched uses for its
// switch-rate view.
package kdevice

import (
	"github.com/uintbeef/kcore/kerr"
	"github.com/uintbeef/kcore/ksync"
)

// DeviceID and DriverID are small integers, unique for the registry's lifetime.
type DeviceID uint32
type DriverID uint32

// InvalidDevice and InvalidDriver are the "none" sentinels.
const (
	InvalidDevice DeviceID = 1<<32 - 1
	InvalidDriver DriverID = 1<<32 - 1
)

// Kind is the device type tag.
type Kind int32

const (
	KindBlock Kind = iota
	KindChar
	KindDisplay
	KindInput
	KindNetwork
	KindSound
	KindOther
)

// Status is a device's binding status.
type Status int32

const (
	StatusUnbound Status = iota
	StatusBound
	StatusFailed
)

// Resources are the hardware resource descriptors a device advertises.
type Resources struct {
	MMIOBase   uintptr
	MMIOSize   int
	PortBase   uint16
	PortSize   int
	IRQ        int
	DMAChannel int
}

// IDs identifies a device for (vendor,device,class) matching purposes.
type IDs struct {
	Vendor uint32
	Device uint32
	Class  uint32
}

// Ops is the operation vtable a driver binds to a device. All methods
// return a kerr.Code, matching the device-manager header convention
// (zero or positive is success, a small negative integer is failure) so
// driver implementations stay uniform across languages in spirit, even
// though the rest of this module uses idiomatic wrapped errors.
type Ops struct {
	Probe func(dev *Device) kerr.Code
	Init  func(dev *Device) kerr.Code
	Exit  func(dev *Device) kerr.Code
	Open  func(dev *Device) kerr.Code
	Close func(dev *Device) kerr.Code
	Read  func(dev *Device, buf []byte, offset int64) (int, kerr.Code)
	Write func(dev *Device, buf []byte, offset int64) (int, kerr.Code)
	IOCtl func(dev *Device, cmd uint32, arg uintptr) kerr.Code
	Mmap  func(dev *Device, offset int64, length int) (uintptr, kerr.Code)
	Poll  func(dev *Device) kerr.Code
}

// Device is a device record.
type Device struct {
	ID        DeviceID
	Name      string
	Kind      Kind
	Status    Status
	Flags     uint32
	IDs       IDs
	Resources Resources
	ParentID  DeviceID
	Children  []DeviceID
	Ops       Ops
	Driver    DriverID
	Payload   any
}

// Path returns the device tree path convention: "/" joined ancestor names
// from the root device down to this one.
func (r *Registry) Path(id DeviceID) (string, error) {
	st := r.lock.Acquire()
	defer r.lock.Release(st)
	return r.pathLocked(id)
}

func (r *Registry) pathLocked(id DeviceID) (string, error) {
	dev, err := r.lookupDeviceLocked(id)
	if err != nil {
		return "", err
	}
	if dev.ParentID == InvalidDevice {
		return "/" + dev.Name, nil
	}
	parent, err := r.pathLocked(dev.ParentID)
	if err != nil {
		return "", err
	}
	return parent + "/" + dev.Name, nil
}

// Driver is a driver record.
type Driver struct {
	ID         DriverID
	Name       string
	Version    string
	Supports   []IDs
	DefaultOps Ops
	Probe      func(dev *Device) kerr.Code
	Init       func(dev *Device) kerr.Code
	Exit       func(dev *Device) kerr.Code
}

// Filesystem is exposed but unimplemented in this module - out of scope
// per the purpose & scope non-goals, kept only so external collaborators
// have a stable interface to implement against.
type Filesystem interface {
	Mount(dev *Device) error
	Unmount() error
	Open(path string) (FileHandle, error)
}

// FileHandle is the filesystem-layer analogue of Ops, likewise unimplemented.
type FileHandle interface {
	Read(buf []byte, offset int64) (int, error)
	Write(buf []byte, offset int64) (int, error)
	Close() error
}

// Registry owns the device and driver tables. Guarded by a single registry
// spinlock, held only for short bounded critical sections per the
// lock-order discipline (registry -> thread table -> primitive) - the same
// ksync.Spinlock shape kthread.Table uses for the thread-table lock.
type Registry struct {
	lock    *ksync.Spinlock
	devices map[DeviceID]*Device
	drivers map[DriverID]*Driver
	nextDev DeviceID
	nextDrv DriverID

	probeFailureLimiter probeFailureThrottle
	log                 registryLogger
}
