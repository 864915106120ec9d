package kdevice

import (
	"fmt"

	"github.com/uintbeef/kcore/kerr"
	"github.com/uintbeef/kcore/klog"
	"github.com/uintbeef/kcore/ksync"
	"github.com/uintbeef/kcore/platform"
)

// NewRegistry constructs an empty device/driver registry over host.
func NewRegistry(host platform.Host, log klog.Logger) *Registry {
	if log == nil {
		log = klog.NoOp()
	}
	return &Registry{
		lock:                ksync.NewSpinlock(host),
		devices:             make(map[DeviceID]*Device),
		drivers:             make(map[DriverID]*Driver),
		probeFailureLimiter: newProbeFailureThrottle(),
		log:                 log,
	}
}

// RegisterDevice inserts a new, as-yet-unbound device under parent (or as a
// root device, if parent is InvalidDevice), then immediately walks the
// driver table looking for the first driver whose probe succeeds against
// it - the binding algorithm run in the "device arrives after its driver"
// direction.
func (r *Registry) RegisterDevice(name string, kind Kind, ids IDs, res Resources, parent DeviceID) (DeviceID, error) {
	st := r.lock.Acquire()
	if parent != InvalidDevice {
		if _, err := r.lookupDeviceLocked(parent); err != nil {
			r.lock.Release(st)
			return InvalidDevice, err
		}
	}
	id := r.nextDev
	r.nextDev++
	dev := &Device{
		ID:        id,
		Name:      name,
		Kind:      kind,
		Status:    StatusUnbound,
		IDs:       ids,
		Resources: res,
		ParentID:  parent,
		Driver:    InvalidDriver,
	}
	r.devices[id] = dev
	if parent != InvalidDevice {
		p := r.devices[parent]
		p.Children = append(p.Children, id)
	}
	candidates := r.driverSnapshotLocked()
	r.lock.Release(st)

	for _, drv := range candidates {
		if r.tryBind(drv, id) {
			break
		}
	}
	return id, nil
}

// UnregisterDevice removes a device, first calling its driver's Exit hook if
// bound. Children must be unregistered first.
func (r *Registry) UnregisterDevice(id DeviceID) error {
	st := r.lock.Acquire()
	dev, err := r.lookupDeviceLocked(id)
	if err != nil {
		r.lock.Release(st)
		return err
	}
	if len(dev.Children) != 0 {
		r.lock.Release(st)
		return fmt.Errorf("kdevice: device %q has %d children: %w", dev.Name, len(dev.Children), kerr.ErrInvalidArgument)
	}
	bound := dev.Status == StatusBound
	var exit func(*Device) kerr.Code
	if drv, ok := r.drivers[dev.Driver]; ok {
		exit = drv.Exit
	}
	parent := dev.ParentID
	r.lock.Release(st)

	if bound && exit != nil {
		_ = exit(dev).Err()
	}

	st = r.lock.Acquire()
	defer r.lock.Release(st)
	delete(r.devices, id)
	if parent != InvalidDevice {
		if p, ok := r.devices[parent]; ok {
			p.Children = removeID(p.Children, id)
		}
	}
	return nil
}

// RegisterDriver inserts a new driver, then binds it against every
// currently-unbound device - the probing & binding algorithm's other
// direction, "driver arrives after its devices". See bind.go for the
// bounded-concurrency walk.
func (r *Registry) RegisterDriver(name, version string, supports []IDs, ops Ops, probe, init, exit func(dev *Device) kerr.Code) (DriverID, error) {
	st := r.lock.Acquire()
	for _, existing := range r.drivers {
		if existing.Name == name {
			r.lock.Release(st)
			return InvalidDriver, fmt.Errorf("kdevice: driver %q: %w", name, kerr.ErrAlreadyExists)
		}
	}
	id := r.nextDrv
	r.nextDrv++
	drv := &Driver{
		ID:         id,
		Name:       name,
		Version:    version,
		Supports:   supports,
		DefaultOps: ops,
		Probe:      probe,
		Init:       init,
		Exit:       exit,
	}
	r.drivers[id] = drv
	candidates := r.unboundDeviceSnapshotLocked()
	r.lock.Release(st)

	r.bindDriverAgainst(drv, candidates)
	return id, nil
}

// UnregisterDriver detaches the driver from every device it is bound to
// (calling Exit on each) and removes it from the driver table.
func (r *Registry) UnregisterDriver(id DriverID) error {
	st := r.lock.Acquire()
	drv, ok := r.drivers[id]
	if !ok {
		r.lock.Release(st)
		return fmt.Errorf("kdevice: driver id %d: %w", id, kerr.ErrNotFound)
	}
	var bound []*Device
	for _, dev := range r.devices {
		if dev.Driver == id {
			bound = append(bound, dev)
		}
	}
	delete(r.drivers, id)
	r.lock.Release(st)

	for _, dev := range bound {
		if drv.Exit != nil {
			_ = drv.Exit(dev).Err()
		}
		st := r.lock.Acquire()
		dev.Status = StatusUnbound
		dev.Driver = InvalidDriver
		dev.Ops = Ops{}
		r.lock.Release(st)
	}
	return nil
}

// FindDeviceByID, FindDeviceByName, FindDevicesByType and FindDriverFor are
// the lookup surface the rest of the core and test harnesses use.
func (r *Registry) FindDeviceByID(id DeviceID) (Device, error) {
	st := r.lock.Acquire()
	defer r.lock.Release(st)
	dev, err := r.lookupDeviceLocked(id)
	if err != nil {
		return Device{}, err
	}
	return *dev, nil
}

func (r *Registry) FindDeviceByName(name string) (Device, error) {
	st := r.lock.Acquire()
	defer r.lock.Release(st)
	for _, dev := range r.devices {
		if dev.Name == name {
			return *dev, nil
		}
	}
	return Device{}, fmt.Errorf("kdevice: device %q: %w", name, kerr.ErrNotFound)
}

// FindDevicesByType returns every registered device of the given kind, in
// no particular order. Unlike FindDeviceByID/FindDeviceByName, a type is
// not unique, so this can return more than one match (or none).
func (r *Registry) FindDevicesByType(kind Kind) []Device {
	st := r.lock.Acquire()
	defer r.lock.Release(st)
	var out []Device
	for _, dev := range r.devices {
		if dev.Kind == kind {
			out = append(out, *dev)
		}
	}
	return out
}

func (r *Registry) FindDriverFor(id DeviceID) (Driver, error) {
	st := r.lock.Acquire()
	defer r.lock.Release(st)
	dev, err := r.lookupDeviceLocked(id)
	if err != nil {
		return Driver{}, err
	}
	if dev.Driver == InvalidDriver {
		return Driver{}, fmt.Errorf("kdevice: device %q: %w", dev.Name, kerr.ErrNotFound)
	}
	return *r.drivers[dev.Driver], nil
}

func (r *Registry) ListDevices() []Device {
	st := r.lock.Acquire()
	defer r.lock.Release(st)
	out := make([]Device, 0, len(r.devices))
	for _, dev := range r.devices {
		out = append(out, *dev)
	}
	return out
}

func (r *Registry) lookupDeviceLocked(id DeviceID) (*Device, error) {
	dev, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("kdevice: device id %d: %w", id, kerr.ErrNotFound)
	}
	return dev, nil
}

func (r *Registry) driverSnapshotLocked() []*Driver {
	out := make([]*Driver, 0, len(r.drivers))
	for _, drv := range r.drivers {
		out = append(out, drv)
	}
	return out
}

func (r *Registry) unboundDeviceSnapshotLocked() []DeviceID {
	var out []DeviceID
	for id, dev := range r.devices {
		if dev.Status == StatusUnbound {
			out = append(out, id)
		}
	}
	return out
}

func removeID(ids []DeviceID, target DeviceID) []DeviceID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
