package kdevice

import (
	"fmt"

	"github.com/uintbeef/kcore/kerr"
)

// Open, Close, Read, Write and IOCtl are the registry's thin dispatch layer
// over a bound device's Ops vtable: look the device up, make sure it is
// bound, and forward. kerr.Code failures are converted to wrapped
// kerr.ErrDeviceError so callers outside a driver implementation only ever
// see the idiomatic error surface, per the error-handling design's split
// between the vtable convention and the rest of the core.
func (r *Registry) Open(id DeviceID) error {
	dev, fn, err := r.boundOp(id, func(d *Device) func(*Device) kerr.Code { return d.Ops.Open })
	if err != nil {
		return err
	}
	if fn == nil {
		return nil
	}
	return wrapCode(dev, fn(dev))
}

func (r *Registry) Close(id DeviceID) error {
	dev, fn, err := r.boundOp(id, func(d *Device) func(*Device) kerr.Code { return d.Ops.Close })
	if err != nil {
		return err
	}
	if fn == nil {
		return nil
	}
	return wrapCode(dev, fn(dev))
}

func (r *Registry) Read(id DeviceID, buf []byte, offset int64) (int, error) {
	st := r.lock.Acquire()
	dev, err := r.lookupDeviceLocked(id)
	if err == nil && dev.Status != StatusBound {
		err = fmt.Errorf("kdevice: device %q is not bound: %w", dev.Name, kerr.ErrNotFound)
	}
	var fn func(*Device, []byte, int64) (int, kerr.Code)
	if err == nil {
		fn = dev.Ops.Read
	}
	r.lock.Release(st)
	if err != nil {
		return 0, err
	}
	if fn == nil {
		return 0, fmt.Errorf("kdevice: device %q: %w", dev.Name, kerr.ErrUnsupportedOp)
	}
	n, code := fn(dev, buf, offset)
	return n, wrapCode(dev, code)
}

func (r *Registry) Write(id DeviceID, buf []byte, offset int64) (int, error) {
	st := r.lock.Acquire()
	dev, err := r.lookupDeviceLocked(id)
	if err == nil && dev.Status != StatusBound {
		err = fmt.Errorf("kdevice: device %q is not bound: %w", dev.Name, kerr.ErrNotFound)
	}
	var fn func(*Device, []byte, int64) (int, kerr.Code)
	if err == nil {
		fn = dev.Ops.Write
	}
	r.lock.Release(st)
	if err != nil {
		return 0, err
	}
	if fn == nil {
		return 0, fmt.Errorf("kdevice: device %q: %w", dev.Name, kerr.ErrUnsupportedOp)
	}
	n, code := fn(dev, buf, offset)
	return n, wrapCode(dev, code)
}

func (r *Registry) IOCtl(id DeviceID, cmd uint32, arg uintptr) error {
	st := r.lock.Acquire()
	dev, err := r.lookupDeviceLocked(id)
	if err == nil && dev.Status != StatusBound {
		err = fmt.Errorf("kdevice: device %q is not bound: %w", dev.Name, kerr.ErrNotFound)
	}
	var fn func(*Device, uint32, uintptr) kerr.Code
	if err == nil {
		fn = dev.Ops.IOCtl
	}
	r.lock.Release(st)
	if err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("kdevice: device %q: %w", dev.Name, kerr.ErrUnsupportedOp)
	}
	return wrapCode(dev, fn(dev, cmd, arg))
}

func (r *Registry) boundOp(id DeviceID, pick func(*Device) func(*Device) kerr.Code) (*Device, func(*Device) kerr.Code, error) {
	st := r.lock.Acquire()
	defer r.lock.Release(st)
	dev, err := r.lookupDeviceLocked(id)
	if err != nil {
		return nil, nil, err
	}
	if dev.Status != StatusBound {
		return nil, nil, fmt.Errorf("kdevice: device %q is not bound: %w", dev.Name, kerr.ErrNotFound)
	}
	return dev, pick(dev), nil
}

func wrapCode(dev *Device, code kerr.Code) error {
	if err := code.Err(); err != nil {
		return fmt.Errorf("kdevice: device %q: %w: %w", dev.Name, kerr.ErrDeviceError, err)
	}
	return nil
}
