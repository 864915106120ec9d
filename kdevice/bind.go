package kdevice

import (
	"context"

	microbatch "github.com/joeycumines/go-microbatch"
)

// bindJob is one (driver, candidate device) probe attempt submitted to the
// batcher; result is written back onto the job itself per microbatch's
// contract (JobResult.Wait never mutates Job, only the processor may).
type bindJob struct {
	driver *Driver
	device DeviceID
	bound  bool
}

// bindDriverAgainst walks candidates, probing drv against each one. The walk
// itself is a bounded-concurrency batch: probes run MaxConcurrency at a
// time, and the registry lock is only ever held for the duration of a single
// candidate's bind-or-release, never across the whole walk - exactly the
// "RegisterDriver's device-table walk... does not serialize behind a single
// registry lock hold longer than necessary" requirement.
func (r *Registry) bindDriverAgainst(drv *Driver, candidates []DeviceID) {
	if len(candidates) == 0 {
		return
	}
	batcher := microbatch.NewBatcher[*bindJob](&microbatch.BatcherConfig{
		MaxSize:        len(candidates),
		MaxConcurrency: 4,
	}, func(ctx context.Context, jobs []*bindJob) error {
		for _, j := range jobs {
			j.bound = r.tryBind(j.driver, j.device)
		}
		return nil
	})
	defer func() { _ = batcher.Close() }()

	ctx := context.Background()
	results := make([]*microbatch.JobResult[*bindJob], 0, len(candidates))
	for _, id := range candidates {
		res, err := batcher.Submit(ctx, &bindJob{driver: drv, device: id})
		if err != nil {
			return
		}
		results = append(results, res)
	}
	for _, res := range results {
		_ = res.Wait(ctx)
	}
}

// tryBind attempts to bind drv to device id: checks the (vendor,device,class)
// support list, calls Probe, and on success transitions the device to bound
// and calls Init. Each candidate's registry-state transition is its own
// short critical section.
func (r *Registry) tryBind(drv *Driver, id DeviceID) bool {
	st := r.lock.Acquire()
	dev, err := r.lookupDeviceLocked(id)
	if err != nil || dev.Status != StatusUnbound || !supports(drv.Supports, dev.IDs) {
		r.lock.Release(st)
		return false
	}
	r.lock.Release(st)

	if drv.Probe == nil {
		return false
	}
	code := drv.Probe(dev)
	if code.Err() != nil {
		if r.probeFailureLimiter.allow(dev.IDs) {
			r.log.Log(logEntryProbeFailed(drv, dev, code))
		}
		return false
	}

	st = r.lock.Acquire()
	if dev.Status != StatusUnbound {
		r.lock.Release(st)
		return false
	}
	dev.Status = StatusBound
	dev.Driver = drv.ID
	dev.Ops = drv.DefaultOps
	r.lock.Release(st)

	if drv.Init != nil {
		if initCode := drv.Init(dev); initCode.Err() != nil {
			st := r.lock.Acquire()
			dev.Status = StatusFailed
			r.lock.Release(st)
			return false
		}
	}
	r.log.Log(logEntryBound(drv, dev))
	return true
}

// supports reports whether dev's ids appear in the driver's support list.
// Zero fields in a Supports entry act as wildcards, letting a driver match
// on vendor+device alone, or on class alone (a generic class driver).
func supports(list []IDs, ids IDs) bool {
	for _, want := range list {
		if (want.Vendor == 0 || want.Vendor == ids.Vendor) &&
			(want.Device == 0 || want.Device == ids.Device) &&
			(want.Class == 0 || want.Class == ids.Class) {
			return true
		}
	}
	return false
}
