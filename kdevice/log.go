package kdevice

import (
	"time"

	catrate "github.com/joeycumines/go-catrate"

	"github.com/uintbeef/kcore/kerr"
	"github.com/uintbeef/kcore/klog"
)

// registryLogger is the narrow logging surface the registry needs; a plain
// klog.Logger satisfies it directly.
type registryLogger = klog.Logger

// probeFailureThrottle throttles repeated probe-failure log lines for the
// same (vendor,device) pair through the same rolling-rate shape ksched uses
// for its switch-rate diagnostic, so a misbehaving or absent driver does not
// flood the log once per candidate device on every RegisterDriver walk.
type probeFailureThrottle struct {
	limiter *catrate.Limiter
}

func newProbeFailureThrottle() probeFailureThrottle {
	return probeFailureThrottle{
		limiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 4,
			time.Minute: 20,
		}),
	}
}

// allow reports whether a probe-failure log line for ids should be emitted
// now, or suppressed because the same pair has already logged recently.
func (p probeFailureThrottle) allow(ids IDs) bool {
	if p.limiter == nil {
		return true
	}
	_, ok := p.limiter.Allow(ids)
	return ok
}

func logEntryProbeFailed(driver *Driver, dev *Device, code kerr.Code) klog.Entry {
	return klog.Entry{
		Level:    klog.LevelWarn,
		Category: "device",
		Message:  "driver probe failed",
		Fields: map[string]any{
			"driver": driver.Name,
			"device": dev.Name,
			"vendor": dev.IDs.Vendor,
			"code":   code.String(),
		},
	}
}

func logEntryBound(driver *Driver, dev *Device) klog.Entry {
	return klog.Entry{
		Level:    klog.LevelInfo,
		Category: "device",
		Message:  "device bound",
		Fields: map[string]any{
			"driver": driver.Name,
			"device": dev.Name,
		},
	}
}
