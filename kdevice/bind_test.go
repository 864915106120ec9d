package kdevice

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uintbeef/kcore/kerr"
)

func TestBindDriverAgainst_ManyDevicesAllBindExactlyOnce(t *testing.T) {
	r := newTestRegistry(t)

	const n = 50
	ids := make([]DeviceID, n)
	for i := 0; i < n; i++ {
		id, err := r.RegisterDevice("dev", KindOther, IDs{Vendor: 7, Device: 7}, Resources{}, InvalidDevice)
		require.NoError(t, err)
		ids[i] = id
	}

	var probes atomic.Int64
	_, err := r.RegisterDriver("bulk", "1.0", []IDs{{Vendor: 7, Device: 7}}, Ops{}, func(dev *Device) kerr.Code {
		probes.Add(1)
		return kerr.OK
	}, nil, nil)
	require.NoError(t, err)

	require.EqualValues(t, n, probes.Load())
	for _, id := range ids {
		dev, err := r.FindDeviceByID(id)
		require.NoError(t, err)
		require.Equal(t, StatusBound, dev.Status)
	}
}

func TestSupports_Wildcards(t *testing.T) {
	require.True(t, supports([]IDs{{}}, IDs{Vendor: 1, Device: 2, Class: 3}))
	require.True(t, supports([]IDs{{Vendor: 1}}, IDs{Vendor: 1, Device: 2}))
	require.False(t, supports([]IDs{{Vendor: 1}}, IDs{Vendor: 2}))
	require.False(t, supports(nil, IDs{Vendor: 1}))
}
