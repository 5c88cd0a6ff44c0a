package domain

import (
	"testing"

	"overkiz2mqtt/pkg/overkiz"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformForWidgetWinsOverUIClass(t *testing.T) {

	require := require.New(t)

	// a siren with a SirenStatus widget is read only and must land on the
	// sensor platform even though its ui class maps to siren
	p, ok := PlatformFor(overkiz.Device{
		UIClass: overkiz.UIClassSiren,
		Widget:  overkiz.UIWidgetSirenStatus,
	})
	require.True(ok)
	require.Equal(PlatformSensor, p)

	p, ok = PlatformFor(overkiz.Device{
		UIClass: overkiz.UIClassSiren,
	})
	require.True(ok)
	require.Equal(PlatformSiren, p)
}

func TestPlatformForUIClassFallback(t *testing.T) {

	require := require.New(t)

	cases := map[overkiz.UIClass]Platform{
		overkiz.UIClassRollerShutter: PlatformCover,
		overkiz.UIClassAwning:        PlatformCover,
		overkiz.UIClassLight:         PlatformLight,
		overkiz.UIClassOnOff:         PlatformSwitch,
		overkiz.UIClassDoorLock:      PlatformLock,
	}
	for uiClass, want := range cases {
		p, ok := PlatformFor(overkiz.Device{UIClass: uiClass, Widget: "PositionableRollerShutter"})
		require.True(ok, "ui class %s must be mapped", uiClass)
		require.Equal(want, p)
	}
}

func TestPlatformForUnmappedDevice(t *testing.T) {

	// pods, protocol gateways and devices without classification are not
	// exposed
	_, ok := PlatformFor(overkiz.Device{UIClass: overkiz.UIClassPod, Widget: "Pod"})
	assert.False(t, ok)

	_, ok = PlatformFor(overkiz.Device{})
	assert.False(t, ok)
}

func TestBucketByPlatform(t *testing.T) {

	require := require.New(t)

	devices := []overkiz.Device{
		{DeviceURL: "io://1234-5678-9012/1", UIClass: overkiz.UIClassRollerShutter},
		{DeviceURL: "hue://1234-5678-9012/2", UIClass: overkiz.UIClassLight},
		{DeviceURL: "internal://1234-5678-9012/3", UIClass: overkiz.UIClassPod},
		{DeviceURL: "rts://1234-5678-9012/4", UIClass: overkiz.UIClassAwning},
	}

	buckets := BucketByPlatform(devices)
	require.Len(buckets, 2)
	require.Len(buckets[PlatformCover], 2)
	require.Len(buckets[PlatformLight], 1)

	// input order is kept inside a bucket
	require.Equal("io://1234-5678-9012/1", buckets[PlatformCover][0].DeviceURL)
	require.Equal("rts://1234-5678-9012/4", buckets[PlatformCover][1].DeviceURL)

	assert.Equal(t, []Platform{PlatformCover, PlatformLight}, Platforms(buckets))
}
