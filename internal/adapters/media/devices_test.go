package media

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Babel/internal/core"
)

func TestAcquireBothKinds(t *testing.T) {
	d := NewSyntheticDevices()

	stream, err := d.Acquire(context.Background(), core.DeviceConfig{Audio: true, Video: true})
	require.NoError(t, err)
	defer stream.StopAll()

	require.NotNil(t, stream.Audio)
	require.NotNil(t, stream.Video)
	assert.Len(t, stream.Tracks(), 2)
	assert.NotEqual(t, stream.Audio.Track.ID(), stream.Video.Track.ID())

	// Stop is safe to call repeatedly.
	stream.StopAll()
	stream.StopAll()
}

func TestAcquireUnknownDevice(t *testing.T) {
	d := NewSyntheticDevices()

	_, err := d.AcquireTrack(context.Background(), core.TrackAudio, "usb-mic-7")
	var mediaErr *core.MediaAcquisitionError
	require.ErrorAs(t, err, &mediaErr)
	assert.Equal(t, core.TrackAudio, mediaErr.Kind)

	_, err = d.Acquire(context.Background(), core.DeviceConfig{Audio: true, AudioDeviceID: "usb-mic-7"})
	assert.ErrorAs(t, err, &mediaErr)
}

func TestAcquireCancelledContext(t *testing.T) {
	d := NewSyntheticDevices()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Acquire(ctx, core.DeviceConfig{Audio: true})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEnumerate(t *testing.T) {
	d := NewSyntheticDevices()

	infos, err := d.Enumerate(context.Background(), core.TrackVideo)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, DefaultDeviceID, infos[0].ID)
	assert.Equal(t, core.TrackVideo, infos[0].Kind)
}
