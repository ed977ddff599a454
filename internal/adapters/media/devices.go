// Package media implements device enumeration and capture for the mesh
// client. The synthetic implementation generates silent audio and blank video
// RTP so the pipeline can run on headless hosts; a platform capturer plugs in
// behind the same core.Devices interface.
package media

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Babel/internal/core"
)

const (
	DefaultDeviceID = "default"

	audioFrameInterval = 20 * time.Millisecond
	videoFrameInterval = 33 * time.Millisecond
	audioClockRate     = 48000
	videoClockRate     = 90000
)

// SyntheticDevices implements core.Devices with generated media.
type SyntheticDevices struct{}

func NewSyntheticDevices() *SyntheticDevices { return &SyntheticDevices{} }

func (d *SyntheticDevices) Enumerate(_ context.Context, kind core.TrackKind) ([]core.DeviceInfo, error) {
	switch kind {
	case core.TrackAudio:
		return []core.DeviceInfo{{ID: DefaultDeviceID, Label: "Synthetic microphone", Kind: core.TrackAudio}}, nil
	case core.TrackVideo:
		return []core.DeviceInfo{{ID: DefaultDeviceID, Label: "Synthetic camera", Kind: core.TrackVideo}}, nil
	}
	return nil, fmt.Errorf("unknown device kind %q", kind)
}

func (d *SyntheticDevices) AcquireTrack(ctx context.Context, kind core.TrackKind, deviceID string) (*core.LocalTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if deviceID != "" && deviceID != DefaultDeviceID {
		return nil, &core.MediaAcquisitionError{Kind: kind, Err: fmt.Errorf("no such device %q", deviceID)}
	}

	var (
		capability webrtc.RTPCodecCapability
		interval   time.Duration
		step       uint32
	)
	switch kind {
	case core.TrackAudio:
		capability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: audioClockRate, Channels: 2}
		interval = audioFrameInterval
		step = uint32(audioClockRate / 50)
	case core.TrackVideo:
		capability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: videoClockRate}
		interval = videoFrameInterval
		step = uint32(videoClockRate / 30)
	default:
		return nil, &core.MediaAcquisitionError{Kind: kind, Err: fmt.Errorf("unknown kind %q", kind)}
	}

	trackID := fmt.Sprintf("synthetic-%s-%d", kind, rand.Uint32())
	track, err := webrtc.NewTrackLocalStaticRTP(capability, trackID, "babel-local")
	if err != nil {
		return nil, &core.MediaAcquisitionError{Kind: kind, Err: err}
	}

	pumpCtx, stop := context.WithCancel(context.Background())
	go pump(pumpCtx, track, interval, step)

	var once sync.Once
	return &core.LocalTrack{
		Track: track,
		Stop:  func() { once.Do(stop) },
	}, nil
}

// Acquire opens the configured devices. On cancellation mid-acquisition any
// track already acquired is released before returning.
func (d *SyntheticDevices) Acquire(ctx context.Context, cfg core.DeviceConfig) (*core.LocalStream, error) {
	stream := &core.LocalStream{}
	if cfg.Audio {
		t, err := d.AcquireTrack(ctx, core.TrackAudio, cfg.AudioDeviceID)
		if err != nil {
			return nil, err
		}
		stream.Audio = t
	}
	if err := ctx.Err(); err != nil {
		stream.StopAll()
		return nil, err
	}
	if cfg.Video {
		t, err := d.AcquireTrack(ctx, core.TrackVideo, cfg.VideoDeviceID)
		if err != nil {
			stream.StopAll()
			return nil, err
		}
		stream.Video = t
	}
	if err := ctx.Err(); err != nil {
		stream.StopAll()
		return nil, err
	}
	return stream, nil
}

// pump writes placeholder RTP frames until ctx is cancelled. Write errors
// before the track is bound to a sender are expected and ignored.
func pump(ctx context.Context, track *webrtc.TrackLocalStaticRTP, interval time.Duration, step uint32) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			SequenceNumber: uint16(rand.Uint32()),
			Timestamp:      rand.Uint32(),
			SSRC:           rand.Uint32(),
		},
		Payload: make([]byte, 16),
	}

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "media").Str("track", track.ID()).Msg("pump stopped")
			return
		case <-ticker.C:
			pkt.Header.SequenceNumber++
			pkt.Header.Timestamp += step
			if err := track.WriteRTP(pkt); err != nil {
				continue
			}
		}
	}
}
