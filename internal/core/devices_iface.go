package core

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// MediaAcquisitionError means a capture device was denied or unavailable.
// It is non-fatal: the coordinator degrades to observer mode.
type MediaAcquisitionError struct {
	Kind TrackKind
	Err  error
}

func (e *MediaAcquisitionError) Error() string {
	return fmt.Sprintf("acquiring %s device: %v", e.Kind, e.Err)
}

func (e *MediaAcquisitionError) Unwrap() error { return e.Err }

type DeviceInfo struct {
	ID    string
	Label string
	Kind  TrackKind
}

// DeviceConfig selects which devices to open at join. Empty ids mean the
// platform default.
type DeviceConfig struct {
	Audio         bool
	Video         bool
	AudioDeviceID string
	VideoDeviceID string
}

// LocalTrack pairs an outgoing track with the func that releases its source.
// Only the coordinator may call Stop.
type LocalTrack struct {
	Track webrtc.TrackLocal
	Stop  func()
}

// LocalStream is the local capture pipeline. Owned exclusively by the
// coordinator; everything else holds read-only references to the tracks.
type LocalStream struct {
	Audio *LocalTrack
	Video *LocalTrack
}

func (s *LocalStream) Tracks() []webrtc.TrackLocal {
	if s == nil {
		return nil
	}
	var out []webrtc.TrackLocal
	if s.Audio != nil {
		out = append(out, s.Audio.Track)
	}
	if s.Video != nil {
		out = append(out, s.Video.Track)
	}
	return out
}

func (s *LocalStream) StopAll() {
	if s == nil {
		return
	}
	if s.Audio != nil && s.Audio.Stop != nil {
		s.Audio.Stop()
	}
	if s.Video != nil && s.Video.Stop != nil {
		s.Video.Stop()
	}
}

// Devices abstracts platform device listing and capture. Acquire must release
// any partially acquired track before returning when ctx is cancelled
// mid-acquisition.
type Devices interface {
	Enumerate(ctx context.Context, kind TrackKind) ([]DeviceInfo, error)
	Acquire(ctx context.Context, cfg DeviceConfig) (*LocalStream, error)
	AcquireTrack(ctx context.Context, kind TrackKind, deviceID string) (*LocalTrack, error)
}
