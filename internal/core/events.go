package core

import (
	"fmt"

	"github.com/dkeye/Babel/internal/domain"
)

type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

type RemoteTrack struct {
	ID   string
	Kind TrackKind
}

// RemoteStream is the media carried by one peer link: a stream id plus the
// set of tracks seen so far. Values are copied into snapshots, never shared.
type RemoteStream struct {
	ID     string
	Tracks []RemoteTrack
}

func (s RemoteStream) Clone() RemoteStream {
	out := RemoteStream{ID: s.ID}
	if len(s.Tracks) > 0 {
		out.Tracks = make([]RemoteTrack, len(s.Tracks))
		copy(out.Tracks, s.Tracks)
	}
	return out
}

func (s RemoteStream) VideoTrackCount() int {
	n := 0
	for _, t := range s.Tracks {
		if t.Kind == TrackVideo {
			n++
		}
	}
	return n
}

type PeerEventKind int

const (
	// PeerSignal carries a locally generated offer/answer/candidate that the
	// coordinator must forward to the remote side.
	PeerSignal PeerEventKind = iota
	PeerConnected
	PeerDisconnected
	PeerStream
	PeerClosed
	PeerFailed
)

func (k PeerEventKind) String() string {
	switch k {
	case PeerSignal:
		return "signal"
	case PeerConnected:
		return "connected"
	case PeerDisconnected:
		return "disconnected"
	case PeerStream:
		return "stream"
	case PeerClosed:
		return "closed"
	case PeerFailed:
		return "failed"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// PeerEvent is the single inbound event variant for one peer link. Every
// transition a link can cause funnels through this type so the coordinator
// dispatches in one place.
type PeerEvent struct {
	Peer   domain.UserID
	Kind   PeerEventKind
	Signal *SignalPayload // set when Kind == PeerSignal
	Stream *RemoteStream  // set when Kind == PeerStream
	Err    error          // set when Kind == PeerFailed
}

type NoticeKind int

const (
	NoticeObserverMode NoticeKind = iota
	NoticePeerState
	NoticeSignalingDown
)

// Notice is an upward notification for renderers/banners. It carries copies
// only, never live handles.
type Notice struct {
	Kind  NoticeKind
	Peer  domain.UserID
	State ConnState
	Err   error
}
