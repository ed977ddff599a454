package core

import (
	"context"

	"github.com/dkeye/Babel/internal/domain"
	"github.com/pion/webrtc/v4"
)

// MediaConnection is one direct link to a remote peer. Implementations emit
// lifecycle changes and locally generated signals as PeerEvents through the
// emit func supplied at construction; remote signals come back in through
// Signal. A MediaConnection never touches the registry or other links.
type MediaConnection interface {
	// Start binds the link lifetime to ctx and, on the initiator side,
	// kicks off offer creation.
	Start(ctx context.Context) error
	// Signal applies a remote offer, answer or trickled ICE candidate.
	// Duplicate and late candidates must be tolerated.
	Signal(p SignalPayload) error
	// ReplaceTrack swaps the outgoing track of the given kind in place,
	// without renegotiation when a sender for that kind already exists.
	// Attaching a kind with no sender yet may re-offer once. A nil track
	// detaches the sender's source.
	ReplaceTrack(kind TrackKind, track webrtc.TrackLocal) error
	// RestartICE begins an ICE restart on a disconnected link.
	RestartICE() error
	Close()
	IsClosed() bool
}

// LinkConfig describes one peer link to be built by a Connector.
type LinkConfig struct {
	Local       domain.UserID
	Remote      domain.UserID
	Initiator   bool
	ICEServers  []webrtc.ICEServer
	LocalTracks []webrtc.TrackLocal
}

// Connector builds MediaConnections. The production implementation wraps
// pion; tests substitute fakes.
type Connector func(cfg LinkConfig, emit func(PeerEvent)) (MediaConnection, error)
