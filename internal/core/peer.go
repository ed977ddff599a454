package core

import "github.com/dkeye/Babel/internal/domain"

// Capabilities advertises what media a participant can send.
type Capabilities struct {
	Audio bool `json:"audio"`
	Video bool `json:"video"`
}

// PresenceRecord is the transport-level announcement of one participant.
type PresenceRecord struct {
	UserID       domain.UserID `json:"userId"`
	Name         string        `json:"name,omitempty"`
	Role         domain.Role   `json:"role"`
	Capabilities Capabilities  `json:"capabilities"`
}

// PresenceState is the full present set for a topic, as delivered by a
// presence sync.
type PresenceState map[domain.UserID]PresenceRecord

// RemotePeer is an immutable snapshot of one registry entry. It is what
// renderers see; mutating it has no effect on the mesh.
type RemotePeer struct {
	UserID     domain.UserID
	Name       string
	Role       domain.Role
	State      ConnState
	MicOn      bool
	CameraOn   bool
	HandRaised bool
	Presenting bool
	IsHost     bool
	Stream     RemoteStream
}
