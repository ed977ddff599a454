package core

import "github.com/dkeye/Babel/internal/domain"

// Frame is a raw binary payload.
type Frame []byte

// SessionID identifies one signaling connection on the server side.
type SessionID string

// SignalConnection abstracts a system messaging transport endpoint.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "candidate"
)

// SignalPayload is one negotiation message between a pair of peers:
// a session description or a trickled ICE candidate.
type SignalPayload struct {
	Kind          SignalKind `json:"kind"`
	SDP           string     `json:"sdp,omitempty"`
	Candidate     string     `json:"candidate,omitempty"`
	SDPMid        *string    `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16    `json:"sdpMLineIndex,omitempty"`
}

// SignalEnvelope wraps a payload with addressing. Transient, never persisted.
type SignalEnvelope struct {
	From    domain.UserID `json:"from"`
	To      domain.UserID `json:"to"`
	Role    domain.Role   `json:"role"`
	Payload SignalPayload `json:"payload"`
}
