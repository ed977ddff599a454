package core

import "fmt"

// ConnState is the lifecycle state of one peer link.
type ConnState int32

const (
	ConnConnecting ConnState = iota
	ConnConnected
	ConnDisconnected
	ConnFailed
)

func (s ConnState) String() string {
	switch s {
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnDisconnected:
		return "disconnected"
	case ConnFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// CanTransition reports whether from -> to is a legal move. Transitions are
// forward-only except disconnected -> connecting (ICE restart); failed is
// terminal until the owning registry destroys the entry.
func CanTransition(from, to ConnState) bool {
	if from == to {
		return false
	}
	switch from {
	case ConnConnecting:
		return to == ConnConnected || to == ConnDisconnected || to == ConnFailed
	case ConnConnected:
		return to == ConnDisconnected || to == ConnFailed
	case ConnDisconnected:
		// Transient drops recover straight to connected; an ICE restart goes
		// back through connecting first.
		return to == ConnConnecting || to == ConnConnected || to == ConnFailed
	case ConnFailed:
		return false
	}
	return false
}
