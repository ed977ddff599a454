// Package realtime implements the topic-scoped broadcast + presence
// transport consumed by the mesh: a websocket client for production and an
// in-process hub for tests and single-host runs.
package realtime

import (
	"encoding/json"

	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
)

// Message types shared by the websocket client and the signaling server.
const (
	MsgSubscribe    = "subscribe"
	MsgTrack        = "track"
	MsgBroadcast    = "broadcast"
	MsgLeave        = "leave"
	MsgPresenceSync = "presence_sync"
)

// WireMsg is the single envelope on the signaling websocket.
type WireMsg struct {
	Type    string                                 `json:"type"`
	Topic   string                                 `json:"topic,omitempty"`
	Record  *core.PresenceRecord                   `json:"record,omitempty"`
	Event   string                                 `json:"event,omitempty"`
	From    domain.UserID                          `json:"from,omitempty"`
	Payload json.RawMessage                        `json:"payload,omitempty"`
	State   map[domain.UserID]core.PresenceRecord `json:"state,omitempty"`
}

func encodeMsg(m WireMsg) (core.Frame, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}
