// Package mesh implements the peer-mesh coordinator: it owns the local media
// pipeline and the peer registry, elects connection initiators without glare,
// routes signaling, and keeps ephemeral peer state current.
package mesh

import (
	"sort"

	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
)

// peerEntry is one registry slot. Entries live only inside the coordinator
// loop goroutine; nothing outside the loop ever holds one.
type peerEntry struct {
	rec   core.PresenceRecord
	state core.ConnState
	link  core.MediaConnection
	gen   int

	micOn      bool
	cameraOn   bool
	handRaised bool
	presenting bool

	stream core.RemoteStream
}

// registry is the arena of peer entries. Mutated only through coordinator
// methods on the loop goroutine, so it needs no locking; consumers get
// snapshots.
type registry struct {
	entries map[domain.UserID]*peerEntry
}

func newRegistry() *registry {
	return &registry{entries: make(map[domain.UserID]*peerEntry)}
}

func (r *registry) get(id domain.UserID) (*peerEntry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

func (r *registry) put(id domain.UserID, e *peerEntry) {
	r.entries[id] = e
}

func (r *registry) remove(id domain.UserID) {
	delete(r.entries, id)
}

// transition applies a state change if legal and reports whether it took
// effect.
func (e *peerEntry) transition(to core.ConnState) bool {
	if !core.CanTransition(e.state, to) {
		return false
	}
	e.state = to
	return true
}

func (e *peerEntry) snapshot(id domain.UserID, hostID domain.UserID) core.RemotePeer {
	return core.RemotePeer{
		UserID:     id,
		Name:       e.rec.Name,
		Role:       e.rec.Role,
		State:      e.state,
		MicOn:      e.micOn,
		CameraOn:   e.cameraOn,
		HandRaised: e.handRaised,
		Presenting: e.presenting,
		IsHost:     id == hostID,
		Stream:     e.stream.Clone(),
	}
}

func (r *registry) snapshot(hostID domain.UserID) []core.RemotePeer {
	out := make([]core.RemotePeer, 0, len(r.entries))
	for id, e := range r.entries {
		out = append(out, e.snapshot(id, hostID))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
