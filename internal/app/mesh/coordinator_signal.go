package mesh

import (
	"encoding/json"

	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
	"github.com/rs/zerolog/log"
)

// initiates implements the glare-free rendezvous: for every pair exactly one
// side offers, chosen by lexicographic comparison of the two ids. Both sides
// run the same rule, so no arbiter is needed.
func (c *Coordinator) initiates(remote domain.UserID) bool {
	return c.identity.UserID < remote
}

func (c *Coordinator) handleBroadcast(event string, payload []byte) {
	switch event {
	case EventSignal:
		var env core.SignalEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			log.Error().Err(err).Str("module", "mesh").Msg("bad signal envelope")
			return
		}
		c.post(func() { c.handleSignal(env) })
	case EventState:
		var msg StateMsg
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Error().Err(err).Str("module", "mesh").Msg("bad state patch")
			return
		}
		c.post(func() { c.handleStatePatch(msg) })
	default:
		log.Debug().Str("module", "mesh").Str("event", event).Msg("unknown broadcast")
	}
}

// handlePresenceSync diffs the present id set against the registry: new ids
// get an entry (and, when the tie-break says so, an initiator link), departed
// ids are destroyed.
func (c *Coordinator) handlePresenceSync(state core.PresenceState) {
	changed := false
	for id, rec := range state {
		if id == c.identity.UserID {
			continue
		}
		if e, ok := c.reg.get(id); ok {
			// Re-announce with a new name, role or capability set.
			if e.rec != rec {
				e.rec = rec
				changed = true
			}
			continue
		}
		e := &peerEntry{rec: rec, state: core.ConnConnecting}
		c.reg.put(id, e)
		changed = true
		log.Info().
			Str("module", "mesh").
			Str("peer", string(id)).
			Bool("initiator", c.initiates(id)).
			Msg("peer discovered")
		if c.initiates(id) {
			c.openLink(id, e, true)
		}
	}
	for id := range c.reg.entries {
		if _, present := state[id]; !present {
			c.destroyPeer(id)
			changed = true
		}
	}
	if changed {
		c.notifyChange()
	}
}

// handleSignal routes an inbound envelope. Answers and candidates go to the
// existing link; an offer with no usable link creates the answerer side. An
// offer against a failed link replaces it: that is how the remote's explicit
// Reconnect lands here.
func (c *Coordinator) handleSignal(env core.SignalEnvelope) {
	if env.To != c.identity.UserID {
		return
	}
	e, ok := c.reg.get(env.From)
	if ok && e.link != nil && !e.link.IsClosed() && e.state != core.ConnFailed {
		if err := e.link.Signal(env.Payload); err != nil {
			// Scoped to this one peer edge; never propagates.
			log.Error().Err(err).
				Str("module", "mesh").
				Str("peer", string(env.From)).
				Str("kind", string(env.Payload.Kind)).
				Msg("applying signal")
		}
		return
	}
	if env.Payload.Kind != core.SignalOffer {
		log.Debug().
			Str("module", "mesh").
			Str("peer", string(env.From)).
			Str("kind", string(env.Payload.Kind)).
			Msg("dropping signal with no link")
		return
	}

	if !ok {
		e = &peerEntry{
			rec:   core.PresenceRecord{UserID: env.From, Role: env.Role},
			state: core.ConnConnecting,
		}
		c.reg.put(env.From, e)
	} else {
		if e.link != nil {
			old := e.link
			e.link = nil
			old.Close()
		}
		e.state = core.ConnConnecting
	}
	c.openLink(env.From, e, false)
	if e.link != nil {
		if err := e.link.Signal(env.Payload); err != nil {
			log.Error().Err(err).
				Str("module", "mesh").
				Str("peer", string(env.From)).
				Msg("applying inbound offer")
		}
	}
	c.notifyChange()
}

func (c *Coordinator) handleStatePatch(msg StateMsg) {
	e, ok := c.reg.get(msg.From)
	if !ok {
		return
	}
	msg.Patch.apply(e)
	c.notifyChange()
}

// handleTransportDown reacts to a signaling drop. The transport reconnects
// with backoff on its own; here, connections still negotiating are destroyed
// so the post-reconnect presence sync re-runs the tie-break for them.
// Connected links keep flowing: media does not depend on signaling.
func (c *Coordinator) handleTransportDown(err error) {
	log.Warn().Err(err).Str("module", "mesh").Msg("signaling transport down")
	c.notice(core.Notice{Kind: core.NoticeSignalingDown, Err: err})
	changed := false
	for id, e := range c.reg.entries {
		if e.state == core.ConnConnecting {
			c.destroyPeer(id)
			changed = true
		}
	}
	if changed {
		c.notifyChange()
	}
}

// openLink builds a MediaConnection for the entry. A construction or start
// failure marks only this entry failed.
func (c *Coordinator) openLink(id domain.UserID, e *peerEntry, initiator bool) {
	c.linkGen++
	e.gen = c.linkGen

	cfg := core.LinkConfig{
		Local:       c.identity.UserID,
		Remote:      id,
		Initiator:   initiator,
		ICEServers:  c.ice,
		LocalTracks: c.local.Tracks(),
	}
	link, err := c.deps.Connector(cfg, c.emit(id, e.gen))
	if err != nil {
		log.Error().Err(err).Str("module", "mesh").Str("peer", string(id)).Msg("creating peer link")
		c.failPeer(id, e, err)
		return
	}
	e.link = link
	if err := link.Start(c.runCtx); err != nil {
		log.Error().Err(err).Str("module", "mesh").Str("peer", string(id)).Msg("starting peer link")
		link.Close()
		e.link = nil
		c.failPeer(id, e, err)
	}
}

func (c *Coordinator) failPeer(id domain.UserID, e *peerEntry, err error) {
	if e.transition(core.ConnFailed) {
		c.notice(core.Notice{Kind: core.NoticePeerState, Peer: id, State: core.ConnFailed, Err: err})
		c.notifyChange()
	}
}

// handlePeerEvent is the single dispatch point for everything a peer link
// can report. Events from a replaced link generation are stale and dropped.
func (c *Coordinator) handlePeerEvent(le linkEvent) {
	ev := le.ev
	e, ok := c.reg.get(ev.Peer)
	if !ok || e.gen != le.gen {
		return
	}
	switch ev.Kind {
	case core.PeerSignal:
		c.broadcastSignal(ev.Peer, *ev.Signal)
	case core.PeerConnected:
		if e.transition(core.ConnConnected) {
			c.notice(core.Notice{Kind: core.NoticePeerState, Peer: ev.Peer, State: core.ConnConnected})
			c.notifyChange()
		}
	case core.PeerDisconnected:
		if e.transition(core.ConnDisconnected) {
			c.notice(core.Notice{Kind: core.NoticePeerState, Peer: ev.Peer, State: core.ConnDisconnected})
			c.notifyChange()
		}
	case core.PeerStream:
		e.stream = ev.Stream.Clone()
		c.notifyChange()
	case core.PeerClosed:
		c.destroyPeer(ev.Peer)
		c.notifyChange()
	case core.PeerFailed:
		// Isolation: mark this entry only. The entry stays in the registry,
		// surfaced as failed, until the user asks for a Reconnect.
		c.failPeer(ev.Peer, e, ev.Err)
	}
}

func (c *Coordinator) broadcastSignal(to domain.UserID, p core.SignalPayload) {
	env := core.SignalEnvelope{
		From:    c.identity.UserID,
		To:      to,
		Role:    c.identity.Role,
		Payload: p,
	}
	if err := c.deps.Transport.Broadcast(EventSignal, env); err != nil {
		log.Error().Err(err).Str("module", "mesh").Str("peer", string(to)).Msg("broadcasting signal")
	}
}

func (c *Coordinator) broadcastPatch(p StatePatch) {
	msg := StateMsg{From: c.identity.UserID, Patch: p}
	if err := c.deps.Transport.Broadcast(EventState, msg); err != nil {
		log.Error().Err(err).Str("module", "mesh").Msg("broadcasting state patch")
	}
}

// RestartICE renegotiates transport for a disconnected peer without tearing
// the link down: the link re-offers with the ICE restart flag and the entry
// goes back to connecting. Ignored unless the entry is disconnected with a
// live link; a failed entry needs Reconnect instead.
func (c *Coordinator) RestartICE(id domain.UserID) {
	c.post(func() {
		e, ok := c.reg.get(id)
		if !ok || e.state != core.ConnDisconnected || e.link == nil || e.link.IsClosed() {
			return
		}
		if err := e.link.RestartICE(); err != nil {
			log.Error().Err(err).Str("module", "mesh").Str("peer", string(id)).Msg("ice restart")
			c.failPeer(id, e, err)
			return
		}
		if e.transition(core.ConnConnecting) {
			c.notice(core.Notice{Kind: core.NoticePeerState, Peer: id, State: core.ConnConnecting})
			c.notifyChange()
		}
	})
}

// Reconnect recovers a failed peer link. Recovery is explicit, never
// automatic: the caller decides when to retry. The reconnecting side offers
// regardless of the tie-break; the remote replaces its failed entry when the
// offer arrives.
func (c *Coordinator) Reconnect(id domain.UserID) {
	c.post(func() {
		e, ok := c.reg.get(id)
		if !ok || e.state != core.ConnFailed {
			return
		}
		rec := e.rec
		c.destroyPeer(id)
		fresh := &peerEntry{rec: rec, state: core.ConnConnecting}
		c.reg.put(id, fresh)
		c.openLink(id, fresh, true)
		c.notifyChange()
	})
}
