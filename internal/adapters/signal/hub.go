// Package signal is the server side of the realtime transport: a websocket
// hub with topic-scoped presence and broadcast fanout.
package signal

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Babel/internal/adapters/realtime"
	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
)

type member struct {
	topic string
	conn  core.SignalConnection
	rec   *core.PresenceRecord
}

// Hub owns every connected session. Presence changes fan a full sync out to
// the topic; broadcasts go to every other member of the sender's topic.
type Hub struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*member
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[core.SessionID]*member)}
}

// Bind registers a fresh connection with no topic yet.
func (h *Hub) Bind(sid core.SessionID, conn core.SignalConnection) {
	h.mu.Lock()
	if old, ok := h.sessions[sid]; ok {
		old.conn.Close()
	}
	h.sessions[sid] = &member{conn: conn}
	h.mu.Unlock()
	log.Info().Str("module", "signal.hub").Str("sid", string(sid)).Msg("session bound")
}

func (h *Hub) Subscribe(sid core.SessionID, topic string) {
	h.mu.Lock()
	m, ok := h.sessions[sid]
	if !ok {
		h.mu.Unlock()
		return
	}
	prev := m.topic
	m.topic = topic
	m.rec = nil
	h.mu.Unlock()

	log.Info().Str("module", "signal.hub").Str("sid", string(sid)).Str("topic", topic).Msg("subscribed")
	if prev != "" && prev != topic {
		h.syncTopic(prev)
	}
	h.syncTopic(topic)
}

func (h *Hub) Track(sid core.SessionID, rec core.PresenceRecord) {
	h.mu.Lock()
	m, ok := h.sessions[sid]
	if !ok || m.topic == "" {
		h.mu.Unlock()
		return
	}
	m.rec = &rec
	topic := m.topic
	h.mu.Unlock()

	h.syncTopic(topic)
}

// Broadcast fans an event out to every other member of the sender's topic.
func (h *Hub) Broadcast(sid core.SessionID, event string, payload json.RawMessage) {
	h.mu.RLock()
	sender, ok := h.sessions[sid]
	if !ok || sender.topic == "" {
		h.mu.RUnlock()
		return
	}
	topic := sender.topic
	var from domain.UserID
	if sender.rec != nil {
		from = sender.rec.UserID
	}
	targets := make([]core.SignalConnection, 0, len(h.sessions))
	for other, m := range h.sessions {
		if other == sid || m.topic != topic {
			continue
		}
		targets = append(targets, m.conn)
	}
	h.mu.RUnlock()

	frame, err := json.Marshal(realtime.WireMsg{
		Type:    realtime.MsgBroadcast,
		Event:   event,
		From:    from,
		Payload: payload,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "signal.hub").Msg("encoding broadcast")
		return
	}
	for _, conn := range targets {
		if err := conn.TrySend(core.Frame(frame)); err != nil {
			log.Warn().Err(err).Str("module", "signal.hub").Msg("broadcast send dropped")
		}
	}
}

// Leave removes the session and resyncs its topic. Safe to call for unknown
// sessions.
func (h *Hub) Leave(sid core.SessionID) {
	h.mu.Lock()
	m, ok := h.sessions[sid]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, sid)
	topic := m.topic
	h.mu.Unlock()

	m.conn.Close()
	log.Info().Str("module", "signal.hub").Str("sid", string(sid)).Msg("session left")
	if topic != "" {
		h.syncTopic(topic)
	}
}

// syncTopic pushes the full presence state of one topic to all its members.
func (h *Hub) syncTopic(topic string) {
	h.mu.RLock()
	state := make(map[domain.UserID]core.PresenceRecord)
	conns := make([]core.SignalConnection, 0)
	for _, m := range h.sessions {
		if m.topic != topic {
			continue
		}
		conns = append(conns, m.conn)
		if m.rec != nil {
			state[m.rec.UserID] = *m.rec
		}
	}
	h.mu.RUnlock()

	frame, err := json.Marshal(realtime.WireMsg{
		Type:  realtime.MsgPresenceSync,
		Topic: topic,
		State: state,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "signal.hub").Msg("encoding presence sync")
		return
	}
	for _, conn := range conns {
		if err := conn.TrySend(core.Frame(frame)); err != nil {
			log.Warn().Err(err).Str("module", "signal.hub").Msg("presence sync dropped")
		}
	}
}

// TopicCount reports how many sessions sit on a topic.
func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, m := range h.sessions {
		if m.topic == topic {
			n++
		}
	}
	return n
}
