package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
)

var ErrNotSubscribed = errors.New("not subscribed")

// MemHub is an in-process realtime hub. Clients sharing one hub exchange
// presence and broadcasts without a network, which is how coordinator tests
// run whole multi-party scenarios in one process.
type MemHub struct {
	mu      sync.Mutex
	members map[string]map[*MemTransport]struct{}
}

func NewMemHub() *MemHub {
	return &MemHub{members: make(map[string]map[*MemTransport]struct{})}
}

// Client creates an unsubscribed transport bound to this hub.
func (h *MemHub) Client() *MemTransport {
	t := &MemTransport{hub: h, queue: make(chan func(), 256), done: make(chan struct{})}
	go t.deliver()
	return t
}

func (h *MemHub) join(topic string, t *MemTransport) {
	h.mu.Lock()
	if h.members[topic] == nil {
		h.members[topic] = make(map[*MemTransport]struct{})
	}
	h.members[topic][t] = struct{}{}
	h.mu.Unlock()
}

func (h *MemHub) drop(topic string, t *MemTransport) {
	h.mu.Lock()
	delete(h.members[topic], t)
	h.mu.Unlock()
	h.syncPresence(topic)
}

func (h *MemHub) peers(topic string) []*MemTransport {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*MemTransport, 0, len(h.members[topic]))
	for m := range h.members[topic] {
		out = append(out, m)
	}
	return out
}

// syncPresence pushes the full presence state of a topic to every member.
func (h *MemHub) syncPresence(topic string) {
	members := h.peers(topic)
	state := make(core.PresenceState)
	for _, m := range members {
		if rec := m.record(); rec != nil {
			state[rec.UserID] = *rec
		}
	}
	for _, m := range members {
		m.post(func(handlers core.RealtimeHandlers) {
			if handlers.OnPresenceSync != nil {
				cp := make(core.PresenceState, len(state))
				for id, rec := range state {
					cp[id] = rec
				}
				handlers.OnPresenceSync(cp)
			}
		})
	}
}

func (h *MemHub) broadcast(topic string, from *MemTransport, event string, payload []byte) {
	for _, m := range h.peers(topic) {
		if m == from {
			continue
		}
		body := make([]byte, len(payload))
		copy(body, payload)
		m.post(func(handlers core.RealtimeHandlers) {
			if handlers.OnBroadcast != nil {
				handlers.OnBroadcast(event, body)
			}
		})
	}
}

// MemTransport implements core.RealtimeTransport against a MemHub. Each
// client delivers callbacks on its own goroutine, in order.
type MemTransport struct {
	hub   *MemHub
	queue chan func()
	done  chan struct{}
	once  sync.Once

	mu         sync.Mutex
	topic      string
	subscribed bool
	handlers   core.RealtimeHandlers
	rec        *core.PresenceRecord
}

var _ core.RealtimeTransport = (*MemTransport)(nil)

func (t *MemTransport) deliver() {
	for {
		select {
		case <-t.done:
			return
		case fn := <-t.queue:
			fn()
		}
	}
}

func (t *MemTransport) post(fn func(core.RealtimeHandlers)) {
	t.mu.Lock()
	handlers := t.handlers
	subscribed := t.subscribed
	t.mu.Unlock()
	if !subscribed {
		return
	}
	select {
	case t.queue <- func() { fn(handlers) }:
	case <-t.done:
	}
}

func (t *MemTransport) record() *core.PresenceRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rec == nil {
		return nil
	}
	rec := *t.rec
	return &rec
}

func (t *MemTransport) Subscribe(ctx context.Context, topic string, h core.RealtimeHandlers) error {
	t.mu.Lock()
	if t.subscribed {
		t.mu.Unlock()
		return fmt.Errorf("already subscribed to %s", t.topic)
	}
	t.topic = topic
	t.handlers = h
	t.subscribed = true
	t.mu.Unlock()

	t.hub.join(topic, t)
	go func() {
		<-ctx.Done()
		_ = t.Leave()
	}()
	return nil
}

func (t *MemTransport) Track(rec core.PresenceRecord) error {
	t.mu.Lock()
	if !t.subscribed {
		t.mu.Unlock()
		return ErrNotSubscribed
	}
	topic := t.topic
	t.rec = &rec
	t.mu.Unlock()

	t.hub.syncPresence(topic)
	return nil
}

func (t *MemTransport) Broadcast(event string, payload any) error {
	t.mu.Lock()
	if !t.subscribed {
		t.mu.Unlock()
		return ErrNotSubscribed
	}
	topic := t.topic
	t.mu.Unlock()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding broadcast: %w", err)
	}
	t.hub.broadcast(topic, t, event, body)
	return nil
}

func (t *MemTransport) Leave() error {
	t.mu.Lock()
	if !t.subscribed {
		t.mu.Unlock()
		return nil
	}
	t.subscribed = false
	t.rec = nil
	topic := t.topic
	t.mu.Unlock()

	t.hub.drop(topic, t)
	t.once.Do(func() { close(t.done) })
	return nil
}

// UserOnline reports whether the hub currently sees id on a topic. Test
// helper.
func (h *MemHub) UserOnline(topic string, id domain.UserID) bool {
	for _, m := range h.peers(topic) {
		if rec := m.record(); rec != nil && rec.UserID == id {
			return true
		}
	}
	return false
}
