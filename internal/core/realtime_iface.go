package core

import "context"

// RealtimeHandlers are the callbacks a transport invokes. All of them run on
// the transport's delivery goroutine; receivers must hand work off to their
// own loop.
type RealtimeHandlers struct {
	OnPresenceSync func(state PresenceState)
	OnBroadcast    func(event string, payload []byte)
	OnDisconnect   func(err error)
}

// RealtimeTransport is the topic-scoped broadcast + presence primitive the
// mesh consumes. At-least-once delivery and per-sender ordering are assumed;
// nothing stronger.
type RealtimeTransport interface {
	// Subscribe opens the topic. Handlers fire until Leave or ctx cancel.
	Subscribe(ctx context.Context, topic string, h RealtimeHandlers) error
	// Track announces (or re-announces) this participant's presence record.
	Track(rec PresenceRecord) error
	// Broadcast publishes an event to every subscriber of the topic.
	Broadcast(event string, payload any) error
	// Leave withdraws presence and closes the subscription. Idempotent.
	Leave() error
}
