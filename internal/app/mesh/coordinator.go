package mesh

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Broadcast event names on the realtime transport.
const (
	EventSignal = "signal"
	EventState  = "state"
)

var (
	ErrAlreadyJoined = errors.New("already joined")
	ErrNotJoined     = errors.New("not joined")
	ErrLeft          = errors.New("coordinator left")
)

// Deps wires the coordinator to its collaborators. DiscoverICE must never
// fail: on any discovery problem it returns a fallback STUN list.
type Deps struct {
	Transport   core.RealtimeTransport
	Connector   core.Connector
	Devices     core.Devices
	DiscoverICE func(ctx context.Context) []webrtc.ICEServer

	// OnChange receives immutable registry snapshots. OnNotice receives
	// upward notifications (observer mode, per-peer state, signaling drop).
	// Both are invoked on a dedicated dispatch goroutine, in order.
	OnChange func([]core.RemotePeer)
	OnNotice func(core.Notice)
}

// linkEvent tags a PeerEvent with the generation of the link that produced
// it, so events from a replaced link are dropped as stale.
type linkEvent struct {
	gen int
	ev  core.PeerEvent
}

// Coordinator owns local media, the peer registry and all signaling routing.
// All state lives on a single loop goroutine; public methods post closures
// into it, so no operation blocks another and no lock guards the registry.
type Coordinator struct {
	deps Deps

	ops    chan func()
	events chan linkEvent
	notif  chan func()
	done   chan struct{}

	leaveOnce sync.Once
	runCtx    context.Context
	runCancel context.CancelFunc

	// Everything below is owned by the loop goroutine.
	joined     bool
	joining    bool
	joinCancel context.CancelFunc
	room       domain.Room
	identity   domain.Identity
	observer   bool
	local      *core.LocalStream
	ice        []webrtc.ICEServer
	reg        *registry
	linkGen    int

	micOn      bool
	cameraOn   bool
	handRaised bool
	presenting bool
}

func New(deps Deps) *Coordinator {
	c := &Coordinator{
		deps:   deps,
		ops:    make(chan func(), 32),
		events: make(chan linkEvent, 256),
		notif:  make(chan func(), 128),
		done:   make(chan struct{}),
		reg:    newRegistry(),
	}
	c.runCtx, c.runCancel = context.WithCancel(context.Background())
	go c.loop()
	go c.notifier()
	return c
}

func (c *Coordinator) loop() {
	for {
		select {
		case <-c.done:
			return
		case fn := <-c.ops:
			fn()
		case ev := <-c.events:
			c.handlePeerEvent(ev)
		}
	}
}

func (c *Coordinator) notifier() {
	for {
		select {
		case <-c.done:
			return
		case fn := <-c.notif:
			fn()
		}
	}
}

// post schedules fn on the loop goroutine. No-op after Leave.
func (c *Coordinator) post(fn func()) {
	select {
	case c.ops <- fn:
	case <-c.done:
	}
}

// call runs fn on the loop goroutine and waits for it. Returns false when
// the coordinator shut down before fn could run.
func (c *Coordinator) call(fn func()) bool {
	ran := make(chan struct{})
	select {
	case c.ops <- func() { fn(); close(ran) }:
	case <-c.done:
		return false
	}
	select {
	case <-ran:
		return true
	case <-c.done:
		return false
	}
}

func (c *Coordinator) emit(peer domain.UserID, gen int) func(core.PeerEvent) {
	return func(ev core.PeerEvent) {
		ev.Peer = peer
		select {
		case c.events <- linkEvent{gen: gen, ev: ev}:
		case <-c.done:
		}
	}
}

func (c *Coordinator) dispatch(fn func()) {
	select {
	case c.notif <- fn:
	default:
		log.Warn().Str("module", "mesh").Msg("notification dropped")
	}
}

func (c *Coordinator) notifyChange() {
	if c.deps.OnChange == nil {
		return
	}
	snap := c.reg.snapshot(c.room.HostID)
	c.dispatch(func() { c.deps.OnChange(snap) })
}

func (c *Coordinator) notice(n core.Notice) {
	if c.deps.OnNotice == nil {
		return
	}
	c.dispatch(func() { c.deps.OnNotice(n) })
}

// Join acquires local media, discovers ICE servers, subscribes the realtime
// transport and announces presence. Device failure degrades to observer mode
// (nil local stream, receive only) instead of aborting; ICE discovery failure
// falls back to public STUN inside DiscoverICE. Leave cancels a Join still in
// flight and any partially acquired track is released.
func (c *Coordinator) Join(ctx context.Context, room domain.Room, identity domain.Identity, devCfg core.DeviceConfig) error {
	if err := identity.Role.Validate(); err != nil {
		return err
	}

	joinCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var regErr error
	ok := c.call(func() {
		if c.joined || c.joining {
			regErr = ErrAlreadyJoined
			return
		}
		c.joining = true
		c.joinCancel = cancel
		c.room = room
		c.identity = identity
	})
	if !ok {
		return ErrLeft
	}
	if regErr != nil {
		return regErr
	}
	fail := func(err error) error {
		c.call(func() { c.joining = false; c.joinCancel = nil })
		return err
	}

	stream, err := c.deps.Devices.Acquire(joinCtx, devCfg)
	if err != nil {
		if joinCtx.Err() != nil {
			return fail(joinCtx.Err())
		}
		var mediaErr *core.MediaAcquisitionError
		if !errors.As(err, &mediaErr) {
			mediaErr = &core.MediaAcquisitionError{Err: err}
		}
		log.Warn().Err(mediaErr).Str("module", "mesh").Msg("media unavailable, joining as observer")
		c.notice(core.Notice{Kind: core.NoticeObserverMode, Err: mediaErr})
		stream = nil
	}
	if joinCtx.Err() != nil {
		stream.StopAll()
		return fail(joinCtx.Err())
	}

	ice := c.deps.DiscoverICE(joinCtx)
	if joinCtx.Err() != nil {
		stream.StopAll()
		return fail(joinCtx.Err())
	}

	topic := "room:" + string(room.ID)
	handlers := core.RealtimeHandlers{
		OnPresenceSync: func(st core.PresenceState) {
			c.post(func() { c.handlePresenceSync(st) })
		},
		OnBroadcast: c.handleBroadcast,
		OnDisconnect: func(err error) {
			c.post(func() { c.handleTransportDown(err) })
		},
	}
	if err := c.deps.Transport.Subscribe(c.runCtx, topic, handlers); err != nil {
		stream.StopAll()
		return fail(fmt.Errorf("subscribing to %s: %w", topic, err))
	}

	rec := core.PresenceRecord{
		UserID: identity.UserID,
		Name:   identity.Name,
		Role:   identity.Role,
		Capabilities: core.Capabilities{
			Audio: stream != nil && stream.Audio != nil,
			Video: stream != nil && stream.Video != nil,
		},
	}
	if err := c.deps.Transport.Track(rec); err != nil {
		_ = c.deps.Transport.Leave()
		stream.StopAll()
		return fail(fmt.Errorf("announcing presence: %w", err))
	}

	committed := c.call(func() {
		if joinCtx.Err() != nil {
			stream.StopAll()
			return
		}
		c.joined = true
		c.joining = false
		c.joinCancel = nil
		c.observer = stream == nil
		c.local = stream
		c.ice = ice
		log.Info().
			Str("module", "mesh").
			Str("room", string(room.ID)).
			Str("user", string(identity.UserID)).
			Bool("observer", c.observer).
			Msg("joined room")
	})
	if !committed {
		stream.StopAll()
		return ErrLeft
	}
	if joinCtx.Err() != nil {
		return ErrLeft
	}
	return nil
}

// Leave tears the mesh down: cancels an in-flight Join, destroys every peer
// link, stops local tracks and withdraws the subscription. Idempotent.
func (c *Coordinator) Leave() {
	c.leaveOnce.Do(func() {
		c.call(func() {
			if c.joinCancel != nil {
				c.joinCancel()
				c.joinCancel = nil
			}
			for id := range c.reg.entries {
				c.destroyPeer(id)
			}
			if c.local != nil {
				c.local.StopAll()
				c.local = nil
			}
			if err := c.deps.Transport.Leave(); err != nil {
				log.Error().Err(err).Str("module", "mesh").Msg("transport leave")
			}
			c.joined = false
			log.Info().Str("module", "mesh").Msg("left room")
		})
		c.runCancel()
		close(c.done)
	})
}

// Snapshot returns an immutable copy of the peer registry.
func (c *Coordinator) Snapshot() []core.RemotePeer {
	var snap []core.RemotePeer
	c.call(func() { snap = c.reg.snapshot(c.room.HostID) })
	return snap
}

// destroyPeer removes the entry and closes its link. Stale Closed events
// from the dying link are dropped by the generation guard.
func (c *Coordinator) destroyPeer(id domain.UserID) {
	e, ok := c.reg.get(id)
	if !ok {
		return
	}
	c.reg.remove(id)
	if e.link != nil {
		e.link.Close()
	}
	log.Info().Str("module", "mesh").Str("peer", string(id)).Msg("peer destroyed")
}
