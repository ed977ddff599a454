package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Babel/internal/core"
)

const (
	writeDeadline  = 5 * time.Second
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

var ErrBackpressure = errors.New("backpressure")

// WSTransport is the production realtime transport: a websocket client
// speaking the signaling server's wire protocol. A dropped connection is
// redialed with capped exponential backoff; on reconnect the topic
// subscription and presence record are re-announced, which self-heals any
// state lost while offline.
type WSTransport struct {
	url string

	mu         sync.Mutex
	conn       *websocket.Conn
	send       chan core.Frame
	topic      string
	handlers   core.RealtimeHandlers
	rec        *core.PresenceRecord
	subscribed bool
	cancel     context.CancelFunc
}

var _ core.RealtimeTransport = (*WSTransport)(nil)

func NewWSTransport(url string) *WSTransport {
	return &WSTransport{url: url}
}

func (t *WSTransport) Subscribe(ctx context.Context, topic string, h core.RealtimeHandlers) error {
	t.mu.Lock()
	if t.subscribed {
		t.mu.Unlock()
		return fmt.Errorf("already subscribed to %s", t.topic)
	}
	t.topic = topic
	t.handlers = h
	t.subscribed = true
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	conn, err := t.dial(runCtx)
	if err != nil {
		t.mu.Lock()
		t.subscribed = false
		t.cancel = nil
		t.mu.Unlock()
		cancel()
		return fmt.Errorf("dialing %s: %w", t.url, err)
	}
	t.attach(runCtx, conn)
	go t.reconnectLoop(runCtx)
	return nil
}

func (t *WSTransport) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return nil, err
	}
	msg, err := encodeMsg(WireMsg{Type: MsgSubscribe, Topic: t.topic})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// attach installs a live connection and starts its pumps.
func (t *WSTransport) attach(ctx context.Context, conn *websocket.Conn) {
	t.mu.Lock()
	t.conn = conn
	t.send = make(chan core.Frame, 64)
	send := t.send
	rec := t.rec
	t.mu.Unlock()

	connCtx, connCancel := context.WithCancel(ctx)
	go t.writePump(connCtx, conn, send)
	go func() {
		defer connCancel()
		t.readPump(conn)
	}()

	if rec != nil {
		// Presence re-announce after a reconnect.
		if err := t.Track(*rec); err != nil {
			log.Warn().Err(err).Str("module", "realtime").Msg("presence re-announce failed")
		}
	}
}

// reconnectLoop watches the current connection and redials when it dies.
func (t *WSTransport) reconnectLoop(ctx context.Context) {
	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()

		if conn != nil {
			// Block until the reader goroutine observes a failure.
			<-t.waitDisconnect(ctx, conn)
			continue
		}

		log.Info().
			Str("module", "realtime").
			Dur("backoff", backoff).
			Msg("redialing signaling transport")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		next, err := t.dial(ctx)
		if err != nil {
			backoff = NextBackoff(backoff)
			continue
		}
		t.attach(ctx, next)
		backoff = initialBackoff
	}
}

// waitDisconnect returns a channel closed when conn stops being the active
// connection (reader exited).
func (t *WSTransport) waitDisconnect(ctx context.Context, conn *websocket.Conn) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.mu.Lock()
				current := t.conn
				t.mu.Unlock()
				if current != conn {
					return
				}
			}
		}
	}()
	return done
}

// NextBackoff doubles the delay up to the cap.
func NextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func (t *WSTransport) writePump(ctx context.Context, conn *websocket.Conn, send <-chan core.Frame) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-send:
			if !ok {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				log.Error().Err(err).Str("module", "realtime").Msg("writePump set deadline")
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "realtime").Msg("writePump write error")
				return
			}
		}
	}
}

func (t *WSTransport) readPump(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			wasCurrent := t.conn == conn
			if wasCurrent {
				t.conn = nil
			}
			handlers := t.handlers
			t.mu.Unlock()
			_ = conn.Close()
			if wasCurrent && handlers.OnDisconnect != nil {
				handlers.OnDisconnect(err)
			}
			return
		}
		t.handleFrame(data)
	}
}

func (t *WSTransport) handleFrame(data []byte) {
	var msg WireMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Error().Err(err).Str("module", "realtime").Msg("bad frame")
		return
	}
	t.mu.Lock()
	handlers := t.handlers
	t.mu.Unlock()

	switch msg.Type {
	case MsgPresenceSync:
		if handlers.OnPresenceSync != nil {
			state := make(core.PresenceState, len(msg.State))
			for id, rec := range msg.State {
				state[id] = rec
			}
			handlers.OnPresenceSync(state)
		}
	case MsgBroadcast:
		if handlers.OnBroadcast != nil {
			handlers.OnBroadcast(msg.Event, msg.Payload)
		}
	default:
		log.Debug().Str("module", "realtime").Str("type", msg.Type).Msg("unknown frame")
	}
}

// trySend queues a frame for the write pump, dropping with ErrBackpressure
// when the buffer is full.
func (t *WSTransport) trySend(frame core.Frame) error {
	t.mu.Lock()
	send := t.send
	conn := t.conn
	t.mu.Unlock()
	if conn == nil || send == nil {
		return ErrNotSubscribed
	}
	select {
	case send <- frame:
		return nil
	default:
		return ErrBackpressure
	}
}

func (t *WSTransport) Track(rec core.PresenceRecord) error {
	t.mu.Lock()
	t.rec = &rec
	subscribed := t.subscribed
	t.mu.Unlock()
	if !subscribed {
		return ErrNotSubscribed
	}
	msg, err := encodeMsg(WireMsg{Type: MsgTrack, Record: &rec})
	if err != nil {
		return err
	}
	return t.trySend(msg)
}

func (t *WSTransport) Broadcast(event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding broadcast: %w", err)
	}
	msg, err := encodeMsg(WireMsg{Type: MsgBroadcast, Event: event, Payload: body})
	if err != nil {
		return err
	}
	return t.trySend(msg)
}

func (t *WSTransport) Leave() error {
	t.mu.Lock()
	if !t.subscribed {
		t.mu.Unlock()
		return nil
	}
	t.subscribed = false
	t.rec = nil
	t.mu.Unlock()

	// Best effort: the server also treats the socket close as a leave.
	if msg, err := encodeMsg(WireMsg{Type: MsgLeave}); err == nil {
		_ = t.trySend(msg)
	}

	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	return nil
}
