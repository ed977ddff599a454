package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Babel/internal/adapters/realtime"
	"github.com/dkeye/Babel/internal/core"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSController upgrades signaling websockets and pumps frames between the
// connection and the hub.
type WSController struct {
	Hub     *Hub
	Limiter *SubscribeLimiter
}

func NewWSController(hub *Hub) *WSController {
	return &WSController{
		Hub:     hub,
		Limiter: NewSubscribeLimiter(10, time.Minute),
	}
}

func (ctl *WSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := newWSConn(ws)
	ctl.Hub.Bind(sid, conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, sid, conn)
	}()
}

func (ctl *WSController) writePump(ctx context.Context, c *wsConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *WSController) readPump(ctx context.Context, sid core.SessionID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Hub.Leave(sid)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			ctl.handleFrame(sid, data)
		}
	}
}

func (ctl *WSController) handleFrame(sid core.SessionID, data []byte) {
	var msg realtime.WireMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad frame")
		return
	}

	switch msg.Type {
	case realtime.MsgSubscribe:
		if !ctl.Limiter.Allow(sid) {
			log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("subscribe rate limited")
			return
		}
		ctl.Hub.Subscribe(sid, msg.Topic)
	case realtime.MsgTrack:
		if msg.Record == nil {
			log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("track without record")
			return
		}
		ctl.Hub.Track(sid, *msg.Record)
	case realtime.MsgBroadcast:
		ctl.Hub.Broadcast(sid, msg.Event, msg.Payload)
	case realtime.MsgLeave:
		ctl.Hub.Leave(sid)
	default:
		log.Warn().Str("module", "signal").Str("type", msg.Type).Msg("unknown frame")
	}
}
