package signal

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Babel/internal/adapters/realtime"
	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
)

type recordedConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func (c *recordedConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make(core.Frame, len(f))
	copy(cp, f)
	c.frames = append(c.frames, cp)
	return nil
}

func (c *recordedConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *recordedConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// lastPresence decodes the most recent presence_sync the conn received.
func (c *recordedConn) lastPresence(t *testing.T) map[domain.UserID]core.PresenceRecord {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.frames) - 1; i >= 0; i-- {
		var msg realtime.WireMsg
		require.NoError(t, json.Unmarshal(c.frames[i], &msg))
		if msg.Type == realtime.MsgPresenceSync {
			return msg.State
		}
	}
	return nil
}

func (c *recordedConn) broadcasts() []realtime.WireMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []realtime.WireMsg
	for _, f := range c.frames {
		var msg realtime.WireMsg
		if json.Unmarshal(f, &msg) == nil && msg.Type == realtime.MsgBroadcast {
			out = append(out, msg)
		}
	}
	return out
}

func join(h *Hub, sid core.SessionID, topic string, id domain.UserID) *recordedConn {
	conn := &recordedConn{}
	h.Bind(sid, conn)
	h.Subscribe(sid, topic)
	h.Track(sid, core.PresenceRecord{UserID: id, Name: string(id)})
	return conn
}

func TestHubPresenceFanout(t *testing.T) {
	h := NewHub()
	alice := join(h, "s1", "room:talks", "alice")
	bob := join(h, "s2", "room:talks", "bob")

	state := alice.lastPresence(t)
	require.Len(t, state, 2)
	assert.Contains(t, state, domain.UserID("alice"))
	assert.Contains(t, state, domain.UserID("bob"))
	assert.Equal(t, state, bob.lastPresence(t))
	assert.Equal(t, 2, h.TopicCount("room:talks"))
}

func TestHubTopicsAreIsolated(t *testing.T) {
	h := NewHub()
	alice := join(h, "s1", "room:talks", "alice")
	join(h, "s2", "room:standup", "carol")

	state := alice.lastPresence(t)
	require.Len(t, state, 1)
	assert.NotContains(t, state, domain.UserID("carol"))
}

func TestHubLeaveResyncsTopic(t *testing.T) {
	h := NewHub()
	alice := join(h, "s1", "room:talks", "alice")
	bob := join(h, "s2", "room:talks", "bob")

	h.Leave("s2")

	assert.True(t, bob.isClosed())
	state := alice.lastPresence(t)
	require.Len(t, state, 1)
	assert.Contains(t, state, domain.UserID("alice"))
	assert.Equal(t, 1, h.TopicCount("room:talks"))
}

func TestHubBroadcastExcludesSender(t *testing.T) {
	h := NewHub()
	alice := join(h, "s1", "room:talks", "alice")
	bob := join(h, "s2", "room:talks", "bob")
	carol := join(h, "s3", "room:standup", "carol")

	payload := json.RawMessage(`{"kind":"offer","sdp":"v=0"}`)
	h.Broadcast("s1", "signal", payload)

	got := bob.broadcasts()
	require.Len(t, got, 1)
	assert.Equal(t, "signal", got[0].Event)
	assert.Equal(t, domain.UserID("alice"), got[0].From)
	assert.JSONEq(t, string(payload), string(got[0].Payload))

	assert.Empty(t, alice.broadcasts())
	assert.Empty(t, carol.broadcasts())
}

func TestHubRebindClosesOldConnection(t *testing.T) {
	h := NewHub()
	old := join(h, "s1", "room:talks", "alice")

	fresh := &recordedConn{}
	h.Bind("s1", fresh)

	assert.True(t, old.isClosed())
}

func TestHubIgnoresUnknownSessions(t *testing.T) {
	h := NewHub()
	h.Subscribe("ghost", "room:talks")
	h.Track("ghost", core.PresenceRecord{UserID: "ghost"})
	h.Broadcast("ghost", "signal", json.RawMessage(`{}`))
	h.Leave("ghost")
	assert.Zero(t, h.TopicCount("room:talks"))
}
