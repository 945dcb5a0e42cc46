package hub

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/wirechat/wirechat/internal/config"
	"github.com/wirechat/wirechat/internal/domain"
)

func newTestClient() *Client {
	// No underlying socket: tests read delivered envelopes straight off
	// the Send channel instead of running the write pump.
	return NewClient(uuid.NewString(), nil, config.WebSocketConfig{SendBuffer: 8})
}

func drain(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case msg := <-c.Send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestHub_RegisterAndRoster(t *testing.T) {
	req := require.New(t)
	h := NewHub()

	req.Empty(h.Roster())

	// When two users register
	req.Nil(h.Register("alice", newTestClient()))
	req.Nil(h.Register("bob", newTestClient()))

	// Then the roster lists them in registration order
	req.Equal([]string{"alice", "bob"}, h.Roster())
	req.Equal(2, h.Len())
}

func TestHub_DuplicateLoginWins(t *testing.T) {
	req := require.New(t)
	h := NewHub()
	first := newTestClient()
	second := newTestClient()

	req.Nil(h.Register("alice", first))

	// The second login displaces the first and returns its handle.
	prev := h.Register("alice", second)
	req.Same(first, prev)

	// Exactly one roster entry, original position kept.
	req.Nil(h.Register("bob", newTestClient()))
	req.Equal([]string{"alice", "bob"}, h.Roster())
	req.Equal(2, h.Len())
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	req := require.New(t)
	h := NewHub()
	c := newTestClient()

	h.Register("alice", c)
	req.True(h.Unregister("alice", c))
	req.Empty(h.Roster())

	// Absent identifier: no-op, no panic.
	req.False(h.Unregister("alice", c))
	req.False(h.Unregister("ghost", c))
	req.Empty(h.Roster())
}

func TestHub_DisplacedClientCannotEvictSuccessor(t *testing.T) {
	req := require.New(t)
	h := NewHub()
	first := newTestClient()
	second := newTestClient()

	h.Register("alice", first)
	h.Register("alice", second)

	// The stale connection disconnects after being replaced.
	req.False(h.Unregister("alice", first))
	req.Equal([]string{"alice"}, h.Roster())

	req.True(h.Unregister("alice", second))
	req.Empty(h.Roster())
}

func TestHub_BroadcastFanOut(t *testing.T) {
	req := require.New(t)
	h := NewHub()
	clients := []*Client{newTestClient(), newTestClient(), newTestClient()}
	for i, c := range clients {
		h.Register([]string{"alice", "bob", "carol"}[i], c)
	}

	h.Broadcast(domain.NewMessageDeletedEnvelope("m-1"))

	// Exactly one delivery per registered open connection.
	for _, c := range clients {
		got := drain(c)
		req.Len(got, 1)

		var env domain.MessageDeletedEnvelope
		req.NoError(json.Unmarshal(got[0], &env))
		req.Equal(domain.MsgTypeMessageDeleted, env.Type)
		req.Equal("m-1", env.MessageID)
	}
}

func TestHub_BroadcastSkipsClosedClients(t *testing.T) {
	req := require.New(t)
	h := NewHub()
	open := newTestClient()
	stale := newTestClient()

	h.Register("alice", open)
	h.Register("bob", stale)
	stale.Close()

	// Must not panic or block; the closed client gets nothing.
	h.Broadcast(domain.NewUserListEnvelope(h.Roster()))

	req.Len(drain(open), 1)
	req.Empty(drain(stale))
}

func TestHub_BroadcastNeverBlocksOnSlowConsumer(t *testing.T) {
	req := require.New(t)
	h := NewHub()
	slow := NewClient(uuid.NewString(), nil, config.WebSocketConfig{SendBuffer: 1})
	fast := newTestClient()

	h.Register("alice", slow)
	h.Register("bob", fast)

	// Fill the slow consumer's queue, then broadcast twice more.
	h.Broadcast(domain.NewMessageDeletedEnvelope("m-1"))
	h.Broadcast(domain.NewMessageDeletedEnvelope("m-2"))
	h.Broadcast(domain.NewMessageDeletedEnvelope("m-3"))

	req.Len(drain(slow), 1)
	req.Len(drain(fast), 3)
}
