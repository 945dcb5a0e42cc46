package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/wirechat/wirechat/internal/config"
	"github.com/wirechat/wirechat/internal/domain"
	"github.com/wirechat/wirechat/internal/hub"
	"github.com/wirechat/wirechat/internal/store"
)

type fixture struct {
	hub   *hub.Hub
	store *store.FileStore
	svc   RelayService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "messages.json"))
	require.NoError(t, err)
	h := hub.NewHub()
	return &fixture{hub: h, store: st, svc: NewRelayService(h, st)}
}

func newConn() *hub.Client {
	return hub.NewClient(uuid.NewString(), nil, config.WebSocketConfig{SendBuffer: 16})
}

// received drains and decodes everything queued for the client.
func received(t *testing.T, c *hub.Client) []map[string]any {
	t.Helper()
	var out []map[string]any
	for {
		select {
		case raw := <-c.Send:
			var env map[string]any
			require.NoError(t, json.Unmarshal(raw, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

func typesOf(envs []map[string]any) []string {
	var out []string
	for _, e := range envs {
		out = append(out, e["type"].(string))
	}
	return out
}

func TestRelay_LoginReturnsHistoryAndBroadcastsRoster(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	alice := newConn()

	req.NoError(f.svc.HandleLogin(ctx, alice, "alice"))

	envs := received(t, alice)
	req.Equal([]string{domain.MsgTypeLoginSuccess, domain.MsgTypeUserList}, typesOf(envs))

	// Empty history serializes as [], not null.
	req.Equal("alice", envs[0]["userId"])
	history, ok := envs[0]["historyMessages"].([]any)
	req.True(ok)
	req.Empty(history)

	req.Equal([]any{"alice"}, envs[1]["users"])
}

func TestRelay_SendBroadcastsToEveryoneIncludingSender(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	alice, bob := newConn(), newConn()
	req.NoError(f.svc.HandleLogin(ctx, alice, "alice"))
	req.NoError(f.svc.HandleLogin(ctx, bob, "bob"))
	received(t, alice)
	received(t, bob)

	// When alice sends a message
	req.NoError(f.svc.HandleChatMessage(ctx, alice, "hi"))

	// Then both peers receive the same message envelope
	for _, c := range []*hub.Client{alice, bob} {
		envs := received(t, c)
		req.Len(envs, 1)
		req.Equal(domain.MsgTypeMessage, envs[0]["type"])
		req.Equal("alice", envs[0]["userId"])
		req.Equal("hi", envs[0]["content"])
		req.NotEmpty(envs[0]["id"])
		req.NotEmpty(envs[0]["timestamp"])
	}

	// And a fresh login afterwards sees it in history
	carol := newConn()
	req.NoError(f.svc.HandleLogin(ctx, carol, "carol"))
	envs := received(t, carol)
	history := envs[0]["historyMessages"].([]any)
	req.Len(history, 1)
	req.Equal("hi", history[0].(map[string]any)["content"])
}

func TestRelay_DeleteBroadcastsAndShrinksStore(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	alice, bob := newConn(), newConn()
	req.NoError(f.svc.HandleLogin(ctx, alice, "alice"))
	req.NoError(f.svc.HandleLogin(ctx, bob, "bob"))
	req.NoError(f.svc.HandleChatMessage(ctx, alice, "hi"))

	msgID := f.store.All()[0].ID
	received(t, alice)
	received(t, bob)

	// Any logged-in session may delete; bob deletes alice's message.
	req.NoError(f.svc.HandleDeleteMessage(ctx, bob, msgID))

	for _, c := range []*hub.Client{alice, bob} {
		envs := received(t, c)
		req.Len(envs, 1)
		req.Equal(domain.MsgTypeMessageDeleted, envs[0]["type"])
		req.Equal(msgID, envs[0]["messageId"])
	}
	req.Zero(f.store.Len())
}

func TestRelay_DeleteMissingUnicastsErrorOnly(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	alice, bob := newConn(), newConn()
	req.NoError(f.svc.HandleLogin(ctx, alice, "alice"))
	req.NoError(f.svc.HandleLogin(ctx, bob, "bob"))
	received(t, alice)
	received(t, bob)

	req.NoError(f.svc.HandleDeleteMessage(ctx, alice, "no-such-id"))

	// Requester gets one error envelope; nobody else hears about it.
	envs := received(t, alice)
	req.Len(envs, 1)
	req.Equal(domain.MsgTypeError, envs[0]["type"])
	req.Empty(received(t, bob))
}

func TestRelay_UnauthenticatedIsolation(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	conn := newConn()

	// Sending before login yields exactly one error envelope ...
	req.NoError(f.svc.HandleChatMessage(ctx, conn, "sneaky"))
	envs := received(t, conn)
	req.Len(envs, 1)
	req.Equal(domain.MsgTypeError, envs[0]["type"])

	// ... the store is unchanged and the session stays unauthenticated.
	req.Zero(f.store.Len())
	req.False(conn.Session.IsActive())

	// Same for deletes.
	req.NoError(f.svc.HandleDeleteMessage(ctx, conn, "any"))
	envs = received(t, conn)
	req.Len(envs, 1)
	req.Equal(domain.MsgTypeError, envs[0]["type"])

	// The connection remains usable: a login still succeeds.
	req.NoError(f.svc.HandleLogin(ctx, conn, "alice"))
	req.True(conn.Session.IsActive())
}

func TestRelay_DuplicateLoginClosesPreviousConnection(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	first, second := newConn(), newConn()
	req.NoError(f.svc.HandleLogin(ctx, first, "alice"))
	req.NoError(f.svc.HandleLogin(ctx, second, "alice"))

	// One roster entry, stale handle closed.
	req.Equal([]string{"alice"}, f.hub.Roster())
	req.True(first.Closed())
	req.False(second.Closed())

	// The displaced connection's disconnect neither evicts the
	// successor nor announces a roster change.
	received(t, second)
	req.NoError(f.svc.HandleDisconnect(ctx, first))
	req.Equal([]string{"alice"}, f.hub.Roster())
	req.Empty(received(t, second))
}

func TestRelay_DisconnectBroadcastsRoster(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	alice, bob := newConn(), newConn()
	req.NoError(f.svc.HandleLogin(ctx, alice, "alice"))
	req.NoError(f.svc.HandleLogin(ctx, bob, "bob"))
	received(t, alice)
	received(t, bob)

	req.NoError(f.svc.HandleDisconnect(ctx, alice))

	envs := received(t, bob)
	req.Len(envs, 1)
	req.Equal(domain.MsgTypeUserList, envs[0]["type"])
	req.Equal([]any{"bob"}, envs[0]["users"])

	// Disconnecting a never-logged-in connection announces nothing.
	req.NoError(f.svc.HandleDisconnect(ctx, newConn()))
	req.Empty(received(t, bob))
}

func TestRelay_StoreFailureSendsErrorNotFalseSuccess(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	alice, bob := newConn(), newConn()
	req.NoError(f.svc.HandleLogin(ctx, alice, "alice"))
	req.NoError(f.svc.HandleLogin(ctx, bob, "bob"))

	failing := &failingStore{}
	svc := NewRelayService(f.hub, failing)
	received(t, alice)
	received(t, bob)

	err := svc.HandleChatMessage(ctx, alice, "doomed")
	req.Error(err)
	req.ErrorIs(err, store.ErrStoreUnavailable)

	// The sender is told, nobody gets a broadcast of the lost message.
	envs := received(t, alice)
	req.Len(envs, 1)
	req.Equal(domain.MsgTypeError, envs[0]["type"])
	req.Empty(received(t, bob))
}

type failingStore struct{}

func (f *failingStore) Append(domain.Message) error { return store.ErrStoreUnavailable }
func (f *failingStore) Remove(string) (bool, error) { return false, store.ErrStoreUnavailable }
func (f *failingStore) All() []domain.Message       { return []domain.Message{} }
func (f *failingStore) Len() int                    { return 0 }
