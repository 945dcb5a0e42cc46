package hub

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wirechat/wirechat/internal/config"
	"github.com/wirechat/wirechat/internal/domain"
	"github.com/wirechat/wirechat/pkg/log"
)

// Client is one WebSocket connection. Reading and writing run on
// separate goroutines so a slow peer never blocks inbound handling.
type Client struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Session *domain.Session

	cfg       config.WebSocketConfig
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
}

func NewClient(id string, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	buf := cfg.SendBuffer
	if buf <= 0 {
		buf = 256
	}
	return &Client{
		ID:      id,
		Conn:    conn,
		Send:    make(chan []byte, buf),
		Session: domain.NewSession(id),
		cfg:     cfg,
		done:    make(chan struct{}),
	}
}

// ReadPump pumps inbound envelopes from the socket into handle. It owns
// the connection's read side and the liveness deadlines. onClose runs
// exactly once when the socket goes away, before the client is closed.
func (c *Client) ReadPump(handle func(*Client, []byte), onClose func(*Client)) {
	defer func() {
		onClose(c)
		c.Close()
	}()

	c.Conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Debug().Str(log.FieldClientID, c.ID).Err(err).Msg("websocket read failed")
			}
			break
		}

		c.Session.UpdateActivity()
		handle(c, message)
	}
}

// WritePump drains the Send channel to the socket and keeps the
// connection alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// SendEnvelope marshals v and queues it for delivery to this client
// only. Delivery is best-effort: a full queue or a closed client drops
// the envelope rather than blocking the caller.
func (c *Client) SendEnvelope(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.enqueue(data)
	return nil
}

// enqueue reports whether data was queued. The Send channel is never
// closed; Close signals the write pump via done instead, so concurrent
// enqueues cannot race a channel close.
func (c *Client) enqueue(data []byte) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Close tears the connection down. Idempotent and safe to call from any
// goroutine; the read pump unblocks because the underlying socket
// closes.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	return c.closed.Load()
}
