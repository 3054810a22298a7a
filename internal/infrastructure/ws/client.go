package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/farmsight/relay/internal/infrastructure/auth"
	"github.com/gorilla/websocket"
)

// Client is one live transport session. Outbound envelopes go through a
// buffered channel drained by a single writer pump, which preserves
// per-connection delivery order.
type Client struct {
	ID       string
	Identity auth.Identity

	conn *connWrapper
	send chan *Envelope
	core *Core

	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(conn *websocket.Conn, id string, identity auth.Identity, core *Core) *Client {
	return &Client{
		ID:       id,
		Identity: identity,
		conn:     newConnWrapper(conn),
		send:     make(chan *Envelope, core.cfg.SendBuffer),
		core:     core,
		closed:   make(chan struct{}),
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *Client) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// trySend queues an envelope without blocking. It reports false when the
// client is closed or its buffer is full; the caller decides what a full
// buffer means (for the emitter: disconnect the slow subscriber).
func (c *Client) trySend(env *Envelope) bool {
	if c.IsClosed() {
		return false
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

func (c *Client) refreshReadDeadline() {
	_ = c.conn.conn.SetReadDeadline(time.Now().Add(c.core.cfg.PongWait))
}

// readPump parses control frames off the connection until it closes or goes
// idle. Its deferred cleanup is the single place a live connection is torn
// down, so registry state cannot outlive the transport.
func (c *Client) readPump() {
	defer c.core.disconnect(c)

	c.conn.conn.SetReadLimit(c.core.cfg.MaxMessageSize)
	c.refreshReadDeadline()
	c.conn.conn.SetPongHandler(func(string) error {
		c.refreshReadDeadline()
		c.core.registry.Touch(c.ID)
		return nil
	})

	for {
		_, raw, err := c.conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.core.logger.Warnw("read error", "connection", c.ID, "error", err)
			}
			return
		}

		// Any inbound frame counts as liveness.
		c.refreshReadDeadline()

		if len(raw) == 0 {
			continue
		}

		var frame ControlFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.trySend(NewMalformedError("control frame is not valid JSON"))
			continue
		}

		c.core.handleControl(c, frame)
	}
}

// writePump drains the send channel onto the socket and keeps the connection
// alive with periodic pings. Runs in its own goroutine per client.
func (c *Client) writePump() {
	pingPeriod := c.core.cfg.PongWait * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case env := <-c.send:
			_ = c.conn.conn.SetWriteDeadline(time.Now().Add(c.core.cfg.WriteTimeout))
			if err := c.conn.WriteJSON(env); err != nil {
				c.core.logger.Warnw("write error", "connection", c.ID, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.conn.SetWriteDeadline(time.Now().Add(c.core.cfg.WriteTimeout))
			if err := c.conn.WriteControl(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			_ = c.conn.conn.SetWriteDeadline(time.Now().Add(c.core.cfg.WriteTimeout))
			_ = c.conn.WriteControl(websocket.CloseMessage, []byte{})
			return
		}
	}
}
