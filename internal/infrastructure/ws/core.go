package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/farmsight/relay/internal/infrastructure/auth"
	"github.com/farmsight/relay/internal/infrastructure/entitlement"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config holds the per-connection transport tuning knobs.
type Config struct {
	SendBuffer     int
	MaxMessageSize int64
	PongWait       time.Duration
	WriteTimeout   time.Duration
	ShutdownGrace  time.Duration
}

func (c Config) withDefaults() Config {
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 5 * time.Second
	}
	return c
}

// Core drives the connection lifecycle: authenticate, register and auto-join
// the tenant room, process control frames, clean up on disconnect and
// coordinate graceful shutdown.
type Core struct {
	cfg           Config
	registry      *Registry
	authenticator auth.Authenticator
	authorizer    entitlement.Authorizer
	logger        *zap.SugaredLogger
	upgrader      websocket.Upgrader

	wg       sync.WaitGroup
	shutdown chan struct{}
	once     sync.Once
}

func NewCore(cfg Config, authenticator auth.Authenticator, authorizer entitlement.Authorizer, logger *zap.SugaredLogger) *Core {
	return &Core{
		cfg:           cfg.withDefaults(),
		registry:      NewRegistry(),
		authenticator: authenticator,
		authorizer:    authorizer,
		logger:        logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		shutdown: make(chan struct{}),
	}
}

// Registry exposes read access for the emitter and the metrics reporter.
func (c *Core) Registry() *Registry {
	return c.registry
}

// Authenticate validates the handshake credential. No connection state exists
// until this has succeeded.
func (c *Core) Authenticate(credential string) (auth.Identity, error) {
	return c.authenticator.Authenticate(credential)
}

func (c *Core) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return c.upgrader.Upgrade(w, r, nil)
}

// Attach registers an authenticated connection, joins its tenant room, sends
// the acceptance notice and starts the read/write pumps.
func (c *Core) Attach(conn *websocket.Conn, identity auth.Identity) *Client {
	cl := newClient(conn, uuid.NewString(), identity, c)

	select {
	case <-c.shutdown:
		// Refuse connections once shutdown has begun.
		_ = cl.conn.WriteJSON(NewShutdownNotice("server is shutting down"))
		cl.Close()
		return nil
	default:
	}

	c.registry.Register(cl)
	cl.trySend(NewConnectionAccepted(cl.ID, TenantRoom(identity.TenantID)))

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		cl.writePump()
	}()
	go func() {
		defer c.wg.Done()
		cl.readPump()
	}()

	c.logger.Infow("connection attached",
		"connection", cl.ID,
		"user", identity.UserID,
		"tenant", identity.TenantID,
	)

	return cl
}

// disconnect removes the connection from all shared state and closes its
// transport. Safe to call more than once; only the first call does work.
func (c *Core) disconnect(cl *Client) {
	if c.registry.Unregister(cl.ID) {
		c.logger.Infow("connection detached", "connection", cl.ID, "user", cl.Identity.UserID)
	}
	cl.Close()
}

// SubscriberCount reports the current membership of a stream room.
func (c *Core) SubscriberCount(streamID string) int {
	return c.registry.MemberCount(StreamRoom(streamID))
}

func (c *Core) handleControl(cl *Client, frame ControlFrame) {
	switch frame.Action {
	case ActionPing:
		c.registry.Touch(cl.ID)
		cl.trySend(NewPong())

	case ActionSubscribe:
		if frame.StreamID == "" {
			cl.trySend(NewMalformedError("subscribe requires streamId"))
			return
		}
		if !c.authorizer.AllowStream(cl.Identity.TenantID, frame.StreamID) {
			c.logger.Warnw("subscription denied",
				"connection", cl.ID,
				"tenant", cl.Identity.TenantID,
				"stream", frame.StreamID,
			)
			cl.trySend(NewSubscriptionDenied(frame.StreamID))
			return
		}
		if err := c.registry.Join(cl.ID, StreamRoom(frame.StreamID)); err != nil {
			// Connection is already gone; nothing to acknowledge.
			return
		}
		cl.trySend(NewSubscriptionAck(frame.StreamID, StateSubscribed))

	case ActionUnsubscribe:
		if frame.StreamID == "" {
			cl.trySend(NewMalformedError("unsubscribe requires streamId"))
			return
		}
		if err := c.registry.Leave(cl.ID, StreamRoom(frame.StreamID)); err != nil {
			return
		}
		cl.trySend(NewSubscriptionAck(frame.StreamID, StateUnsubscribed))

	default:
		cl.trySend(NewMalformedError("unknown action"))
	}
}

// Shutdown broadcasts a shutdown notice to every active connection, waits up
// to the grace period for clients to close voluntarily, then forces the rest
// closed and waits for all pumps to finish (bounded by ctx).
func (c *Core) Shutdown(ctx context.Context) error {
	var err error
	c.once.Do(func() {
		close(c.shutdown)

		notice := NewShutdownNotice("server is shutting down")
		clients := c.registry.Clients()
		for _, cl := range clients {
			cl.trySend(notice)
		}
		c.logger.Infow("shutdown notice broadcast", "connections", len(clients))

		select {
		case <-c.pumpsDone():
		case <-time.After(c.cfg.ShutdownGrace):
			for _, cl := range c.registry.Clients() {
				c.disconnect(cl)
			}
		case <-ctx.Done():
		}

		select {
		case <-c.pumpsDone():
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return err
}

func (c *Core) pumpsDone() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	return done
}
