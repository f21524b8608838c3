package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/chatrelay/core/logger"
)

// State is the lifecycle phase of one client connection.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Client owns the full lifecycle of one websocket connection: registration,
// the concurrent read and write pumps, and exactly-once teardown on every
// exit path (read error, client close, slow-consumer abandonment, server
// shutdown).
type Client struct {
	id       uuid.UUID
	conn     *websocket.Conn
	identity *Identity
	registry *Registry
	ingress  *Ingress
	log      *slog.Logger
	cfg      Config

	send     chan []byte
	done     chan struct{} // closed by teardown, releases the write pump
	finished chan struct{} // closed when Run returns

	state        atomic.Int32
	teardownOnce sync.Once
}

// NewClient wraps an upgraded websocket connection. identity may be nil for
// anonymous connections. The client is in the Connecting state until Run
// registers it.
func NewClient(conn *websocket.Conn, identity *Identity, registry *Registry, ingress *Ingress, cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = logger.NewDiscard()
	}
	cfg = cfg.withDefaults()

	return &Client{
		id:       uuid.New(),
		conn:     conn,
		identity: identity,
		registry: registry,
		ingress:  ingress,
		log:      log,
		cfg:      cfg,
		send:     make(chan []byte, cfg.SendBuffer),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// ID returns the server-side connection identifier, used only for logging.
func (c *Client) ID() uuid.UUID { return c.id }

// Identity returns the resolved identity, or nil for anonymous connections.
func (c *Client) Identity() *Identity { return c.identity }

// State reports the current lifecycle phase.
func (c *Client) State() State { return State(c.state.Load()) }

// Run registers the client and blocks until the connection is closed. All
// resources are released exactly once before it returns, whatever the exit
// path.
func (c *Client) Run(ctx context.Context) {
	// Active before registered: a broadcast must never observe a registry
	// member that cannot accept sends yet.
	c.state.Store(int32(StateActive))
	c.registry.Add(c)
	connectedClients.Inc()

	c.log.Info("client connected",
		logger.Component("relay.client"),
		logger.ID("client_id", c.id),
		slog.Bool("authenticated", c.identity != nil))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	c.readPump(ctx)
	c.teardown()
	<-writerDone
	close(c.finished)
}

// enqueue offers a payload to the write pump without blocking. It reports
// false when the client is not Active or its send buffer is full; the caller
// decides whether that abandons the connection.
func (c *Client) enqueue(payload []byte) bool {
	if c.State() != StateActive {
		return false
	}
	select {
	case c.send <- payload:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// abandon tears the connection down immediately. Used when the client can
// no longer keep up with broadcasts.
func (c *Client) abandon() {
	c.beginDrain()
	c.teardown()
}

// shutdown drains the connection for server-initiated close: a close frame
// with the given code is sent and the client gets one write-deadline's grace
// to acknowledge before teardown is forced.
func (c *Client) shutdown(code int, reason string) {
	c.beginDrain()

	deadline := time.Now().Add(c.cfg.WriteWait)
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)

	select {
	case <-c.finished:
	case <-time.After(c.cfg.WriteWait):
	}
	c.teardown()
}

// wait blocks until Run has returned.
func (c *Client) wait() {
	<-c.finished
}

func (c *Client) beginDrain() {
	if !c.state.CompareAndSwap(int32(StateActive), int32(StateDraining)) {
		c.state.CompareAndSwap(int32(StateConnecting), int32(StateDraining))
	}
}

// teardown releases everything the client owns: registry membership, the
// transport, and the write pump. Safe to call from any goroutine, any
// number of times.
func (c *Client) teardown() {
	c.teardownOnce.Do(func() {
		c.beginDrain()
		c.registry.Remove(c)
		close(c.done)
		_ = c.conn.Close()
		c.state.Store(int32(StateClosed))
		connectedClients.Dec()

		c.log.Info("client disconnected",
			logger.Component("relay.client"),
			logger.ID("client_id", c.id))
	})
}

func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("unexpected connection close",
					logger.Component("relay.client"),
					logger.ID("client_id", c.id),
					logger.Error(err))
			}
			return
		}

		if _, err := c.ingress.Handle(ctx, c.identity, payload); err != nil {
			// Per-message failure: report to the sender, keep reading.
			c.log.Warn("message rejected",
				logger.Component("relay.client"),
				logger.ID("client_id", c.id),
				logger.Error(err))
			c.enqueue(rejectionFrame(err))
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.teardown()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.teardown()
				return
			}
		case <-c.done:
			return
		}
	}
}

type rejection struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// rejectionFrame builds the error frame sent to a client whose message was
// rejected, with a stable code distinguishable from broadcast frames.
func rejectionFrame(err error) []byte {
	code := "internal_error"
	switch {
	case errors.Is(err, ErrInvalidPayload):
		code = "invalid_payload"
	case errors.Is(err, ErrPersistence):
		code = "persistence_failed"
	case errors.Is(err, ErrQueuePublish):
		code = "broadcast_delayed"
	}

	data, _ := json.Marshal(rejection{Error: code, Message: err.Error()})
	return data
}

func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = def.PingPeriod
	}
	if cfg.PublishAttempts <= 0 {
		cfg.PublishAttempts = def.PublishAttempts
	}
	if cfg.PublishRetryInterval <= 0 {
		cfg.PublishRetryInterval = def.PublishRetryInterval
	}
	if cfg.FanoutErrorBackoff <= 0 {
		cfg.FanoutErrorBackoff = def.FanoutErrorBackoff
	}
	if cfg.FanoutShutdownTimeout <= 0 {
		cfg.FanoutShutdownTimeout = def.FanoutShutdownTimeout
	}
	return cfg
}
