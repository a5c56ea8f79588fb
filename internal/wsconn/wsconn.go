// Package wsconn provides a production-grade WebSocket client with reconnection.
package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/fd1az/triarb-bot/internal/apperror"
)

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// Config holds WebSocket client configuration.
type Config struct {
	URL            string
	Name           string
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxReconnects  int // 0 = infinite
	PingInterval   time.Duration
	PongTimeout    time.Duration
	ReadTimeout    time.Duration // 0 = no read deadline
	WriteTimeout   time.Duration
	MaxMessageSize int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		MaxReconnects:  0,
		PingInterval:   30 * time.Second,
		PongTimeout:    10 * time.Second,
		ReadTimeout:    90 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 1 << 20,
	}
}

// MessageHandler receives every inbound message, in order, on the read goroutine.
type MessageHandler func(ctx context.Context, msg []byte)

// StateHandler is notified on every state transition.
type StateHandler func(state State, err error)

// Client is a WebSocket client that reconnects with exponential backoff after
// the connection drops. Connect itself does not retry; use ConnectWithRetry.
type Client struct {
	config Config

	// lifetime of the client, cancelled by Close
	ctx    context.Context
	cancel context.CancelFunc

	connMu sync.RWMutex
	conn   *websocket.Conn
	closed bool

	writeMu sync.Mutex

	stateMu sync.RWMutex
	state   State

	handlersMu sync.RWMutex
	onMessage  MessageHandler
	onState    StateHandler

	reconnects    atomic.Int64
	lastMessageAt atomic.Int64
	reconnecting  atomic.Bool

	closeOnce sync.Once
}

// New creates a new WebSocket client.
func New(config Config) (*Client, error) {
	if config.URL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("wsconn: empty url"))
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff < config.InitialBackoff {
		config.MaxBackoff = config.InitialBackoff
	}
	if config.PongTimeout <= 0 {
		config.PongTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config: config,
		ctx:    ctx,
		cancel: cancel,
		state:  StateDisconnected,
	}, nil
}

// OnMessage registers the inbound message handler.
func (c *Client) OnMessage(h MessageHandler) {
	c.handlersMu.Lock()
	c.onMessage = h
	c.handlersMu.Unlock()
}

// OnStateChange registers the state transition handler.
func (c *Client) OnStateChange(h StateHandler) {
	c.handlersMu.Lock()
	c.onState = h
	c.handlersMu.Unlock()
}

// Connect dials once.
func (c *Client) Connect(ctx context.Context) error {
	if c.isClosed() {
		return apperror.New(apperror.CodeWebSocketClosed, apperror.WithContext(c.config.Name))
	}

	c.setState(StateConnecting, nil)
	if err := c.dial(ctx); err != nil {
		c.setState(StateDisconnected, err)
		return err
	}
	return nil
}

// ConnectWithRetry dials until it succeeds, ctx is done, or MaxReconnects
// attempts have failed.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	backoff := c.config.InitialBackoff
	attempts := 0

	for {
		err := c.Connect(ctx)
		if err == nil {
			return nil
		}
		if apperror.HasCode(err, apperror.CodeWebSocketClosed) {
			return err
		}

		attempts++
		if c.config.MaxReconnects > 0 && attempts >= c.config.MaxReconnects {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.ctx.Done():
			return apperror.New(apperror.CodeWebSocketClosed, apperror.WithContext(c.config.Name))
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff, c.config.MaxBackoff)
	}
}

// Send writes a text message. Writes are serialized.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	conn := c.currentConn()
	if conn == nil {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithContext(c.config.Name+": not connected"))
	}

	if c.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.WriteTimeout)
		defer cancel()
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithCause(err),
			apperror.WithContext(c.config.Name))
	}
	return nil
}

// SendJSON marshals v and sends it as a text message.
func (c *Client) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperror.New(apperror.CodeInvalidFormat, apperror.WithCause(err))
	}
	return c.Send(ctx, data)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// IsConnected reports whether the client currently holds a live connection.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Reconnects returns the number of successful reconnections.
func (c *Client) Reconnects() int64 {
	return c.reconnects.Load()
}

// LastMessageAt returns when the last message arrived, zero if none.
func (c *Client) LastMessageAt() time.Time {
	ns := c.lastMessageAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Close gracefully closes the WebSocket connection and stops reconnecting.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.connMu.Lock()
		c.closed = true
		conn := c.conn
		c.conn = nil
		c.connMu.Unlock()

		c.cancel()

		if conn != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "client closing")
		}
		c.setState(StateClosed, nil)
	})
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.config.URL, nil)
	if err != nil {
		return apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext(c.config.Name))
	}
	if c.config.MaxMessageSize > 0 {
		conn.SetReadLimit(c.config.MaxMessageSize)
	}

	c.connMu.Lock()
	if c.closed {
		c.connMu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "client closed")
		return apperror.New(apperror.CodeWebSocketClosed, apperror.WithContext(c.config.Name))
	}
	c.conn = conn
	c.connMu.Unlock()

	c.setState(StateConnected, nil)

	go c.readLoop(conn)
	if c.config.PingInterval > 0 {
		go c.pingLoop(conn)
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		ctx := c.ctx
		var cancel context.CancelFunc = func() {}
		if c.config.ReadTimeout > 0 {
			ctx, cancel = context.WithTimeout(c.ctx, c.config.ReadTimeout)
		}
		_, data, err := conn.Read(ctx)
		cancel()

		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}

		c.lastMessageAt.Store(time.Now().UnixNano())

		c.handlersMu.RLock()
		h := c.onMessage
		c.handlersMu.RUnlock()
		if h != nil {
			h(c.ctx, data)
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if c.currentConn() != conn {
				return
			}
			ctx, cancel := context.WithTimeout(c.ctx, c.config.PongTimeout)
			err := conn.Ping(ctx)
			cancel()
			if err != nil {
				c.handleDisconnect(conn, err)
				return
			}
		}
	}
}

// handleDisconnect tears down conn if it is still current and schedules a
// reconnect. Errors from a connection that was already replaced are ignored.
func (c *Client) handleDisconnect(conn *websocket.Conn, cause error) {
	c.connMu.Lock()
	if c.closed || c.conn != conn {
		c.connMu.Unlock()
		return
	}
	c.conn = nil
	c.connMu.Unlock()

	_ = conn.CloseNow()

	var closeErr websocket.CloseError
	if errors.As(cause, &closeErr) && closeErr.Code == websocket.StatusNormalClosure {
		cause = apperror.New(apperror.CodeWebSocketClosed, apperror.WithCause(cause), apperror.WithContext(c.config.Name))
	}

	c.setState(StateReconnecting, cause)
	if c.reconnecting.CompareAndSwap(false, true) {
		go c.reconnectLoop()
	}
}

func (c *Client) reconnectLoop() {
	defer c.reconnecting.Store(false)

	backoff := c.config.InitialBackoff
	attempts := 0

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(backoff):
		}

		err := c.dial(c.ctx)
		if err == nil {
			c.reconnects.Add(1)
			return
		}
		if c.isClosed() {
			return
		}

		attempts++
		if c.config.MaxReconnects > 0 && attempts >= c.config.MaxReconnects {
			c.setState(StateDisconnected, err)
			return
		}
		c.setState(StateReconnecting, err)
		backoff = nextBackoff(backoff, c.config.MaxBackoff)
	}
}

func (c *Client) currentConn() *websocket.Conn {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn
}

func (c *Client) isClosed() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.closed
}

func (c *Client) setState(state State, err error) {
	c.stateMu.Lock()
	if c.state == state || c.state == StateClosed {
		c.stateMu.Unlock()
		return
	}
	c.state = state
	c.stateMu.Unlock()

	c.handlersMu.RLock()
	h := c.onState
	c.handlersMu.RUnlock()
	if h != nil {
		h(state, err)
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}
