// internal/realtime/client.go
// Websocket STOMP client. Maintains one broker connection, re-establishes it
// after drops, and replays the subscription set on every (re)connect so the
// session layer never sees the gap.

package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20

	stompVersion = "1.2"
	// DefaultReconnectDelay paces reconnect attempts after a drop.
	DefaultReconnectDelay = 3 * time.Second
	connectTimeout        = 10 * time.Second
)

var ErrClosed = errors.New("realtime client closed")

// Handler receives the body of every MESSAGE frame on one destination.
type Handler func(body []byte)

type subscription struct {
	id      string
	dest    string
	handler Handler
}

// Client is a reconnecting STOMP-over-websocket subscriber/publisher.
// Handlers run on the read loop goroutine; they must not block.
type Client struct {
	url            string
	token          string
	log            zerolog.Logger
	reconnectDelay time.Duration
	onConnect      func()

	mu     sync.Mutex
	conn   *websocket.Conn
	subs   map[string]*subscription // keyed by destination
	closed bool

	writeMu sync.Mutex
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithReconnectDelay overrides the pause between reconnect attempts.
func WithReconnectDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.reconnectDelay = d
		}
	}
}

// WithConnectHook runs fn after every successful handshake, once the
// subscription set has been replayed.
func WithConnectHook(fn func()) ClientOption {
	return func(c *Client) { c.onConnect = fn }
}

// NewClient returns a client for the broker at url, authenticating every
// connection with the bearer token.
func NewClient(url, token string, log zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		url:            url,
		token:          token,
		log:            log.With().Str("component", "realtime").Logger(),
		reconnectDelay: DefaultReconnectDelay,
		subs:           make(map[string]*subscription),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start connects and keeps the connection alive until ctx ends or Close is
// called. The first handshake is synchronous so callers can subscribe with a
// live connection; later reconnects happen in the background.
func (c *Client) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return ErrClosed
	}
	c.cancel = cancel
	c.mu.Unlock()

	conn, err := c.connect(runCtx)
	if err != nil {
		cancel()
		return err
	}

	c.wg.Add(1)
	go c.run(runCtx, conn)
	return nil
}

// run owns the connection: read until it drops, then redial forever.
func (c *Client) run(ctx context.Context, conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		c.readLoop(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		c.log.Warn().Dur("retryIn", c.reconnectDelay).Msg("connection lost, reconnecting")

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.reconnectDelay):
			}
			var err error
			if conn, err = c.connect(ctx); err == nil {
				break
			}
			c.log.Warn().Err(err).Msg("reconnect failed")
		}
	}
}

// connect dials, performs the STOMP handshake and replays subscriptions.
func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.url, err)
	}
	conn.SetReadLimit(maxMessageSize)

	connect := NewFrame(CmdConnect, nil,
		HdrAcceptVersion, stompVersion,
		HdrHost, "/",
		HdrHeartBeat, "0,0",
	)
	if err := c.writeFrame(conn, connect); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send CONNECT: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(connectTimeout))
	frame, err := c.readFrame(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read CONNECTED: %w", err)
	}
	if frame.Command != CmdConnected {
		conn.Close()
		return nil, fmt.Errorf("handshake rejected: %s %s", frame.Command, frame.Header(HdrMessage))
	}

	c.mu.Lock()
	c.conn = conn
	pending := make([]*subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		pending = append(pending, sub)
	}
	c.mu.Unlock()

	for _, sub := range pending {
		if err := c.writeFrame(conn, subscribeFrame(sub)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("resubscribe %s: %w", sub.dest, err)
		}
	}

	c.log.Info().Str("url", c.url).Int("subscriptions", len(pending)).Msg("connected")
	if c.onConnect != nil {
		c.onConnect()
	}
	return conn, nil
}

// readLoop dispatches frames until the connection drops.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go c.pingLoop(conn, stopPing)

	for {
		if ctx.Err() != nil {
			return
		}
		frame, err := c.readFrame(conn)
		if err != nil {
			if errors.Is(err, ErrHeartBeat) {
				conn.SetReadDeadline(time.Now().Add(pongWait))
				continue
			}
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn().Err(err).Msg("read failed")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		switch frame.Command {
		case CmdMessage:
			c.dispatch(frame)
		case CmdError:
			c.log.Error().Str("message", frame.Header(HdrMessage)).Bytes("body", frame.Body).Msg("broker error")
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) dispatch(frame *Frame) {
	subID := frame.Header(HdrSubscription)
	dest := frame.Header(HdrDestination)

	c.mu.Lock()
	var handler Handler
	for _, sub := range c.subs {
		if sub.id == subID || (subID == "" && sub.dest == dest) {
			handler = sub.handler
			break
		}
	}
	c.mu.Unlock()

	if handler == nil {
		c.log.Debug().Str("destination", dest).Msg("message for unknown subscription")
		return
	}

	// A broken handler must not take the read loop down with it.
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Str("destination", dest).Msg("handler panicked")
		}
	}()
	handler(frame.Body)
}

func (c *Client) readFrame(conn *websocket.Conn) (*Frame, error) {
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return ParseFrame(raw)
}

func (c *Client) writeFrame(conn *websocket.Conn, frame *Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, frame.Marshal())
}

func subscribeFrame(sub *subscription) *Frame {
	return NewFrame(CmdSubscribe, nil, HdrID, sub.id, HdrDestination, sub.dest)
}

// Subscribe registers a handler for a destination and, when connected,
// subscribes on the broker. Subscribing an already subscribed destination
// replaces its handler.
func (c *Client) Subscribe(dest string, handler Handler) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	sub, ok := c.subs[dest]
	if ok {
		sub.handler = handler
		c.mu.Unlock()
		return nil
	}
	sub = &subscription{id: uuid.NewString(), dest: dest, handler: handler}
	c.subs[dest] = sub
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil // replayed on connect
	}
	if err := c.writeFrame(conn, subscribeFrame(sub)); err != nil {
		return fmt.Errorf("subscribe %s: %w", dest, err)
	}
	return nil
}

// Unsubscribe drops a destination. Unknown destinations are a no-op.
func (c *Client) Unsubscribe(dest string) error {
	c.mu.Lock()
	sub, ok := c.subs[dest]
	if ok {
		delete(c.subs, dest)
	}
	conn := c.conn
	c.mu.Unlock()

	if !ok || conn == nil {
		return nil
	}
	frame := NewFrame(CmdUnsubscribe, nil, HdrID, sub.id)
	if err := c.writeFrame(conn, frame); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", dest, err)
	}
	return nil
}

// Subscriptions returns the currently registered destinations.
func (c *Client) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subs))
	for dest := range c.subs {
		out = append(out, dest)
	}
	return out
}

// Send publishes a JSON body to an application destination.
func (c *Client) Send(dest string, body []byte) error {
	c.mu.Lock()
	conn := c.conn
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if conn == nil {
		return fmt.Errorf("send %s: not connected", dest)
	}

	frame := NewFrame(CmdSend, body,
		HdrDestination, dest,
		HdrContentType, "application/json",
	)
	if err := c.writeFrame(conn, frame); err != nil {
		return fmt.Errorf("send %s: %w", dest, err)
	}
	return nil
}

// Close shuts the connection down and stops reconnecting.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	c.wg.Wait()
	return nil
}
