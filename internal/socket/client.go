// Package socket maintains a self-healing WebSocket connection to the radar
// server's live channel.
package socket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/radar-feed/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

// Text frames of the live-channel protocol.
const (
	MessagePong  = "PONG"
	MessagePing  = "PING"
	MessageClose = "close"
)

// Defaults for the reconnect and heartbeat timers.
const (
	DefaultBaseDelay      = 300 * time.Millisecond
	DefaultMaxDelay       = 15 * time.Second
	DefaultHeartbeatDelay = time.Second
	maxJitter             = time.Second
)

// ErrClosed is returned by Connect after Close.
var ErrClosed = errors.New("socket client closed")

// State is the connection state of a Client.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Conn is the transport a Client drives. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// DialFunc opens a transport to url.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// Handler receives every inbound message that is not a heartbeat.
type Handler func(msg []byte)

// Client keeps one live-channel connection open, reconnecting with jittered
// exponential backoff whenever the transport fails. Callers never see
// transport errors.
type Client struct {
	url     string
	handler Handler

	dial           DialFunc
	clock          clockwork.Clock
	jitter         func() time.Duration
	baseDelay      time.Duration
	maxDelay       time.Duration
	heartbeatDelay time.Duration
	logger         *slog.Logger
	metrics        *observability.Metrics

	mu        sync.Mutex
	ctx       context.Context
	state     State
	backoff   time.Duration
	conn      Conn
	closed    bool
	reconnect clockwork.Timer
	pingTimer clockwork.Timer

	writeMu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithClock sets the clock that drives reconnect and heartbeat timers.
func WithClock(c clockwork.Clock) Option { return func(cl *Client) { cl.clock = c } }

// WithJitter replaces the random [0,1s) reconnect jitter.
func WithJitter(f func() time.Duration) Option { return func(cl *Client) { cl.jitter = f } }

// WithDialer replaces the gorilla/websocket dialer.
func WithDialer(d DialFunc) Option { return func(cl *Client) { cl.dial = d } }

// WithBackoff sets the base and maximum reconnect delays.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(cl *Client) {
		cl.baseDelay = base
		cl.maxDelay = maxDelay
	}
}

// WithHeartbeatDelay sets the pause between a PONG and the next PING.
func WithHeartbeatDelay(d time.Duration) Option { return func(cl *Client) { cl.heartbeatDelay = d } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(cl *Client) { cl.logger = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option { return func(cl *Client) { cl.metrics = m } }

// New creates a disconnected client for url. Call Connect to start it.
func New(url string, handler Handler, opts ...Option) *Client {
	c := &Client{
		url:            url,
		handler:        handler,
		dial:           dialWebsocket,
		clock:          clockwork.NewRealClock(),
		jitter:         func() time.Duration { return rand.N(maxJitter) },
		baseDelay:      DefaultBaseDelay,
		maxDelay:       DefaultMaxDelay,
		heartbeatDelay: DefaultHeartbeatDelay,
		logger:         slog.Default(),
		metrics:        observability.NewMetricsForTesting(),
		state:          Disconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxDelay < c.baseDelay {
		c.maxDelay = c.baseDelay
	}
	c.backoff = c.baseDelay
	return c
}

var dialer = &websocket.Dialer{
	Proxy:            http.ProxyFromEnvironment,
	HandshakeTimeout: 10 * time.Second,
}

func dialWebsocket(ctx context.Context, u string) (Conn, error) {
	conn, resp, err := dialer.DialContext(ctx, u, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Connect makes the first connection attempt and returns. A failed attempt
// schedules a reconnect rather than returning an error. Cancelling ctx
// closes the client.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.ctx != nil {
		c.mu.Unlock()
		return nil
	}
	c.ctx = ctx
	c.mu.Unlock()

	context.AfterFunc(ctx, c.Close)
	c.attempt()
	return nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close tells the peer the client is leaving, closes the transport and
// cancels pending timers. No reconnect is scheduled afterwards.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimersLocked()
	conn := c.conn
	c.conn = nil
	c.setStateLocked(Disconnected)
	c.mu.Unlock()

	if conn == nil {
		return
	}
	if err := c.write(conn, MessageClose); err != nil {
		c.logger.Debug("close notification not sent", "error", err)
	}
	_ = conn.Close()
	c.logger.Info("socket closed", "url", c.url)
}

func (c *Client) attempt() {
	c.mu.Lock()
	if c.closed || c.state != Disconnected {
		c.mu.Unlock()
		return
	}
	c.reconnect = nil
	c.setStateLocked(Connecting)
	ctx := c.ctx
	c.mu.Unlock()

	conn, err := c.dial(ctx, c.url)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.logger.Warn("socket connect failed", "url", c.url, "error", err)
		c.setStateLocked(Disconnected)
		c.scheduleReconnectLocked()
		return
	}

	c.conn = conn
	c.backoff = c.baseDelay
	c.setStateLocked(Connected)
	c.logger.Info("socket connected", "url", c.url)
	go c.readLoop(conn)
}

// scheduleReconnectLocked arms the reconnect timer with the current backoff
// plus jitter, then doubles the backoff for the attempt after that.
func (c *Client) scheduleReconnectLocked() {
	if c.closed || c.reconnect != nil {
		return
	}
	delay := c.backoff + c.jitter()
	c.reconnect = c.clock.AfterFunc(delay, c.attempt)
	c.backoff = retry.NextBackoff(c.backoff, c.maxDelay)
	c.metrics.SocketReconnects.Inc()
	c.logger.Info("socket reconnect scheduled", "url", c.url, "delay", delay)
}

func (c *Client) readLoop(conn Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.dropped(conn, err)
			return
		}
		if string(msg) == MessagePong {
			c.metrics.SocketMessages.WithLabelValues("heartbeat").Inc()
			c.schedulePing(conn)
			continue
		}
		c.metrics.SocketMessages.WithLabelValues("data").Inc()
		if c.handler != nil {
			c.handler(msg)
		}
	}
}

// dropped handles a read failure on conn. Failures on a connection that has
// already been replaced or closed are ignored.
func (c *Client) dropped(conn Conn, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn != conn {
		return
	}
	_ = conn.Close()
	c.conn = nil
	if c.pingTimer != nil {
		c.pingTimer.Stop()
		c.pingTimer = nil
	}
	wasConnected := c.state == Connected
	c.setStateLocked(Disconnected)
	c.logger.Warn("socket interrupted", "url", c.url, "error", err)
	if wasConnected {
		c.scheduleReconnectLocked()
	}
}

func (c *Client) schedulePing(conn Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn != conn {
		return
	}
	if c.pingTimer != nil {
		c.pingTimer.Stop()
	}
	c.pingTimer = c.clock.AfterFunc(c.heartbeatDelay, func() {
		if err := c.write(conn, MessagePing); err != nil {
			c.logger.Debug("heartbeat ping failed", "error", err)
		}
	})
}

func (c *Client) write(conn Conn, msg string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (c *Client) stopTimersLocked() {
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	if c.pingTimer != nil {
		c.pingTimer.Stop()
		c.pingTimer = nil
	}
}

func (c *Client) setStateLocked(s State) {
	c.state = s
	c.metrics.SocketState.Set(float64(s))
}

// WebsocketURL derives the live-channel URL from the API base URL: http
// becomes ws, https becomes wss, and path is placed under /ws/.
func WebsocketURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + strings.TrimLeft(path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
