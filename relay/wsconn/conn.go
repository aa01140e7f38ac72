// Package wsconn implements relay connections over websocket.
package wsconn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nostrsync/negsync/relay"
)

const (
	DefaultWriteTimeout = 10 * time.Second
	DefaultReadLimit    = 1 << 20
)

type options struct {
	logger       *zap.Logger
	writeTimeout time.Duration
	readLimit    int64
	dialer       *websocket.Dialer
}

func defaultOptions() options {
	return options{
		logger:       zap.NewNop(),
		writeTimeout: DefaultWriteTimeout,
		readLimit:    DefaultReadLimit,
		dialer:       websocket.DefaultDialer,
	}
}

// Opt is an option for connections and the Handler.
type Opt func(*options)

// WithLogger specifies the logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(o *options) {
		o.logger = logger
	}
}

// WithWriteTimeout limits the time spent writing a single message.
func WithWriteTimeout(d time.Duration) Opt {
	return func(o *options) {
		o.writeTimeout = d
	}
}

// WithReadLimit limits the size of incoming messages.
func WithReadLimit(n int64) Opt {
	return func(o *options) {
		o.readLimit = n
	}
}

// WithDialer specifies the websocket dialer used by Dial.
func WithDialer(d *websocket.Dialer) Opt {
	return func(o *options) {
		o.dialer = d
	}
}

// Conn is a relay connection over websocket.
type Conn struct {
	*relay.Router
	url    string
	ws     *websocket.Conn
	opts   options
	logger *zap.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

var _ relay.Conn = (*Conn)(nil)

// Dial connects to the relay.
func Dial(ctx context.Context, url string, opts ...Opt) (*Conn, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	ws, resp, err := o.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := newConn(url, ws, o)
	go c.readLoop()
	return c, nil
}

func newConn(url string, ws *websocket.Conn, o options) *Conn {
	logger := o.logger.With(zap.String("url", url))
	ws.SetReadLimit(o.readLimit)
	return &Conn{
		Router: relay.NewRouter(logger),
		url:    url,
		ws:     ws,
		opts:   o,
		logger: logger,
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// URL implements relay.Conn.
func (c *Conn) URL() string {
	return c.url
}

// Connected implements relay.Conn.
func (c *Conn) Connected() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

// Done returns a channel that is closed after the connection is closed and
// the disconnect listeners are notified.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Send implements relay.Conn.
func (c *Conn) Send(ctx context.Context, msg []byte) error {
	if !c.Connected() {
		return relay.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := time.Now().Add(c.opts.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
		// the connection is unusable after a failed write
		c.close()
		return err
	}
	return nil
}

// Close closes the connection. The disconnect listeners are notified
// once the read loop exits.
func (c *Conn) Close() error {
	if !c.Connected() {
		return nil
	}
	c.writeMu.Lock()
	err := c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	c.close()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return nil
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.ws.Close()
	})
}

func (c *Conn) readLoop() {
	defer close(c.done)
	defer c.Disconnected()
	defer c.close()
	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("connection closed", zap.Error(err))
			}
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		if err := c.Dispatch(data); err != nil {
			c.logger.Debug("dropping malformed message", zap.Error(err))
		}
	}
}
