package relay_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nostrsync/negsync/relay"
)

// fakeConn is an in-memory relay.Conn that records the messages sent through it.
type fakeConn struct {
	*relay.Router
	url       string
	connected atomic.Bool
	sendErr   error
	sent      chan []byte
}

func newFakeConn(url string) *fakeConn {
	c := &fakeConn{
		Router: relay.NewRouter(zap.NewNop()),
		url:    url,
		sent:   make(chan []byte, 100),
	}
	c.connected.Store(true)
	return c
}

func (c *fakeConn) URL() string     { return c.url }
func (c *fakeConn) Connected() bool { return c.connected.Load() }

func (c *fakeConn) Send(ctx context.Context, msg []byte) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	select {
	case c.sent <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConn) dispatch(tb testing.TB, elems ...any) {
	tb.Helper()
	data, err := json.Marshal(elems)
	require.NoError(tb, err)
	require.NoError(tb, c.Dispatch(data))
}

// next waits for the next sent message and returns its label and elements.
func (c *fakeConn) next(tb testing.TB) (string, []string) {
	tb.Helper()
	select {
	case data := <-c.sent:
		label, elems, err := relay.ParseMessage(data)
		require.NoError(tb, err)
		var fields []string
		for _, e := range elems[1:] {
			var s string
			if json.Unmarshal(e, &s) != nil {
				s = string(e)
			}
			fields = append(fields, s)
		}
		return label, fields
	case <-time.After(5 * time.Second):
		require.FailNow(tb, "timed out waiting for a message")
		return "", nil
	}
}

func (c *fakeConn) requireNoMessages(tb testing.TB) {
	tb.Helper()
	select {
	case data := <-c.sent:
		require.FailNow(tb, "unexpected message", "%s", data)
	default:
	}
}

// pipeConn is one end of an in-memory connection pair. Messages sent by one end
// are dispatched on the other end by a separate goroutine.
type pipeConn struct {
	*relay.Router
	url    string
	peer   *pipeConn
	queue  chan []byte
	closed chan struct{}
	once   *sync.Once
}

func pipe(tb testing.TB, logger *zap.Logger) (client, server *pipeConn) {
	once := &sync.Once{}
	closed := make(chan struct{})
	client = &pipeConn{
		Router: relay.NewRouter(logger.Named("client")),
		url:    "ws://relay.test",
		queue:  make(chan []byte, 16),
		closed: closed,
		once:   once,
	}
	server = &pipeConn{
		Router: relay.NewRouter(logger.Named("server")),
		url:    "client",
		queue:  make(chan []byte, 16),
		closed: closed,
		once:   once,
	}
	client.peer, server.peer = server, client
	var wg sync.WaitGroup
	for _, c := range []*pipeConn{client, server} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer c.Disconnected()
			for {
				select {
				case <-c.closed:
					return
				case data := <-c.queue:
					if err := c.Dispatch(data); err != nil {
						tb.Errorf("dispatch: %v", err)
					}
				}
			}
		}()
	}
	tb.Cleanup(func() {
		client.Close()
		wg.Wait()
	})
	return client, server
}

func (c *pipeConn) URL() string { return c.url }

func (c *pipeConn) Connected() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

func (c *pipeConn) Send(ctx context.Context, msg []byte) error {
	select {
	case <-c.closed:
		return errors.New("pipe closed")
	case c.peer.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *pipeConn) Close() {
	c.once.Do(func() { close(c.closed) })
}
