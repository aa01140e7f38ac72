package relay_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nostrsync/negsync/log/logtest"
	"github.com/nostrsync/negsync/negentropy"
	"github.com/nostrsync/negsync/relay"
	"github.com/nostrsync/negsync/sql"
	"github.com/nostrsync/negsync/sql/events"
	"github.com/nostrsync/negsync/sqlstore"
)

type testProvider struct {
	storage  negentropy.Storage
	err      error
	opened   atomic.Int32
	released atomic.Int32
	filters  chan json.RawMessage
}

func (p *testProvider) OpenStorage(
	_ context.Context,
	filters json.RawMessage,
) (negentropy.Storage, func(), error) {
	if p.err != nil {
		return nil, nil, p.err
	}
	if p.filters != nil {
		p.filters <- filters
	}
	p.opened.Add(1)
	return p.storage, func() { p.released.Add(1) }, nil
}

func (p *testProvider) open() int {
	return int(p.opened.Load() - p.released.Load())
}

func randomStorage(t *testing.T, rng *rand.Rand, n int) (*negentropy.VectorStorage, []negentropy.Item) {
	t.Helper()
	items := make([]negentropy.Item, n)
	for i := range items {
		rng.Read(items[i].ID[:])
		items[i].Timestamp = uint64(rng.Int63n(10000))
	}
	s, err := negentropy.FromItems(items...)
	require.NoError(t, err)
	return s, items
}

func attachResponder(t *testing.T, p *testProvider, opts ...relay.ResponderOpt) *fakeConn {
	t.Helper()
	conn := newFakeConn("client")
	opts = append([]relay.ResponderOpt{relay.WithResponderLogger(logtest.New(t))}, opts...)
	r := relay.NewResponder(p, opts...)
	detach := r.Attach(conn)
	t.Cleanup(detach)
	return conn
}

func initialMessage(t *testing.T, s negentropy.Storage) (*negentropy.Negentropy, string) {
	t.Helper()
	neg, err := negentropy.New(s)
	require.NoError(t, err)
	msg, err := neg.Initiate()
	require.NoError(t, err)
	return neg, negentropy.BytesToHex(msg)
}

func TestResponderReconcile(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	server, items := randomStorage(t, rng, 500)
	// the client has the first 400 items and 20 items of its own
	clientStorage, err := negentropy.FromItems(items[:400]...)
	require.NoError(t, err)
	clientStorage.Unseal()
	var own []string
	for range 20 {
		var id negentropy.ID
		rng.Read(id[:])
		require.NoError(t, clientStorage.Insert(uint64(rng.Int63n(10000)), id))
		own = append(own, id.String())
	}
	require.NoError(t, clientStorage.Seal())

	p := &testProvider{storage: server, filters: make(chan json.RawMessage, 1)}
	conn := attachResponder(t, p, relay.WithResponderFrameSizeLimit(negentropy.MinFrameSizeLimit))
	neg, msg := initialMessage(t, clientStorage)
	conn.dispatch(t, relay.LabelNegOpen, "s1", json.RawMessage(`{"kinds":[1]}`), msg)
	require.JSONEq(t, `{"kinds":[1]}`, string(<-p.filters))

	need := relay.NewIDSet()
	have := relay.NewIDSet()
	for rounds := 1; ; rounds++ {
		require.Less(t, rounds, 100)
		label, fields := conn.next(t)
		require.Equal(t, relay.LabelNegMsg, label)
		require.Equal(t, "s1", fields[0])
		query, err := negentropy.HexToBytes(fields[1])
		require.NoError(t, err)
		require.LessOrEqual(t, len(query), negentropy.MinFrameSizeLimit)
		res, err := neg.Reconcile(query)
		require.NoError(t, err)
		need.AddIDs(res.Need)
		have.AddIDs(res.Have)
		if res.Next == nil {
			break
		}
		conn.dispatch(t, relay.LabelNegMsg, "s1", negentropy.BytesToHex(res.Next))
	}
	require.Equal(t, 1, p.open())
	conn.dispatch(t, relay.LabelNegClose, "s1")
	require.Zero(t, p.open())

	expNeed := relay.NewIDSet()
	for _, it := range items[400:] {
		expNeed[it.ID.String()] = struct{}{}
	}
	require.Equal(t, expNeed, need)
	require.Equal(t, relay.NewIDSet(own...), have)
	conn.requireNoMessages(t)
}

func TestResponderErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	server, _ := randomStorage(t, rng, 10)
	_, msg := initialMessage(t, negentropy.NewVectorStorage())

	t.Run("unknown session", func(t *testing.T) {
		conn := attachResponder(t, &testProvider{storage: server})
		conn.dispatch(t, relay.LabelNegMsg, "nope", msg)
		label, fields := conn.next(t)
		require.Equal(t, relay.LabelNegErr, label)
		require.Equal(t, []string{"nope", "closed: unknown session"}, fields)
	})

	t.Run("too many sessions", func(t *testing.T) {
		p := &testProvider{storage: server}
		conn := attachResponder(t, p, relay.WithMaxSessions(1))
		conn.dispatch(t, relay.LabelNegOpen, "s1", json.RawMessage(`{}`), msg)
		label, _ := conn.next(t)
		require.Equal(t, relay.LabelNegMsg, label)
		conn.dispatch(t, relay.LabelNegOpen, "s2", json.RawMessage(`{}`), msg)
		label, fields := conn.next(t)
		require.Equal(t, relay.LabelNegErr, label)
		require.Equal(t, "s2", fields[0])
		require.True(t, strings.HasPrefix(fields[1], "blocked: "))
		require.Equal(t, 1, p.open())
	})

	t.Run("storage unavailable", func(t *testing.T) {
		conn := attachResponder(t, &testProvider{err: errors.New("db is gone")})
		conn.dispatch(t, relay.LabelNegOpen, "s1", json.RawMessage(`{}`), msg)
		label, fields := conn.next(t)
		require.Equal(t, relay.LabelNegErr, label)
		require.Equal(t, []string{"s1", "blocked: storage unavailable"}, fields)
	})

	t.Run("invalid payload", func(t *testing.T) {
		p := &testProvider{storage: server}
		conn := attachResponder(t, p)
		conn.dispatch(t, relay.LabelNegOpen, "s1", json.RawMessage(`{}`), "ff")
		label, fields := conn.next(t)
		require.Equal(t, relay.LabelNegErr, label)
		require.Equal(t, "s1", fields[0])
		require.True(t, strings.HasPrefix(fields[1], "closed: "))
		require.Zero(t, p.open())

		conn.dispatch(t, relay.LabelNegOpen, "s2", json.RawMessage(`{}`), "not hex")
		label, fields = conn.next(t)
		require.Equal(t, relay.LabelNegErr, label)
		require.Equal(t, "s2", fields[0])
		require.Zero(t, p.open())
	})

	t.Run("malformed", func(t *testing.T) {
		conn := attachResponder(t, &testProvider{storage: server})
		conn.dispatch(t, relay.LabelNegMsg, "s1")
		label, fields := conn.next(t)
		require.Equal(t, relay.LabelNotice, label)
		require.True(t, strings.HasPrefix(fields[0], "bad msg: "))
		require.True(t, relay.IsNegentropyUnsupported(fields[0]))

		conn.dispatch(t, relay.LabelNegOpen, 1, json.RawMessage(`{}`), msg)
		label, _ = conn.next(t)
		require.Equal(t, relay.LabelNotice, label)
	})
}

func TestResponderUnsupportedVersion(t *testing.T) {
	conn := attachResponder(t, &testProvider{storage: negentropy.NewVectorStorage()})
	conn.dispatch(t, relay.LabelNegOpen, "s1", json.RawMessage(`{}`), "62")
	label, fields := conn.next(t)
	require.Equal(t, relay.LabelNegMsg, label)
	require.Equal(t, []string{"s1", "61"}, fields)
}

func TestResponderReleasesSessions(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	server, _ := randomStorage(t, rng, 10)
	_, msg := initialMessage(t, negentropy.NewVectorStorage())
	p := &testProvider{storage: server}
	conn := newFakeConn("client")
	detach := relay.NewResponder(p).Attach(conn)

	for _, id := range []string{"s1", "s2", "s2"} {
		conn.dispatch(t, relay.LabelNegOpen, id, json.RawMessage(`{}`), msg)
		label, _ := conn.next(t)
		require.Equal(t, relay.LabelNegMsg, label)
	}
	// reopening s2 replaced the previous session
	require.Equal(t, 2, p.open())
	require.Equal(t, 3, int(p.opened.Load()))

	conn.Disconnected()
	require.Zero(t, p.open())
	require.Zero(t, conn.NumHandlers())
	detach()
	require.Zero(t, p.open())
}

func TestSessionWithResponder(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	logger := logtest.New(t)
	server, items := randomStorage(t, rng, 3000)
	client, err := negentropy.FromItems(items[100:]...)
	require.NoError(t, err)

	clientConn, serverConn := pipe(t, logger)
	detach := relay.NewResponder(&testProvider{storage: server},
		relay.WithResponderFrameSizeLimit(negentropy.MinFrameSizeLimit),
		relay.WithResponderLogger(logger.Named("responder")),
	).Attach(serverConn)
	defer detach()

	neg, err := negentropy.New(client, negentropy.WithFrameSizeLimit(negentropy.MinFrameSizeLimit))
	require.NoError(t, err)
	s := relay.NewSession(clientConn, json.RawMessage(`{"kinds":[1]}`), neg,
		relay.WithSessionLogger(logger.Named("session")))
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, res.Have.Len())
	require.Equal(t, 100, res.Need.Len())
	for _, it := range items[:100] {
		require.True(t, res.Need.Has(it.ID.String()))
	}
	require.Zero(t, clientConn.NumHandlers())
}

func TestResponderManySQLSessions(t *testing.T) {
	db, err := sql.Open("file:"+filepath.Join(t.TempDir(), "events.db"), sql.WithConnections(2))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	rng := rand.New(rand.NewSource(3))
	_, items := randomStorage(t, rng, 200)
	require.NoError(t, db.WithTxImmediate(context.Background(), func(tx *sql.Tx) error {
		for _, it := range items[:150] {
			if err := events.Add(tx, it); err != nil {
				return err
			}
		}
		return nil
	}))

	conn := newFakeConn("client")
	r := relay.NewResponder(sqlstore.NewProvider(db, logtest.New(t)),
		relay.WithMaxSessions(100),
		relay.WithResponderLogger(logtest.New(t)))
	t.Cleanup(r.Attach(conn))

	clientStorage, err := negentropy.FromItems(items[50:]...)
	require.NoError(t, err)
	const sessions = 10
	engines := map[string]*negentropy.Negentropy{}
	for i := range sessions {
		id := fmt.Sprintf("s%d", i)
		neg, msg := initialMessage(t, clientStorage)
		engines[id] = neg
		conn.dispatch(t, relay.LabelNegOpen, id, json.RawMessage(`{}`), msg)
	}
	need := relay.NewIDSet()
	have := relay.NewIDSet()
	for open := sessions; open > 0; {
		label, fields := conn.next(t)
		require.Equal(t, relay.LabelNegMsg, label, "%v", fields)
		query, err := negentropy.HexToBytes(fields[1])
		require.NoError(t, err)
		res, err := engines[fields[0]].Reconcile(query)
		require.NoError(t, err)
		need.AddIDs(res.Need)
		have.AddIDs(res.Have)
		if res.Next == nil {
			conn.dispatch(t, relay.LabelNegClose, fields[0])
			open--
			continue
		}
		conn.dispatch(t, relay.LabelNegMsg, fields[0], negentropy.BytesToHex(res.Next))
	}
	require.Equal(t, 50, need.Len())
	require.Equal(t, 50, have.Len())
	for _, it := range items[:50] {
		require.True(t, need.Has(it.ID.String()))
	}
	for _, it := range items[150:] {
		require.True(t, have.Has(it.ID.String()))
	}
}
