package multirelay_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/nostrsync/negsync/log/logtest"
	"github.com/nostrsync/negsync/multirelay"
	"github.com/nostrsync/negsync/negentropy"
	"github.com/nostrsync/negsync/nip11"
	"github.com/nostrsync/negsync/relay"
	"github.com/nostrsync/negsync/relay/wsconn"
)

type provider struct {
	storage negentropy.Storage
	err     error
}

func (p provider) OpenStorage(context.Context, json.RawMessage) (negentropy.Storage, func(), error) {
	if p.err != nil {
		return nil, nil, p.err
	}
	return p.storage, func() {}, nil
}

func storageOf(t *testing.T, parts ...[]negentropy.Item) negentropy.Storage {
	t.Helper()
	s, err := negentropy.FromItems(slices.Concat(parts...)...)
	require.NoError(t, err)
	return s
}

func randomItems(rng *rand.Rand, n int) []negentropy.Item {
	items := make([]negentropy.Item, n)
	for i := range items {
		rng.Read(items[i].ID[:])
		items[i].Timestamp = uint64(rng.Intn(1 << 20))
	}
	return items
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *wsconn.Conn {
	t.Helper()
	conn, err := wsconn.Dial(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func startRelay(t *testing.T, p relay.StorageProvider) *wsconn.Conn {
	t.Helper()
	responder := relay.NewResponder(p, relay.WithResponderLogger(logtest.New(t).Named("responder")))
	srv := httptest.NewServer(wsconn.NewHandler(responder, nil))
	t.Cleanup(srv.Close)
	return dial(t, wsURL(srv))
}

// startLegacyRelay starts a relay that doesn't know about negentropy.
func startLegacyRelay(t *testing.T) *wsconn.Conn {
	t.Helper()
	var upgrader websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
			err := ws.WriteMessage(websocket.TextMessage,
				relay.EncodeNotice("ERROR: bad msg: unknown message type"))
			if err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return dial(t, wsURL(srv))
}

func disconnectedRelay(t *testing.T, url string) relay.Conn {
	conn := relay.NewMockConn(gomock.NewController(t))
	conn.EXPECT().URL().Return(url).AnyTimes()
	conn.EXPECT().Connected().Return(false).AnyTimes()
	return conn
}

func idSet(parts ...[]negentropy.Item) relay.IDSet {
	s := relay.NewIDSet()
	for _, items := range parts {
		for _, it := range items {
			s[it.ID.String()] = struct{}{}
		}
	}
	return s
}

func TestSyncNoRelays(t *testing.T) {
	s := multirelay.NewSyncer(provider{storage: negentropy.NewVectorStorage()})
	_, err := s.Sync(context.Background(), nil, nil)
	require.ErrorIs(t, err, multirelay.ErrNoRelays)
}

func TestSync(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	items := randomItems(rng, 1100)
	local := provider{storage: storageOf(t, items[:1000])}
	relayA := startRelay(t, provider{storage: storageOf(t, items[:900], items[1000:1050])})
	relayB := startRelay(t, provider{storage: storageOf(t, items[50:1000], items[1050:1100])})
	broken := startRelay(t, provider{err: errors.New("database is locked")})
	legacy := startLegacyRelay(t)
	down := disconnectedRelay(t, "wss://down.example.com")

	var (
		mu     sync.Mutex
		failed []string
	)
	s := multirelay.NewSyncer(local,
		multirelay.WithLogger(logtest.New(t)),
		multirelay.WithMaxConcurrency(2),
		multirelay.WithFrameSizeLimit(negentropy.MinFrameSizeLimit),
		multirelay.WithSessionTimeout(10*time.Second),
		multirelay.WithOnRelayError(func(url string, _ error) {
			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, url)
		}))
	report, err := s.Sync(context.Background(),
		[]relay.Conn{relayA, relayB, broken, legacy, down},
		json.RawMessage(`{"kinds":[1]}`))
	require.NoError(t, err)
	require.Equal(t, idSet(items[1000:1100]), report.Need)
	require.Equal(t, idSet(items[:50], items[900:1000]), report.Have)

	require.Len(t, report.Relays, 5)
	statuses := make([]multirelay.Status, len(report.Relays))
	for i, o := range report.Relays {
		statuses[i] = o.Status
	}
	require.Equal(t, []multirelay.Status{
		multirelay.StatusSynced,
		multirelay.StatusSynced,
		multirelay.StatusFailed,
		multirelay.StatusUnsupported,
		multirelay.StatusSkipped,
	}, statuses)
	require.Equal(t, relayA.URL(), report.Relays[0].URL)
	require.Equal(t, 50, report.Relays[0].Need)
	require.Equal(t, 100, report.Relays[0].Have)
	require.Equal(t, 50, report.Relays[1].Need)
	require.Equal(t, 50, report.Relays[1].Have)
	require.NoError(t, report.Relays[0].Err)

	var relayErr *relay.RelayError
	require.ErrorAs(t, report.Relays[2].Err, &relayErr)
	require.Equal(t, "blocked: storage unavailable", relayErr.Reason)
	require.ErrorIs(t, report.Relays[3].Err, relay.ErrRelayUnsupported)
	require.ErrorIs(t, report.Relays[4].Err, relay.ErrNotConnected)
	require.ElementsMatch(t, []string{broken.URL(), legacy.URL()}, failed)

	data, err := json.Marshal(report)
	require.NoError(t, err)
	require.Contains(t, string(data), `"status":"unsupported"`)
}

func TestSyncCapabilityCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	items := randomItems(rng, 300)
	local := provider{storage: storageOf(t, items[:200])}
	relayA := startRelay(t, provider{storage: storageOf(t, items[100:300])})
	relayB := startRelay(t, provider{storage: storageOf(t, items[:100])})

	checker := NewMockCapabilityChecker(gomock.NewController(t))
	checker.EXPECT().Check(gomock.Any(), relayA.URL()).Return(nip11.Capability{URL: relayA.URL()})
	checker.EXPECT().Check(gomock.Any(), relayB.URL()).Return(nip11.Capability{
		URL:       relayB.URL(),
		Supported: true,
	})
	s := multirelay.NewSyncer(local, multirelay.WithCapabilityChecker(checker))
	report, err := s.Sync(context.Background(), []relay.Conn{relayA, relayB}, nil)
	require.NoError(t, err)
	require.Equal(t, multirelay.StatusUnsupported, report.Relays[0].Status)
	require.Equal(t, multirelay.StatusSynced, report.Relays[1].Status)
	require.Zero(t, report.Need.Len())
	require.Equal(t, idSet(items[100:200]), report.Have)
}

func TestSyncCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	relayA := startRelay(t, provider{storage: negentropy.NewVectorStorage()})
	s := multirelay.NewSyncer(provider{storage: negentropy.NewVectorStorage()})
	_, err := s.Sync(ctx, []relay.Conn{relayA}, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "synced", multirelay.StatusSynced.String())
	require.Equal(t, "skipped", multirelay.StatusSkipped.String())
	require.Equal(t, "unsupported", multirelay.StatusUnsupported.String())
	require.Equal(t, "failed", multirelay.StatusFailed.String())
	require.Equal(t, "<unknown status 9>", multirelay.Status(9).String())
}
