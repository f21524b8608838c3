package relay_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/chatrelay/core/relay"
)

// wsHarness runs a bare websocket endpoint that hands every connection to
// its relay lifecycle, without the full HTTP API on top.
type wsHarness struct {
	srv      *httptest.Server
	registry *relay.Registry
}

func newWSHarness(t *testing.T) *wsHarness {
	t.Helper()

	registry := relay.NewRegistry(nil)
	ingress := relay.NewIngress(&fakeStore{}, &fakePublisher{}, fastConfig(), nil)
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	cfg := relay.DefaultConfig()
	cfg.WriteWait = time.Second

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		relay.NewClient(conn, nil, registry, ingress, cfg, nil).Run(r.Context())
	}))
	t.Cleanup(srv.Close)

	return &wsHarness{srv: srv, registry: registry}
}

func (h *wsHarness) dial(t *testing.T) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestRegistryBroadcast(t *testing.T) {
	t.Run("reaches every registered connection", func(t *testing.T) {
		h := newWSHarness(t)

		const clients = 5
		conns := make([]*websocket.Conn, clients)
		for i := range conns {
			conns[i] = h.dial(t)
		}
		require.Eventually(t, func() bool { return h.registry.Len() == clients },
			time.Second, 5*time.Millisecond)

		payload, err := json.Marshal(map[string]string{"body": "fanout"})
		require.NoError(t, err)
		h.registry.Broadcast(payload)

		for _, conn := range conns {
			require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
			_, data, err := conn.ReadMessage()
			require.NoError(t, err)
			assert.JSONEq(t, string(payload), string(data))
		}
	})

	t.Run("stays safe under concurrent join and leave churn", func(t *testing.T) {
		h := newWSHarness(t)

		var wg sync.WaitGroup
		stop := make(chan struct{})

		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					h.registry.Broadcast([]byte(`{"body":"churn"}`))
				}
			}
		}()

		url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/"
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
				if err != nil {
					return
				}
				if resp != nil && resp.Body != nil {
					_ = resp.Body.Close()
				}
				time.Sleep(5 * time.Millisecond)
				_ = conn.Close()
			}()
		}

		time.Sleep(100 * time.Millisecond)
		close(stop)
		wg.Wait()

		require.Eventually(t, func() bool { return h.registry.Len() == 0 },
			2*time.Second, 10*time.Millisecond)
	})
}

func TestRegistryMembership(t *testing.T) {
	t.Run("add and remove are idempotent", func(t *testing.T) {
		h := newWSHarness(t)

		conn := h.dial(t)
		require.Eventually(t, func() bool { return h.registry.Len() == 1 },
			time.Second, 5*time.Millisecond)

		_ = conn.Close()
		require.Eventually(t, func() bool { return h.registry.Len() == 0 },
			time.Second, 5*time.Millisecond)
	})
}
