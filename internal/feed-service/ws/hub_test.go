package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub(t *testing.T) (*Hub, string, *atomic.Int64) {
	var clients atomic.Int64
	hub := NewHub(func(*http.Request) bool { return true }, nil)
	hub.OnClients = func(n int) { clients.Store(int64(n)) }
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http"), &clients
}

func dial(t *testing.T, url string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg string) ServerMsg {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
	var out ServerMsg
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&out))
	return out
}

func readUpdate(t *testing.T, conn *websocket.Conn) Update {
	t.Helper()
	var out Update
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&out))
	return out
}

func TestHub_SubscribeAndBroadcast(t *testing.T) {
	hub, url, clients := newTestHub(t)

	betConn := dial(t, url)
	allConn := dial(t, url)
	agentConn := dial(t, url)

	assert.Equal(t, ServerMsg{Type: "subscribed", Topic: "bet:7"}, send(t, betConn, `{"type":"subscribe","betId":7}`))
	assert.Equal(t, ServerMsg{Type: "subscribed", Topic: "*"}, send(t, allConn, `{"type":"subscribe"}`))
	assert.Equal(t, ServerMsg{Type: "subscribed", Topic: "agent:A"}, send(t, agentConn, `{"type":"subscribe","agentId":"A"}`))
	assert.Equal(t, int64(3), clients.Load())

	sent := hub.Broadcast(Update{Type: "bet_update", BetID: 7, Payload: []byte(`{"status":"active"}`)})
	assert.Equal(t, 2, sent)

	for _, c := range []*websocket.Conn{betConn, allConn} {
		upd := readUpdate(t, c)
		assert.Equal(t, int64(7), upd.BetID)
		assert.JSONEq(t, `{"status":"active"}`, string(upd.Payload))
	}

	assert.Equal(t, 2, hub.Broadcast(Update{Type: "account_update", AgentID: "A", Payload: []byte(`{}`)}))
	assert.Equal(t, "A", readUpdate(t, agentConn).AgentID)
	assert.Equal(t, "A", readUpdate(t, allConn).AgentID)

	assert.Equal(t, 1, hub.Broadcast(Update{Type: "bet_update", BetID: 8, Payload: []byte(`{}`)}))
	assert.Equal(t, int64(8), readUpdate(t, allConn).BetID)
}

func TestHub_UnsubscribePingAndErrors(t *testing.T) {
	hub, url, clients := newTestHub(t)
	conn := dial(t, url)

	assert.Equal(t, "pong", send(t, conn, `{"type":"ping"}`).Type)
	assert.Equal(t, "bet:3", send(t, conn, `{"type":"subscribe","betId":"3"}`).Topic)
	assert.Equal(t, "unsubscribed", send(t, conn, `{"type":"unsubscribe","betId":3}`).Type)
	assert.Equal(t, 0, hub.Broadcast(Update{BetID: 3, Payload: []byte(`{}`)}))

	assert.Equal(t, ServerMsg{Type: "error", Error: "unknown message type"}, send(t, conn, `{"type":"dance"}`))
	assert.Equal(t, ServerMsg{Type: "error", Error: "invalid message"}, send(t, conn, `{oops}`))

	// conexão continua utilizável após mensagem inválida
	assert.Equal(t, "pong", send(t, conn, `{"type":"ping"}`).Type)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return clients.Load() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestDispatch(t *testing.T) {
	hub, url, _ := newTestHub(t)
	conn := dial(t, url)
	send(t, conn, `{"type":"subscribe","betId":5}`)

	log := zap.NewNop()
	Dispatch(hub, `not json`, log)
	Dispatch(hub, `{"type":"bet_update","payload":{}}`, log)
	Dispatch(hub, `{"type":"bet_update","betId":5,"payload":{"status":"settled"}}`, log)

	upd := readUpdate(t, conn)
	assert.Equal(t, int64(5), upd.BetID)
	assert.JSONEq(t, `{"status":"settled"}`, string(upd.Payload))
}
