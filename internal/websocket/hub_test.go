package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"oispurts/internal/config"
	"oispurts/internal/infrastructure"
	"oispurts/internal/shared/testutil"
	"oispurts/pkg/contracts/domain"
	"oispurts/pkg/contracts/events"
)

type wireMessage struct {
	Type    string          `json:"type"`
	TraceID string          `json:"trace_id"`
	Data    json.RawMessage `json:"data"`
}

func newTestClient(id string, buffer int) *Client {
	return &Client{
		id:          id,
		send:        make(chan []byte, buffer),
		connectedAt: time.Now(),
	}
}

func receive(t *testing.T, c *Client) wireMessage {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var msg wireMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	return wireMessage{}
}

func startedHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(testutil.NewDiscardLogger(), nil)
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

func TestHub_RegisterSendsGreeting(t *testing.T) {
	hub := startedHub(t)
	client := newTestClient("client-1", 8)

	hub.Register(client)
	msg := receive(t, client)
	assert.Equal(t, string(events.MessageTypeConnect), msg.Type)
	assert.Contains(t, string(msg.Data), `"client_id":"client-1"`)
	assert.Equal(t, 1, hub.ClientCount())

	hub.Unregister(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_PublishReachesEveryClient(t *testing.T) {
	hub := startedHub(t)
	clients := []*Client{newTestClient("a", 8), newTestClient("b", 8)}
	for _, c := range clients {
		hub.Register(c)
		receive(t, c)
	}

	ctx := infrastructure.WithTraceID(context.Background(), "cycle-42")
	hub.BroadcastCollection(ctx, events.CollectionEvent{
		Result: domain.CollectionResult{Outcome: domain.OutcomeSuccess, StocksProcessed: 3},
		Date:   "2024-01-02",
	})

	for _, c := range clients {
		msg := receive(t, c)
		assert.Equal(t, string(events.MessageTypeCollectionComplete), msg.Type)
		assert.Equal(t, "cycle-42", msg.TraceID)

		var event events.CollectionEvent
		require.NoError(t, json.Unmarshal(msg.Data, &event))
		assert.Equal(t, "2024-01-02", event.Date)
		assert.Equal(t, 3, event.Result.StocksProcessed)
	}
	require.Eventually(t, func() bool { return hub.Stats().MessagesSent == 2 }, time.Second, 5*time.Millisecond)
}

func TestHub_SlowClientIsDisconnected(t *testing.T) {
	hub := startedHub(t)
	slow := newTestClient("slow", 1)
	hub.Register(slow)

	// the greeting fills the only buffer slot
	hub.BroadcastRollover(context.Background(), "2024-01-01", "2024-01-02")
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	_, ok := <-slow.send
	assert.True(t, ok)
	_, ok = <-slow.send
	assert.False(t, ok)
	assert.Equal(t, int64(1), hub.Stats().DroppedMessages)
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	hub := NewHub(testutil.NewDiscardLogger(), nil)
	for i := 0; i < broadcastQueue+6; i++ {
		hub.Publish(context.Background(), events.MessageTypeCollectionComplete, nil)
	}
	assert.Equal(t, int64(6), hub.Stats().DroppedMessages)
}

func TestHub_StopClosesClients(t *testing.T) {
	hub := NewHub(testutil.NewDiscardLogger(), nil)
	hub.Start()
	client := newTestClient("c", 8)
	hub.Register(client)
	receive(t, client)

	hub.Stop()
	hub.Stop()

	_, ok := <-client.send
	assert.False(t, ok)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHandler_LiveFeed(t *testing.T) {
	metrics, err := NewOTelMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	hub := NewHub(testutil.NewDiscardLogger(), metrics)
	hub.Start()
	defer hub.Stop()

	server := httptest.NewServer(Handler(hub, config.Default().WebSocket, nil, testutil.NewDiscardLogger()))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() wireMessage {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg wireMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	}

	assert.Equal(t, string(events.MessageTypeConnect), read().Type)

	hub.BroadcastRollover(context.Background(), "2024-01-01", "2024-01-02")
	msg := read()
	assert.Equal(t, string(events.MessageTypeDayRollover), msg.Type)
	assert.JSONEq(t, `{"previous_date":"2024-01-01","current_date":"2024-01-02"}`, string(msg.Data))

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_RejectsUnknownOrigin(t *testing.T) {
	hub := startedHub(t)
	server := httptest.NewServer(Handler(hub, config.Default().WebSocket, []string{"http://localhost:8080"}, testutil.NewDiscardLogger()))
	defer server.Close()

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestOTelMetrics_NilSafe(t *testing.T) {
	var m *OTelMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordConnection(ctx, 1)
		m.RecordDisconnection(ctx, time.Second, 0, "normal")
		m.RecordMessageSent(ctx, "server_message", 10)
		m.RecordDropped(ctx, "hub")
	})
}
