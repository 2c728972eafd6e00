package ws

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
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestHubBroadcastsEvents(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialHub(t, hub)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	// first frame is the hello envelope
	var hello map[string]interface{}
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "connected", hello["event"])

	hub.Enqueue("order_filled", map[string]interface{}{
		"orderId": "ord_abc12345",
		"symbol":  "BTC/USDT",
	})

	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(frame, &event))
	assert.Equal(t, "order_filled", event["event"])
	assert.Equal(t, "ord_abc12345", event["orderId"])
	assert.NotEmpty(t, event["ts"])
}

func TestHubEnqueueNeverBlocks(t *testing.T) {
	// hub loop not running, so the broadcast buffer fills up
	hub := NewHub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			hub.Enqueue("order_filled", map[string]interface{}{"seq": i})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue blocked on a full broadcast buffer")
	}
}
