package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradingservice/src/model"
)

type memoryLogStore struct {
	entries []model.WebhookLog
}

func (s *memoryLogStore) Create(ctx context.Context, entry *model.WebhookLog) error {
	s.entries = append(s.entries, *entry)
	return nil
}

func testNotifierConfig(url string) Config {
	return Config{
		URL:            url,
		Secret:         "s3cret",
		Timeout:        2 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: 10 * time.Millisecond,
		QueueSize:      16,
	}
}

func TestSignatureRoundTrip(t *testing.T) {
	var gotSignature string
	var gotBody []byte
	var gotContentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Signature")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := &memoryLogStore{}
	n := NewNotifier(testNotifierConfig(server.URL), store)

	body, err := json.Marshal(map[string]interface{}{
		"event":   "order_filled",
		"orderId": "ord_abc12345",
	})
	require.NoError(t, err)

	statusCode, err := n.Deliver(context.Background(), "order_filled", body, 0)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, statusCode)
	assert.Equal(t, "application/json", gotContentType)

	// recomputing HMAC-SHA256(secret, body) over the delivered body must
	// match the delivered header
	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(gotBody)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotSignature)

	require.Len(t, store.entries, 1)
	assert.Equal(t, "order_filled", store.entries[0].Event)
	assert.Equal(t, gotSignature, store.entries[0].Signature)
	require.NotNil(t, store.entries[0].StatusCode)
	assert.Equal(t, http.StatusOK, *store.entries[0].StatusCode)
}

func TestNoURLIsNoOp(t *testing.T) {
	var calls int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
	}))
	defer server.Close()

	store := &memoryLogStore{}
	cfg := testNotifierConfig("")
	n := NewNotifier(cfg, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n.Start(ctx)

	n.Enqueue("order_filled", map[string]interface{}{"orderId": "ord_abc12345"})
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int64(0), atomic.LoadInt64(&calls))
	assert.Empty(t, store.entries)
}

func TestDeliveryRetriesAreBoundedAndLogged(t *testing.T) {
	var calls int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	store := &memoryLogStore{}
	n := NewNotifier(testNotifierConfig(server.URL), store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n.Start(ctx)

	n.Enqueue("order_filled", map[string]interface{}{"orderId": "ord_abc12345"})

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&calls) == 3
	}, 2*time.Second, 20*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls), "retries must stop at MaxRetries")

	require.Len(t, store.entries, 3)
	for i, entry := range store.entries {
		assert.Equal(t, i, entry.RetryCount)
		require.NotNil(t, entry.StatusCode)
		assert.Equal(t, http.StatusBadGateway, *entry.StatusCode)
	}
}

func TestEnqueueNeverBlocks(t *testing.T) {
	cfg := testNotifierConfig("http://localhost:1") // worker never started
	cfg.QueueSize = 1
	n := NewNotifier(cfg, &memoryLogStore{})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			n.Enqueue("order_filled", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
}

func TestEventPayloadShape(t *testing.T) {
	received := make(chan []byte, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier(testNotifierConfig(server.URL), &memoryLogStore{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n.Start(ctx)

	n.Enqueue("order_filled", map[string]interface{}{
		"orderId":   "ord_abc12345",
		"symbol":    "BTC/USDT",
		"filledQty": 0.01,
		"avgPrice":  58000.0,
	})

	select {
	case body := <-received:
		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &payload))

		assert.Equal(t, "order_filled", payload["event"])
		assert.Equal(t, "ord_abc12345", payload["orderId"])
		assert.Equal(t, "BTC/USDT", payload["symbol"])

		ts, ok := payload["ts"].(string)
		require.True(t, ok, "ts must be a string timestamp")
		_, err := time.Parse(time.RFC3339, ts)
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never delivered")
	}
}
