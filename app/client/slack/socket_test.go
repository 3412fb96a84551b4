package slack

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTestServer(t *testing.T, handler http.HandlerFunc) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func TestConsumeSocketAcksBeforeHandling(t *testing.T) {
	upgrader := websocket.Upgrader{}
	acks := make(chan string, 1)

	conn := dialTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		server, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer server.Close()

		_ = server.WriteJSON(map[string]any{
			"type":        "events_api",
			"envelope_id": "env-1",
			"payload":     map[string]any{},
		})

		var ack map[string]string
		if err := server.ReadJSON(&ack); err != nil {
			return
		}
		acks <- ack["envelope_id"]

		_ = server.WriteJSON(map[string]any{"type": "disconnect"})
	})

	var handled []string
	err := ConsumeSocket(context.Background(), conn, func(envelope Envelope) error {
		handled = append(handled, envelope.EnvelopeID)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"env-1"}, handled)

	select {
	case id := <-acks:
		assert.Equal(t, "env-1", id)
	default:
		t.Fatal("envelope was never acknowledged")
	}
}

func TestConsumeSocketStopsOnCancel(t *testing.T) {
	upgrader := websocket.Upgrader{}

	conn := dialTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		server, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer server.Close()

		// keep the connection open without sending anything
		for {
			if _, _, err := server.ReadMessage(); err != nil {
				return
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- ConsumeSocket(ctx, conn, func(Envelope) error { return nil })
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("consume loop did not stop after cancellation")
	}
}
