package slack

import (
	"context"
	"encoding/json"
	"strings"

	"deskbot/app/util/fault"

	"github.com/gorilla/websocket"
)

// Envelope is one socket mode frame. Every envelope with an id must be
// acknowledged within Slack's delivery window, before any real work.
type Envelope struct {
	Type       string          `json:"type"`
	EnvelopeID string          `json:"envelope_id"`
	Payload    json.RawMessage `json:"payload"`
}

// ConnectSocket opens a socket mode connection using the app-level token.
func (c *Client) ConnectSocket(ctx context.Context) (*websocket.Conn, error) {
	var out struct {
		apiStatus
		URL string `json:"url"`
	}

	if err := c.callAPI(ctx, c.appToken, "/apps.connections.open", nil, &out); err != nil {
		return nil, err
	}

	url := strings.TrimSpace(out.URL)
	if url == "" {
		return nil, fault.Transport().Errorf("apps.connections.open returned empty url")
	}

	dialer := *websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fault.Transport().Errorf("socket dial: %w", err)
	}

	return conn, nil
}

// ConsumeSocket reads envelopes until the connection breaks or the
// context is cancelled. Each envelope is acked first, then handed to the
// handler; a handler error aborts the loop.
func ConsumeSocket(ctx context.Context, conn *websocket.Conn, handler func(Envelope) error) error {
	// ReadMessage does not observe ctx, so cancellation has to unblock
	// it by closing the connection.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fault.Transport().Errorf("socket read: %w", err)
		}

		var envelope Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return fault.Transport().Errorf("socket frame decode: %w", err)
		}

		switch envelope.Type {
		case "hello":
			continue
		case "disconnect":
			return nil
		}

		if envelope.EnvelopeID != "" {
			ack := map[string]string{"envelope_id": envelope.EnvelopeID}
			if err := conn.WriteJSON(ack); err != nil {
				return fault.Transport().Errorf("socket ack: %w", err)
			}
		}

		if err := handler(envelope); err != nil {
			return err
		}
	}
}
