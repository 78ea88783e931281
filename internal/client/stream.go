package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const defaultWriteWait = 5 * time.Second

// Stream is the handle of an open duplex connection. *websocket.Conn wrapped
// by WebSocketDialer is the production implementation.
type Stream interface {
	// WriteText sends one text message.
	WriteText(data []byte) error
	// Read blocks until the next data message arrives.
	Read() ([]byte, error)
	// Close tears the connection down; a blocked Read returns an error.
	Close() error
}

// Dialer opens a Stream to endpoint, presenting origin as the page origin.
type Dialer interface {
	Dial(ctx context.Context, endpoint, origin string) (Stream, error)
}

// WebSocketDialer dials with gorilla/websocket.
type WebSocketDialer struct {
	Dialer    *websocket.Dialer
	WriteWait time.Duration
}

// Dial opens the WebSocket connection.
func (d WebSocketDialer) Dial(ctx context.Context, endpoint, origin string) (Stream, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	writeWait := d.WriteWait
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	return &wsStream{conn: conn, writeWait: writeWait}, nil
}

type wsStream struct {
	conn      *websocket.Conn
	writeWait time.Duration
}

func (s *wsStream) WriteText(data []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsStream) Read() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	return data, err
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}
