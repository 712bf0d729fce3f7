package conn

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seryvo/realtime/src/types"
)

// Dialer opens the physical socket. Abstracted so tests can run the full
// lifecycle without a network.
type Dialer interface {
	Dial(ctx context.Context, url string) (types.Conn, error)
}

// WSDialer dials real websocket connections.
type WSDialer struct {
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
}

// NewWSDialer creates a websocket dialer with the given deadlines.
func NewWSDialer(handshakeTimeout, writeTimeout time.Duration) *WSDialer {
	return &WSDialer{handshakeTimeout: handshakeTimeout, writeTimeout: writeTimeout}
}

func (d *WSDialer) Dial(ctx context.Context, url string) (types.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.handshakeTimeout}
	c, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return &wsConn{c: c, writeTimeout: d.writeTimeout}, nil
}

// wsConn adapts *websocket.Conn to types.Conn. All frames are JSON text.
type wsConn struct {
	c            *websocket.Conn
	writeTimeout time.Duration
}

func (w *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := w.c.ReadMessage()
	return data, err
}

func (w *wsConn) WriteMessage(data []byte) error {
	if w.writeTimeout > 0 {
		if err := w.c.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
			return err
		}
	}
	return w.c.WriteMessage(websocket.TextMessage, data)
}

func (w *wsConn) Close() error { return w.c.Close() }
