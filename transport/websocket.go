package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

// DefaultDialTimeout bounds a single handshake.
const DefaultDialTimeout = 10 * time.Second

// DefaultReadLimit is the maximum inbound frame size in bytes.
const DefaultReadLimit = 1 << 20

// Conn is one established duplex connection carrying text frames.
type Conn interface {
	// Read blocks for the next frame. It returns an error once the
	// connection ends; Classify turns that error into a close outcome.
	Read(ctx context.Context) ([]byte, error)
	// Write sends one text frame.
	Write(ctx context.Context, frame []byte) error
	// Close closes the connection with a normal closure.
	Close(reason string) error
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebSocketDialer dials websocket endpoints.
type WebSocketDialer struct {
	// HTTPClient is used for the handshake. Nil uses http.DefaultClient.
	HTTPClient *http.Client
	// Header is sent with the handshake request.
	Header http.Header
	// Timeout bounds the handshake (default 10s).
	Timeout time.Duration
	// ReadLimit caps inbound frame size (default 1 MiB).
	ReadLimit int64
}

// Dial performs the websocket handshake.
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, resp, err := websocket.Dial(dialCtx, url, &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: d.Header,
	})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial websocket %s: status %d: %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial websocket %s: %w", url, err)
	}

	limit := d.ReadLimit
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	c.SetReadLimit(limit)

	return &wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	for {
		typ, data, err := w.c.Read(ctx)
		if err != nil {
			return nil, err
		}
		// Binary frames carry nothing we understand.
		if typ != websocket.MessageText {
			continue
		}
		return data, nil
	}
}

func (w *wsConn) Write(ctx context.Context, frame []byte) error {
	return w.c.Write(ctx, websocket.MessageText, frame)
}

func (w *wsConn) Close(reason string) error {
	return w.c.Close(websocket.StatusNormalClosure, reason)
}

// Verify WebSocketDialer implements Dialer.
var _ Dialer = (*WebSocketDialer)(nil)
