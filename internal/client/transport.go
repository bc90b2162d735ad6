package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
)

// Transport is one open connection to the server.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, frame []byte) error
	Close() error
}

// Dialer opens transports. A rejected token must be reported as an error
// wrapping ErrAuthentication so that reconnection stops.
type Dialer interface {
	Dial(ctx context.Context, url, token string) (Transport, error)
}

// WebsocketDialer dials with coder/websocket and sends the token as a
// bearer header.
type WebsocketDialer struct {
	HTTPClient *http.Client
	ReadLimit  int64
}

// Dial implements Dialer.
func (d WebsocketDialer) Dial(ctx context.Context, url, token string) (Transport, error) {
	conn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + token}},
	})
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: server answered %s", ErrAuthentication, resp.Status)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	if d.ReadLimit > 0 {
		conn.SetReadLimit(d.ReadLimit)
	}
	return &wsTransport{conn: conn}, nil
}

type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	return data, err
}

func (t *wsTransport) Write(ctx context.Context, frame []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, frame)
}

func (t *wsTransport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "client closing")
}
