package session

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the part of *websocket.Conn the session uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials the room socket with gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

func (d WebsocketDialer) Dial(ctx context.Context, u string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, u, d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", u, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	return conn, nil
}

// RoomURL derives the socket address of a room from the page origin:
// https pages use wss, everything else ws.
func RoomURL(origin, chatID string) (string, error) {
	if chatID == "" {
		return "", fmt.Errorf("chat id is required")
	}

	base, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if base.Host == "" {
		return "", fmt.Errorf("invalid origin %q: missing host", origin)
	}

	scheme := "ws"
	if strings.EqualFold(base.Scheme, "https") {
		scheme = "wss"
	}

	u := url.URL{
		Scheme: scheme,
		Host:   base.Host,
		Path:   "/ws/chat/" + chatID + "/",
	}
	return u.String(), nil
}
