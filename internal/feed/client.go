package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/salus/internal/logging"
)

// Keepalive timing shared with the server
const (
	// WriteWait is the time allowed to write a message to the peer
	WriteWait = 10 * time.Second

	// PongWait is the time allowed to read the next pong (or ping) from the peer
	PongWait = 60 * time.Second

	// PingPeriod must be less than PongWait
	PingPeriod = (PongWait * 9) / 10

	// MaxMessageSize bounds a single message from the peer
	MaxMessageSize = 8192
)

// Conn is a client connection to a state feed
type Conn struct {
	ws  *websocket.Conn
	url string
}

// Dial connects to a feed websocket URL (ws://host:port/ws)
func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to feed %s (HTTP %d): %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to feed %s: %w", url, err)
	}

	ws.SetReadLimit(MaxMessageSize * 4)
	_ = ws.SetReadDeadline(time.Now().Add(PongWait))
	ws.SetPingHandler(func(data string) error {
		_ = ws.SetReadDeadline(time.Now().Add(PongWait))
		return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(WriteWait))
	})

	logging.Debug("Connected to feed", zap.String("url", url))
	return &Conn{ws: ws, url: url}, nil
}

// Next blocks until the next message arrives
func (c *Conn) Next() (StateMessage, error) {
	var msg StateMessage
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return msg, fmt.Errorf("feed read failed: %w", err)
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(PongWait))

	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("invalid feed message: %w", err)
	}
	return msg, nil
}

// Close sends a close frame and closes the connection
func (c *Conn) Close() error {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(WriteWait))
	return c.ws.Close()
}

// IsClosed reports whether err is a normal end of the feed
func IsClosed(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
	}
	return false
}
