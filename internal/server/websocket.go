package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/salus/internal/feed"
	"github.com/muurk/salus/internal/logging"
)

// sendBuffer is the number of queued messages after which a client is dropped
const sendBuffer = 16

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is read-only and LAN-local; accept any origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client is one connected feed subscriber
type client struct {
	id         string // correlates connect and disconnect log lines
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
}

// hub fans state messages out to feed clients
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

// join queues the initial message and registers c in one step, so no
// broadcast can fall between the snapshot and the registration.
func (h *hub) join(c *client, initial func() feed.StateMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := json.Marshal(initial())
	if err != nil {
		return err
	}
	c.send <- data
	h.clients[c] = struct{}{}
	logging.Info("Feed client connected", zap.String("client_id", c.id), zap.String("remote_addr", c.remoteAddr))
	return nil
}

// remove unregisters c and closes its send queue. Safe to call twice.
func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	logging.Info("Feed client disconnected", zap.String("client_id", c.id), zap.String("remote_addr", c.remoteAddr))
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) broadcast(msg feed.StateMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Error("Failed to marshal feed message", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Slow consumer
			delete(h.clients, c)
			close(c.send)
			logging.Warn("Dropping slow feed client", zap.String("client_id", c.id), zap.String("remote_addr", c.remoteAddr))
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// serveWebSocket upgrades the request and streams state messages, starting
// with the current snapshot.
func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := &client{
		id:         uuid.NewString(),
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		remoteAddr: r.RemoteAddr,
	}

	if err := s.hub.join(c, s.Snapshot); err != nil {
		logging.Error("Failed to send feed snapshot", zap.Error(err))
		_ = conn.Close()
		return
	}

	go c.writePump()
	c.readPump(s.hub)
}

// readPump discards client messages and keeps the read deadline fresh via pongs.
func (c *client) readPump(h *hub) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(feed.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(feed.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(feed.PongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debug("Feed client read error",
					zap.String("client_id", c.id), zap.String("remote_addr", c.remoteAddr),
					zap.Error(err),
				)
			}
			return
		}
	}
}

// writePump sends queued messages and periodic pings. It closes the
// connection with a close frame when the send queue is closed.
func (c *client) writePump() {
	ticker := time.NewTicker(feed.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feed.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logging.Debug("Feed write failed",
					zap.String("client_id", c.id), zap.String("remote_addr", c.remoteAddr),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feed.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
