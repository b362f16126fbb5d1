// Package feed serves decoded MAX! traffic to websocket clients.
//
// Every client connected to /ws receives each event as one JSON text
// message. Clients only listen; anything they send is discarded. A client
// that cannot keep up with the feed is disconnected rather than slowing down
// the radio link.
package feed

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/maxcul/internal/event"
	"github.com/muurk/maxcul/internal/logging"
	"github.com/muurk/maxcul/internal/moritz"
	"github.com/muurk/maxcul/internal/transceiver"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Events buffered per client before it counts as slow
	sendBuffer = 64
)

type client struct {
	conn *websocket.Conn
	send chan []byte
	addr string
}

// Hub fans events out to websocket clients. It implements
// transceiver.Dispatcher and transceiver.StatusListener.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	last     []byte // last gateway status, sent to new clients
	upgrader websocket.Upgrader
	now      func() time.Time
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Any origin may read the feed
			CheckOrigin: func(*http.Request) bool { return true },
		},
		now: time.Now,
	}
}

// Dispatch implements transceiver.Dispatcher.
func (h *Hub) Dispatch(msg moritz.Incoming) {
	h.Broadcast(event.FromMessage(msg, h.now()).JSON())
}

// GatewayStatus implements transceiver.StatusListener.
func (h *Hub) GatewayStatus(s transceiver.Status) {
	data := event.Gateway(s.Online, s.Version, h.now()).JSON()
	h.mu.Lock()
	h.last = data
	h.mu.Unlock()
	h.Broadcast(data)
}

// Broadcast queues data for every client. Clients whose buffer is full are
// dropped.
func (h *Hub) Broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			logging.Warn("Dropping slow feed client", zap.String("remote_addr", c.addr))
			h.removeLocked(c)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// ServeHTTP upgrades the request and streams events until the client goes
// away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		logging.Debug("Websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer), addr: r.RemoteAddr}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	h.mu.Unlock()
	logging.LogConnection(c.addr, "feed_connected")

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards client messages and notices when the client is gone.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
		logging.LogConnection(c.addr, "feed_closed")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("Feed client read failed", zap.String("remote_addr", c.addr), zap.Error(err))
			}
			return
		}
	}
}

// writePump is the only writer of c.conn.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}
