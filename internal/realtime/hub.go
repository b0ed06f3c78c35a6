package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/argus/backend/pkg/logger"
	"github.com/wonny/argus/backend/pkg/metrics"
)

const (
	// Ping/Pong settings
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second

	// 구독자는 쓰지 않는다: pong 외의 수신 프레임은 무시됨
	maxMessageSize = 512
	sendBuffer     = 8
)

// Hub fans decision updates out to connected WebSocket clients
// ⭐ SSOT: WebSocket 구독자 관리는 이 허브에서만
//
// New subscribers immediately receive the most recent update, so a
// dashboard reconnecting after the daily run still sees today's decision.
type Hub struct {
	logger  *logger.Logger
	metrics *metrics.Recorder

	upgrader websocket.Upgrader

	register   chan *client
	unregister chan *client
	broadcast  chan *WeightsUpdate
	done       chan struct{}

	// Run 고루틴만 접근
	clients map[*client]bool
	last    *WeightsUpdate
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. Pass a nil recorder to skip the client-count gauge.
func NewHub(log *logger.Logger, rec *metrics.Recorder) *Hub {
	return &Hub{
		logger:  log,
		metrics: rec,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 대시보드는 API와 다른 오리진에서 서빙됨
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan *WeightsUpdate, 16),
		done:       make(chan struct{}),
		clients:    make(map[*client]bool),
	}
}

// Run owns the client set. Call it once in its own goroutine; it returns
// when ctx is cancelled, closing every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.metrics.SetWSClients(len(h.clients))
			h.logger.WithField("clients", len(h.clients)).Debug("WebSocket client connected")

			// 새 구독자에게 마지막 결정을 즉시 재전송
			if h.last != nil {
				if data, err := json.Marshal(h.last); err == nil {
					h.send(c, data)
				}
			}

		case c := <-h.unregister:
			h.drop(c)

		case update := <-h.broadcast:
			h.last = update
			data, err := json.Marshal(update)
			if err != nil {
				h.logger.WithError(err).Error("Failed to marshal weights update")
				continue
			}
			for c := range h.clients {
				h.send(c, data)
			}

		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.metrics.SetWSClients(0)
			return
		}
	}
}

// Broadcast queues an update for all connected clients. Safe on a nil hub
// so callers can wire the hub optionally. Drops the update instead of
// blocking a pipeline run when the queue is full.
func (h *Hub) Broadcast(update *WeightsUpdate) {
	if h == nil || update == nil {
		return
	}

	select {
	case h.broadcast <- update:
	default:
		h.logger.Warn("WebSocket broadcast queue full, dropping update")
	}
}

// ServeWS upgrades the request and subscribes it to weight updates
// GET /ws/weights
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// send hands data to one client without blocking the hub loop.
// A client that cannot keep up loses its slot.
func (h *Hub) send(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.drop(c)
	}
}

func (h *Hub) drop(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.SetWSClients(len(h.clients))
	h.logger.WithField("clients", len(h.clients)).Debug("WebSocket client disconnected")
}

// writePump drains the send channel and keeps the connection alive with pings
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 허브가 연결을 정리함
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; its job is refreshing the pong deadline
// and noticing closed connections.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
