package api

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/caretide/caretide/internal/metrics"
)

// Hub fans a change signal out to connected dashboard clients. Clients get a
// small "changed" event and re-fetch; the hub never pushes timeline payloads
// itself, so every renderer reads through the same API surface.
type Hub struct {
	logger *zap.Logger

	mu     sync.Mutex
	conns  map[*websocket.Conn]chan struct{}
	closed bool
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger: logger,
		conns:  make(map[*websocket.Conn]chan struct{}),
	}
}

// Serve registers the connection and blocks until it drops.
func (h *Hub) Serve(c *websocket.Conn) {
	notify := make(chan struct{}, 1)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.Close()
		return
	}
	h.conns[c] = notify
	h.mu.Unlock()

	metrics.Default().IncrementActiveSockets()
	defer func() {
		h.mu.Lock()
		delete(h.conns, c)
		h.mu.Unlock()
		metrics.Default().DecrementActiveSockets()
		c.Close()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			// Clients only ping; any read error means the peer is gone.
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-notify:
			if err := c.WriteJSON(map[string]interface{}{
				"type": "changed",
				"at":   time.Now().Unix(),
			}); err != nil {
				h.logger.Warn("WebSocket write error", zap.Error(err))
				return
			}
		}
	}
}

// NotifyChanged signals every connected client that timeline state moved.
// Signals coalesce per client; a slow reader sees at most one pending event.
func (h *Hub) NotifyChanged() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, notify := range h.conns {
		select {
		case notify <- struct{}{}:
		default:
		}
	}
}

// Close drops all connections and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.conns {
		c.Close()
	}
	h.conns = make(map[*websocket.Conn]chan struct{})
}
