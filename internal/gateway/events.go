package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/flemzord/chatmem/internal/memory"
)

const (
	clientBuffer = 64
	writeTimeout = 10 * time.Second
)

// EventHub streams memory events to websocket subscribers. It implements
// memory.Observer; Observe never blocks, and a subscriber whose buffer is
// full is disconnected.
type EventHub struct {
	mu      sync.Mutex
	clients map[*eventClient]struct{}
	origins []string
	logger  *slog.Logger
	closed  bool
}

type eventClient struct {
	userID string
	send   chan []byte
	once   sync.Once
}

func (c *eventClient) close() {
	c.once.Do(func() { close(c.send) })
}

// Compile-time interface check.
var _ memory.Observer = (*EventHub)(nil)

// NewEventHub creates a hub. origins are the extra Origin host patterns
// accepted on upgrade; same-origin requests are always accepted.
func NewEventHub(origins []string, logger *slog.Logger) *EventHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHub{
		clients: make(map[*eventClient]struct{}),
		origins: origins,
		logger:  logger,
	}
}

// Observe implements memory.Observer.
func (h *EventHub) Observe(e memory.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("gateway: marshal event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.userID != "" && c.userID != e.UserID {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Warn("gateway: event subscriber too slow, disconnecting")
			delete(h.clients, c)
			c.close()
		}
	}
}

// Len returns the number of connected subscribers.
func (h *EventHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every subscriber and rejects new ones.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

func (h *EventHub) register(c *eventClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *EventHub) unregister(c *eventClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
}

// ServeHTTP upgrades the request and streams events until either side
// closes. The optional user_id query parameter filters events to one user.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.Warn("gateway: websocket accept failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	client := &eventClient{
		userID: r.URL.Query().Get("user_id"),
		send:   make(chan []byte, clientBuffer),
	}
	if !h.register(client) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.unregister(client)

	// Subscribers only listen; CloseRead drains control frames and cancels
	// ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case data, ok := <-client.send:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "disconnected")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
