// Package wsbus is the websocket-transport reference event bus: an
// http.Handler that upgrades connections and fans out published events
// as JSON frames, grounded on agent/streaming's WebSocketStreamConnection
// (mutex-guarded write, context-scoped Read/Write/Close) but adapted from
// a single bidirectional stream to a broadcast hub of one-way subscribers.
package wsbus

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/agentflow-runtime/workflowcore/domain"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Hub accepts websocket connections and broadcasts every published event
// to every currently-connected client. Hub implements events.Handler, so
// it can be registered directly with an events.Emitter.
type Hub struct {
	logger *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex // websocket connections do not support concurrent writes
}

// NewHub creates an empty Hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:  logger.With(zap.String("component", "wsbus")),
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request to a websocket connection and registers
// it as a broadcast subscriber until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "closing")
	}()

	// A subscriber-only connection still needs to observe client-initiated
	// close; block on Read until it errors (close, network failure, or
	// the request context being cancelled).
	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			return
		}
	}
}

// Publish broadcasts e as a JSON frame to every connected client.
// Slow/unresponsive clients get a bounded write deadline so one stuck
// client cannot stall the rest of the broadcast indefinitely.
func (h *Hub) Publish(e domain.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Warn("event marshal failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.mu.Lock()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
			h.logger.Debug("broadcast write failed, dropping client", zap.Error(err))
		}
		cancel()
		c.mu.Unlock()
	}
}

// OnEvent implements events.Handler.
func (h *Hub) OnEvent(e domain.Event) {
	h.Publish(e)
}

// ClientCount returns the number of currently-connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
