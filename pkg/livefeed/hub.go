// Package livefeed pushes every bridge measurement to websocket subscribers
// and serves the most recent one over HTTP.
package livefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/NotCoffee418/energy_bridge/pkg/measurement"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards on the LAN connect from any origin
	},
}

// Hub is a measurement.Sink broadcasting to all connected clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	latest  []byte
	log     *logrus.Entry
}

func NewHub(log *logrus.Entry) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		log:     log,
	}
}

// Submit records m as the latest measurement and broadcasts it.
func (h *Hub) Submit(ctx context.Context, m measurement.Measurement) error {
	msg, err := json.Marshal(m)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.latest = msg
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.write(msg); err != nil {
			h.log.WithError(err).Debug("dropping websocket client")
			h.remove(c)
		}
	}
	return nil
}

// Latest returns the JSON of the last measurement, nil before the first.
func (h *Hub) Latest() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handler serves `/` status, `/latest` and the `/ws` feed.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"message": "Energy Bridge live feed",
			"status":  "running",
			"clients": h.Clients(),
		})
	})

	mux.HandleFunc("GET /latest", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		latest := h.Latest()
		if latest == nil {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "No measurements available yet",
			})
			return
		}
		w.Write(latest)
	})

	mux.HandleFunc("GET /ws", h.serveWs)
	return mux
}

func (h *Hub) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade error")
		return
	}

	c := &client{conn: conn}
	if err := h.add(c); err != nil {
		h.remove(c)
		return
	}

	// Keep connection alive until the subscriber goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

// add registers c and sends it the current measurement. c's write lock is
// taken before the hub lock is released, so a newer broadcast queues behind
// the initial send while other subscribers are served.
func (h *Hub) add(c *client) error {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	latest := h.latest
	c.mu.Lock()
	h.mu.Unlock()
	defer c.mu.Unlock()

	if latest == nil {
		return nil
	}
	return c.writeLocked(latest)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

// Close disconnects all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close()
		delete(h.clients, c)
	}
}
