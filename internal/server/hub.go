// Package server coordinates client registration, pump lifecycle, and
// connection cleanup for the room relay via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/relay"
)

// Hub owns the relay core and the set of live WebSocket clients. Every client
// runs a read pump and a write pump tracked by the hub's wait group.
type Hub struct {
	relay    *relay.Relay
	cfg      Config
	logger   *slog.Logger
	origins  *originPolicy
	upgrader websocket.Upgrader

	mutex   sync.Mutex
	clients map[*Client]struct{}
	closing bool
	wg      sync.WaitGroup
}

// NewHub creates a Hub for cfg with a fresh relay. A nil logger uses slog.Default.
func NewHub(cfg *Config, logger *slog.Logger) *Hub {
	if cfg == nil {
		cfg = NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	sanitized := cfg.sanitized()

	h := &Hub{
		relay:   relay.New(relay.WithLogger(logger)),
		cfg:     sanitized,
		logger:  logger,
		origins: newOriginPolicy(sanitized.AllowedOrigins, logger),
		clients: make(map[*Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.origins.checkOrigin,
	}
	return h
}

// Relay returns the relay core driven by this hub.
func (h *Hub) Relay() *relay.Relay {
	return h.relay
}

// Config returns the sanitized configuration the hub runs with.
func (h *Hub) Config() Config {
	cfg := h.cfg
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// upgrade switches an HTTP request to a WebSocket connection and registers it.
func (h *Hub) upgrade(w http.ResponseWriter, r *http.Request) (*Client, error) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade: %w", err)
	}

	client, err := h.Register(conn, r.RemoteAddr)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return nil, err
	}
	return client, nil
}

// Register assigns conn a client id, queues its welcome frame, and starts its
// pumps.
func (h *Hub) Register(conn *websocket.Conn, addr string) (*Client, error) {
	client := NewClient(conn, h, addr, h.cfg, h.logger)

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closing {
		return nil, ErrHubClosed
	}

	id, err := h.relay.Connect(client)
	if err != nil {
		return nil, err
	}
	client.id = id
	client.logger = client.logger.With("client_id", id)
	h.clients[client] = struct{}{}

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()

	return client, nil
}

// unregister runs the disconnect path for client. Safe to call more than once.
func (h *Hub) unregister(client *Client) {
	h.mutex.Lock()
	_, tracked := h.clients[client]
	delete(h.clients, client)
	h.mutex.Unlock()

	if client.id != "" {
		h.relay.Disconnect(client.id)
	}
	client.close()

	if tracked {
		h.logger.Debug("client unregistered", "client_id", client.id, "remote_addr", client.addr)
	}
}

// ClientCount returns the number of clients with running pumps.
func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// shutdownClients closes every active connection. Each client's read pump then
// runs its normal disconnect path.
func (h *Hub) shutdownClients() int {
	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		client.close()
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.logger.Debug("close client connection", "client_id", client.id, "error", err)
			}
		}
	}
	return len(clients)
}

// Shutdown refuses new clients, closes the existing ones, and waits for their
// pumps to finish or for timeout to elapse.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")

	h.mutex.Lock()
	h.closing = true
	h.mutex.Unlock()

	closed := h.shutdownClients()
	h.logger.Info("closed client connections", "count", closed)

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
