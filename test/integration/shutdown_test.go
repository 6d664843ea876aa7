package integration

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/server"
	"github.com/Tyrowin/roomchat/test/testhelpers"
)

// freePort reserves an ephemeral port and releases it for the server to bind.
func freePort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

// setupShutdownTestServer starts a hub behind StartServer on a real port.
func setupShutdownTestServer(t *testing.T) (*server.Hub, *http.Server, string) {
	t.Helper()
	addr := freePort(t)
	logger := slog.New(slog.DiscardHandler)

	config := server.NewConfig()
	config.Port = addr
	hub := server.NewHub(config, logger)
	httpServer := server.CreateServer(config.Port, server.SetupRoutes(hub))

	go func() {
		_ = server.StartServer(httpServer, logger)
	}()

	wsURL := "ws://" + addr + "/ws"
	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	return hub, httpServer, wsURL
}

// performGracefulShutdown stops the HTTP server and then the hub, the same
// order the binary uses.
func performGracefulShutdown(t *testing.T, httpServer *http.Server, hub *server.Hub) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger := slog.New(slog.DiscardHandler)
	require.NoError(t, server.ShutdownServer(ctx, httpServer, logger))
	require.NoError(t, hub.Shutdown(5*time.Second))
}

// TestGracefulShutdownWithClients checks that active clients are closed and
// the relay is emptied on shutdown.
func TestGracefulShutdownWithClients(t *testing.T) {
	hub, httpServer, wsURL := setupShutdownTestServer(t)

	const numClients = 5
	clients := make([]*testhelpers.Client, numClients)
	for i := range clients {
		clients[i] = testhelpers.Connect(t, wsURL)
	}
	room := clients[0].Create("closing time").RoomID
	for _, c := range clients[1:] {
		require.Equal(t, "success", c.Join(room).Status)
	}

	performGracefulShutdown(t, httpServer, hub)

	for i, c := range clients {
		require.NoError(t, c.Conn.SetReadDeadline(time.Now().Add(time.Second)))
		_, _, err := c.Conn.ReadMessage()
		assert.Error(t, err, "client %d still open", i)
	}

	stats := hub.Relay().Stats()
	assert.Zero(t, stats.Clients)
	assert.Zero(t, stats.Rooms)
	assert.Zero(t, hub.ClientCount())

	_, err := testhelpers.ConnectWebSocket(wsURL, testhelpers.TestOrigin)
	assert.Error(t, err, "server refuses connections after shutdown")
}

// TestShutdownWithActiveMessages shuts down while two clients are exchanging
// messages.
func TestShutdownWithActiveMessages(t *testing.T) {
	hub, httpServer, wsURL := setupShutdownTestServer(t)

	a := testhelpers.Connect(t, wsURL)
	b := testhelpers.Connect(t, wsURL)
	room := a.Create("chatter").RoomID
	require.Equal(t, "success", b.Join(room).Status)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for _, conn := range []*websocket.Conn{a.Conn, b.Conn} {
		wg.Add(2)
		go func(conn *websocket.Conn) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if err := conn.WriteJSON(map[string]any{"action": "message", "body": "tick"}); err != nil {
					return
				}
				time.Sleep(20 * time.Millisecond)
			}
		}(conn)
		go func(conn *websocket.Conn) {
			defer wg.Done()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}(conn)
	}

	time.Sleep(150 * time.Millisecond)
	performGracefulShutdown(t, httpServer, hub)
	close(stop)
	_ = a.Conn.Close()
	_ = b.Conn.Close()
	wg.Wait()

	assert.Zero(t, hub.Relay().Stats().Clients)
}

// TestConcurrentShutdown checks that racing Shutdown calls all return.
func TestConcurrentShutdown(t *testing.T) {
	hub, httpServer, wsURL := setupShutdownTestServer(t)
	testhelpers.Connect(t, wsURL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.ShutdownServer(ctx, httpServer, slog.New(slog.DiscardHandler)))

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- hub.Shutdown(5 * time.Second)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Zero(t, hub.ClientCount())
}

// TestNoClientsShutdown shuts down a server nobody connected to.
func TestNoClientsShutdown(t *testing.T) {
	hub, httpServer, _ := setupShutdownTestServer(t)

	performGracefulShutdown(t, httpServer, hub)

	_, err := hub.Register(nil, "127.0.0.1:1")
	assert.ErrorIs(t, err, server.ErrHubClosed)
}
