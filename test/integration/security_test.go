package integration

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/server"
	"github.com/Tyrowin/roomchat/test/testhelpers"
)

// TestOriginValidationEdgeCases checks which Origin headers may open a connection.
func TestOriginValidationEdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		ok      bool
	}{
		{name: "allowed origin", allowed: []string{"http://chat.example"}, origin: "http://chat.example", ok: true},
		{name: "allowed origin different case", allowed: []string{"http://chat.example"}, origin: "HTTP://CHAT.EXAMPLE", ok: true},
		{name: "missing origin header", allowed: []string{"http://chat.example"}, origin: "", ok: true},
		{name: "disallowed origin", allowed: []string{"http://chat.example"}, origin: "http://evil.example", ok: false},
		{name: "disallowed port", allowed: []string{"http://chat.example"}, origin: "http://chat.example:8080", ok: false},
		{name: "wildcard", allowed: []string{"*"}, origin: "http://anything.example", ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub, srv := testhelpers.StartTestServer(t, func(cfg *server.Config) {
				cfg.AllowedOrigins = tt.allowed
			})

			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(testhelpers.WebSocketURL(srv.URL), header)
			if resp != nil {
				defer func() { _ = resp.Body.Close() }()
			}

			if !tt.ok {
				require.Error(t, err)
				require.NotNil(t, resp)
				assert.Equal(t, http.StatusForbidden, resp.StatusCode)
				assert.Zero(t, hub.Relay().Stats().Clients)
				return
			}

			require.NoError(t, err)
			defer func() { _ = conn.Close() }()
			var welcome testhelpers.Frame
			require.NoError(t, conn.ReadJSON(&welcome))
			assert.Equal(t, "connected", welcome.Status)
		})
	}
}

// TestMessageSizeLimit checks that an oversized frame closes the sender's
// connection and runs its disconnect path.
func TestMessageSizeLimit(t *testing.T) {
	const limit int64 = 128
	hub, srv := testhelpers.StartTestServer(t, func(cfg *server.Config) {
		cfg.MaxMessageSize = limit
	})
	wsURL := testhelpers.WebSocketURL(srv.URL)

	sender := testhelpers.Connect(t, wsURL)
	receiver := testhelpers.Connect(t, wsURL)
	room := sender.Create("limits").RoomID
	require.Equal(t, "success", receiver.Join(room).Status)

	small := sender.Say(strings.Repeat("a", 32))
	require.Equal(t, "success", small.Status)
	receiver.ReadBroadcast()

	oversized := []byte(`{"action":"message","body":"` + strings.Repeat("A", int(limit)+10) + `"}`)
	err := sender.Conn.WriteMessage(websocket.TextMessage, oversized)
	if err != nil && !websocket.IsCloseError(err, websocket.CloseMessageTooBig) {
		t.Fatalf("Unexpected error writing oversized message: %v", err)
	}

	require.NoError(t, sender.Conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, readErr := sender.Conn.ReadMessage()
	assert.Error(t, readErr, "connection closes after oversized frame")

	require.Eventually(t, func() bool {
		return hub.Relay().Stats().Clients == 1
	}, 2*time.Second, 10*time.Millisecond)
	info, ok := hub.Relay().Room(room)
	require.True(t, ok)
	assert.Equal(t, []string{receiver.ID}, info.Members)

	receiver.ExpectNoMessage(150 * time.Millisecond)
}

// TestRateLimiting checks that frames over the burst get an error reply and
// that the bucket refills.
func TestRateLimiting(t *testing.T) {
	rateCfg := server.RateLimitConfig{Burst: 2, RefillInterval: time.Second}
	_, srv := testhelpers.StartTestServer(t, func(cfg *server.Config) {
		cfg.RateLimit = rateCfg
	})
	client := testhelpers.Connect(t, testhelpers.WebSocketURL(srv.URL))

	for i := 0; i < rateCfg.Burst+1; i++ {
		client.SendAction("create", "burst")
	}

	for i := 0; i < rateCfg.Burst; i++ {
		assert.Equal(t, "success", client.ReadReply().Status, "frame %d within burst", i)
	}
	limited := client.ReadReply()
	assert.Equal(t, "error", limited.Status)
	assert.Equal(t, "Rate limit exceeded", limited.Message)

	time.Sleep(rateCfg.RefillInterval)

	after := client.Create("after refill")
	assert.Equal(t, "success", after.Status)
}
