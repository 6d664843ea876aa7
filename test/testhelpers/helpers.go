// Package testhelpers provides common utilities for exercising the room relay
// over real HTTP and WebSocket connections.
//
// It wraps a WebSocket connection in a small protocol client that sends
// actions and decodes the server's frames, so integration tests read as
// a sequence of room operations.
package testhelpers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/server"
)

// TestOrigin is the Origin header sent by ConnectWebSocket. The default
// configuration allows it.
const TestOrigin = "http://localhost:8765"

const readTimeout = 2 * time.Second

// StartTestServer runs the full route set for a fresh hub on an httptest
// server. customize, when non-nil, adjusts the configuration first. The server
// and hub are shut down when the test ends.
func StartTestServer(t *testing.T, customize func(cfg *server.Config)) (*server.Hub, *httptest.Server) {
	t.Helper()
	cfg := server.NewConfig()
	if customize != nil {
		customize(cfg)
	}

	hub := server.NewHub(cfg, slog.New(slog.DiscardHandler))
	srv := httptest.NewServer(server.SetupRoutes(hub))
	t.Cleanup(func() {
		srv.Close()
		_ = hub.Shutdown(2 * time.Second)
	})
	return hub, srv
}

// WebSocketURL converts an httptest server URL into the relay's WebSocket URL.
func WebSocketURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// DecodeJSON reads resp's body into v and closes it.
func DecodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
}

// ConnectWebSocket dials url with origin as the Origin header. An empty origin
// sends no header.
func ConnectWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}
	return conn, err
}

// Frame is the union of every frame the relay sends. Fields a frame does not
// carry are left empty.
type Frame struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	ClientID  string          `json:"client_id"`
	RoomID    string          `json:"room_id"`
	From      string          `json:"from"`
	Body      json.RawMessage `json:"body"`
	Timestamp string          `json:"timestamp"`
}

// IsBroadcast reports whether f is a room broadcast rather than a reply.
func (f Frame) IsBroadcast() bool {
	return f.From != ""
}

// Client is a connected relay participant.
type Client struct {
	t    *testing.T
	Conn *websocket.Conn
	ID   string
}

// Connect dials the relay at url, reads the welcome frame, and registers the
// connection for closing when the test ends.
func Connect(t *testing.T, url string) *Client {
	t.Helper()
	conn, err := ConnectWebSocket(url, TestOrigin)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	c := &Client{t: t, Conn: conn}
	welcome := c.ReadFrame()
	if welcome.Status != "connected" || welcome.ClientID == "" {
		t.Fatalf("Expected welcome frame, got %+v", welcome)
	}
	c.ID = welcome.ClientID
	return c
}

// SendAction writes one request frame. A nil body omits the body field.
func (c *Client) SendAction(action string, body any) {
	c.t.Helper()
	req := map[string]any{"action": action}
	if body != nil {
		req["body"] = body
	}
	if err := c.Conn.WriteJSON(req); err != nil {
		c.t.Fatalf("Failed to send %s: %v", action, err)
	}
}

// SendRaw writes data as a single text frame.
func (c *Client) SendRaw(data []byte) {
	c.t.Helper()
	if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.t.Fatalf("Failed to send raw frame: %v", err)
	}
}

// Create asks for a new room and returns the reply.
func (c *Client) Create(name string) Frame {
	c.t.Helper()
	c.SendAction("create", name)
	return c.ReadReply()
}

// Join asks to join roomID and returns the reply.
func (c *Client) Join(roomID string) Frame {
	c.t.Helper()
	c.SendAction("join", map[string]string{"room_id": roomID})
	return c.ReadReply()
}

// Leave asks to leave the current room and returns the reply.
func (c *Client) Leave() Frame {
	c.t.Helper()
	c.SendAction("leave", nil)
	return c.ReadReply()
}

// Say sends body to the current room and returns the reply.
func (c *Client) Say(body any) Frame {
	c.t.Helper()
	c.SendAction("message", body)
	return c.ReadReply()
}

// ReadFrame reads and decodes the next frame.
func (c *Client) ReadFrame() Frame {
	c.t.Helper()
	if err := c.Conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		c.t.Fatalf("Failed to set read deadline: %v", err)
	}
	var f Frame
	if err := c.Conn.ReadJSON(&f); err != nil {
		c.t.Fatalf("Failed to read frame: %v", err)
	}
	return f
}

// ReadReply reads the next frame and fails if it is a broadcast.
func (c *Client) ReadReply() Frame {
	c.t.Helper()
	f := c.ReadFrame()
	if f.IsBroadcast() {
		c.t.Fatalf("Expected reply, got broadcast %+v", f)
	}
	return f
}

// ReadBroadcast reads the next frame and fails if it is not a broadcast.
func (c *Client) ReadBroadcast() Frame {
	c.t.Helper()
	f := c.ReadFrame()
	if !f.IsBroadcast() {
		c.t.Fatalf("Expected broadcast, got %+v", f)
	}
	return f
}

// ExpectNoMessage fails if any frame arrives within timeout. It must be the
// last read on c.
func (c *Client) ExpectNoMessage(timeout time.Duration) {
	c.t.Helper()
	ExpectNoMessage(c.t, c.Conn, timeout)
}

// ExpectNoMessage fails if conn receives a frame within timeout. A timed out
// read leaves the connection unusable, so this must be the last read on conn.
func ExpectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no message, got %s", data)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	t.Fatalf("Unexpected error while waiting for absence of message: %v", err)
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
