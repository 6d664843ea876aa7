// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

const (
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	writeWait    = 10 * time.Second
	rateLimitMsg = "Rate limit exceeded"
)

var rateLimitedFrame = mustMarshal(protocol.Failure(rateLimitMsg))

// Client represents a WebSocket client connection in the relay. It is the
// delivery handle registered with the relay under the client's id.
type Client struct {
	id             string
	conn           *websocket.Conn
	send           chan []byte
	done           chan struct{}
	closeOnce      sync.Once
	hub            *Hub
	addr           string
	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
	logger         *slog.Logger
}

// NewClient creates a new Client for conn. The send queue holds up to
// cfg.SendBufferSize frames.
func NewClient(conn *websocket.Conn, hub *Hub, addr string, cfg Config, logger *slog.Logger) *Client {
	cfg = cfg.sanitized()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		conn:           conn,
		send:           make(chan []byte, cfg.SendBufferSize),
		done:           make(chan struct{}),
		hub:            hub,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
		logger:         logger.With("remote_addr", addr),
	}
}

// ID returns the relay-assigned client id, empty until registered.
func (c *Client) ID() string {
	return c.id
}

// Send queues frame for the write pump. It never blocks: a full queue or a
// closed client is reported as an error.
func (c *Client) Send(frame []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrSendBufferFull
	}
}

// close stops the write pump. Safe to call more than once.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Debug("set initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Debug("set read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// handleReadError logs the reason the read loop is ending.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("message exceeded maximum size", "client_id", c.id, "max_bytes", c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.logger.Debug("client closed connection", "client_id", c.id, "error", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.logger.Debug("connection closed", "client_id", c.id, "error", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.logger.Warn("unexpected WebSocket close", "client_id", c.id, "error", err)
	default:
		c.logger.Warn("WebSocket read error", "client_id", c.id, "error", err)
	}
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the message should be processed
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.logger.Debug("rate limit exceeded; rejecting frame", "client_id", c.id,
			"burst", c.rateLimit.Burst, "interval", c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// processMessage hands one inbound frame to the relay and queues the reply.
func (c *Client) processMessage(rawMessage []byte) {
	reply := rateLimitedFrame
	if c.checkRateLimit() {
		reply = c.hub.relay.Handle(c.id, rawMessage)
	}

	if err := c.Send(reply); err != nil {
		c.logger.Warn("could not queue reply", "client_id", c.id, "error", err)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Debug("close connection in readPump", "client_id", c.id, "error", err)
		}
	}()

	c.setupReadConnection()

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		c.processMessage(rawMessage)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message := <-c.send:
		return c.writeTextMessage(message)
	case <-c.done:
		c.drainQueue()
		return c.writeCloseMessage()
	case <-ticker.C:
		return c.handlePing()
	}
}

// drainQueue flushes frames queued before the client was closed.
func (c *Client) drainQueue() {
	for {
		select {
		case message := <-c.send:
			if !c.writeTextMessage(message) {
				return
			}
		default:
			return
		}
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.logger.Debug("close connection in writePump", "client_id", c.id, "error", err)
	}
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	err := c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil && !isExpectedCloseError(err) {
		c.logger.Debug("write close message", "client_id", c.id, "error", err)
	}
	return false
}

// writeTextMessage writes one frame as its own WebSocket text message.
func (c *Client) writeTextMessage(message []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Debug("set write deadline", "client_id", c.id, "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn("write message", "client_id", c.id, "error", err)
		}
		return false
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Debug("set write deadline for ping", "client_id", c.id, "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Debug("write ping", "client_id", c.id, "error", err)
		return false
	}
	return true
}
