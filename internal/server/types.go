// Package server defines shared errors and utility helpers that are reused
// across client and hub logic.
package server

import (
	"errors"
	"strings"
)

var (
	// ErrSendBufferFull is returned when a client's outbound queue has no room.
	ErrSendBufferFull = errors.New("client send buffer full")
	// ErrClientClosed is returned when sending to a client that is shutting down.
	ErrClientClosed = errors.New("client closed")
	// ErrHubClosed is returned when registering with a hub that is shutting down.
	ErrHubClosed = errors.New("hub is shutting down")
)

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
