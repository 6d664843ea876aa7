// Package server implements the HTTP and WebSocket transport for the room relay.
//
// The implementation is organized into specialized files for configuration,
// origin checks, rate limiting, hub lifecycle, clients, routing, and HTTP
// handlers. Room and membership semantics live in the relay package; this
// package only moves frames between sockets and the relay.
package server
