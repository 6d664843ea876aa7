// Package server wires HTTP handlers into a ServeMux for the room relay via
// routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application routes.
// It sets up handlers for health check, WebSocket endpoint, room listing, stats,
// and test page.
func SetupRoutes(hub *Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/ws", WebSocketHandler(hub))
	mux.HandleFunc("/rooms", RoomsHandler(hub))
	mux.HandleFunc("/stats", StatsHandler(hub))
	mux.HandleFunc("/test", TestPageHandler(hub))
	return mux
}
