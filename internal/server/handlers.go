// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, room listings, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// WebSocketHandler upgrades GET requests to WebSocket connections and hands
// them to hub. The hub sends the welcome frame and starts the client's pumps.
func WebSocketHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		if _, err := hub.upgrade(w, r); err != nil {
			hub.logger.Warn("WebSocket connection rejected", "remote_addr", r.RemoteAddr, "error", err)
		}
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Room relay is running!")
}

// RoomsHandler lists every live room as JSON.
func RoomsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(hub, w, hub.relay.Rooms())
	}
}

// StatsHandler reports connected client and room counts as JSON.
func StatsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(hub, w, hub.relay.Stats())
	}
}

func writeJSON(hub *Hub, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hub.logger.Warn("write JSON response", "error", err)
	}
}

// TestPageHandler serves an HTML page that speaks the room protocol, for
// trying the relay from a browser.
func TestPageHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := fmt.Fprint(w, testPageHTML); err != nil {
			hub.logger.Warn("write HTML response", "error", err)
		}
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Room Relay Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #log {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
        }
        input[type="text"] { width: 220px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; margin-right: 5px; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>Room Relay Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>
    <button id="connectButton" onclick="toggleConnection()">Connect</button>

    <p>
        <input type="text" id="roomName" placeholder="Room name">
        <button onclick="send('create', value('roomName'))">Create</button>
    </p>
    <p>
        <input type="text" id="roomId" placeholder="Room id">
        <button onclick="send('join', {room_id: value('roomId')})">Join</button>
        <button onclick="send('leave')">Leave</button>
    </p>
    <p>
        <input type="text" id="message" placeholder="Message">
        <button onclick="send('message', value('message'))">Send</button>
    </p>

    <div id="log"></div>

    <script>
        let ws = null;
        const logDiv = document.getElementById('log');
        const statusDiv = document.getElementById('status');
        const connectButton = document.getElementById('connectButton');

        function value(id) { return document.getElementById(id).value.trim(); }

        function log(text, color) {
            const line = document.createElement('div');
            line.style.color = color || 'gray';
            line.textContent = text;
            logDiv.appendChild(line);
            logDiv.scrollTop = logDiv.scrollHeight;
        }

        function updateStatus(connected, clientId) {
            statusDiv.textContent = connected ? 'Connected as ' + clientId : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function connect() {
            ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
            ws.onmessage = function(event) {
                const frame = JSON.parse(event.data);
                if (frame.status === 'connected') {
                    updateStatus(true, frame.client_id);
                }
                if (frame.room_id) {
                    document.getElementById('roomId').value = frame.room_id;
                }
                log(event.data, frame.from ? 'green' : 'black');
            };
            ws.onclose = function() {
                log('Connection closed');
                updateStatus(false);
                ws = null;
            };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function send(action, body) {
            if (!ws || ws.readyState !== WebSocket.OPEN) {
                log('Not connected', 'red');
                return;
            }
            const frame = JSON.stringify(body === undefined ? {action: action} : {action: action, body: body});
            ws.send(frame);
            log('> ' + frame, 'blue');
        }
    </script>
</body>
</html>`
