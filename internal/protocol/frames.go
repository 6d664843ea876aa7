// Package protocol defines the JSON frames exchanged over a connection and
// decodes inbound request envelopes into typed actions.
package protocol

import (
	"encoding/json"
	"time"
)

// Response statuses.
const (
	StatusConnected = "connected"
	StatusSuccess   = "success"
	StatusError     = "error"
)

// WelcomeMessage is the text sent in every welcome frame.
const WelcomeMessage = "Welcome!"

// Welcome is sent once, immediately after a connection is accepted.
type Welcome struct {
	Status   string `json:"status"`
	ClientID string `json:"client_id"`
	Message  string `json:"message"`
}

// NewWelcome builds the welcome frame for clientID.
func NewWelcome(clientID string) Welcome {
	return Welcome{Status: StatusConnected, ClientID: clientID, Message: WelcomeMessage}
}

// Request is the envelope every client frame must match.
type Request struct {
	Action string          `json:"action"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// Response is the synchronous reply to a request.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	RoomID  string `json:"room_id,omitempty"`
}

// Success builds a success response.
func Success(message, roomID string) Response {
	return Response{Status: StatusSuccess, Message: message, RoomID: roomID}
}

// Failure builds an error response.
func Failure(message string) Response {
	return Response{Status: StatusError, Message: message}
}

// IsSuccess reports whether the response carries the success status.
func (r Response) IsSuccess() bool {
	return r.Status == StatusSuccess
}

// Broadcast is delivered to the other members of the sender's room.
type Broadcast struct {
	From      string          `json:"from"`
	Body      json.RawMessage `json:"body"`
	Timestamp string          `json:"timestamp"`
}

// NewBroadcast builds a broadcast frame stamped with at in UTC.
func NewBroadcast(from string, body json.RawMessage, at time.Time) Broadcast {
	if len(body) == 0 {
		body = json.RawMessage("null")
	}
	return Broadcast{
		From:      from,
		Body:      body,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
	}
}
