package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Action kinds accepted in a request envelope.
const (
	KindCreate  = "create"
	KindJoin    = "join"
	KindLeave   = "leave"
	KindMessage = "message"
)

var (
	// ErrDecode marks a frame that is not a well-formed envelope, or whose body
	// has the wrong shape for its action.
	ErrDecode = errors.New("decode error")
	// ErrUnknownAction marks an envelope naming an action outside the known set.
	ErrUnknownAction = errors.New("unknown action")
)

// BodyError reports an envelope whose body does not fit its action. It
// matches ErrDecode.
type BodyError struct {
	Action string
	Want   string
}

func (e *BodyError) Error() string {
	return fmt.Sprintf("%s body must be %s", e.Action, e.Want)
}

func (e *BodyError) Unwrap() error { return ErrDecode }

// Action is one decoded request. The concrete type selects the handler.
type Action interface {
	Kind() string
}

// Create asks for a new room named Name.
type Create struct {
	Name string
}

// Join asks to enter an existing room.
type Join struct {
	RoomID string `json:"room_id"`
}

// Leave asks to vacate the current room.
type Leave struct{}

// Message carries an opaque payload for the rest of the room.
type Message struct {
	Body json.RawMessage
}

func (Create) Kind() string  { return KindCreate }
func (Join) Kind() string    { return KindJoin }
func (Leave) Kind() string   { return KindLeave }
func (Message) Kind() string { return KindMessage }

// Decode parses raw into an Action. Errors wrap ErrDecode or ErrUnknownAction.
func Decode(raw []byte) (Action, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: frame is not a JSON object", ErrDecode)
	}
	// Message bodies are relayed verbatim in text frames, which must be UTF-8.
	if !utf8.Valid(trimmed) {
		return nil, fmt.Errorf("%w: frame is not valid UTF-8", ErrDecode)
	}

	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	switch req.Action {
	case KindCreate:
		var name string
		if err := decodeBody(req.Body, &name); err != nil {
			return nil, &BodyError{Action: KindCreate, Want: "a room name string"}
		}
		return Create{Name: name}, nil

	case KindJoin:
		var join Join
		if err := decodeBody(req.Body, &join); err != nil || join.RoomID == "" {
			return nil, &BodyError{Action: KindJoin, Want: `an object with a "room_id" string`}
		}
		return join, nil

	case KindLeave:
		return Leave{}, nil

	case KindMessage:
		body := req.Body
		if len(body) == 0 {
			body = json.RawMessage("null")
		}
		return Message{Body: body}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
}

func decodeBody(body json.RawMessage, v any) error {
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return errors.New("missing body")
	}
	return json.Unmarshal(body, v)
}
