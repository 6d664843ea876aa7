package relay

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Tyrowin/roomchat/internal/protocol"
	"github.com/Tyrowin/roomchat/internal/rooms"
)

// Human-readable response texts.
const (
	msgInvalidJSON    = "Invalid JSON format"
	msgInvalidAction  = "Invalid action"
	msgNotInAnyRoom   = "Not in any room"
	msgJoinRoomFirst  = "You must join a room first"
	msgRoomGone       = "Room no longer exists"
	msgLeftRoom       = "Left room"
	msgMessageSent    = "Message sent"
	msgInternalFailed = "Server error"
)

// Router decodes client frames and applies them to the room registry.
type Router struct {
	rooms       *rooms.Registry
	broadcaster *Broadcaster
	logger      *slog.Logger
}

// NewRouter builds a Router over the given registry and broadcaster.
func NewRouter(reg *rooms.Registry, broadcaster *Broadcaster, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{rooms: reg, broadcaster: broadcaster, logger: logger}
}

// Handle processes one raw frame from clientID and returns the reply for it.
// Malformed frames are rejected before any state is touched.
func (r *Router) Handle(clientID string, raw []byte) protocol.Response {
	action, err := protocol.Decode(raw)
	if err != nil {
		r.logger.Debug("rejected frame", "client_id", clientID, "error", err)
		return decodeFailure(err)
	}

	switch a := action.(type) {
	case protocol.Create:
		return r.create(clientID, a)
	case protocol.Join:
		return r.join(clientID, a)
	case protocol.Leave:
		return r.leave(clientID)
	case protocol.Message:
		return r.message(clientID, a)
	default:
		return protocol.Failure(msgInvalidAction)
	}
}

func (r *Router) create(clientID string, a protocol.Create) protocol.Response {
	info := r.rooms.Create(clientID, a.Name)
	return protocol.Success(fmt.Sprintf("Room '%s' created", info.Name), info.ID)
}

func (r *Router) join(clientID string, a protocol.Join) protocol.Response {
	info, err := r.rooms.Join(clientID, a.RoomID)
	if err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			return protocol.Failure(fmt.Sprintf("Room %s does not exist", a.RoomID))
		}
		return r.internalFailure(clientID, err)
	}
	return protocol.Success(fmt.Sprintf("Joined room '%s'", info.Name), info.ID)
}

func (r *Router) leave(clientID string) protocol.Response {
	if _, err := r.rooms.Leave(clientID); err != nil {
		if errors.Is(err, rooms.ErrNotInRoom) {
			return protocol.Failure(msgNotInAnyRoom)
		}
		return r.internalFailure(clientID, err)
	}
	return protocol.Success(msgLeftRoom, "")
}

func (r *Router) message(clientID string, a protocol.Message) protocol.Response {
	roomID, ok := r.rooms.CurrentRoom(clientID)
	if !ok {
		return protocol.Failure(msgJoinRoomFirst)
	}

	if _, err := r.broadcaster.Broadcast(roomID, clientID, a.Body); err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			return protocol.Failure(msgRoomGone)
		}
		return r.internalFailure(clientID, err)
	}
	return protocol.Success(msgMessageSent, "")
}

func (r *Router) internalFailure(clientID string, err error) protocol.Response {
	r.logger.Error("action failed", "client_id", clientID, "error", err)
	return protocol.Failure(msgInternalFailed)
}

func decodeFailure(err error) protocol.Response {
	var bodyErr *protocol.BodyError
	switch {
	case errors.As(err, &bodyErr):
		return protocol.Failure("Invalid body: " + bodyErr.Error())
	case errors.Is(err, protocol.ErrUnknownAction):
		return protocol.Failure(msgInvalidAction)
	default:
		return protocol.Failure(msgInvalidJSON)
	}
}
