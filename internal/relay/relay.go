package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Tyrowin/roomchat/internal/idgen"
	"github.com/Tyrowin/roomchat/internal/protocol"
	"github.com/Tyrowin/roomchat/internal/rooms"
)

// Stats is a snapshot of relay occupancy.
type Stats struct {
	Clients int `json:"clients"`
	Rooms   int `json:"rooms"`
}

// Relay ties the registries, router and broadcaster together and owns the
// connect and disconnect paths.
type Relay struct {
	conns       *Connections
	rooms       *rooms.Registry
	broadcaster *Broadcaster
	router      *Router
	logger      *slog.Logger
}

// Option configures a Relay.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	clientIDs *idgen.Generator
	roomIDs   *idgen.Generator
	now       func() time.Time
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClientIDs replaces the client id generator.
func WithClientIDs(g *idgen.Generator) Option {
	return func(o *options) { o.clientIDs = g }
}

// WithRoomIDs replaces the room id generator.
func WithRoomIDs(g *idgen.Generator) Option {
	return func(o *options) { o.roomIDs = g }
}

// WithClock replaces the clock used for room creation and broadcast timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New builds a Relay with empty registries.
func New(opts ...Option) *Relay {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	conns := NewConnections(o.clientIDs)
	reg := rooms.NewRegistry(
		rooms.WithLogger(o.logger),
		rooms.WithIDGenerator(o.roomIDs),
		rooms.WithClock(o.now),
	)
	broadcaster := NewBroadcaster(reg, conns, o.now, o.logger)

	return &Relay{
		conns:       conns,
		rooms:       reg,
		broadcaster: broadcaster,
		router:      NewRouter(reg, broadcaster, o.logger),
		logger:      o.logger,
	}
}

// Connect registers conn and sends it the welcome frame. If the welcome cannot
// be sent the registration is rolled back.
func (r *Relay) Connect(conn Conn) (string, error) {
	clientID := r.conns.Register(conn)

	frame, err := json.Marshal(protocol.NewWelcome(clientID))
	if err == nil {
		err = conn.Send(frame)
	}
	if err != nil {
		r.Disconnect(clientID)
		return "", fmt.Errorf("send welcome to %s: %w", clientID, err)
	}

	r.logger.Info("client connected", "client_id", clientID, "clients", r.conns.Len())
	return clientID, nil
}

// Handle applies one raw frame from clientID and returns the encoded reply.
func (r *Relay) Handle(clientID string, raw []byte) []byte {
	resp := r.router.Handle(clientID, raw)
	frame, err := json.Marshal(resp)
	if err != nil {
		r.logger.Error("encode response", "client_id", clientID, "error", err)
		frame, _ = json.Marshal(protocol.Failure(msgInternalFailed))
	}
	return frame
}

// Disconnect drops clientID from the connection registry and from its room.
// It is safe to call more than once.
func (r *Relay) Disconnect(clientID string) {
	removed := r.conns.Unregister(clientID)

	if res, err := r.rooms.Leave(clientID); err == nil {
		r.logger.Debug("disconnect vacated room", "client_id", clientID, "room_id", res.RoomID, "room_deleted", res.Deleted)
	}

	if removed {
		r.logger.Info("client disconnected", "client_id", clientID, "clients", r.conns.Len())
	}
}

// Rooms returns a snapshot of every live room.
func (r *Relay) Rooms() []rooms.Info {
	return r.rooms.List()
}

// Room returns a snapshot of roomID.
func (r *Relay) Room(roomID string) (rooms.Info, bool) {
	return r.rooms.Get(roomID)
}

// CurrentRoom reports the room clientID is in.
func (r *Relay) CurrentRoom(clientID string) (string, bool) {
	return r.rooms.CurrentRoom(clientID)
}

// Stats returns current client and room counts.
func (r *Relay) Stats() Stats {
	return Stats{Clients: r.conns.Len(), Rooms: r.rooms.Len()}
}
