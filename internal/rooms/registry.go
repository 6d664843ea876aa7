// Package rooms owns room existence and membership. The room table and the
// client-to-room index live behind a single mutex so they never disagree.
package rooms

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/idgen"
)

var (
	// ErrRoomNotFound is returned when a room id does not name a live room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrNotInRoom is returned when a client has no current room.
	ErrNotInRoom = errors.New("client is not in a room")
)

type room struct {
	id        string
	name      string
	createdAt time.Time
	createdBy string
	members   map[string]struct{}
}

func (r *room) info() Info {
	members := make([]string, 0, len(r.members))
	for id := range r.members {
		members = append(members, id)
	}
	sort.Strings(members)
	return Info{
		ID:        r.id,
		Name:      r.name,
		CreatedAt: r.createdAt,
		CreatedBy: r.createdBy,
		Members:   members,
	}
}

// Info is a point-in-time copy of a room. Members is sorted.
type Info struct {
	ID        string    `json:"room_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"`
	Members   []string  `json:"members"`
}

// LeaveResult describes the room a client left.
type LeaveResult struct {
	RoomID  string
	Name    string
	Deleted bool
}

// Registry holds every live room and the index of which room each client is in.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]*room
	index  map[string]string
	ids    *idgen.Generator
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for room lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithIDGenerator replaces the room id generator.
func WithIDGenerator(g *idgen.Generator) Option {
	return func(r *Registry) {
		if g != nil {
			r.ids = g
		}
	}
}

// WithClock replaces the clock used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		rooms:  make(map[string]*room),
		index:  make(map[string]string),
		ids:    idgen.New(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create makes a new room containing only creatorID. If the creator is already
// in a room, that membership is dropped first.
func (r *Registry) Create(creatorID, name string) Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[creatorID]; ok {
		r.leaveLocked(creatorID)
	}

	id := r.ids.Next(func(candidate string) bool {
		_, exists := r.rooms[candidate]
		return exists
	})
	rm := &room{
		id:        id,
		name:      name,
		createdAt: r.now(),
		createdBy: creatorID,
		members:   map[string]struct{}{creatorID: {}},
	}
	r.rooms[id] = rm
	r.index[creatorID] = id

	r.logger.Info("room created", "room_id", id, "name", name, "created_by", creatorID)
	return rm.info()
}

// Join moves clientID into roomID, vacating any previous room. Joining the room
// the client is already in is a no-op.
func (r *Registry) Join(clientID, roomID string) (Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.rooms[roomID]
	if !ok {
		r.logger.Debug("join of unknown room", "client_id", clientID, "room_id", roomID)
		return Info{}, ErrRoomNotFound
	}

	if current, ok := r.index[clientID]; ok {
		if current == roomID {
			return target.info(), nil
		}
		r.leaveLocked(clientID)
	}

	target.members[clientID] = struct{}{}
	r.index[clientID] = roomID

	r.logger.Info("client joined room", "client_id", clientID, "room_id", roomID, "name", target.name, "members", len(target.members))
	return target.info(), nil
}

// Leave removes clientID from its room, deleting the room once it is empty.
func (r *Registry) Leave(clientID string) (LeaveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[clientID]; !ok {
		return LeaveResult{}, ErrNotInRoom
	}
	return r.leaveLocked(clientID), nil
}

func (r *Registry) leaveLocked(clientID string) LeaveResult {
	roomID := r.index[clientID]
	delete(r.index, clientID)

	res := LeaveResult{RoomID: roomID}
	rm, ok := r.rooms[roomID]
	if !ok {
		return res
	}
	res.Name = rm.name

	delete(rm.members, clientID)
	r.logger.Info("client left room", "client_id", clientID, "room_id", roomID)

	if len(rm.members) == 0 {
		delete(r.rooms, roomID)
		res.Deleted = true
		r.logger.Info("room deleted", "room_id", roomID, "name", rm.name)
	}
	return res
}

// CurrentRoom reports the room clientID belongs to.
func (r *Registry) CurrentRoom(clientID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.index[clientID]
	return roomID, ok
}

// Members returns the current members of roomID, sorted.
func (r *Registry) Members(roomID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return rm.info().Members, nil
}

// Get returns a snapshot of roomID.
func (r *Registry) Get(roomID string) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return Info{}, false
	}
	return rm.info(), true
}

// List returns a snapshot of every room ordered by creation time.
func (r *Registry) List() []Info {
	r.mu.Lock()
	out := make([]Info, 0, len(r.rooms))
	for _, rm := range r.rooms {
		out = append(out, rm.info())
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
