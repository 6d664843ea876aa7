// Package relay is the transport-agnostic core of the room relay: it assigns
// client ids, routes decoded actions, fans messages out to rooms, and cleans up
// after disconnects.
package relay

import (
	"sync"

	"github.com/Tyrowin/roomchat/internal/idgen"
)

// Conn is the handle used to deliver frames to one client. Send must not block
// on a slow peer.
type Conn interface {
	Send(frame []byte) error
}

// Connections maps client ids to their live handles.
type Connections struct {
	mu    sync.RWMutex
	conns map[string]Conn
	ids   *idgen.Generator
}

// NewConnections returns an empty registry drawing ids from ids.
func NewConnections(ids *idgen.Generator) *Connections {
	if ids == nil {
		ids = idgen.New()
	}
	return &Connections{
		conns: make(map[string]Conn),
		ids:   ids,
	}
}

// Register stores conn under a fresh client id and returns the id.
func (c *Connections) Register(conn Conn) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.ids.Next(func(candidate string) bool {
		_, exists := c.conns[candidate]
		return exists
	})
	c.conns[id] = conn
	return id
}

// Unregister drops clientID. It reports whether an entry was removed; calling
// it for an absent id is a no-op.
func (c *Connections) Unregister(clientID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.conns[clientID]; !ok {
		return false
	}
	delete(c.conns, clientID)
	return true
}

// Lookup returns the handle registered for clientID.
func (c *Connections) Lookup(clientID string) (Conn, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	conn, ok := c.conns[clientID]
	return conn, ok
}

// Len returns the number of registered clients.
func (c *Connections) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.conns)
}
