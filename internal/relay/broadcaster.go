package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/roomchat/internal/protocol"
	"github.com/Tyrowin/roomchat/internal/rooms"
)

var (
	// ErrDeliveryFailed wraps the cause of a failed delivery to one recipient.
	ErrDeliveryFailed = errors.New("delivery failed")
	// ErrRecipientGone is the cause when a member has no registered connection.
	ErrRecipientGone = errors.New("recipient has no connection")
)

// Result is the per-recipient outcome of one broadcast.
type Result struct {
	RoomID     string
	Recipients int
	Delivered  []string
	Failed     map[string]error
}

// Broadcaster delivers room messages to every member except the sender.
type Broadcaster struct {
	rooms  *rooms.Registry
	conns  *Connections
	now    func() time.Time
	logger *slog.Logger
}

// NewBroadcaster wires a Broadcaster to the room and connection registries.
func NewBroadcaster(reg *rooms.Registry, conns *Connections, now func() time.Time, logger *slog.Logger) *Broadcaster {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{rooms: reg, conns: conns, now: now, logger: logger}
}

// Broadcast sends payload from senderID to the other members of roomID. All
// deliveries run concurrently and Broadcast returns once each has finished;
// a failed delivery does not cancel its siblings.
// Individual failures are logged and reported in the Result only; the only
// error returned is rooms.ErrRoomNotFound.
func (b *Broadcaster) Broadcast(roomID, senderID string, payload json.RawMessage) (Result, error) {
	members, err := b.rooms.Members(roomID)
	if err != nil {
		return Result{RoomID: roomID}, err
	}

	frame, err := json.Marshal(protocol.NewBroadcast(senderID, payload, b.now()))
	if err != nil {
		return Result{RoomID: roomID}, fmt.Errorf("encode broadcast: %w", err)
	}

	res := Result{RoomID: roomID, Failed: make(map[string]error)}
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, id := range members {
		if id == senderID {
			continue
		}
		res.Recipients++
		g.Go(func() error {
			err := b.deliver(id, frame)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed[id] = err
				b.logger.Warn("broadcast delivery failed", "room_id", roomID, "from", senderID, "to", id, "error", err)
				return fmt.Errorf("deliver to %s: %w", id, err)
			}
			res.Delivered = append(res.Delivered, id)
			return nil
		})
	}
	// Wait reports the first failed delivery; the rest are in res.Failed.
	firstErr := g.Wait()

	b.logger.Debug("broadcast complete", "room_id", roomID, "from", senderID,
		"recipients", res.Recipients, "delivered", len(res.Delivered), "failed", len(res.Failed),
		"first_error", firstErr)
	return res, nil
}

func (b *Broadcaster) deliver(clientID string, frame []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrDeliveryFailed, r)
		}
	}()

	conn, ok := b.conns.Lookup(clientID)
	if !ok {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, ErrRecipientGone)
	}
	if err := conn.Send(frame); err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return nil
}
