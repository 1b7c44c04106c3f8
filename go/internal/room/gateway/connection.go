package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gameroom/go/internal/room/identity"
)

// Connection is one live client attached to a room. It owns a bounded outbound queue that
// the write pump drains; the queue is never closed; shutdown is signalled through Done.
type Connection struct {
	ID          string
	RoomID      int64
	Participant identity.Participant
	ConnectedAt time.Time

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	reason    string
}

// NewConnection creates a connection with an outbound queue of the given capacity.
func NewConnection(roomID int64, p identity.Participant, buffer int, now time.Time) *Connection {
	if buffer <= 0 {
		buffer = 1
	}
	return &Connection{
		ID:          uuid.New().String(),
		RoomID:      roomID,
		Participant: p,
		ConnectedAt: now,
		send:        make(chan []byte, buffer),
		done:        make(chan struct{}),
	}
}

// Enqueue queues frame without blocking. A full queue marks the connection as a slow
// consumer and shuts it down.
func (c *Connection) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		log.Warn().
			Str("connection_id", c.ID).
			Int64("room_id", c.RoomID).
			Msg("connection send buffer full, closing connection")
		c.Shutdown("slow consumer")
		return false
	}
}

// Shutdown signals the pumps to stop. Only the first reason is kept.
func (c *Connection) Shutdown(reason string) {
	c.closeOnce.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

// Done is closed once the connection has been shut down.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Outbound is the queue of frames waiting to be written.
func (c *Connection) Outbound() <-chan []byte {
	return c.send
}

// Reason returns the shutdown reason, empty while the connection is open.
func (c *Connection) Reason() string {
	select {
	case <-c.done:
		return c.reason
	default:
		return ""
	}
}

// Info describes the connection's participant for presence events.
func (c *Connection) Info() ParticipantInfo {
	return ParticipantInfo{
		PlayerID:    c.Participant.ID,
		Username:    c.Participant.DisplayName,
		PlayerColor: c.Participant.Color,
	}
}
