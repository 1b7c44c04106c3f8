package gateway

import (
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gameroom/go/internal/room/presence"
)

// Broadcaster delivers a frame to the connections of a room, skipping exclude.
type Broadcaster interface {
	Broadcast(roomID int64, frame []byte, exclude *Connection) int
}

// Registry tracks live connections per room. The registry mutex guards the room map
// only; each room has its own lock. Slots are dropped when their last connection leaves
// and marked dead so that callers racing on the old pointer retry.
//
// Lock order: a room lock may be held while taking the registry lock, never the reverse.
type Registry struct {
	mu        sync.Mutex
	rooms     map[int64]*roomSlot
	sequencer *presence.Sequencer
}

type roomSlot struct {
	mu    sync.Mutex
	conns []*Connection
	dead  bool
}

// RegisterResult describes the room as observed by Register.
type RegisterResult struct {
	// WasEmpty is true when the room had no connections before the call.
	WasEmpty bool
	// Existing lists the other participants in join order.
	Existing []ParticipantInfo
	// Evicted is the previous connection of the same participant, if any.
	Evicted    *Connection
	Transition presence.Ticket
}

// UnregisterResult describes the room as observed by Unregister.
type UnregisterResult struct {
	Removed    bool
	Remaining  int
	Transition presence.Ticket
}

// RegistryStats summarises the registry for the stats endpoint.
type RegistryStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveRooms      int            `json:"active_rooms"`
	RoomConnections  map[string]int `json:"room_connections"`
}

// NewRegistry creates a registry drawing presence tickets from sequencer.
func NewRegistry(sequencer *presence.Sequencer) *Registry {
	return &Registry{
		rooms:     make(map[int64]*roomSlot),
		sequencer: sequencer,
	}
}

func (r *Registry) slot(roomID int64, create bool) *roomSlot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rooms[roomID]
	if !ok && create {
		s = &roomSlot{}
		r.rooms[roomID] = s
	}
	return s
}

// Register adds conn to its room, evicting any connection with the same participant key.
// The evicted connection stays open; the caller shuts it down.
func (r *Registry) Register(conn *Connection) RegisterResult {
	for {
		s := r.slot(conn.RoomID, true)
		s.mu.Lock()
		if s.dead {
			s.mu.Unlock()
			continue
		}

		res := RegisterResult{WasEmpty: len(s.conns) == 0}
		kept := make([]*Connection, 0, len(s.conns)+1)
		for _, c := range s.conns {
			if c.Participant.Key == conn.Participant.Key {
				res.Evicted = c
				continue
			}
			kept = append(kept, c)
			res.Existing = append(res.Existing, c.Info())
		}
		s.conns = append(kept, conn)
		if res.WasEmpty {
			res.Transition = r.sequencer.Issue(conn.RoomID, presence.BecameActive)
		}
		total := len(s.conns)
		s.mu.Unlock()

		log.Debug().
			Str("connection_id", conn.ID).
			Int64("room_id", conn.RoomID).
			Int("total_connections", total).
			Bool("evicted", res.Evicted != nil).
			Msg("connection registered")
		return res
	}
}

// Unregister removes conn by identity. Removed is false when conn was already evicted or
// unregistered. The room entry is dropped when no connection remains.
func (r *Registry) Unregister(conn *Connection) UnregisterResult {
	s := r.slot(conn.RoomID, false)
	if s == nil {
		return UnregisterResult{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return UnregisterResult{}
	}

	idx := -1
	for i, c := range s.conns {
		if c == conn {
			idx = i
			break
		}
	}
	if idx < 0 {
		return UnregisterResult{Remaining: len(s.conns)}
	}

	s.conns = append(s.conns[:idx:idx], s.conns[idx+1:]...)
	res := UnregisterResult{Removed: true, Remaining: len(s.conns)}
	if res.Remaining == 0 {
		res.Transition = r.sequencer.Issue(conn.RoomID, presence.BecameIdle)
		s.dead = true
		r.mu.Lock()
		if r.rooms[conn.RoomID] == s {
			delete(r.rooms, conn.RoomID)
		}
		r.mu.Unlock()
	}

	log.Debug().
		Str("connection_id", conn.ID).
		Int64("room_id", conn.RoomID).
		Int("remaining", res.Remaining).
		Msg("connection unregistered")
	return res
}

func (r *Registry) members(roomID int64) []*Connection {
	s := r.slot(roomID, false)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return nil
	}
	return append([]*Connection(nil), s.conns...)
}

// Broadcast enqueues frame on every connection of the room at call time except exclude
// and returns the number of connections that accepted it. It never blocks.
func (r *Registry) Broadcast(roomID int64, frame []byte, exclude *Connection) int {
	delivered := 0
	for _, c := range r.members(roomID) {
		if c == exclude {
			continue
		}
		if c.Enqueue(frame) {
			delivered++
		}
	}
	return delivered
}

// Snapshot lists the participants of a room in join order.
func (r *Registry) Snapshot(roomID int64) []ParticipantInfo {
	conns := r.members(roomID)
	infos := make([]ParticipantInfo, 0, len(conns))
	for _, c := range conns {
		infos = append(infos, c.Info())
	}
	return infos
}

// Count returns the number of connections in a room.
func (r *Registry) Count(roomID int64) int {
	return len(r.members(roomID))
}

func (r *Registry) roomIDs() []int64 {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	return ids
}

// Stats returns connection counts per room.
func (r *Registry) Stats() RegistryStats {
	stats := RegistryStats{RoomConnections: make(map[string]int)}
	for _, id := range r.roomIDs() {
		n := r.Count(id)
		if n == 0 {
			continue
		}
		stats.TotalConnections += n
		stats.ActiveRooms++
		stats.RoomConnections[strconv.FormatInt(id, 10)] = n
	}
	return stats
}

// ShutdownAll signals every connection to close.
func (r *Registry) ShutdownAll(reason string) {
	for _, id := range r.roomIDs() {
		for _, c := range r.members(id) {
			c.Shutdown(reason)
		}
	}
}
