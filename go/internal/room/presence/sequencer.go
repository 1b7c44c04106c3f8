package presence

import "sync"

// Transition is a room's connection count crossing zero, or a reset of its timer.
type Transition int

const (
	None Transition = iota
	BecameActive
	BecameIdle
	Reset
)

func (t Transition) String() string {
	switch t {
	case BecameActive:
		return "became_active"
	case BecameIdle:
		return "became_idle"
	case Reset:
		return "reset"
	default:
		return "none"
	}
}

// Ticket is a transition observed by the registry, numbered in observation order for
// its room. The zero Ticket carries no transition.
type Ticket struct {
	RoomID int64
	Kind   Transition
	seq    uint64
}

// Sequencer numbers transitions per room and lets them be applied strictly in that
// order. Every issued ticket must be passed to Controller.Apply exactly once.
type Sequencer struct {
	mu    sync.Mutex
	rooms map[int64]*roomSequence
}

type roomSequence struct {
	issued  uint64
	applied uint64
	cond    *sync.Cond
}

// NewSequencer creates an empty sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{rooms: make(map[int64]*roomSequence)}
}

// Issue returns the next ticket for roomID. Callers issuing presence transitions hold
// the room's registry lock so ticket order matches registry order.
func (s *Sequencer) Issue(roomID int64, kind Transition) Ticket {
	if kind == None {
		return Ticket{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, ok := s.rooms[roomID]
	if !ok {
		rs = &roomSequence{cond: sync.NewCond(&s.mu)}
		s.rooms[roomID] = rs
	}
	t := Ticket{RoomID: roomID, Kind: kind, seq: rs.issued}
	rs.issued++
	return t
}

// wait blocks until every earlier ticket of the room has been applied.
func (s *Sequencer) wait(t Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs := s.rooms[t.RoomID]
	for rs.applied != t.seq {
		rs.cond.Wait()
	}
}

// done marks t applied and drops the room once nothing is outstanding.
func (s *Sequencer) done(t Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs := s.rooms[t.RoomID]
	rs.applied++
	if rs.applied == rs.issued {
		delete(s.rooms, t.RoomID)
	}
	rs.cond.Broadcast()
}

// pending reports the number of rooms with outstanding tickets.
func (s *Sequencer) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}
