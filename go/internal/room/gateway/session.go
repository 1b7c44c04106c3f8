package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gameroom/go/internal/room/identity"
	"github.com/mcdev12/gameroom/go/internal/room/presence"
	"github.com/mcdev12/gameroom/go/internal/room/scoring"
	"github.com/mcdev12/gameroom/go/internal/room/store"
)

// SessionState is the lifecycle stage of a session.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateActive
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	default:
		return "closed"
	}
}

// Hub holds the dependencies shared by every session.
type Hub struct {
	registry   *Registry
	fanout     Broadcaster
	presence   *presence.Controller
	scoring    *scoring.Engine
	responses  store.ResponseStore
	policy     *Policy
	clock      clockwork.Clock
	sendBuffer int

	liveMu   sync.Mutex
	draining bool
	live     sync.WaitGroup
}

// HubOptions configures NewHub. Fanout defaults to the registry and Policy to
// DefaultPolicy.
type HubOptions struct {
	Registry   *Registry
	Fanout     Broadcaster
	Presence   *presence.Controller
	Scoring    *scoring.Engine
	Responses  store.ResponseStore
	Policy     *Policy
	SendBuffer int
}

// NewHub creates a hub.
func NewHub(opts HubOptions) *Hub {
	h := &Hub{
		registry:   opts.Registry,
		fanout:     opts.Fanout,
		presence:   opts.Presence,
		scoring:    opts.Scoring,
		responses:  opts.Responses,
		policy:     opts.Policy,
		clock:      opts.Presence.Clock(),
		sendBuffer: opts.SendBuffer,
	}
	if h.fanout == nil {
		h.fanout = h.registry
	}
	if h.policy == nil {
		h.policy = DefaultPolicy()
	}
	if h.sendBuffer <= 0 {
		h.sendBuffer = 256
	}
	return h
}

// Registry returns the hub's connection registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Broadcast encodes e and fans it out to the room.
func (h *Hub) Broadcast(roomID int64, e Event, exclude *Connection) (int, error) {
	frame, err := EncodeEvent(e)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s: %w", e.EventType(), err)
	}
	return h.fanout.Broadcast(roomID, frame, exclude), nil
}

// RoomReset resets the timer of a room whose state was just cleared and tells its
// participants.
func (h *Hub) RoomReset(ctx context.Context, roomID int64, resetBy string) {
	h.presence.ResetTimer(ctx, roomID)
	n, err := h.Broadcast(roomID, &RoomResetEvent{ResetBy: resetBy}, nil)
	if err != nil {
		log.Error().Err(err).Int64("room_id", roomID).Msg("failed to broadcast room reset")
		return
	}
	log.Info().Int64("room_id", roomID).Str("reset_by", resetBy).Int("connections", n).Msg("room reset broadcast")
}

// track reserves a slot for a session about to be served. It reports false once Drain
// has started.
func (h *Hub) track() bool {
	h.liveMu.Lock()
	defer h.liveMu.Unlock()
	if h.draining {
		return false
	}
	h.live.Add(1)
	return true
}

func (h *Hub) untrack() {
	h.live.Done()
}

func (h *Hub) isDraining() bool {
	h.liveMu.Lock()
	defer h.liveMu.Unlock()
	return h.draining
}

// Drain stops accepting sessions, shuts down every live connection and waits until
// each tracked session has run its exit action, or until ctx is done.
func (h *Hub) Drain(ctx context.Context, reason string) error {
	h.liveMu.Lock()
	h.draining = true
	h.liveMu.Unlock()

	h.registry.ShutdownAll(reason)

	done := make(chan struct{})
	go func() {
		h.live.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to drain sessions: %w", ctx.Err())
	}
}

// NewSession creates a session for an authenticated participant of roomID. Nothing is
// registered until Activate.
func (h *Hub) NewSession(roomID int64, p identity.Participant) *Session {
	return &Session{
		hub:  h,
		conn: NewConnection(roomID, p, h.sendBuffer, h.clock.Now()),
	}
}

// Session drives one connection through Connecting, Active and Closed. It knows nothing
// about the transport: frames come in through HandleFrame and go out through the
// connection's outbound queue.
type Session struct {
	hub       *Hub
	conn      *Connection
	mu        sync.Mutex
	state     SessionState
	closeOnce sync.Once
}

// Conn returns the session's connection.
func (s *Session) Conn() *Connection {
	return s.conn
}

// State returns the current lifecycle stage.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st SessionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Activate registers the connection, evicts an older connection of the same participant,
// applies the presence transition, sends the current participant list to the newcomer
// and announces the newcomer to the room.
func (s *Session) Activate(ctx context.Context) {
	res := s.hub.registry.Register(s.conn)
	if res.Evicted != nil {
		log.Info().
			Str("connection_id", res.Evicted.ID).
			Str("replaced_by", s.conn.ID).
			Int64("room_id", s.conn.RoomID).
			Msg("evicting previous connection of participant")
		res.Evicted.Shutdown("replaced by a newer connection")
	}

	s.hub.presence.Apply(ctx, res.Transition)
	s.setState(StateActive)

	if len(res.Existing) > 0 {
		frame, err := EncodeEvent(&PlayersListEvent{Players: res.Existing})
		if err == nil {
			s.conn.Enqueue(frame)
		} else {
			log.Error().Err(err).Msg("failed to encode players list")
		}
	}

	if _, err := s.hub.Broadcast(s.conn.RoomID, &PlayerJoinedEvent{ParticipantInfo: s.conn.Info()}, nil); err != nil {
		log.Error().Err(err).Int64("room_id", s.conn.RoomID).Msg("failed to announce player")
	}

	log.Info().
		Str("connection_id", s.conn.ID).
		Int64("room_id", s.conn.RoomID).
		Str("participant", s.conn.Participant.Key).
		Bool("room_was_empty", res.WasEmpty).
		Msg("session active")
}

// HandleFrame processes one inbound frame. Errors are logged and returned; the session
// stays open either way.
func (s *Session) HandleFrame(ctx context.Context, frame []byte) error {
	if s.State() != StateActive {
		return fmt.Errorf("session is %s", s.State())
	}

	event, err := DecodeEvent(frame)
	if err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", s.conn.ID).
			Int64("room_id", s.conn.RoomID).
			Msg("dropping inbound frame")
		return err
	}

	if err := s.hub.policy.Authorize(event.EventType(), s.conn.Participant); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", s.conn.ID).
			Int64("room_id", s.conn.RoomID).
			Msg("dropping inbound frame")
		return err
	}

	switch ev := event.(type) {
	case *WordFoundEvent:
		s.handleWordFound(ctx, ev)
	case *OpenQuestionResponseEvent:
		s.handleOpenResponse(ctx, ev)
	default:
		if st, ok := event.(identityStamped); ok {
			st.stamp(s.conn.Participant)
		}
	}
	return s.relay(event)
}

func (s *Session) relay(e Event) error {
	exclude := s.conn
	if s.hub.policy.EchoToSender(e.EventType()) {
		exclude = nil
	}
	n, err := s.hub.Broadcast(s.conn.RoomID, e, exclude)
	if err != nil {
		log.Error().Err(err).Int64("room_id", s.conn.RoomID).Msg("failed to relay event")
		return err
	}
	log.Debug().
		Str("event_type", string(e.EventType())).
		Int64("room_id", s.conn.RoomID).
		Int("connections", n).
		Msg("event relayed")
	return nil
}

// handleWordFound replaces every client-supplied authority field: identity, time and
// points come from the server. A lost claim is relayed under the original finder.
func (s *Session) handleWordFound(ctx context.Context, ev *WordFoundEvent) {
	p := s.conn.Participant
	ev.PlayerID = p.ID
	ev.PlayerName = p.DisplayName
	ev.PlayerColor = p.Color
	points := 0
	ev.Points = &points

	elapsed, _, err := s.hub.presence.Elapsed(ctx, s.conn.RoomID)
	ev.FoundAt = &elapsed
	if err != nil {
		log.Error().
			Err(err).
			Int64("room_id", s.conn.RoomID).
			Msg("failed to load room timer, relaying found item without credit")
		return
	}

	cells, err := json.Marshal(ev.Cells)
	if err != nil || ev.Cells == nil {
		cells = nil
	}
	outcome, err := s.hub.scoring.RecordFoundItem(ctx, scoring.Claim{
		RoomID:         s.conn.RoomID,
		ItemKey:        ev.Word,
		ParticipantKey: p.Key,
		PlayerID:       p.ID,
		DisplayName:    p.DisplayName,
		Color:          p.Color,
		Cells:          cells,
		ElapsedSeconds: elapsed,
		FoundAt:        s.hub.clock.Now(),
	})
	if err != nil {
		log.Error().
			Err(err).
			Int64("room_id", s.conn.RoomID).
			Str("word", ev.Word).
			Msg("failed to record found item, relaying without credit")
		return
	}

	if outcome.Credited {
		ev.Word = outcome.Owner.ItemKey
		points = outcome.Score
		log.Info().
			Int64("room_id", s.conn.RoomID).
			Str("participant", p.Key).
			Str("word", outcome.Owner.ItemKey).
			Int("elapsed", elapsed).
			Int("points", points).
			Msg("found item credited")
		return
	}

	// The relay describes the standing claim. Its find time is not kept in elapsed
	// seconds, so foundAt is left out.
	owner := outcome.Owner
	ev.Word = owner.ItemKey
	ev.Cells = ownerCells(owner.Cells)
	ev.PlayerID = owner.PlayerID
	ev.PlayerName = owner.FoundByName
	ev.PlayerColor = owner.Color
	ev.FoundAt = nil
}

func ownerCells(raw json.RawMessage) []Cell {
	cells := []Cell{}
	if len(raw) == 0 {
		return cells
	}
	if err := json.Unmarshal(raw, &cells); err != nil {
		log.Warn().Err(err).Msg("stored cells are not a cell list")
		return []Cell{}
	}
	return cells
}

func (s *Session) handleOpenResponse(ctx context.Context, ev *OpenQuestionResponseEvent) {
	ev.stamp(s.conn.Participant)
	now := s.hub.clock.Now()
	ev.CreatedAt = formatTimestamp(now)
	ev.RoomName = nil

	saved, err := s.hub.responses.InsertOpenResponse(ctx, store.OpenResponse{
		RoomID:       s.conn.RoomID,
		QuestionID:   ev.QuestionID,
		ResponseText: ev.ResponseText,
		PlayerName:   s.conn.Participant.DisplayName,
		CreatedAt:    now,
	})
	if err != nil {
		log.Error().
			Err(err).
			Int64("room_id", s.conn.RoomID).
			Int64("question_id", ev.QuestionID).
			Msg("failed to save open question response")
		return
	}

	if saved.RoomName != "" {
		name := saved.RoomName
		ev.RoomName = &name
	}
	ev.CreatedAt = formatTimestamp(saved.CreatedAt)
}

// Close runs the exit action exactly once: unregister, announce the departure when this
// connection was still registered, and pause the timer when the room emptied. An evicted
// connection is no longer registered, so it neither announces nor pauses.
func (s *Session) Close(ctx context.Context) {
	s.closeOnce.Do(func() {
		ctx = context.WithoutCancel(ctx)
		s.conn.Shutdown("session closed")
		res := s.hub.registry.Unregister(s.conn)

		if res.Removed {
			if _, err := s.hub.Broadcast(s.conn.RoomID, &PlayerLeftEvent{ParticipantInfo: s.conn.Info()}, nil); err != nil {
				log.Error().Err(err).Int64("room_id", s.conn.RoomID).Msg("failed to announce departure")
			}
		}
		s.hub.presence.Apply(ctx, res.Transition)
		s.setState(StateClosed)

		log.Info().
			Str("connection_id", s.conn.ID).
			Int64("room_id", s.conn.RoomID).
			Str("reason", s.conn.Reason()).
			Bool("removed", res.Removed).
			Int("remaining", res.Remaining).
			Msg("session closed")
	})
}
