package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mcdev12/gameroom/go/internal/room/identity"
)

// EventType is the discriminator carried in the "type" field of every frame
type EventType string

const (
	EventTypeWordFound            EventType = "WordFound"
	EventTypeOpenQuestionResponse EventType = "OpenQuestionResponse"
	EventTypeOpenQuestionToggle   EventType = "OpenQuestionToggle"
	EventTypeQuizAnswer           EventType = "QuizAnswer"
	EventTypeQuizConsensus        EventType = "QuizConsensus"
	EventTypeQuizAdvance          EventType = "QuizAdvance"
	EventTypeQuizTimerSync        EventType = "QuizTimerSync"
	EventTypeQuizCurrentQuestion  EventType = "QuizCurrentQuestion"
	EventTypeQuizFinished         EventType = "QuizFinished"
	EventTypeQuizVoteState        EventType = "QuizVoteState"
	EventTypeGameState            EventType = "GameState"

	// Server-originated only.
	EventTypePlayerJoined EventType = "PlayerJoined"
	EventTypePlayerLeft   EventType = "PlayerLeft"
	EventTypePlayersList  EventType = "PlayersList"
	EventTypeRoomReset    EventType = "RoomReset"
)

const maxResponseText = 2000

var (
	// ErrMalformedEvent is returned for frames that cannot be decoded or fail validation.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrUnknownEvent is a malformed event whose type is not recognised.
	ErrUnknownEvent = fmt.Errorf("%w: unknown event type", ErrMalformedEvent)
	// ErrForbiddenEvent is returned when the sender lacks the capability for an event.
	ErrForbiddenEvent = errors.New("event not permitted for participant")
)

// Event is a decoded frame.
type Event interface {
	EventType() EventType
}

// identityStamped events carry the sender's identity, always written by the server.
type identityStamped interface {
	stamp(p identity.Participant)
}

type validated interface {
	validate() error
}

// Cell is a grid position.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// WordFoundEvent announces a found item. Identity, foundAt and points are server-owned.
type WordFoundEvent struct {
	Type        EventType `json:"type"`
	Word        string    `json:"word"`
	Cells       []Cell    `json:"cells"`
	PlayerID    int64     `json:"player_id,omitempty"`
	PlayerColor string    `json:"player_color,omitempty"`
	PlayerName  string    `json:"player_name,omitempty"`
	FoundAt     *int      `json:"foundAt,omitempty"`
	Points      *int      `json:"points,omitempty"`
}

func (e *WordFoundEvent) EventType() EventType { return EventTypeWordFound }

func (e *WordFoundEvent) validate() error {
	if strings.TrimSpace(e.Word) == "" {
		return errors.New("word is required")
	}
	for _, c := range e.Cells {
		if c.Row < 0 || c.Col < 0 {
			return errors.New("cell coordinates must be non-negative")
		}
	}
	return nil
}

// OpenQuestionResponseEvent is a free-text answer. player_name, room_name and created_at
// are server-owned.
type OpenQuestionResponseEvent struct {
	Type         EventType `json:"type"`
	QuestionID   int64     `json:"question_id"`
	ResponseText string    `json:"response_text"`
	PlayerName   *string   `json:"player_name"`
	RoomName     *string   `json:"room_name"`
	CreatedAt    string    `json:"created_at"`
}

func (e *OpenQuestionResponseEvent) EventType() EventType { return EventTypeOpenQuestionResponse }

func (e *OpenQuestionResponseEvent) validate() error {
	if e.QuestionID <= 0 {
		return errors.New("question_id is required")
	}
	e.ResponseText = strings.TrimSpace(e.ResponseText)
	if e.ResponseText == "" {
		return errors.New("response_text is required")
	}
	if len(e.ResponseText) > maxResponseText {
		return fmt.Errorf("response_text exceeds %d bytes", maxResponseText)
	}
	return nil
}

func (e *OpenQuestionResponseEvent) stamp(p identity.Participant) {
	name := p.DisplayName
	e.PlayerName = &name
}

// OpenQuestionToggleEvent opens or closes an open question for responses.
type OpenQuestionToggleEvent struct {
	Type       EventType `json:"type"`
	QuestionID int64     `json:"question_id"`
	IsOpen     bool      `json:"is_open"`
}

func (e *OpenQuestionToggleEvent) EventType() EventType { return EventTypeOpenQuestionToggle }

func (e *OpenQuestionToggleEvent) validate() error {
	if e.QuestionID <= 0 {
		return errors.New("question_id is required")
	}
	return nil
}

// QuizAnswerEvent is a vote cast on a quiz question.
type QuizAnswerEvent struct {
	Type          EventType `json:"type"`
	QuestionIndex int       `json:"question_index"`
	Answer        string    `json:"answer"`
	PlayerID      int64     `json:"player_id"`
	PlayerName    string    `json:"player_name"`
}

func (e *QuizAnswerEvent) EventType() EventType { return EventTypeQuizAnswer }

func (e *QuizAnswerEvent) validate() error {
	if e.QuestionIndex < 0 {
		return errors.New("question_index must be non-negative")
	}
	if e.Answer == "" {
		return errors.New("answer is required")
	}
	return nil
}

func (e *QuizAnswerEvent) stamp(p identity.Participant) {
	e.PlayerID = p.ID
	e.PlayerName = p.DisplayName
}

// QuizConsensusEvent reports the answer a room converged on.
type QuizConsensusEvent struct {
	Type          EventType `json:"type"`
	QuestionIndex int       `json:"question_index"`
	Answer        string    `json:"answer"`
	Votes         int       `json:"votes"`
	TotalPlayers  int       `json:"total_players"`
}

func (e *QuizConsensusEvent) EventType() EventType { return EventTypeQuizConsensus }

func (e *QuizConsensusEvent) validate() error {
	if e.QuestionIndex < 0 || e.Votes < 0 || e.TotalPlayers < 0 {
		return errors.New("counts must be non-negative")
	}
	return nil
}

// QuizAdvanceEvent moves the room to a question.
type QuizAdvanceEvent struct {
	Type          EventType `json:"type"`
	QuestionIndex int       `json:"question_index"`
}

func (e *QuizAdvanceEvent) EventType() EventType { return EventTypeQuizAdvance }

func (e *QuizAdvanceEvent) validate() error {
	if e.QuestionIndex < 0 {
		return errors.New("question_index must be non-negative")
	}
	return nil
}

// QuizTimerSyncEvent shares the presenter's quiz clock.
type QuizTimerSyncEvent struct {
	Type        EventType `json:"type"`
	ElapsedTime int       `json:"elapsed_time"`
	PlayerID    int64     `json:"player_id"`
}

func (e *QuizTimerSyncEvent) EventType() EventType { return EventTypeQuizTimerSync }

func (e *QuizTimerSyncEvent) validate() error {
	if e.ElapsedTime < 0 {
		return errors.New("elapsed_time must be non-negative")
	}
	return nil
}

func (e *QuizTimerSyncEvent) stamp(p identity.Participant) { e.PlayerID = p.ID }

// QuizCurrentQuestionEvent reports which question a participant is on.
type QuizCurrentQuestionEvent struct {
	Type          EventType `json:"type"`
	QuestionIndex int       `json:"question_index"`
	PlayerID      int64     `json:"player_id"`
}

func (e *QuizCurrentQuestionEvent) EventType() EventType { return EventTypeQuizCurrentQuestion }

func (e *QuizCurrentQuestionEvent) validate() error {
	if e.QuestionIndex < 0 {
		return errors.New("question_index must be non-negative")
	}
	return nil
}

func (e *QuizCurrentQuestionEvent) stamp(p identity.Participant) { e.PlayerID = p.ID }

// QuizFinishedEvent marks a participant done with the quiz.
type QuizFinishedEvent struct {
	Type     EventType `json:"type"`
	PlayerID int64     `json:"player_id"`
}

func (e *QuizFinishedEvent) EventType() EventType { return EventTypeQuizFinished }

func (e *QuizFinishedEvent) stamp(p identity.Participant) { e.PlayerID = p.ID }

// QuizVoteStateEvent is a full snapshot of the room's votes.
type QuizVoteStateEvent struct {
	Type  EventType       `json:"type"`
	Votes json.RawMessage `json:"votes"`
}

func (e *QuizVoteStateEvent) EventType() EventType { return EventTypeQuizVoteState }

func (e *QuizVoteStateEvent) validate() error {
	if len(e.Votes) == 0 || string(e.Votes) == "null" {
		return errors.New("votes is required")
	}
	return nil
}

// GameStateEvent carries an opaque game state document.
type GameStateEvent struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (e *GameStateEvent) EventType() EventType { return EventTypeGameState }

func (e *GameStateEvent) validate() error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return errors.New("data is required")
	}
	return nil
}

// ParticipantInfo describes a connected participant.
type ParticipantInfo struct {
	PlayerID    int64  `json:"player_id"`
	Username    string `json:"username"`
	PlayerColor string `json:"player_color"`
}

// PlayerJoinedEvent is broadcast when a connection becomes active.
type PlayerJoinedEvent struct {
	Type EventType `json:"type"`
	ParticipantInfo
}

func (e *PlayerJoinedEvent) EventType() EventType { return EventTypePlayerJoined }

// PlayerLeftEvent is broadcast when a connection closes.
type PlayerLeftEvent struct {
	Type EventType `json:"type"`
	ParticipantInfo
}

func (e *PlayerLeftEvent) EventType() EventType { return EventTypePlayerLeft }

// PlayersListEvent is sent to a new connection only.
type PlayersListEvent struct {
	Type    EventType         `json:"type"`
	Players []ParticipantInfo `json:"players"`
}

func (e *PlayersListEvent) EventType() EventType { return EventTypePlayersList }

// RoomResetEvent is broadcast after the owner resets the room.
type RoomResetEvent struct {
	Type    EventType `json:"type"`
	ResetBy string    `json:"reset_by"`
}

func (e *RoomResetEvent) EventType() EventType { return EventTypeRoomReset }

// inboundEvents maps every type a client may send to its payload constructor.
var inboundEvents = map[EventType]func() Event{
	EventTypeWordFound:            func() Event { return &WordFoundEvent{} },
	EventTypeOpenQuestionResponse: func() Event { return &OpenQuestionResponseEvent{} },
	EventTypeOpenQuestionToggle:   func() Event { return &OpenQuestionToggleEvent{} },
	EventTypeQuizAnswer:           func() Event { return &QuizAnswerEvent{} },
	EventTypeQuizConsensus:        func() Event { return &QuizConsensusEvent{} },
	EventTypeQuizAdvance:          func() Event { return &QuizAdvanceEvent{} },
	EventTypeQuizTimerSync:        func() Event { return &QuizTimerSyncEvent{} },
	EventTypeQuizCurrentQuestion:  func() Event { return &QuizCurrentQuestionEvent{} },
	EventTypeQuizFinished:         func() Event { return &QuizFinishedEvent{} },
	EventTypeQuizVoteState:        func() Event { return &QuizVoteStateEvent{} },
	EventTypeGameState:            func() Event { return &GameStateEvent{} },
}

var serverOnlyEvents = map[EventType]bool{
	EventTypePlayerJoined: true,
	EventTypePlayerLeft:   true,
	EventTypePlayersList:  true,
	EventTypeRoomReset:    true,
}

// knownEventType reports whether t is any event type of the protocol.
func knownEventType(t EventType) bool {
	_, inbound := inboundEvents[t]
	return inbound || serverOnlyEvents[t]
}

// DecodeEvent parses and validates a client frame.
func DecodeEvent(frame []byte) (Event, error) {
	var envelope struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if envelope.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}
	if serverOnlyEvents[envelope.Type] {
		return nil, fmt.Errorf("%w: %s is server-originated", ErrMalformedEvent, envelope.Type)
	}

	newEvent, ok := inboundEvents[envelope.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, envelope.Type)
	}

	event := newEvent()
	if err := json.Unmarshal(frame, event); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, envelope.Type, err)
	}
	if v, ok := event.(validated); ok {
		if err := v.validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, envelope.Type, err)
		}
	}
	return event, nil
}

// EncodeEvent serialises an event, forcing its type field.
func EncodeEvent(e Event) ([]byte, error) {
	switch ev := e.(type) {
	case *WordFoundEvent:
		ev.Type = ev.EventType()
	case *OpenQuestionResponseEvent:
		ev.Type = ev.EventType()
	case *OpenQuestionToggleEvent:
		ev.Type = ev.EventType()
	case *QuizAnswerEvent:
		ev.Type = ev.EventType()
	case *QuizConsensusEvent:
		ev.Type = ev.EventType()
	case *QuizAdvanceEvent:
		ev.Type = ev.EventType()
	case *QuizTimerSyncEvent:
		ev.Type = ev.EventType()
	case *QuizCurrentQuestionEvent:
		ev.Type = ev.EventType()
	case *QuizFinishedEvent:
		ev.Type = ev.EventType()
	case *QuizVoteStateEvent:
		ev.Type = ev.EventType()
	case *GameStateEvent:
		ev.Type = ev.EventType()
	case *PlayerJoinedEvent:
		ev.Type = ev.EventType()
	case *PlayerLeftEvent:
		ev.Type = ev.EventType()
	case *PlayersListEvent:
		ev.Type = ev.EventType()
		if ev.Players == nil {
			ev.Players = []ParticipantInfo{}
		}
	case *RoomResetEvent:
		ev.Type = ev.EventType()
	default:
		return nil, fmt.Errorf("unsupported event %T", e)
	}
	return json.Marshal(e)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
