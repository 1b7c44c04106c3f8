// Package store defines the persistence contract the live room gateway consumes.
//
// Rooms, users and participants are owned by the platform's CRUD services; the gateway
// only reads them and records presence, found items, scores, open responses and game
// results. Every mutation is expressed as a conditional or additive statement so that
// several gateway processes can share one database while each keeps its own in-memory
// connection registry.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// ParticipantQuery identifies a participant inside a room. Exactly one of UserID or
// SessionToken is expected to be set.
type ParticipantQuery struct {
	UserID       *int64
	SessionToken string
}

// Participant is the persisted identity of someone who joined a room.
type Participant struct {
	DisplayName string
	Color       string
	IsOwner     bool
}

// RoomTimer is the durable presence-driven timer of a room.
type RoomTimer struct {
	StartedAt         *time.Time
	PausedAt          *time.Time
	TotalPauseSeconds int
}

// FoundItem is a one-time-claimable achievement, unique per (RoomID, ItemKey).
type FoundItem struct {
	RoomID      int64           `json:"room_id"`
	ItemKey     string          `json:"word"`
	FoundBy     string          `json:"found_by_session_id"`
	FoundByName string          `json:"found_by_name"`
	Color       string          `json:"player_color"`
	PlayerID    int64           `json:"player_id"`
	Cells       json.RawMessage `json:"cells,omitempty"`
	Score       int             `json:"score"`
	FoundAt     time.Time       `json:"found_at"`
}

// ClaimResult reports the outcome of an insert-or-ignore claim.
type ClaimResult struct {
	Inserted bool
	// Owner is the row that holds the claim after the call: the new row when Inserted,
	// the earlier claimant's row otherwise.
	Owner FoundItem
}

// PlayerScore is the additive per-participant aggregate for a room.
type PlayerScore struct {
	RoomID         int64     `json:"room_id"`
	ParticipantKey string    `json:"session_id"`
	PlayerName     string    `json:"player_name"`
	PlayerColor    string    `json:"player_color"`
	ItemsFound     int       `json:"words_found"`
	TotalScore     int       `json:"total_score"`
	LastUpdated    time.Time `json:"last_updated"`
}

// OpenResponse is a free-text answer submitted to an open question.
type OpenResponse struct {
	ID           int64     `json:"id"`
	RoomID       int64     `json:"room_id"`
	QuestionID   int64     `json:"question_id"`
	ResponseText string    `json:"response_text"`
	PlayerName   string    `json:"player_name"`
	RoomName     string    `json:"room_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// GameResult is an end-of-game completion record.
type GameResult struct {
	ID          int64     `json:"id"`
	GameID      int64     `json:"game_id"`
	UserID      *int64    `json:"user_id"`
	RoomID      *int64    `json:"room_id"`
	TimeSeconds int       `json:"time_seconds"`
	Score       int       `json:"score"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
}

// ParticipantStore resolves identities supplied at handshake.
type ParticipantStore interface {
	LookupParticipant(ctx context.Context, roomID int64, q ParticipantQuery) (Participant, error)
	RoomOwner(ctx context.Context, roomID int64) (int64, error)
	RoomName(ctx context.Context, roomID int64) (string, error)
}

// TimerStore mutates the room timer with conditional statements only.
type TimerStore interface {
	LoadTimer(ctx context.Context, roomID int64) (RoomTimer, error)
	// StartTimer sets started_at when it is still unset.
	StartTimer(ctx context.Context, roomID int64, now time.Time) (bool, error)
	// ResumeTimer folds now-paused_at into the total pause and clears paused_at, when paused.
	ResumeTimer(ctx context.Context, roomID int64, now time.Time) (bool, error)
	// PauseTimer sets paused_at when the timer is running.
	PauseTimer(ctx context.Context, roomID int64, now time.Time) (bool, error)
	// RestartTimer zeroes the total pause and clears paused_at. A running timer gets
	// started_at = now, any other timer is left unstarted.
	RestartTimer(ctx context.Context, roomID int64, now time.Time) error
}

// ScoreStore records achievements and their credit.
type ScoreStore interface {
	// ClaimFoundItem inserts item unless (room, key) is already claimed. When inserted,
	// the claimant's aggregate and the room total are incremented by item.Score in the
	// same transaction.
	ClaimFoundItem(ctx context.Context, item FoundItem) (ClaimResult, error)
	ListPlayerScores(ctx context.Context, roomID int64) ([]PlayerScore, error)
	ListFoundItems(ctx context.Context, roomID int64) ([]FoundItem, error)
}

// ResponseStore persists open question responses.
type ResponseStore interface {
	InsertOpenResponse(ctx context.Context, r OpenResponse) (OpenResponse, error)
}

// ResultStore persists end-of-game results.
type ResultStore interface {
	// InsertGameResult stores r. Room results are first-wins per (game, room): when one
	// already exists it is returned with existed set.
	InsertGameResult(ctx context.Context, r GameResult) (result GameResult, existed bool, err error)
	GetRoomResult(ctx context.Context, gameID, roomID int64) (GameResult, error)
	GetLatestUserResult(ctx context.Context, gameID, userID int64) (GameResult, error)
}

// Store is the full persistence contract.
type Store interface {
	ParticipantStore
	TimerStore
	ScoreStore
	ResponseStore
	ResultStore
	// ResetRoom clears found items, scores, results and responses of a room. Its timer is
	// reset through RestartTimer.
	ResetRoom(ctx context.Context, roomID int64) error
	Close() error
}
