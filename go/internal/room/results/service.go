// Package results records end-of-game completion results. The score is always derived
// from the completion time on the server; the first result recorded for a room is the
// room's result.
package results

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcdev12/gameroom/go/internal/room/store"
)

// ErrInvalidSubmission is returned for a submission that fails validation.
var ErrInvalidSubmission = errors.New("invalid game result")

// Scorer converts a completion time into a score.
type Scorer interface {
	CompletionScore(timeSeconds int) int
}

// Submission is a client-reported game completion. Any client score is ignored.
type Submission struct {
	GameID      int64  `json:"game_id"`
	RoomID      *int64 `json:"room_id"`
	TimeSeconds int    `json:"time_seconds"`
	Completed   bool   `json:"completed"`
}

func (s Submission) validate() error {
	if s.GameID <= 0 {
		return fmt.Errorf("%w: game_id is required", ErrInvalidSubmission)
	}
	if s.RoomID != nil && *s.RoomID <= 0 {
		return fmt.Errorf("%w: room_id must be positive", ErrInvalidSubmission)
	}
	if s.TimeSeconds < 0 {
		return fmt.Errorf("%w: time_seconds must be non-negative", ErrInvalidSubmission)
	}
	return nil
}

// Service records and reads game results.
type Service struct {
	store  store.ResultStore
	scorer Scorer
	clock  clockwork.Clock
	tracer trace.Tracer
}

// NewService creates a results service.
func NewService(s store.ResultStore, scorer Scorer, clock clockwork.Clock) *Service {
	return &Service{
		store:  s,
		scorer: scorer,
		clock:  clock,
		tracer: otel.Tracer("github.com/mcdev12/gameroom/go/internal/room/results"),
	}
}

// Record stores a submission for userID (nil for anonymous players). When the room
// already has a result, that result is returned with existed set.
func (s *Service) Record(ctx context.Context, userID *int64, sub Submission) (store.GameResult, bool, error) {
	if err := sub.validate(); err != nil {
		return store.GameResult{}, false, err
	}

	ctx, span := s.tracer.Start(ctx, "results.Record", trace.WithAttributes(
		attribute.Int64("game.id", sub.GameID),
		attribute.Int("time.seconds", sub.TimeSeconds),
	))
	defer span.End()

	result, existed, err := s.store.InsertGameResult(ctx, store.GameResult{
		GameID:      sub.GameID,
		UserID:      userID,
		RoomID:      sub.RoomID,
		TimeSeconds: sub.TimeSeconds,
		Score:       s.scorer.CompletionScore(sub.TimeSeconds),
		Completed:   sub.Completed,
		CreatedAt:   s.clock.Now(),
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return store.GameResult{}, false, fmt.Errorf("failed to record game result: %w", err)
	}

	span.SetAttributes(attribute.Bool("existed", existed))
	log.Info().
		Int64("game_id", result.GameID).
		Int64("result_id", result.ID).
		Int("time_seconds", result.TimeSeconds).
		Int("score", result.Score).
		Bool("already_exists", existed).
		Msg("game result recorded")
	return result, existed, nil
}

// Get returns the room's result when roomID is set, otherwise the latest solo result of
// userID. Without either it returns store.ErrNotFound.
func (s *Service) Get(ctx context.Context, gameID int64, roomID, userID *int64) (store.GameResult, error) {
	switch {
	case roomID != nil:
		return s.store.GetRoomResult(ctx, gameID, *roomID)
	case userID != nil:
		return s.store.GetLatestUserResult(ctx, gameID, *userID)
	default:
		return store.GameResult{}, store.ErrNotFound
	}
}
