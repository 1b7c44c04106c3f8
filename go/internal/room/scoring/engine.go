package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcdev12/gameroom/go/internal/room/store"
)

// ErrEmptyItemKey is returned for a claim without an item key.
var ErrEmptyItemKey = errors.New("empty item key")

// Claim is a request to credit a found item to a participant.
type Claim struct {
	RoomID         int64
	ItemKey        string
	ParticipantKey string
	PlayerID       int64
	DisplayName    string
	Color          string
	Cells          json.RawMessage
	ElapsedSeconds int
	FoundAt        time.Time
}

// Outcome is the result of a claim. Owner is the participant holding the item after the
// claim, which is the claimant only when Credited.
type Outcome struct {
	Credited bool
	Score    int
	Owner    store.FoundItem
}

// Engine records found items against a ScoreStore.
type Engine struct {
	store  store.ScoreStore
	tracer trace.Tracer
}

// NewEngine creates a scoring engine.
func NewEngine(s store.ScoreStore) *Engine {
	return &Engine{
		store:  s,
		tracer: otel.Tracer("github.com/mcdev12/gameroom/go/internal/room/scoring"),
	}
}

// NormalizeItemKey upper-cases and trims an item key.
func NormalizeItemKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// RecordFoundItem claims the item for the participant. The store's uniqueness constraint
// decides the winner; a lost race is a normal uncredited outcome, not an error.
func (e *Engine) RecordFoundItem(ctx context.Context, c Claim) (Outcome, error) {
	key := NormalizeItemKey(c.ItemKey)
	if key == "" {
		return Outcome{}, ErrEmptyItemKey
	}

	ctx, span := e.tracer.Start(ctx, "scoring.RecordFoundItem", trace.WithAttributes(
		attribute.Int64("room.id", c.RoomID),
		attribute.String("item.key", key),
		attribute.Int("elapsed.seconds", c.ElapsedSeconds),
	))
	defer span.End()

	score := Score(c.ElapsedSeconds)
	res, err := e.store.ClaimFoundItem(ctx, store.FoundItem{
		RoomID:      c.RoomID,
		ItemKey:     key,
		FoundBy:     c.ParticipantKey,
		FoundByName: c.DisplayName,
		Color:       c.Color,
		PlayerID:    c.PlayerID,
		Cells:       c.Cells,
		Score:       score,
		FoundAt:     c.FoundAt,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim failed")
		return Outcome{}, fmt.Errorf("failed to record found item: %w", err)
	}

	span.SetAttributes(attribute.Bool("credited", res.Inserted))
	if !res.Inserted {
		return Outcome{Owner: res.Owner}, nil
	}
	return Outcome{Credited: true, Score: score, Owner: res.Owner}, nil
}

// CompletionScore scores a finished game from its duration.
func (e *Engine) CompletionScore(timeSeconds int) int {
	return Score(timeSeconds)
}
