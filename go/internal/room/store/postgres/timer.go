package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mcdev12/gameroom/go/internal/room/store"
)

// LoadTimer reads the room timer.
func (s *Store) LoadTimer(ctx context.Context, roomID int64) (store.RoomTimer, error) {
	var timer store.RoomTimer
	err := s.pool.QueryRow(ctx, `
		SELECT started_at, paused_at, total_pause_duration
		FROM game_rooms WHERE id = $1`, roomID).Scan(&timer.StartedAt, &timer.PausedAt, &timer.TotalPauseSeconds)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.RoomTimer{}, store.ErrNotFound
	}
	if err != nil {
		return store.RoomTimer{}, fmt.Errorf("failed to load room timer: %w", err)
	}
	return timer, nil
}

// StartTimer sets started_at when it is unset.
func (s *Store) StartTimer(ctx context.Context, roomID int64, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE game_rooms SET started_at = $2
		WHERE id = $1 AND started_at IS NULL`, roomID, now)
	if err != nil {
		return false, fmt.Errorf("failed to start room timer: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ResumeTimer adds the paused gap to the total pause and clears paused_at.
func (s *Store) ResumeTimer(ctx context.Context, roomID int64, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE game_rooms
		SET total_pause_duration = total_pause_duration
				+ GREATEST(0, FLOOR(EXTRACT(EPOCH FROM ($2::timestamptz - paused_at))))::int,
			paused_at = NULL
		WHERE id = $1 AND paused_at IS NOT NULL`, roomID, now)
	if err != nil {
		return false, fmt.Errorf("failed to resume room timer: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// PauseTimer sets paused_at when the timer has started and is not already paused.
func (s *Store) PauseTimer(ctx context.Context, roomID int64, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE game_rooms SET paused_at = $2
		WHERE id = $1 AND started_at IS NOT NULL AND paused_at IS NULL`, roomID, now)
	if err != nil {
		return false, fmt.Errorf("failed to pause room timer: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RestartTimer restarts a running timer at now and clears any other.
func (s *Store) RestartTimer(ctx context.Context, roomID int64, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE game_rooms
		SET started_at = CASE WHEN started_at IS NOT NULL AND paused_at IS NULL THEN $2::timestamptz END,
			paused_at = NULL,
			total_pause_duration = 0
		WHERE id = $1`, roomID, now)
	if err != nil {
		return fmt.Errorf("failed to restart room timer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
