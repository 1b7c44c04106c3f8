package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/gameroom/go/internal/room/store"
	"github.com/mcdev12/gameroom/go/internal/sqlutil"
)

// LoadTimer reads the room timer.
func (s *Store) LoadTimer(ctx context.Context, roomID int64) (store.RoomTimer, error) {
	var (
		startedAt, pausedAt sql.NullTime
		totalPause          int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT started_at, paused_at, total_pause_duration
		FROM game_rooms WHERE id = ?`, roomID).Scan(&startedAt, &pausedAt, &totalPause)
	if errors.Is(err, sql.ErrNoRows) {
		return store.RoomTimer{}, store.ErrNotFound
	}
	if err != nil {
		return store.RoomTimer{}, fmt.Errorf("failed to load room timer: %w", err)
	}
	return store.RoomTimer{
		StartedAt:         sqlutil.FromSqlTime(startedAt),
		PausedAt:          sqlutil.FromSqlTime(pausedAt),
		TotalPauseSeconds: totalPause,
	}, nil
}

// StartTimer sets started_at when it is unset.
func (s *Store) StartTimer(ctx context.Context, roomID int64, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE game_rooms SET started_at = ?
		WHERE id = ? AND started_at IS NULL`, now.UTC(), roomID)
	if err != nil {
		return false, fmt.Errorf("failed to start room timer: %w", err)
	}
	return affected(res)
}

// ResumeTimer adds the paused gap to the total pause and clears paused_at.
func (s *Store) ResumeTimer(ctx context.Context, roomID int64, now time.Time) (bool, error) {
	var resumed bool
	err := sqlutil.Run(ctx, s.db, newQueries, func(q *queries) error {
		var pausedAt sql.NullTime
		err := q.tx.QueryRowContext(ctx, `SELECT paused_at FROM game_rooms WHERE id = ?`, roomID).Scan(&pausedAt)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && !pausedAt.Valid) {
			return nil
		}
		if err != nil {
			return err
		}

		gap := int(now.Sub(pausedAt.Time) / time.Second)
		if gap < 0 {
			gap = 0
		}
		res, err := q.tx.ExecContext(ctx, `
			UPDATE game_rooms
			SET total_pause_duration = total_pause_duration + ?, paused_at = NULL
			WHERE id = ? AND paused_at IS NOT NULL`, gap, roomID)
		if err != nil {
			return err
		}
		resumed, err = affected(res)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to resume room timer: %w", err)
	}
	return resumed, nil
}

// PauseTimer sets paused_at when the timer has started and is not already paused.
func (s *Store) PauseTimer(ctx context.Context, roomID int64, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE game_rooms SET paused_at = ?
		WHERE id = ? AND started_at IS NOT NULL AND paused_at IS NULL`, now.UTC(), roomID)
	if err != nil {
		return false, fmt.Errorf("failed to pause room timer: %w", err)
	}
	return affected(res)
}

// RestartTimer restarts a running timer at now and clears any other.
func (s *Store) RestartTimer(ctx context.Context, roomID int64, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE game_rooms
		SET started_at = CASE WHEN started_at IS NOT NULL AND paused_at IS NULL THEN ? END,
			paused_at = NULL,
			total_pause_duration = 0
		WHERE id = ?`, now.UTC(), roomID)
	if err != nil {
		return fmt.Errorf("failed to restart room timer: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return fmt.Errorf("failed to restart room timer: %w", err)
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
