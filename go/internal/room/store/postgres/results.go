package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mcdev12/gameroom/go/internal/room/store"
)

const gameResultColumns = `id, game_id, user_id, room_id, time_seconds, score, completed, created_at`

// InsertGameResult stores r unless a result already exists for its (game, room).
func (s *Store) InsertGameResult(ctx context.Context, r store.GameResult) (store.GameResult, bool, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO game_results (game_id, user_id, room_id, time_seconds, score, completed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING
		RETURNING id`,
		r.GameID, r.UserID, r.RoomID, r.TimeSeconds, r.Score, r.Completed, r.CreatedAt).Scan(&r.ID)
	if err == nil {
		return r, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) || r.RoomID == nil {
		return store.GameResult{}, false, fmt.Errorf("failed to insert game result: %w", err)
	}

	existing, err := s.GetRoomResult(ctx, r.GameID, *r.RoomID)
	if err != nil {
		return store.GameResult{}, false, err
	}
	return existing, true, nil
}

// GetRoomResult returns the result recorded for a room.
func (s *Store) GetRoomResult(ctx context.Context, gameID, roomID int64) (store.GameResult, error) {
	return scanGameResult(s.pool.QueryRow(ctx, `
		SELECT `+gameResultColumns+`
		FROM game_results
		WHERE game_id = $1 AND room_id = $2
		ORDER BY id ASC
		LIMIT 1`, gameID, roomID))
}

// GetLatestUserResult returns the most recent solo result of a user for a game.
func (s *Store) GetLatestUserResult(ctx context.Context, gameID, userID int64) (store.GameResult, error) {
	return scanGameResult(s.pool.QueryRow(ctx, `
		SELECT `+gameResultColumns+`
		FROM game_results
		WHERE game_id = $1 AND user_id = $2 AND room_id IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, gameID, userID))
}

func scanGameResult(row pgx.Row) (store.GameResult, error) {
	var r store.GameResult
	err := row.Scan(&r.ID, &r.GameID, &r.UserID, &r.RoomID, &r.TimeSeconds, &r.Score, &r.Completed, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.GameResult{}, store.ErrNotFound
	}
	if err != nil {
		return store.GameResult{}, fmt.Errorf("failed to scan game result: %w", err)
	}
	return r, nil
}
