package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mcdev12/gameroom/go/internal/room/store"
	"github.com/mcdev12/gameroom/go/internal/sqlutil"
)

const gameResultColumns = `id, game_id, user_id, room_id, time_seconds, score, completed, created_at`

// InsertGameResult stores r unless a result already exists for its (game, room).
func (s *Store) InsertGameResult(ctx context.Context, r store.GameResult) (store.GameResult, bool, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO game_results (game_id, user_id, room_id, time_seconds, score, completed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
		RETURNING id`,
		r.GameID, sqlutil.ToNullInt64(r.UserID), sqlutil.ToNullInt64(r.RoomID),
		r.TimeSeconds, r.Score, r.Completed, r.CreatedAt.UTC()).Scan(&r.ID)
	if err == nil {
		return r, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) || r.RoomID == nil {
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
	row := s.db.QueryRowContext(ctx, `
		SELECT `+gameResultColumns+`
		FROM game_results
		WHERE game_id = ? AND room_id = ?
		ORDER BY id ASC
		LIMIT 1`, gameID, roomID)
	return scanGameResult(row)
}

// GetLatestUserResult returns the most recent solo result of a user for a game.
func (s *Store) GetLatestUserResult(ctx context.Context, gameID, userID int64) (store.GameResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+gameResultColumns+`
		FROM game_results
		WHERE game_id = ? AND user_id = ? AND room_id IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, gameID, userID)
	return scanGameResult(row)
}

func scanGameResult(row rowScanner) (store.GameResult, error) {
	var (
		r              store.GameResult
		userID, roomID sql.NullInt64
	)
	err := row.Scan(&r.ID, &r.GameID, &userID, &roomID, &r.TimeSeconds, &r.Score, &r.Completed, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.GameResult{}, store.ErrNotFound
	}
	if err != nil {
		return store.GameResult{}, fmt.Errorf("failed to scan game result: %w", err)
	}
	r.UserID = sqlutil.FromNullInt64(userID)
	r.RoomID = sqlutil.FromNullInt64(roomID)
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}
