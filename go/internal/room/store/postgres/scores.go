package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mcdev12/gameroom/go/internal/room/store"
	"github.com/mcdev12/gameroom/go/internal/sqlutil"
)

const foundItemColumns = `room_id, word, found_by_session_id, found_by_name, player_color, player_id, cells, score, found_at`

// ClaimFoundItem inserts the item unless already claimed and credits the claimant in the
// same transaction.
func (s *Store) ClaimFoundItem(ctx context.Context, item store.FoundItem) (store.ClaimResult, error) {
	var result store.ClaimResult
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO room_found_words (`+foundItemColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (room_id, word) DO NOTHING`,
			item.RoomID, item.ItemKey, item.FoundBy, item.FoundByName, item.Color, item.PlayerID,
			sqlutil.ToNullRawMessage(item.Cells), item.Score, item.FoundAt)
		if err != nil {
			return fmt.Errorf("insert found item: %w", err)
		}

		if tag.RowsAffected() == 0 {
			owner, err := scanFoundItem(tx.QueryRow(ctx, `
				SELECT `+foundItemColumns+`
				FROM room_found_words WHERE room_id = $1 AND word = $2`, item.RoomID, item.ItemKey))
			if err != nil {
				return fmt.Errorf("load claimed item: %w", err)
			}
			result = store.ClaimResult{Owner: owner}
			return nil
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO room_player_scores
				(room_id, session_id, player_name, player_color, words_found, total_score, last_updated)
			VALUES ($1, $2, $3, $4, 1, $5, $6)
			ON CONFLICT (room_id, session_id) DO UPDATE SET
				words_found = room_player_scores.words_found + 1,
				total_score = room_player_scores.total_score + EXCLUDED.total_score,
				player_name = EXCLUDED.player_name,
				player_color = EXCLUDED.player_color,
				last_updated = EXCLUDED.last_updated`,
			item.RoomID, item.FoundBy, item.FoundByName, item.Color, item.Score, item.FoundAt); err != nil {
			return fmt.Errorf("upsert player score: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE game_rooms SET total_score = total_score + $2 WHERE id = $1`,
			item.RoomID, item.Score); err != nil {
			return fmt.Errorf("increment room score: %w", err)
		}

		result = store.ClaimResult{Inserted: true, Owner: item}
		return nil
	})
	if err != nil {
		return store.ClaimResult{}, fmt.Errorf("failed to claim found item: %w", err)
	}
	return result, nil
}

// ListPlayerScores returns the room leaderboard, highest score first.
func (s *Store) ListPlayerScores(ctx context.Context, roomID int64) ([]store.PlayerScore, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT room_id, session_id, player_name, player_color, words_found, total_score, last_updated
		FROM room_player_scores
		WHERE room_id = $1
		ORDER BY total_score DESC, last_updated ASC, id ASC`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list player scores: %w", err)
	}
	defer rows.Close()

	scores := []store.PlayerScore{}
	for rows.Next() {
		var ps store.PlayerScore
		if err := rows.Scan(&ps.RoomID, &ps.ParticipantKey, &ps.PlayerName, &ps.PlayerColor,
			&ps.ItemsFound, &ps.TotalScore, &ps.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan player score: %w", err)
		}
		scores = append(scores, ps)
	}
	return scores, rows.Err()
}

// ListFoundItems returns the claimed items of a room in the order they were found.
func (s *Store) ListFoundItems(ctx context.Context, roomID int64) ([]store.FoundItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+foundItemColumns+`
		FROM room_found_words
		WHERE room_id = $1
		ORDER BY found_at ASC, id ASC`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list found items: %w", err)
	}
	defer rows.Close()

	items := []store.FoundItem{}
	for rows.Next() {
		item, err := scanFoundItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan found item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// InsertOpenResponse stores a response, denormalising the room name.
func (s *Store) InsertOpenResponse(ctx context.Context, r store.OpenResponse) (store.OpenResponse, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO room_open_responses
			(room_id, question_id, response_text, player_name, room_name, created_at)
		VALUES ($1, $2, $3, $4, COALESCE((SELECT room_name FROM game_rooms WHERE id = $1), ''), $5)
		RETURNING id, room_name`,
		r.RoomID, r.QuestionID, r.ResponseText, r.PlayerName, r.CreatedAt).Scan(&r.ID, &r.RoomName)
	if err != nil {
		return store.OpenResponse{}, fmt.Errorf("failed to insert open response: %w", err)
	}
	return r, nil
}

func scanFoundItem(row pgx.Row) (store.FoundItem, error) {
	var (
		item  store.FoundItem
		cells []byte
	)
	if err := row.Scan(&item.RoomID, &item.ItemKey, &item.FoundBy, &item.FoundByName, &item.Color,
		&item.PlayerID, &cells, &item.Score, &item.FoundAt); err != nil {
		return store.FoundItem{}, err
	}
	item.Cells = cells
	return item, nil
}
