// Package sqlite implements store.Store on an embedded SQLite database. It backs
// single-node deployments, local development and the test suites.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/mcdev12/gameroom/go/internal/room/store"
	"github.com/mcdev12/gameroom/go/internal/room/store/migrations"
	"github.com/mcdev12/gameroom/go/internal/sqlutil"
)

// Store is a SQLite backed store.Store.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// queries binds statements to a single transaction.
type queries struct {
	tx *sql.Tx
}

func newQueries(tx *sql.Tx) *queries { return &queries{tx: tx} }

// Open opens the database at dsn and applies pending migrations. Use ":memory:" for an
// ephemeral database.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One writer keeps conditional updates serialised and keeps an in-memory
	// database alive on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure sqlite: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Migrate applies the embedded SQLite migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.SQLite())
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// DB exposes the underlying handle, used to seed rooms and participants.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// LookupParticipant resolves a participant by user id or session token.
func (s *Store) LookupParticipant(ctx context.Context, roomID int64, q store.ParticipantQuery) (store.Participant, error) {
	var (
		name, color sql.NullString
		owner       int64
		err         error
	)
	switch {
	case q.UserID != nil:
		err = s.db.QueryRowContext(ctx, `
			SELECT COALESCE(p.player_name, u.name), p.player_color, r.created_by
			FROM room_participants p
			JOIN game_rooms r ON r.id = p.room_id
			LEFT JOIN users u ON u.id = p.user_id
			WHERE p.room_id = ? AND p.user_id = ?
			ORDER BY p.id DESC
			LIMIT 1`, roomID, *q.UserID).Scan(&name, &color, &owner)
	case q.SessionToken != "":
		err = s.db.QueryRowContext(ctx, `
			SELECT p.player_name, p.player_color, r.created_by
			FROM room_participants p
			JOIN game_rooms r ON r.id = p.room_id
			WHERE p.room_id = ? AND p.session_id = ?
			ORDER BY p.id DESC
			LIMIT 1`, roomID, q.SessionToken).Scan(&name, &color, &owner)
	default:
		return store.Participant{}, store.ErrNotFound
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.Participant{}, store.ErrNotFound
	}
	if err != nil {
		return store.Participant{}, fmt.Errorf("failed to look up participant: %w", err)
	}

	return store.Participant{
		DisplayName: sqlutil.FromSqlString(name, ""),
		Color:       sqlutil.FromSqlString(color, ""),
		IsOwner:     q.UserID != nil && owner == *q.UserID,
	}, nil
}

// RoomOwner returns the user id that created the room.
func (s *Store) RoomOwner(ctx context.Context, roomID int64) (int64, error) {
	var owner int64
	err := s.db.QueryRowContext(ctx, `SELECT created_by FROM game_rooms WHERE id = ?`, roomID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get room owner: %w", err)
	}
	return owner, nil
}

// RoomName returns the display name of the room.
func (s *Store) RoomName(ctx context.Context, roomID int64) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT room_name FROM game_rooms WHERE id = ?`, roomID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get room name: %w", err)
	}
	return name, nil
}

// ResetRoom clears every durable fact recorded for the room and rewinds its timer.
func (s *Store) ResetRoom(ctx context.Context, roomID int64) error {
	err := sqlutil.Run(ctx, s.db, newQueries, func(q *queries) error {
		for _, stmt := range []string{
			`DELETE FROM room_found_words WHERE room_id = ?`,
			`DELETE FROM room_player_scores WHERE room_id = ?`,
			`DELETE FROM game_results WHERE room_id = ?`,
			`DELETE FROM room_open_responses WHERE room_id = ?`,
			`UPDATE game_rooms SET total_score = 0 WHERE id = ?`,
		} {
			if _, err := q.tx.ExecContext(ctx, stmt, roomID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reset room: %w", err)
	}
	return nil
}
