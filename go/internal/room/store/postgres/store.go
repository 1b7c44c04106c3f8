// Package postgres implements store.Store on Postgres through a pgx connection pool.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gameroom/go/internal/room/store"
	"github.com/mcdev12/gameroom/go/internal/room/store/migrations"
)

// Store is a Postgres backed store.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// New creates a Store on an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pool for dsn and verifies it.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return New(pool), nil
}

// Migrate applies the embedded Postgres migrations over a database/sql handle.
func Migrate(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.Postgres())
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	for _, r := range results {
		log.Info().Str("migration", r.Source.Path).Dur("duration", r.Duration).Msg("applied migration")
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// LookupParticipant resolves a participant by user id or session token.
func (s *Store) LookupParticipant(ctx context.Context, roomID int64, q store.ParticipantQuery) (store.Participant, error) {
	var (
		name, color *string
		owner       int64
		err         error
	)
	switch {
	case q.UserID != nil:
		err = s.pool.QueryRow(ctx, `
			SELECT COALESCE(p.player_name, u.name), p.player_color, r.created_by
			FROM room_participants p
			JOIN game_rooms r ON r.id = p.room_id
			LEFT JOIN users u ON u.id = p.user_id
			WHERE p.room_id = $1 AND p.user_id = $2
			ORDER BY p.id DESC
			LIMIT 1`, roomID, *q.UserID).Scan(&name, &color, &owner)
	case q.SessionToken != "":
		err = s.pool.QueryRow(ctx, `
			SELECT p.player_name, p.player_color, r.created_by
			FROM room_participants p
			JOIN game_rooms r ON r.id = p.room_id
			WHERE p.room_id = $1 AND p.session_id = $2
			ORDER BY p.id DESC
			LIMIT 1`, roomID, q.SessionToken).Scan(&name, &color, &owner)
	default:
		return store.Participant{}, store.ErrNotFound
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Participant{}, store.ErrNotFound
	}
	if err != nil {
		return store.Participant{}, fmt.Errorf("failed to look up participant: %w", err)
	}

	p := store.Participant{IsOwner: q.UserID != nil && owner == *q.UserID}
	if name != nil {
		p.DisplayName = *name
	}
	if color != nil {
		p.Color = *color
	}
	return p, nil
}

// RoomOwner returns the user id that created the room.
func (s *Store) RoomOwner(ctx context.Context, roomID int64) (int64, error) {
	var owner int64
	err := s.pool.QueryRow(ctx, `SELECT created_by FROM game_rooms WHERE id = $1`, roomID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
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
	err := s.pool.QueryRow(ctx, `SELECT room_name FROM game_rooms WHERE id = $1`, roomID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get room name: %w", err)
	}
	return name, nil
}

// ResetRoom clears every durable fact recorded for the room and rewinds its timer.
func (s *Store) ResetRoom(ctx context.Context, roomID int64) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM room_found_words WHERE room_id = $1`,
			`DELETE FROM room_player_scores WHERE room_id = $1`,
			`DELETE FROM game_results WHERE room_id = $1`,
			`DELETE FROM room_open_responses WHERE room_id = $1`,
			`UPDATE game_rooms SET total_score = 0 WHERE id = $1`,
		} {
			if _, err := tx.Exec(ctx, stmt, roomID); err != nil {
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
