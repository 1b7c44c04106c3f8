package sqlite

import (
	"context"
	"fmt"
)

// The rows below are owned by the platform's CRUD services. These helpers create them
// for local development seeds and tests.

// CreateUser inserts a user and returns its id.
func (s *Store) CreateUser(ctx context.Context, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO users (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return res.LastInsertId()
}

// CreateRoom inserts a room owned by ownerID and returns its id.
func (s *Store) CreateRoom(ctx context.Context, name string, ownerID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO game_rooms (room_name, created_by) VALUES (?, ?)`, name, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to create room: %w", err)
	}
	return res.LastInsertId()
}

// AddUserParticipant records an authenticated user joining a room.
func (s *Store) AddUserParticipant(ctx context.Context, roomID, userID int64, name, color string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO room_participants (room_id, user_id, player_name, player_color)
		VALUES (?, ?, NULLIF(?, ''), ?)`, roomID, userID, name, color)
	if err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}
	return nil
}

// AddSessionParticipant records an anonymous session joining a room.
func (s *Store) AddSessionParticipant(ctx context.Context, roomID int64, sessionID, name, color string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO room_participants (room_id, session_id, player_name, player_color)
		VALUES (?, ?, ?, ?)`, roomID, sessionID, name, color)
	if err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}
	return nil
}
