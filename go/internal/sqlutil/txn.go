package sqlutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Run binds a statement set to a fresh transaction and hands it to fn.
// The transaction commits when fn returns nil and rolls back otherwise.
func Run[T any](
	ctx context.Context,
	db *sql.DB,
	bind func(*sql.Tx) *T,
	fn func(q *T) error,
) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(bind(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("failed to roll back: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
