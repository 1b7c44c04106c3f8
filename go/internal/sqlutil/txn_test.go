package sqlutil

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type counterQueries struct{ tx *sql.Tx }

func (q *counterQueries) bump(ctx context.Context) error {
	_, err := q.tx.ExecContext(ctx, `UPDATE counter SET n = n + 1`)
	return err
}

func openCounter(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE counter (n INTEGER NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO counter (n) VALUES (0)`)
	require.NoError(t, err)
	return db
}

func counterValue(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT n FROM counter`).Scan(&n))
	return n
}

func bind(tx *sql.Tx) *counterQueries { return &counterQueries{tx: tx} }

func TestRunCommits(t *testing.T) {
	ctx := context.Background()
	db := openCounter(t)

	err := Run(ctx, db, bind, func(q *counterQueries) error {
		return q.bump(ctx)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, counterValue(t, db))
}

func TestRunRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := openCounter(t)
	boom := errors.New("boom")

	err := Run(ctx, db, bind, func(q *counterQueries) error {
		require.NoError(t, q.bump(ctx))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, counterValue(t, db))
}
