package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/gameroom/go/internal/room/store"
)

// These tests run against a live database when ROOM_TEST_DATABASE_URL is set.
func newTestStore(t *testing.T) (*Store, int64) {
	t.Helper()
	dsn := os.Getenv("ROOM_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ROOM_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	require.NoError(t, Migrate(ctx, dsn))

	s, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	var roomID int64
	require.NoError(t, s.pool.QueryRow(ctx,
		`INSERT INTO game_rooms (room_name, created_by) VALUES ('pg test', 1) RETURNING id`).Scan(&roomID))
	t.Cleanup(func() {
		_, _ = s.pool.Exec(context.Background(), `DELETE FROM game_rooms WHERE id = $1`, roomID)
	})
	return s, roomID
}

func TestTimerRoundTrip(t *testing.T) {
	s, roomID := newTestStore(t)
	ctx := context.Background()
	t0 := time.Now().UTC().Truncate(time.Second)

	ok, err := s.StartTimer(ctx, roomID, t0)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.PauseTimer(ctx, roomID, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.ResumeTimer(ctx, roomID, t0.Add(time.Minute+30*time.Second))
	require.NoError(t, err)
	assert.True(t, ok)

	timer, err := s.LoadTimer(ctx, roomID)
	require.NoError(t, err)
	require.NotNil(t, timer.StartedAt)
	assert.True(t, timer.StartedAt.Equal(t0))
	assert.Nil(t, timer.PausedAt)
	assert.Equal(t, 30, timer.TotalPauseSeconds)
}

func TestConcurrentClaimsCreditOnce(t *testing.T) {
	s, roomID := newTestStore(t)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		credited int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.ClaimFoundItem(ctx, store.FoundItem{
				RoomID: roomID, ItemKey: "RACE", FoundBy: string(rune('a' + i)), FoundByName: "p",
				Color: "#000", Score: 100, FoundAt: time.Now(),
			})
			assert.NoError(t, err)
			if res.Inserted {
				mu.Lock()
				credited++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, credited)

	scores, err := s.ListPlayerScores(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 100, scores[0].TotalScore)
}
