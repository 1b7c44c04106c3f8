package results

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/gameroom/go/internal/room/scoring"
	"github.com/mcdev12/gameroom/go/internal/room/store"
	"github.com/mcdev12/gameroom/go/internal/room/store/sqlite"
)

type fixture struct {
	store   *sqlite.Store
	service *Service
	roomID  int64
	ownerID int64
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	s, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ownerID, err := s.CreateUser(ctx, "owner")
	require.NoError(t, err)
	roomID, err := s.CreateRoom(ctx, "Word hunt", ownerID)
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return fixture{
		store:   s,
		service: NewService(s, scoring.NewEngine(s), clock),
		roomID:  roomID,
		ownerID: ownerID,
	}
}

func TestRecordComputesScoreFromTime(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		seconds int
		want    int
	}{
		{45, 100},
		{180, 75},
		{450, 35},
		{900, 10},
	}
	for _, tt := range tests {
		res, existed, err := f.service.Record(context.Background(), &f.ownerID, Submission{
			GameID: 3, TimeSeconds: tt.seconds, Completed: true,
		})
		require.NoError(t, err)
		assert.False(t, existed)
		assert.Equal(t, tt.want, res.Score, "time %d", tt.seconds)
	}
}

func TestRecordFirstRoomResultWins(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	first, existed, err := f.service.Record(ctx, nil, Submission{GameID: 3, RoomID: &f.roomID, TimeSeconds: 200, Completed: true})
	require.NoError(t, err)
	assert.False(t, existed)

	second, existed, err := f.service.Record(ctx, &f.ownerID, Submission{GameID: 3, RoomID: &f.roomID, TimeSeconds: 20, Completed: true})
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 200, second.TimeSeconds)

	got, err := f.service.Get(ctx, 3, &f.roomID, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestRecordRejectsInvalidSubmission(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	negative := int64(-1)

	for name, sub := range map[string]Submission{
		"missing game":  {TimeSeconds: 10},
		"negative time": {GameID: 1, TimeSeconds: -5},
		"bad room":      {GameID: 1, RoomID: &negative},
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := f.service.Record(context.Background(), nil, sub)
			assert.ErrorIs(t, err, ErrInvalidSubmission)
		})
	}
}

func TestGetWithoutRoomOrUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.service.Get(context.Background(), 3, nil, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
