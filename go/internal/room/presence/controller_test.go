package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/gameroom/go/internal/room/store"
	"github.com/mcdev12/gameroom/go/internal/room/store/sqlite"
)

func newSQLiteController(t *testing.T) (*Controller, *clockwork.FakeClock, *sqlite.Store, int64) {
	t.Helper()
	ctx := context.Background()
	s, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	roomID, err := s.CreateRoom(ctx, "presence", 1)
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	return NewController(s, clock), clock, s, roomID
}

func TestJoinLeaveRejoinAccumulatesPause(t *testing.T) {
	t.Parallel()
	c, clock, s, roomID := newSQLiteController(t)
	ctx := context.Background()
	seq := c.Sequencer()

	c.Apply(ctx, seq.Issue(roomID, BecameActive))
	before, err := s.LoadTimer(ctx, roomID)
	require.NoError(t, err)
	require.NotNil(t, before.StartedAt)

	clock.Advance(90 * time.Second)
	c.Apply(ctx, seq.Issue(roomID, BecameIdle))

	clock.Advance(37 * time.Second)
	elapsed, paused, err := c.Elapsed(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, 90, elapsed, "paused timer does not advance")
	assert.NotNil(t, paused.PausedAt)

	c.Apply(ctx, seq.Issue(roomID, BecameActive))

	after, err := s.LoadTimer(ctx, roomID)
	require.NoError(t, err)
	assert.True(t, before.StartedAt.Equal(*after.StartedAt), "started_at is unchanged")
	assert.Nil(t, after.PausedAt)
	assert.Equal(t, before.TotalPauseSeconds+37, after.TotalPauseSeconds)

	clock.Advance(10 * time.Second)
	elapsed, _, err = c.Elapsed(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, 100, elapsed)
	assert.Zero(t, seq.pending())
}

func TestBecameActiveOnRunningTimerIsNoop(t *testing.T) {
	t.Parallel()
	c, clock, s, roomID := newSQLiteController(t)
	ctx := context.Background()

	require.NoError(t, c.OnBecameActive(ctx, roomID))
	first, err := s.LoadTimer(ctx, roomID)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	require.NoError(t, c.OnBecameActive(ctx, roomID))
	second, err := s.LoadTimer(ctx, roomID)
	require.NoError(t, err)

	assert.True(t, first.StartedAt.Equal(*second.StartedAt))
	assert.Zero(t, second.TotalPauseSeconds)
}

func TestEffectiveElapsed(t *testing.T) {
	t.Parallel()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	at := func(sec int) *time.Time {
		v := base.Add(time.Duration(sec) * time.Second)
		return &v
	}

	tests := []struct {
		name  string
		timer store.RoomTimer
		now   int
		want  int
	}{
		{"not started", store.RoomTimer{}, 500, 0},
		{"running", store.RoomTimer{StartedAt: at(0)}, 120, 120},
		{"running with pauses", store.RoomTimer{StartedAt: at(0), TotalPauseSeconds: 30}, 120, 90},
		{"paused", store.RoomTimer{StartedAt: at(0), PausedAt: at(100), TotalPauseSeconds: 10}, 400, 90},
		{"clamped", store.RoomTimer{StartedAt: at(100)}, 50, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveElapsed(tt.timer, *at(tt.now)))
		})
	}
}

// recordingStore records the order transitions reach the store.
type recordingStore struct {
	store.TimerStore
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (r *recordingStore) record(call string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	if r.fail {
		return false, errors.New("database unavailable")
	}
	return true, nil
}

func (r *recordingStore) ResumeTimer(context.Context, int64, time.Time) (bool, error) {
	return r.record("resume")
}

func (r *recordingStore) StartTimer(context.Context, int64, time.Time) (bool, error) {
	return r.record("start")
}

func (r *recordingStore) PauseTimer(context.Context, int64, time.Time) (bool, error) {
	return r.record("pause")
}

func TestApplyFollowsIssueOrder(t *testing.T) {
	t.Parallel()
	rec := &recordingStore{}
	c := NewController(rec, clockwork.NewFakeClock())
	seq := c.Sequencer()
	ctx := context.Background()

	idle := seq.Issue(7, BecameIdle)
	active := seq.Issue(7, BecameActive)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Apply(ctx, active)
	}()

	select {
	case <-done:
		t.Fatal("later transition applied before the earlier one")
	case <-time.After(50 * time.Millisecond):
	}

	c.Apply(ctx, idle)
	<-done

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"pause", "resume", "start"}, rec.calls)
	assert.Zero(t, seq.pending())
}

func TestApplySwallowsPersistenceFailure(t *testing.T) {
	t.Parallel()
	rec := &recordingStore{fail: true}
	c := NewController(rec, clockwork.NewFakeClock())
	seq := c.Sequencer()

	c.Apply(context.Background(), seq.Issue(3, BecameActive))
	c.Apply(context.Background(), seq.Issue(3, BecameIdle))

	assert.Equal(t, []string{"resume", "pause"}, rec.calls)
	assert.Zero(t, seq.pending())
}

func TestZeroTicketIsIgnored(t *testing.T) {
	t.Parallel()
	rec := &recordingStore{}
	c := NewController(rec, clockwork.NewFakeClock())
	c.Apply(context.Background(), Ticket{})
	assert.Empty(t, rec.calls)
	assert.Equal(t, Ticket{}, c.Sequencer().Issue(1, None))
}

func TestIdleBeforeStartLeavesTimerUnstarted(t *testing.T) {
	t.Parallel()
	c, clock, s, roomID := newSQLiteController(t)
	ctx := context.Background()

	require.NoError(t, c.OnBecameIdle(ctx, roomID))
	timer, err := s.LoadTimer(ctx, roomID)
	require.NoError(t, err)
	assert.Nil(t, timer.PausedAt)

	clock.Advance(time.Minute)
	require.NoError(t, c.OnBecameActive(ctx, roomID))
	timer, err = s.LoadTimer(ctx, roomID)
	require.NoError(t, err)
	require.NotNil(t, timer.StartedAt)
	assert.True(t, timer.StartedAt.Equal(clock.Now()))
}

func TestResetTimer(t *testing.T) {
	t.Parallel()

	t.Run("running timer restarts now", func(t *testing.T) {
		t.Parallel()
		c, clock, s, roomID := newSQLiteController(t)
		ctx := context.Background()

		c.Apply(ctx, c.Sequencer().Issue(roomID, BecameActive))
		clock.Advance(90 * time.Second)
		c.ResetTimer(ctx, roomID)

		timer, err := s.LoadTimer(ctx, roomID)
		require.NoError(t, err)
		require.NotNil(t, timer.StartedAt)
		assert.True(t, timer.StartedAt.Equal(clock.Now()))
		assert.Nil(t, timer.PausedAt)
		assert.Zero(t, timer.TotalPauseSeconds)
		assert.Zero(t, c.Sequencer().pending())
	})

	t.Run("paused timer starts on next join", func(t *testing.T) {
		t.Parallel()
		c, clock, s, roomID := newSQLiteController(t)
		ctx := context.Background()
		seq := c.Sequencer()

		c.Apply(ctx, seq.Issue(roomID, BecameActive))
		clock.Advance(90 * time.Second)
		c.Apply(ctx, seq.Issue(roomID, BecameIdle))
		c.ResetTimer(ctx, roomID)

		timer, err := s.LoadTimer(ctx, roomID)
		require.NoError(t, err)
		assert.Nil(t, timer.StartedAt)
		assert.Nil(t, timer.PausedAt)

		clock.Advance(time.Minute)
		c.Apply(ctx, seq.Issue(roomID, BecameActive))
		clock.Advance(400 * time.Second)
		elapsed, _, err := c.Elapsed(ctx, roomID)
		require.NoError(t, err)
		assert.Equal(t, 400, elapsed)
	})
}
