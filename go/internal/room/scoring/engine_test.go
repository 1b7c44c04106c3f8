package scoring

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/gameroom/go/internal/room/store/sqlite"
)

func newEngine(t *testing.T) (*Engine, *sqlite.Store, int64) {
	t.Helper()
	ctx := context.Background()
	s, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	roomID, err := s.CreateRoom(ctx, "words", 1)
	require.NoError(t, err)
	return NewEngine(s), s, roomID
}

func TestRecordFoundItemConcurrentClaims(t *testing.T) {
	t.Parallel()
	e, s, roomID := newEngine(t)
	ctx := context.Background()

	const n = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes []Outcome
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			out, err := e.RecordFoundItem(ctx, Claim{
				RoomID:         roomID,
				ItemKey:        " gopher ",
				ParticipantKey: fmt.Sprintf("sess-%d", i),
				DisplayName:    fmt.Sprintf("p%d", i),
				Color:          "#10B981",
				ElapsedSeconds: 180,
				FoundAt:        time.Now(),
			})
			assert.NoError(t, err)
			mu.Lock()
			outcomes = append(outcomes, out)
			mu.Unlock()
		}(i)
	}
	close(start)
	wg.Wait()

	var credited []Outcome
	for _, o := range outcomes {
		if o.Credited {
			credited = append(credited, o)
		} else {
			assert.Zero(t, o.Score)
		}
	}
	require.Len(t, credited, 1)
	assert.Equal(t, 75, credited[0].Score)
	for _, o := range outcomes {
		assert.Equal(t, credited[0].Owner.FoundBy, o.Owner.FoundBy)
		assert.Equal(t, "GOPHER", o.Owner.ItemKey)
	}

	scores, err := s.ListPlayerScores(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 75, scores[0].TotalScore)
}

func TestRecordFoundItemRejectsEmptyKey(t *testing.T) {
	t.Parallel()
	e, _, roomID := newEngine(t)

	_, err := e.RecordFoundItem(context.Background(), Claim{RoomID: roomID, ItemKey: "   "})
	assert.ErrorIs(t, err, ErrEmptyItemKey)
}

func TestCompletionScoreAgreesWithLivePath(t *testing.T) {
	t.Parallel()
	e, _, _ := newEngine(t)
	for _, secs := range []int{0, 60, 180, 300, 450, 600, 700} {
		assert.Equal(t, Score(secs), e.CompletionScore(secs))
	}
}
