// Package presence drives a room's persisted timer from its presence transitions: the
// timer starts or resumes when the first connection arrives and pauses when the last one
// leaves.
package presence

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcdev12/gameroom/go/internal/room/store"
)

// Controller applies presence transitions to the timer store.
type Controller struct {
	store     store.TimerStore
	clock     clockwork.Clock
	sequencer *Sequencer
	tracer    trace.Tracer
}

// NewController creates a Controller. In production pass clockwork.NewRealClock(), in
// tests a fake clock.
func NewController(s store.TimerStore, clock clockwork.Clock) *Controller {
	return &Controller{
		store:     s,
		clock:     clock,
		sequencer: NewSequencer(),
		tracer:    otel.Tracer("github.com/mcdev12/gameroom/go/internal/room/presence"),
	}
}

// Sequencer returns the sequencer the registry draws tickets from.
func (c *Controller) Sequencer() *Sequencer {
	return c.sequencer
}

// Clock returns the controller's clock.
func (c *Controller) Clock() clockwork.Clock {
	return c.clock
}

// Apply performs the transition carried by t once all earlier transitions of the room
// have been applied. Persistence failures are logged and not returned.
func (c *Controller) Apply(ctx context.Context, t Ticket) {
	if t.Kind == None {
		return
	}
	c.sequencer.wait(t)
	defer c.sequencer.done(t)

	var err error
	switch t.Kind {
	case BecameActive:
		err = c.OnBecameActive(ctx, t.RoomID)
	case BecameIdle:
		err = c.OnBecameIdle(ctx, t.RoomID)
	case Reset:
		err = c.restart(ctx, t.RoomID)
	}
	if err != nil {
		log.Error().
			Err(err).
			Int64("room_id", t.RoomID).
			Str("transition", t.Kind.String()).
			Msg("failed to apply presence transition")
	}
}

// OnBecameActive resumes a paused timer or starts one that never ran. A running timer is
// left alone.
func (c *Controller) OnBecameActive(ctx context.Context, roomID int64) error {
	ctx, span := c.tracer.Start(ctx, "presence.OnBecameActive",
		trace.WithAttributes(attribute.Int64("room.id", roomID)))
	defer span.End()

	now := c.clock.Now()
	resumed, err := c.store.ResumeTimer(ctx, roomID, now)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if resumed {
		log.Info().Int64("room_id", roomID).Msg("room timer resumed")
	}

	// A resumed timer that never started still needs a start.
	started, err := c.store.StartTimer(ctx, roomID, now)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if started {
		log.Info().Int64("room_id", roomID).Msg("room timer started")
	}
	return nil
}

// ResetTimer clears the pause accounting of a room in turn with its presence
// transitions. A running timer restarts now; any other timer goes back to unstarted.
func (c *Controller) ResetTimer(ctx context.Context, roomID int64) {
	c.Apply(ctx, c.sequencer.Issue(roomID, Reset))
}

func (c *Controller) restart(ctx context.Context, roomID int64) error {
	ctx, span := c.tracer.Start(ctx, "presence.ResetTimer",
		trace.WithAttributes(attribute.Int64("room.id", roomID)))
	defer span.End()

	if err := c.store.RestartTimer(ctx, roomID, c.clock.Now()); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	log.Info().Int64("room_id", roomID).Msg("room timer reset")
	return nil
}

// OnBecameIdle pauses the room timer.
func (c *Controller) OnBecameIdle(ctx context.Context, roomID int64) error {
	ctx, span := c.tracer.Start(ctx, "presence.OnBecameIdle",
		trace.WithAttributes(attribute.Int64("room.id", roomID)))
	defer span.End()

	paused, err := c.store.PauseTimer(ctx, roomID, c.clock.Now())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if paused {
		log.Info().Int64("room_id", roomID).Msg("room timer paused")
	}
	return nil
}

// Elapsed loads the room timer and returns its effective elapsed seconds at the
// controller's current time.
func (c *Controller) Elapsed(ctx context.Context, roomID int64) (int, store.RoomTimer, error) {
	timer, err := c.store.LoadTimer(ctx, roomID)
	if err != nil {
		return 0, store.RoomTimer{}, err
	}
	return EffectiveElapsed(timer, c.clock.Now()), timer, nil
}

// EffectiveElapsed is the running time of a timer at now, excluding every pause. A
// timer that never started has zero elapsed time.
func EffectiveElapsed(timer store.RoomTimer, now time.Time) int {
	if timer.StartedAt == nil {
		return 0
	}
	end := now
	if timer.PausedAt != nil {
		end = *timer.PausedAt
	}
	elapsed := int(end.Sub(*timer.StartedAt)/time.Second) - timer.TotalPauseSeconds
	if elapsed < 0 {
		return 0
	}
	return elapsed
}
