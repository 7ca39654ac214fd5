package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hectorgimenez/d2go/pkg/data"
	"github.com/hectorgimenez/rebuff/internal/config"
	"github.com/hectorgimenez/rebuff/internal/event"
	"github.com/hectorgimenez/rebuff/internal/game"
	"github.com/hectorgimenez/rebuff/internal/utils"
)

// verifyPolls is the number of buff checks after the cast delay elapsed.
const verifyPolls = 3

var errBuffNotDetected = errors.New("buff not detected after cast")

// Executor performs the atomic actions the rotation is made of.
type Executor interface {
	AimAt(ctx context.Context, mover game.PointerMover, target game.Entity) error
	TriggerSkill(ctx context.Context, kb data.KeyBinding) error
	SwapLoadout(ctx context.Context, kb data.KeyBinding, withSettle bool) error
	SwapStartedAt() time.Time
}

// Deps wires the rotation to the outside world. Players is re-read on every
// verification poll and Movers is asked for a mover on every aim+cast attempt.
type Deps struct {
	Executor Executor
	Players  func() game.PlayerState
	Movers   func() game.PointerMover
	Events   event.Sender
	Logger   *slog.Logger
	Name     string
	Now      func() time.Time
	Sleep    game.SleepFunc
	NewID    func() string
}

// Rotation is the buff refresh state machine. Advance moves it by at most one
// transition per call.
type Rotation struct {
	cfg     config.Settings
	tracker game.BuffTracker
	exec    Executor
	players func() game.PlayerState
	movers  func() game.PointerMover
	events  event.Sender
	logger  *slog.Logger
	name    string
	now     func() time.Time
	sleep   game.SleepFunc
	newID   func() string

	rc     Context
	active atomic.Bool
}

func NewRotation(cfg config.Settings, d Deps) *Rotation {
	r := &Rotation{
		cfg:     cfg,
		tracker: game.BuffTracker{BuffName: cfg.Target.BuffName},
		exec:    d.Executor,
		players: d.Players,
		movers:  d.Movers,
		events:  d.Events,
		logger:  d.Logger,
		name:    d.Name,
		now:     d.Now,
		sleep:   d.Sleep,
		newID:   d.NewID,
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.events == nil {
		r.events = event.Discard{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.sleep == nil {
		r.sleep = utils.SleepContext
	}
	if r.newID == nil {
		r.newID = uuid.NewString
	}
	if r.name == "" {
		r.name = cfg.ControllerName
	}

	return r
}

// IsActive reports whether a sequence is in progress. Safe for concurrent use.
func (r *Rotation) IsActive() bool {
	return r.active.Load()
}

// Context returns a copy of the rotation context.
func (r *Rotation) Context() Context {
	return r.rc
}

func (r *Rotation) State() State {
	return r.rc.State
}

// Reset forces the rotation back to Idle and drops every transient value.
func (r *Rotation) Reset(reason string) {
	if r.rc.SequenceActive {
		r.logger.Debug("Rotation aborted",
			slog.String("sequence", r.rc.SequenceID),
			slog.String("state", r.rc.State.String()),
			slog.String("reason", reason))
		r.events.Send(event.SequenceFinished(
			event.Text(r.name, "Rotation aborted: "+reason),
			r.rc.SequenceID, event.FinishedAborted, r.rc.Attempts, r.rc.SwapBackPending, r.rc.SequenceStartedAt))
	}

	r.rc = Context{}
	r.active.Store(false)
}

// Advance refreshes the buff status from the snapshot and runs one transition.
func (r *Rotation) Advance(ctx context.Context, s game.Snapshot) {
	r.applyStatus(r.tracker.Refresh(s))

	switch r.rc.State.Kind {
	case Idle:
		r.idle(ctx)
	case AwaitingTimer:
		r.awaitTimer()
	case AimingAndCasting:
		r.aimAndCast(ctx, s)
	case AwaitingVerification:
		r.awaitVerification(ctx)
	case Retrying:
		r.transition(State{Kind: AimingAndCasting})
	}
}

func (r *Rotation) idle(ctx context.Context) {
	if r.rc.HasBuff {
		return
	}

	r.rc.SequenceActive = true
	r.rc.SequenceID = r.newID()
	r.rc.SequenceStartedAt = r.now()
	r.active.Store(true)

	r.logger.Debug("No buff detected, starting sequence",
		slog.String("sequence", r.rc.SequenceID),
		slog.Int("weaponSet", r.rc.ActiveWeaponSet))
	r.events.Send(event.SequenceStarted(event.Text(r.name, "Rotation started"), r.rc.SequenceID, r.rc.ActiveWeaponSet))

	if r.rc.ActiveWeaponSet != 0 {
		r.transition(State{Kind: AimingAndCasting})
		return
	}

	if err := r.exec.SwapLoadout(ctx, r.cfg.SwapKeyBinding(), true); err != nil {
		r.logger.Debug("Weapon swap failed, will start over", slog.Any("error", err))
		r.Reset("weapon swap failed")
		return
	}

	r.rc.SwapStartedAt = r.exec.SwapStartedAt()
	r.rc.SwapBackPending = true
	r.transition(awaiting(SwapToMain))
}

func (r *Rotation) awaitTimer() {
	if r.now().Sub(r.rc.SwapStartedAt) < r.cfg.SwapDelay() {
		return
	}

	switch r.rc.State.Reason {
	case SwapToMain:
		r.transition(State{Kind: AimingAndCasting})
	default:
		r.finish()
	}
}

func (r *Rotation) aimAndCast(ctx context.Context, s game.Snapshot) {
	r.rc.Attempts++

	if err := r.attempt(ctx, s); err != nil {
		r.retry(err)
		return
	}

	r.rc.CastStartedAt = r.now()
	r.transition(State{Kind: AwaitingVerification})
}

// attempt holds the pointer lease, when the mover has one, for the whole aim+cast.
func (r *Rotation) attempt(ctx context.Context, s game.Snapshot) error {
	target, found := game.SelectTarget(s, r.cfg.Target.PathPattern, r.cfg.Target.MaxRange)
	if !found {
		return game.ErrNoTarget
	}
	r.rc.SelectedTarget = target.ID
	r.rc.HasTarget = true

	mover := r.movers()
	if mover == nil {
		return fmt.Errorf("pointer mover: %w", game.ErrCapabilityUnavailable)
	}
	if lease, ok := mover.(game.Lease); ok {
		release, err := lease.Acquire()
		if err != nil {
			return err
		}
		defer release()
	}

	if err := r.exec.AimAt(ctx, mover, target); err != nil {
		return err
	}

	return r.exec.TriggerSkill(ctx, r.cfg.SkillKeyBinding())
}

func (r *Rotation) awaitVerification(ctx context.Context) {
	if r.now().Sub(r.rc.CastStartedAt) < r.cfg.CastCheckDelay() {
		return
	}

	// Once confirmed, only the swap back is left to retry.
	if !r.rc.BuffConfirmed {
		found, polls := r.verify(ctx)
		if !found {
			r.retry(fmt.Errorf("%w (%d checks)", errBuffNotDetected, polls))
			return
		}

		r.logger.Debug("Buff acquired",
			slog.String("sequence", r.rc.SequenceID),
			slog.Int("attempts", r.rc.Attempts),
			slog.Int("polls", polls))
		r.events.Send(event.BuffConfirmed(event.Text(r.name, "Buff acquired"), r.rc.SequenceID, r.rc.Attempts, polls))
		r.rc.BuffConfirmed = true
		r.rc.dropTarget()
	}

	if !r.rc.SwapBackPending {
		r.finish()
		return
	}

	if err := r.exec.SwapLoadout(ctx, r.cfg.SwapKeyBinding(), false); err != nil {
		r.logger.Debug("Swap back failed, will try again", slog.Any("error", err))
		return
	}

	r.rc.SwapStartedAt = r.exec.SwapStartedAt()
	r.rc.SwapBackPending = false
	r.transition(awaiting(SwapBack))
}

// verify polls the buff up to verifyPolls times and stops on the first hit.
func (r *Rotation) verify(ctx context.Context) (bool, int) {
	for i := 1; i <= verifyPolls; i++ {
		r.applyStatus(r.tracker.Refresh(game.Snapshot{Player: r.players()}))
		if r.rc.HasBuff {
			return true, i
		}
		if i == verifyPolls {
			break
		}
		if err := r.sleep(ctx, r.cfg.PollInterval()); err != nil {
			return false, i
		}
	}

	return false, verifyPolls
}

func (r *Rotation) retry(err error) {
	r.logger.Debug("Cast failed, will retry",
		slog.String("sequence", r.rc.SequenceID),
		slog.String("state", r.rc.State.String()),
		slog.Int("attempt", r.rc.Attempts),
		slog.Any("error", err))
	r.events.Send(event.CastFailed(event.Text(r.name, "Cast failed, retrying"), r.rc.SequenceID, r.rc.Attempts, err.Error()))

	r.rc.dropTarget()
	r.transition(State{Kind: Retrying})
}

func (r *Rotation) finish() {
	r.logger.Debug("Sequence complete",
		slog.String("sequence", r.rc.SequenceID),
		slog.Int("attempts", r.rc.Attempts))
	r.events.Send(event.SequenceFinished(
		event.Text(r.name, "Rotation complete"),
		r.rc.SequenceID, event.FinishedOK, r.rc.Attempts, r.rc.State.Reason == SwapBack, r.rc.SequenceStartedAt))

	r.rc = Context{ActiveWeaponSet: r.rc.ActiveWeaponSet, HasBuff: r.rc.HasBuff}
	r.active.Store(false)
}

func (r *Rotation) transition(to State) {
	r.logger.Debug("Rotation transition",
		slog.String("from", r.rc.State.String()),
		slog.String("to", to.String()))
	r.rc.State = to
}

func (r *Rotation) applyStatus(st game.Status) {
	r.rc.HasBuff = st.HasBuff
	r.rc.ActiveWeaponSet = st.ActiveWeaponSet
}
