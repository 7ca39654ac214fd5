package step

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hectorgimenez/d2go/pkg/data"
	"github.com/hectorgimenez/rebuff/internal/game"
	"github.com/hectorgimenez/rebuff/internal/utils"
)

var (
	ErrInvalidPosition = errors.New("invalid target position")
	ErrInput           = errors.New("input error")
)

const (
	keyHoldDelay   = 50 * time.Millisecond
	postCastDelay  = 1000 * time.Millisecond
	aimSettleDelay = 25 * time.Millisecond
)

// Executor performs the atomic actions of a rotation against the input layer.
// Every call returns nil on success; failures never panic past this boundary.
type Executor struct {
	reader     game.WorldReader
	input      game.InputEffector
	sleep      game.SleepFunc
	now        func() time.Time
	swapSettle time.Duration

	swapStartedAt time.Time
}

type ExecutorOption func(*Executor)

func WithSleep(sleep game.SleepFunc) ExecutorOption {
	return func(e *Executor) { e.sleep = sleep }
}

func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) { e.now = now }
}

// WithSwapSettle sets the blocking wait after swapping into the alternate loadout.
// It defaults to 0: the rotation waits out the swap animation in its
// AwaitingTimer state instead of blocking the tick here.
func WithSwapSettle(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.swapSettle = d }
}

func NewExecutor(reader game.WorldReader, input game.InputEffector, opts ...ExecutorOption) *Executor {
	e := &Executor{
		reader: reader,
		input:  input,
		sleep:  utils.SleepContext,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// AimAt projects the target on screen and moves the pointer there with mover.
func (e *Executor) AimAt(ctx context.Context, mover game.PointerMover, target game.Entity) (err error) {
	defer recoverInput(&err)

	pos := e.reader.ProjectToScreen(target.Position)
	if pos == (data.Position{}) {
		return fmt.Errorf("entity %d: %w", target.ID, ErrInvalidPosition)
	}

	if err = mover.MovePointer(ctx, pos); err != nil {
		return inputErr("move pointer", err)
	}

	return e.sleep(ctx, aimSettleDelay)
}

// TriggerSkill presses and releases the skill key, then waits for the cast to finish.
func (e *Executor) TriggerSkill(ctx context.Context, kb data.KeyBinding) (err error) {
	defer recoverInput(&err)

	key := kb.Key1[0]
	if err = e.input.KeyDown(key); err != nil {
		return inputErr("key down", err)
	}

	holdErr := e.sleep(ctx, keyHoldDelay)
	if err = e.input.KeyUp(key); err != nil {
		return inputErr("key up", err)
	}
	if holdErr != nil {
		return holdErr
	}

	return e.sleep(ctx, postCastDelay)
}

// SwapLoadout taps the swap key and restarts the swap timer. withSettle waits
// for the swap animation before returning.
func (e *Executor) SwapLoadout(ctx context.Context, kb data.KeyBinding, withSettle bool) (err error) {
	defer recoverInput(&err)

	key := kb.Key1[0]
	if err = e.input.KeyDown(key); err != nil {
		return inputErr("key down", err)
	}
	if err = e.input.KeyUp(key); err != nil {
		return inputErr("key up", err)
	}
	e.swapStartedAt = e.now()

	if withSettle && e.swapSettle > 0 {
		return e.sleep(ctx, e.swapSettle)
	}

	return nil
}

// SwapStartedAt is the time of the last swap key press.
func (e *Executor) SwapStartedAt() time.Time {
	return e.swapStartedAt
}

func inputErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrInput, err)
}

func recoverInput(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: recovered panic: %v", ErrInput, r)
	}
}
