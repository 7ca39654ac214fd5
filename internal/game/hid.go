package game

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/hectorgimenez/d2go/pkg/data"
	"golang.org/x/sync/semaphore"
)

var (
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	ErrPointerBusy           = errors.New("pointer is held by another attempt")
)

const (
	pointerSettle   = 25 * time.Millisecond
	humanStepPixels = 15
	humanMinSteps   = 8
	humanMaxSteps   = 20
	humanJitter     = 1.25
	humanMinStepMs  = 4
	humanMaxStepMs  = 8
)

// InputEffector delivers raw input to the host application.
type InputEffector interface {
	KeyDown(key byte) error
	KeyUp(key byte) error
	SetPointer(pos data.Position) error
	PointerPosition() data.Position
}

// PointerMover brings the pointer to a screen position and waits until it settled.
type PointerMover interface {
	MovePointer(ctx context.Context, target data.Position) error
}

// Lease is implemented by movers that must be held exclusively for one aim+cast attempt.
type Lease interface {
	Acquire() (release func(), err error)
}

type SleepFunc func(ctx context.Context, d time.Duration) error

// InstantMover jumps the pointer straight to the target.
type InstantMover struct {
	in    InputEffector
	sleep SleepFunc
}

func NewInstantMover(in InputEffector, sleep SleepFunc) *InstantMover {
	return &InstantMover{in: in, sleep: sleep}
}

func (m *InstantMover) MovePointer(ctx context.Context, target data.Position) error {
	if err := m.in.SetPointer(target); err != nil {
		return err
	}

	return m.sleep(ctx, pointerSettle)
}

// HumanizedMover walks the pointer along a jittered interpolated path. Only one
// attempt may drive it at a time.
type HumanizedMover struct {
	in    InputEffector
	sleep SleepFunc
	sem   *semaphore.Weighted

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewHumanizedMover(in InputEffector, sleep SleepFunc, seed int64) *HumanizedMover {
	return &HumanizedMover{
		in:    in,
		sleep: sleep,
		sem:   semaphore.NewWeighted(1),
		rnd:   rand.New(rand.NewSource(seed)),
	}
}

func (m *HumanizedMover) Acquire() (func(), error) {
	if !m.sem.TryAcquire(1) {
		return nil, ErrPointerBusy
	}

	var once sync.Once
	return func() { once.Do(func() { m.sem.Release(1) }) }, nil
}

func (m *HumanizedMover) MovePointer(ctx context.Context, target data.Position) error {
	path := m.Path(m.in.PointerPosition(), target)
	for i, p := range path {
		if err := m.in.SetPointer(p); err != nil {
			return err
		}
		if i == len(path)-1 {
			break
		}
		if err := m.sleep(ctx, m.stepDelay()); err != nil {
			return err
		}
	}

	return m.sleep(ctx, pointerSettle)
}

// Path returns the intermediate points from start to target. The last point is
// always exactly the target.
func (m *HumanizedMover) Path(start, target data.Position) []data.Position {
	dx := float64(target.X - start.X)
	dy := float64(target.Y - start.Y)
	steps := max(humanMinSteps, min(int(math.Hypot(dx, dy)/humanStepPixels), humanMaxSteps))

	m.mu.Lock()
	defer m.mu.Unlock()

	path := make([]data.Position, 0, steps+1)
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := float64(start.X) + dx*t + m.rnd.Float64()*2*humanJitter - humanJitter
		y := float64(start.Y) + dy*t + m.rnd.Float64()*2*humanJitter - humanJitter
		path = append(path, data.Position{X: int(math.Round(x)), Y: int(math.Round(y))})
	}

	return append(path, target)
}

func (m *HumanizedMover) stepDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	return time.Duration(humanMinStepMs+m.rnd.Intn(humanMaxStepMs-humanMinStepMs)) * time.Millisecond
}
