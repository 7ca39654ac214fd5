package step

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hectorgimenez/d2go/pkg/data"
	"github.com/hectorgimenez/rebuff/internal/game"
)

type fakeReader struct {
	screen data.Position
}

func (f fakeReader) CurrentArea() game.Area { return game.Area{} }
func (f fakeReader) PlayerSnapshot() game.PlayerState { return game.PlayerState{} }
func (f fakeReader) NearbyEntities(game.EntityType) []game.Entity { return nil }
func (f fakeReader) ProjectToScreen(game.WorldPosition) data.Position { return f.screen }
func (f fakeReader) IsWindowForeground() bool { return true }
func (f fakeReader) UIPanelVisible(game.Panel) bool { return false }
func (f fakeReader) IsMenuOpen() bool { return false }

type fakeInput struct {
	events  []string
	pointer data.Position
	failOn  string
	panicOn string
}

func (f *fakeInput) record(ev string) error {
	if ev == f.panicOn {
		panic("driver exploded")
	}
	f.events = append(f.events, ev)
	if ev == f.failOn {
		return errors.New("device unplugged")
	}
	return nil
}

func (f *fakeInput) KeyDown(key byte) error { return f.record("down:" + string(key)) }
func (f *fakeInput) KeyUp(key byte) error { return f.record("up:" + string(key)) }
func (f *fakeInput) SetPointer(p data.Position) error {
	f.pointer = p
	return f.record("pointer")
}
func (f *fakeInput) PointerPosition() data.Position { return f.pointer }

type sleeps []time.Duration

func (s *sleeps) sleep(_ context.Context, d time.Duration) error {
	*s = append(*s, d)
	return nil
}

var (
	skillKB = data.KeyBinding{Key1: [2]byte{'Q', 0}}
	swapKB  = data.KeyBinding{Key1: [2]byte{'X', 0}}
)

func newTestExecutor(screen data.Position, in *fakeInput, s *sleeps, opts ...ExecutorOption) *Executor {
	opts = append([]ExecutorOption{WithSleep(s.sleep)}, opts...)
	return NewExecutor(fakeReader{screen: screen}, in, opts...)
}

func TestAimAtMovesPointerToProjection(t *testing.T) {
	in := &fakeInput{}
	var s sleeps
	e := newTestExecutor(data.Position{X: 640, Y: 360}, in, &s)
	mover := game.NewInstantMover(in, s.sleep)

	if err := e.AimAt(context.Background(), mover, game.Entity{ID: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.pointer != (data.Position{X: 640, Y: 360}) {
		t.Fatalf("pointer at %v", in.pointer)
	}
	if len(s) != 2 || s[1] != aimSettleDelay {
		t.Fatalf("expected mover settle then aim settle, got %v", s)
	}
}

func TestAimAtRejectsDegenerateProjection(t *testing.T) {
	in := &fakeInput{}
	var s sleeps
	e := newTestExecutor(data.Position{}, in, &s)

	err := e.AimAt(context.Background(), game.NewInstantMover(in, s.sleep), game.Entity{ID: 9})
	if !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("expected ErrInvalidPosition, got %v", err)
	}
	if len(in.events) != 0 {
		t.Fatalf("pointer must not move, got %v", in.events)
	}
}

func TestTriggerSkillPressesAndWaits(t *testing.T) {
	in := &fakeInput{}
	var s sleeps
	e := newTestExecutor(data.Position{X: 1, Y: 1}, in, &s)

	if err := e.TriggerSkill(context.Background(), skillKB); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(in.events) != 2 || in.events[0] != "down:Q" || in.events[1] != "up:Q" {
		t.Fatalf("unexpected key events %v", in.events)
	}
	if len(s) != 2 || s[0] != keyHoldDelay || s[1] != postCastDelay {
		t.Fatalf("unexpected delays %v", s)
	}
}

func TestTriggerSkillReportsInputErrors(t *testing.T) {
	in := &fakeInput{failOn: "down:Q"}
	var s sleeps
	e := newTestExecutor(data.Position{X: 1, Y: 1}, in, &s)

	if err := e.TriggerSkill(context.Background(), skillKB); !errors.Is(err, ErrInput) {
		t.Fatalf("expected ErrInput, got %v", err)
	}
}

func TestTriggerSkillRecoversPanics(t *testing.T) {
	in := &fakeInput{panicOn: "up:Q"}
	var s sleeps
	e := newTestExecutor(data.Position{X: 1, Y: 1}, in, &s)

	if err := e.TriggerSkill(context.Background(), skillKB); !errors.Is(err, ErrInput) {
		t.Fatalf("expected ErrInput from recovered panic, got %v", err)
	}
}

func TestSwapLoadout(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	in := &fakeInput{}
	var s sleeps
	e := newTestExecutor(data.Position{X: 1, Y: 1}, in, &s,
		WithSwapSettle(1065*time.Millisecond),
		WithClock(func() time.Time { return now }))

	if err := e.SwapLoadout(context.Background(), swapKB, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !e.SwapStartedAt().Equal(now) {
		t.Fatalf("swap timer not restarted")
	}
	if len(s) != 1 || s[0] != 1065*time.Millisecond {
		t.Fatalf("expected settle wait, got %v", s)
	}

	now = now.Add(time.Second)
	if err := e.SwapLoadout(context.Background(), swapKB, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != 1 {
		t.Fatalf("swap without settle must not wait, got %v", s)
	}
	if !e.SwapStartedAt().Equal(now) {
		t.Fatalf("swap timer not restarted on second swap")
	}
	if len(in.events) != 4 {
		t.Fatalf("expected two taps, got %v", in.events)
	}
}

func TestSwapLoadoutDefaultsToNonBlocking(t *testing.T) {
	in := &fakeInput{}
	var s sleeps
	e := newTestExecutor(data.Position{X: 1, Y: 1}, in, &s)

	if err := e.SwapLoadout(context.Background(), swapKB, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != 0 {
		t.Fatalf("expected no settle wait without a configured delay, got %v", s)
	}
	if e.SwapStartedAt().IsZero() {
		t.Fatalf("swap timer not started")
	}
}
