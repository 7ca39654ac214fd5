package bot

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hectorgimenez/d2go/pkg/data"
	"github.com/hectorgimenez/rebuff/internal/config"
	"github.com/hectorgimenez/rebuff/internal/event"
	"github.com/hectorgimenez/rebuff/internal/game"
	"github.com/hectorgimenez/rebuff/internal/registry"
)

type world struct {
	area       game.Area
	player     game.PlayerState
	monsters   []game.Entity
	foreground bool
	panels     map[game.Panel]bool
}

func (w *world) CurrentArea() game.Area { return w.area }
func (w *world) PlayerSnapshot() game.PlayerState { return w.player }
func (w *world) NearbyEntities(game.EntityType) []game.Entity { return w.monsters }
func (w *world) ProjectToScreen(game.WorldPosition) data.Position { return data.Position{X: 400, Y: 300} }
func (w *world) IsWindowForeground() bool { return w.foreground }
func (w *world) UIPanelVisible(p game.Panel) bool { return w.panels[p] }
func (w *world) IsMenuOpen() bool { return false }

type keyboard struct {
	downs   []byte
	pointer data.Position
}

func (k *keyboard) KeyDown(key byte) error {
	k.downs = append(k.downs, key)
	return nil
}
func (k *keyboard) KeyUp(byte) error { return nil }
func (k *keyboard) SetPointer(p data.Position) error {
	k.pointer = p
	return nil
}
func (k *keyboard) PointerPosition() data.Position { return k.pointer }

type countingMover struct{ moves int }

func (m *countingMover) MovePointer(context.Context, data.Position) error {
	m.moves++
	return nil
}

type sink struct{ events []event.Event }

func (s *sink) Send(e event.Event) { s.events = append(s.events, e) }

func (s *sink) blocked() []event.BlockedEvent {
	var out []event.BlockedEvent
	for _, e := range s.events {
		if b, ok := e.(event.BlockedEvent); ok {
			out = append(out, b)
		}
	}
	return out
}

type fixture struct {
	ctrl  *Controller
	world *world
	keys  *keyboard
	reg   *registry.Registry
	sink  *sink
	now   time.Time
}

func newFixture(t *testing.T, mutate func(*config.Settings)) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.Enable = true
	if mutate != nil {
		mutate(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid config: %v", err)
	}

	f := &fixture{
		world: &world{
			area:       game.Area{Name: "Mud Flats"},
			player:     game.PlayerState{HP: 100, ActiveWeaponSet: 1},
			foreground: true,
			panels:     map[game.Panel]bool{},
			monsters:   []game.Entity{{ID: 3, Path: config.DefaultTargetPath + "2", IsAlive: true, Distance: 10}},
		},
		keys: &keyboard{},
		reg:  registry.New(),
		sink: &sink{},
		now:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.ctrl = NewController(cfg, f.world, f.keys, f.reg, f.sink,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithClock(func() time.Time { return f.now }),
		WithSleep(func(context.Context, time.Duration) error { return nil }),
		WithSequenceIDs(func() string { return "seq" }),
	)

	return f
}

func (f *fixture) tick() Status {
	f.ctrl.Tick(context.Background())
	return f.ctrl.Status()
}

func TestControllerCompletesRotation(t *testing.T) {
	f := newFixture(t, nil)

	if st := f.tick(); st.State != "AimingAndCasting" || !st.Eligible {
		t.Fatalf("expected to start casting, got %+v", st)
	}
	if !f.reg.Flag(config.ActiveFlagName("SoulOffering")) {
		t.Fatalf("expected the active flag to be published as true mid-sequence")
	}

	f.tick()
	f.world.player.Buffs = []game.Buff{{Name: config.DefaultBuffName, Timer: 9}}
	f.now = f.now.Add(time.Second)

	st := f.tick()
	if st.State != "Idle" || !st.HasBuff {
		t.Fatalf("expected idle with buff, got %+v", st)
	}
	if f.reg.Flag(config.ActiveFlagName("SoulOffering")) {
		t.Fatalf("expected the active flag to be false after completion")
	}
	if len(f.keys.downs) != 1 || f.keys.downs[0] != 'Q' {
		t.Fatalf("expected a single skill key press, got %v", f.keys.downs)
	}
}

func TestControllerBlockResetsRotation(t *testing.T) {
	f := newFixture(t, nil)

	f.tick()
	f.world.panels[game.PanelChat] = true

	st := f.tick()
	if st.Eligible || st.Reason != "Chat is open" || st.State != "Idle" {
		t.Fatalf("expected blocked idle status, got %+v", st)
	}
	if f.ctrl.IsActive() {
		t.Fatalf("expected rotation to be inactive after a block")
	}

	f.tick()
	f.tick()
	if n := len(f.sink.blocked()); n != 1 {
		t.Fatalf("expected a single blocked event while the reason is unchanged, got %d", n)
	}

	var aborted bool
	for _, e := range f.sink.events {
		if fin, ok := e.(event.SequenceFinishedEvent); ok && fin.Reason == event.FinishedAborted {
			aborted = true
		}
	}
	if !aborted {
		t.Fatalf("expected the in-flight sequence to be reported as aborted")
	}

	f.world.panels[game.PanelChat] = false
	if st := f.tick(); st.State != "AimingAndCasting" {
		t.Fatalf("expected the rotation to start over once unblocked, got %s", st.State)
	}
}

func TestControllerPausesForPeer(t *testing.T) {
	f := newFixture(t, nil)

	f.reg.Publish(config.ActiveFlagName("AutoBlink"), func() bool { return true })
	st := f.tick()
	if st.Eligible || st.Reason != "Paused: AutoBlink is active" {
		t.Fatalf("expected peer pause, got %+v", st)
	}
	if len(f.keys.downs) != 0 {
		t.Fatalf("expected no input while paused, got %v", f.keys.downs)
	}
}

func TestControllerMoverSelection(t *testing.T) {
	tests := []struct {
		name      string
		humanize  bool
		publish   bool
		wantMoves int
	}{
		{"instant when humanize is off", false, true, 0},
		{"humanizer when published", true, true, 1},
		{"fallback when humanizer is missing", true, false, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, func(s *config.Settings) { s.Input.Humanize = tc.humanize })

			mover := &countingMover{}
			if tc.publish {
				f.reg.Publish("InputHumanizer", game.PointerMover(mover))
			}

			f.tick()
			f.tick()

			if mover.moves != tc.wantMoves {
				t.Fatalf("expected %d humanized moves, got %d", tc.wantMoves, mover.moves)
			}
			if tc.wantMoves == 0 && f.keys.pointer != (data.Position{X: 400, Y: 300}) {
				t.Fatalf("expected the instant mover to set the pointer, got %+v", f.keys.pointer)
			}
		})
	}
}

func TestControllerAreaChangeRepublishesFlag(t *testing.T) {
	f := newFixture(t, nil)

	f.tick()
	f.reg.Remove(config.ActiveFlagName("SoulOffering"))

	f.world.area = game.Area{Name: "Hideout", IsHideout: true}
	st := f.tick()
	if st.Reason != "Player is in a safe zone (Hideout)" {
		t.Fatalf("expected safe zone block, got %q", st.Reason)
	}
	if _, found := f.reg.Lookup(config.ActiveFlagName("SoulOffering")); !found {
		t.Fatalf("expected the active flag to be published again after the area change")
	}
}

func TestControllerRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.ctrl.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("controller did not stop")
	}

	if _, found := f.reg.Lookup(config.ActiveFlagName("SoulOffering")); found {
		t.Fatalf("expected the active flag to be removed on stop")
	}
}

func TestControllerStopReportsAbort(t *testing.T) {
	f := newFixture(t, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	listener := event.NewListener(logger)
	f.ctrl = NewController(f.ctrl.cfg, f.world, f.keys, f.reg, listener, logger,
		WithClock(func() time.Time { return f.now }),
		WithSleep(func(context.Context, time.Duration) error { return nil }),
		WithSequenceIDs(func() string { return "seq" }),
	)

	var (
		finished []event.SequenceFinishedEvent
		ctxErr   error
	)
	listener.Register(func(ctx context.Context, e event.Event) error {
		if fin, ok := e.(event.SequenceFinishedEvent); ok {
			finished = append(finished, fin)
			ctxErr = ctx.Err()
		}
		return nil
	})

	if st := f.tick(); st.State != "AimingAndCasting" {
		t.Fatalf("expected a sequence in flight, got %s", st.State)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.ctrl.Run(ctx); err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
	if err := listener.Listen(ctx); err != nil {
		t.Fatalf("listen: %v", err)
	}

	if len(finished) != 1 || finished[0].Reason != event.FinishedAborted || finished[0].SequenceID != "seq" {
		t.Fatalf("expected one aborted sequence, got %+v", finished)
	}
	if ctxErr != nil {
		t.Fatalf("expected handlers to run with a live context, got %v", ctxErr)
	}
}
