package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hectorgimenez/rebuff/internal/action"
	"github.com/hectorgimenez/rebuff/internal/action/step"
	"github.com/hectorgimenez/rebuff/internal/config"
	"github.com/hectorgimenez/rebuff/internal/event"
	"github.com/hectorgimenez/rebuff/internal/game"
	"github.com/hectorgimenez/rebuff/internal/gate"
	"github.com/hectorgimenez/rebuff/internal/registry"
	"github.com/hectorgimenez/rebuff/internal/utils"
)

// Status is an immutable copy of what the controller saw on its last tick.
type Status struct {
	Controller      string    `json:"controller"`
	State           string    `json:"state"`
	Eligible        bool      `json:"eligible"`
	Reason          string    `json:"reason"`
	Area            string    `json:"area"`
	HasBuff         bool      `json:"hasBuff"`
	ActiveWeaponSet int       `json:"activeWeaponSet"`
	SequenceID      string    `json:"sequenceId,omitempty"`
	Attempts        int       `json:"attempts"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Controller drives the gate and the rotation once per tick. Tick must only be
// called from a single goroutine; Status and the published active flag are
// safe to read from anywhere.
type Controller struct {
	cfg      config.Settings
	logger   *slog.Logger
	reader   game.WorldReader
	registry *registry.Registry
	events   event.Sender
	rotation *action.Rotation
	instant  game.PointerMover
	now      func() time.Time

	lastBlocker   gate.Blocker
	lastArea      string
	warnedMissing bool
	status        atomic.Pointer[Status]
}

type ControllerOption func(*controllerOptions)

type controllerOptions struct {
	now   func() time.Time
	sleep game.SleepFunc
	newID func() string
}

func WithClock(now func() time.Time) ControllerOption {
	return func(o *controllerOptions) { o.now = now }
}

func WithSleep(sleep game.SleepFunc) ControllerOption {
	return func(o *controllerOptions) { o.sleep = sleep }
}

func WithSequenceIDs(newID func() string) ControllerOption {
	return func(o *controllerOptions) { o.newID = newID }
}

func NewController(cfg config.Settings, reader game.WorldReader, input game.InputEffector, reg *registry.Registry, events event.Sender, logger *slog.Logger, opts ...ControllerOption) *Controller {
	o := controllerOptions{now: time.Now, sleep: utils.SleepContext}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Controller{
		cfg:      cfg,
		logger:   logger.With(slog.String("controller", cfg.ControllerName)),
		reader:   reader,
		registry: reg,
		events:   events,
		instant:  game.NewInstantMover(input, o.sleep),
		now:      o.now,
	}

	executor := step.NewExecutor(reader, input,
		step.WithSleep(o.sleep),
		step.WithClock(o.now),
		step.WithSwapSettle(cfg.SwapSettle()),
	)
	c.rotation = action.NewRotation(cfg, action.Deps{
		Executor: executor,
		Players:  reader.PlayerSnapshot,
		Movers:   c.mover,
		Events:   events,
		Logger:   c.logger,
		Name:     cfg.ControllerName,
		Now:      o.now,
		Sleep:    o.sleep,
		NewID:    o.newID,
	})
	c.status.Store(&Status{Controller: cfg.ControllerName, State: c.rotation.State().String()})

	return c
}

// IsActive reports whether a rotation sequence is in progress.
func (c *Controller) IsActive() bool {
	return c.rotation.IsActive()
}

func (c *Controller) Status() Status {
	return *c.status.Load()
}

// AreaChanged publishes the active flag again, other controllers may have
// re-created the registry entries after the area load.
func (c *Controller) AreaChanged() {
	c.registry.Publish(config.ActiveFlagName(c.cfg.ControllerName), c.IsActive)
}

// Tick evaluates the gate and, when eligible, advances the rotation by one step.
func (c *Controller) Tick(ctx context.Context) {
	s := game.TakeSnapshot(c.reader, c.now())

	if s.Area.Name != c.lastArea {
		c.logger.Debug("Area changed", slog.String("from", c.lastArea), slog.String("to", s.Area.Name))
		c.lastArea = s.Area.Name
		c.AreaChanged()
	}

	v := gate.Check(s, c.cfg, c.registry)
	if !v.Eligible {
		if v.Blocker != c.lastBlocker {
			c.logger.Debug("Rotation blocked", slog.String("reason", v.Reason))
			c.events.Send(event.Blocked(event.Text(c.cfg.ControllerName, v.Reason), v.Blocker.String(), v.Reason))
			c.lastBlocker = v.Blocker
		}
		c.rotation.Reset(v.Reason)
		c.publishStatus(s, v)
		return
	}

	if c.lastBlocker != gate.None {
		c.logger.Debug("Rotation resumed", slog.String("after", c.lastBlocker.String()))
		c.lastBlocker = gate.None
	}

	c.rotation.Advance(ctx, s)
	c.publishStatus(s, v)
}

// Run ticks at the configured interval until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	c.AreaChanged()
	defer c.registry.Remove(config.ActiveFlagName(c.cfg.ControllerName))

	c.logger.Info("Controller started", slog.Duration("tick", c.cfg.Tick()))

	ticker := time.NewTicker(c.cfg.Tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.rotation.Reset("controller stopped")
			c.logger.Info("Controller stopped")
			return nil
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// mover picks the humanizer published in the registry when humanized input
// is enabled, or falls back to the instant mover.
func (c *Controller) mover() game.PointerMover {
	if !c.cfg.Input.Humanize {
		return c.instant
	}

	if m, found := registry.LookupAs[game.PointerMover](c.registry, c.cfg.Input.HumanizerKey); found {
		c.warnedMissing = false
		return m
	}

	if !c.warnedMissing {
		c.logger.Warn("Humanized input not available, falling back to instant pointer moves",
			slog.Any("error", fmt.Errorf("%s: %w", c.cfg.Input.HumanizerKey, game.ErrCapabilityUnavailable)))
		c.warnedMissing = true
	}

	return c.instant
}

func (c *Controller) publishStatus(s game.Snapshot, v gate.Verdict) {
	rc := c.rotation.Context()
	c.status.Store(&Status{
		Controller:      c.cfg.ControllerName,
		State:           rc.State.String(),
		Eligible:        v.Eligible,
		Reason:          v.Reason,
		Area:            s.Area.Name,
		HasBuff:         rc.HasBuff,
		ActiveWeaponSet: rc.ActiveWeaponSet,
		SequenceID:      rc.SequenceID,
		Attempts:        rc.Attempts,
		UpdatedAt:       s.TakenAt,
	})
}
