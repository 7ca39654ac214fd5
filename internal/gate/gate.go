package gate

import (
	"fmt"

	"github.com/hectorgimenez/rebuff/internal/config"
	"github.com/hectorgimenez/rebuff/internal/game"
)

// Blocker identifies the condition that stopped a tick.
type Blocker int

const (
	None Blocker = iota
	Disabled
	NotForeground
	PeerActive
	SafeZone
	PanelOpen
	MenuOpen
	HostileNearby
	PlayerDead
	GracePeriod
)

func (b Blocker) String() string {
	switch b {
	case None:
		return "none"
	case Disabled:
		return "disabled"
	case NotForeground:
		return "not_foreground"
	case PeerActive:
		return "peer_active"
	case SafeZone:
		return "safe_zone"
	case PanelOpen:
		return "panel_open"
	case MenuOpen:
		return "menu_open"
	case HostileNearby:
		return "hostile_nearby"
	case PlayerDead:
		return "player_dead"
	case GracePeriod:
		return "grace_period"
	default:
		return "unknown"
	}
}

const ReasonReady = "Ready"

// PeerFlags resolves the "is active" flag of another controller by registry name.
type PeerFlags interface {
	Flag(name string) bool
}

type Verdict struct {
	Eligible bool
	Blocker  Blocker
	Reason   string
}

// Evaluate reports whether the rotation may run this tick and, if not, why.
func Evaluate(s game.Snapshot, cfg config.Settings, peers PeerFlags) (bool, string) {
	v := Check(s, cfg, peers)
	return v.Eligible, v.Reason
}

// Check stops on the first failing condition, cheapest checks first. It has no side effects.
func Check(s game.Snapshot, cfg config.Settings, peers PeerFlags) Verdict {
	if !cfg.Enable {
		return blocked(Disabled, "Plugin is disabled")
	}

	if !s.Foreground {
		return blocked(NotForeground, "Game window is not focused")
	}

	if peers != nil {
		for _, peer := range cfg.PeerControllers {
			if peers.Flag(config.ActiveFlagName(peer)) {
				return blocked(PeerActive, fmt.Sprintf("Paused: %s is active", peer))
			}
		}
	}

	if cfg.DisableInSafeZones && s.Area.IsSafe() {
		return blocked(SafeZone, fmt.Sprintf("Player is in a safe zone (%s)", s.Area.Name))
	}

	for _, p := range game.Panels {
		if s.PanelVisible(p) {
			return blocked(PanelOpen, p.String()+" is open")
		}
	}

	if s.MenuOpen {
		return blocked(MenuOpen, "Game menu is open")
	}

	if game.HostileWithin(s, float64(cfg.SafeRange)) {
		return blocked(HostileNearby, fmt.Sprintf("Hostile mobs within %d units - pausing for safety", cfg.SafeRange))
	}

	if s.Player.HP <= 0 {
		return blocked(PlayerDead, "Player is dead")
	}

	if s.Player.HasBuff(cfg.Target.GraceBuff) {
		return blocked(GracePeriod, "Grace period is active")
	}

	return Verdict{Eligible: true, Blocker: None, Reason: ReasonReady}
}

func blocked(b Blocker, reason string) Verdict {
	return Verdict{Blocker: b, Reason: reason}
}
