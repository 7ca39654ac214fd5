package game

import (
	"errors"
	"strings"
)

var ErrNoTarget = errors.New("no valid target found")

// IsHostileThreat matches entities that should pause automation when close to the player.
func IsHostileThreat(e Entity) bool {
	return e.IsHostile && e.IsAlive && !e.IsHidden
}

// HostileWithin reports whether any threatening entity is at distance <= radius.
func HostileWithin(s Snapshot, radius float64) bool {
	for _, m := range s.Monsters {
		if IsHostileThreat(m) && m.Distance <= radius {
			return true
		}
	}

	return false
}

// SelectTarget returns the closest living entity whose path contains pathFilter
// and whose distance is strictly below maxRange. Ties keep snapshot order.
func SelectTarget(s Snapshot, pathFilter string, maxRange float64) (Entity, bool) {
	var (
		best  Entity
		found bool
	)

	for _, m := range s.Monsters {
		if m.Path == "" || !strings.Contains(m.Path, pathFilter) || !m.IsAlive || m.Distance >= maxRange {
			continue
		}
		if !found || m.Distance < best.Distance {
			best = m
			found = true
		}
	}

	return best, found
}
