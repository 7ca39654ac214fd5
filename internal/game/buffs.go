package game

// minBuffRemaining avoids skipping a rotation on the tick the buff expires.
const minBuffRemaining = 0.1

type Status struct {
	HasBuff         bool
	ActiveWeaponSet int
}

type BuffTracker struct {
	BuffName string
}

// Refresh derives the rotation flags from the player state. A buff with
// remaining time <= 0.1s counts as expired.
func (t BuffTracker) Refresh(s Snapshot) Status {
	st := Status{ActiveWeaponSet: s.Player.ActiveWeaponSet}
	if b, found := s.Player.FindBuff(t.BuffName); found && b.Timer > minBuffRemaining {
		st.HasBuff = true
	}

	return st
}
