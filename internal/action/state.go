package action

import (
	"time"

	"github.com/hectorgimenez/d2go/pkg/data"
)

type StateKind int

const (
	Idle StateKind = iota
	AwaitingTimer
	AimingAndCasting
	AwaitingVerification
	Retrying
)

func (k StateKind) String() string {
	switch k {
	case Idle:
		return "Idle"
	case AwaitingTimer:
		return "AwaitingTimer"
	case AimingAndCasting:
		return "AimingAndCasting"
	case AwaitingVerification:
		return "AwaitingVerification"
	case Retrying:
		return "Retrying"
	default:
		return "Unknown"
	}
}

// SwapReason tells an AwaitingTimer state where to go once the swap delay elapsed.
type SwapReason int

const (
	NoSwap SwapReason = iota
	SwapToMain
	SwapBack
)

func (r SwapReason) String() string {
	switch r {
	case SwapToMain:
		return "SwapToMain"
	case SwapBack:
		return "SwapBack"
	default:
		return ""
	}
}

// State is the single active rotation state. Reason is only set for AwaitingTimer.
type State struct {
	Kind   StateKind
	Reason SwapReason
}

func (s State) String() string {
	if s.Kind == AwaitingTimer {
		return s.Kind.String() + "(" + s.Reason.String() + ")"
	}
	return s.Kind.String()
}

func awaiting(r SwapReason) State {
	return State{Kind: AwaitingTimer, Reason: r}
}

// Context is owned by the rotation and only touched from the tick goroutine.
type Context struct {
	State           State
	SwapStartedAt   time.Time
	CastStartedAt   time.Time
	ActiveWeaponSet int
	HasBuff         bool

	// SelectedTarget is only meaningful for the step that selected it.
	SelectedTarget data.UnitID
	HasTarget      bool

	SequenceActive    bool
	SwapBackPending   bool
	BuffConfirmed     bool
	SequenceID        string
	SequenceStartedAt time.Time
	Attempts          int
}

func (c *Context) dropTarget() {
	c.SelectedTarget = 0
	c.HasTarget = false
}
