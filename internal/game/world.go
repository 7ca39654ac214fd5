package game

import (
	"time"

	"github.com/hectorgimenez/d2go/pkg/data"
)

// WorldReader reports the state of the host game. Implementations are external
// collaborators; calls are not bounded by any timeout.
type WorldReader interface {
	CurrentArea() Area
	PlayerSnapshot() PlayerState
	NearbyEntities(t EntityType) []Entity
	// ProjectToScreen returns the zero position when pos cannot be rendered.
	ProjectToScreen(pos WorldPosition) data.Position
	IsWindowForeground() bool
	UIPanelVisible(p Panel) bool
	IsMenuOpen() bool
}

type EntityType int

const (
	EntityMonster EntityType = iota
	EntityPlayer
	EntityObject
)

type Panel int

const (
	PanelInventory Panel = iota
	PanelChat
	PanelLeft
	PanelRight
	PanelFullscreen
	PanelLarge
)

// Panels lists every panel the gate cares about, in evaluation order.
var Panels = []Panel{PanelInventory, PanelChat, PanelLeft, PanelRight, PanelFullscreen, PanelLarge}

func (p Panel) String() string {
	switch p {
	case PanelInventory:
		return "Inventory"
	case PanelChat:
		return "Chat"
	case PanelLeft:
		return "Left panel"
	case PanelRight:
		return "Right panel"
	case PanelFullscreen:
		return "Fullscreen panel"
	case PanelLarge:
		return "Large panel"
	default:
		return "Unknown panel"
	}
}

type WorldPosition struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

type Area struct {
	Name      string `json:"name"`
	IsHideout bool   `json:"isHideout"`
	IsTown    bool   `json:"isTown"`
}

func (a Area) IsSafe() bool {
	return a.IsHideout || a.IsTown
}

type Buff struct {
	Name string `json:"name"`
	// Timer is the remaining duration in seconds.
	Timer float64 `json:"timer"`
}

type PlayerState struct {
	HP              int    `json:"hp"`
	ActiveWeaponSet int    `json:"activeWeaponSet"`
	Buffs           []Buff `json:"buffs"`
}

func (p PlayerState) FindBuff(name string) (Buff, bool) {
	for _, b := range p.Buffs {
		if b.Name == name {
			return b, true
		}
	}

	return Buff{}, false
}

// HasBuff reports the buff presence regardless of its remaining duration.
func (p PlayerState) HasBuff(name string) bool {
	_, found := p.FindBuff(name)
	return found
}

type Entity struct {
	ID        data.UnitID   `json:"id"`
	Path      string        `json:"path"`
	IsAlive   bool          `json:"isAlive"`
	IsHidden  bool          `json:"isHidden"`
	IsHostile bool          `json:"isHostile"`
	Distance  float64       `json:"distance"`
	Position  WorldPosition `json:"position"`
}

// Snapshot is the per-tick view of the world. It must not be kept past the tick it was taken on.
type Snapshot struct {
	Area       Area
	Player     PlayerState
	Monsters   []Entity
	Foreground bool
	Panels     map[Panel]bool
	MenuOpen   bool
	TakenAt    time.Time
}

func (s Snapshot) PanelVisible(p Panel) bool {
	return s.Panels[p]
}

// TakeSnapshot reads everything the gate and the rotation need for a single tick.
func TakeSnapshot(r WorldReader, now time.Time) Snapshot {
	panels := make(map[Panel]bool, len(Panels))
	for _, p := range Panels {
		panels[p] = r.UIPanelVisible(p)
	}

	return Snapshot{
		Area:       r.CurrentArea(),
		Player:     r.PlayerSnapshot(),
		Monsters:   r.NearbyEntities(EntityMonster),
		Foreground: r.IsWindowForeground(),
		Panels:     panels,
		MenuOpen:   r.IsMenuOpen(),
		TakenAt:    now,
	}
}
