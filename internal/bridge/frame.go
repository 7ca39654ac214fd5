package bridge

import (
	"strings"

	"github.com/hectorgimenez/d2go/pkg/data"
	"github.com/hectorgimenez/rebuff/internal/game"
)

// Rect is the client area of the game window in desktop coordinates.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

func (r Rect) Width() int { return r.Right - r.Left }
func (r Rect) Height() int { return r.Bottom - r.Top }

func (r Rect) contains(p data.Position) bool {
	return p.X >= r.Left && p.X < r.Right && p.Y >= r.Top && p.Y < r.Bottom
}

// Frame is a full world state pushed by the overlay, one per rendered frame.
type Frame struct {
	Area       game.Area        `json:"area"`
	Player     game.PlayerState `json:"player"`
	Monsters   []game.Entity    `json:"monsters"`
	Players    []game.Entity    `json:"players"`
	Objects    []game.Entity    `json:"objects"`
	Foreground bool             `json:"foreground"`
	Panels     []string         `json:"panels"`
	MenuOpen   bool             `json:"menuOpen"`
	Pointer    data.Position    `json:"pointer"`
	Window     Rect             `json:"window"`

	// ViewProjection is row-major.
	ViewProjection [16]float32 `json:"viewProjection"`
}

func (f Frame) entities(t game.EntityType) []game.Entity {
	switch t {
	case game.EntityMonster:
		return f.Monsters
	case game.EntityPlayer:
		return f.Players
	case game.EntityObject:
		return f.Objects
	default:
		return nil
	}
}

func (f Frame) panelVisible(p game.Panel) bool {
	name := panelNames[p]
	for _, visible := range f.Panels {
		if strings.EqualFold(visible, name) {
			return true
		}
	}

	return false
}

var panelNames = map[game.Panel]string{
	game.PanelInventory:  "inventory",
	game.PanelChat:       "chat",
	game.PanelLeft:       "left",
	game.PanelRight:      "right",
	game.PanelFullscreen: "fullscreen",
	game.PanelLarge:      "large",
}

// Project maps a world position to window pixels. Points behind the camera or
// outside the window come back as the zero position.
func Project(vp [16]float32, win Rect, p game.WorldPosition) data.Position {
	if win.Width() <= 0 || win.Height() <= 0 {
		return data.Position{}
	}

	x, y, z := p.X, p.Y, p.Z
	cx := vp[0]*x + vp[1]*y + vp[2]*z + vp[3]
	cy := vp[4]*x + vp[5]*y + vp[6]*z + vp[7]
	cw := vp[12]*x + vp[13]*y + vp[14]*z + vp[15]
	if cw <= 0 {
		return data.Position{}
	}

	nx, ny := cx/cw, cy/cw
	screen := data.Position{
		X: win.Left + int((nx+1)/2*float32(win.Width())),
		Y: win.Top + int((1-ny)/2*float32(win.Height())),
	}
	if !win.contains(screen) || screen == (data.Position{}) {
		return data.Position{}
	}

	return screen
}
