package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hectorgimenez/d2go/pkg/data"
	"github.com/hectorgimenez/rebuff/internal/game"
)

var ErrNotConnected = errors.New("overlay is not connected")

const writeTimeout = time.Second

type message struct {
	Type  string `json:"type"`
	Frame *Frame `json:"frame,omitempty"`
}

type command struct {
	Type string `json:"type"`
	Key  byte   `json:"key,omitempty"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// Bridge links the controller with the overlay running inside the game
// client. The overlay pushes frames and receives input commands over a single
// websocket; only the latest connection is kept.
type Bridge struct {
	logger   *slog.Logger
	maxAge   time.Duration
	now      func() time.Time
	upgrader websocket.Upgrader

	mu         sync.RWMutex
	frame      Frame
	receivedAt time.Time
	pointer    data.Position
	conn       *websocket.Conn

	writeMu sync.Mutex
}

func New(logger *slog.Logger, maxFrameAge time.Duration) *Bridge {
	return &Bridge{
		logger: logger,
		maxAge: maxFrameAge,
		now:    time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Error("Overlay upgrade failed", slog.Any("error", err))
		return
	}

	b.mu.Lock()
	previous := b.conn
	b.conn = conn
	b.mu.Unlock()
	if previous != nil {
		previous.Close()
	}

	b.logger.Info("Overlay connected", slog.String("remote", r.RemoteAddr))
	b.read(conn)
}

func (b *Bridge) read(conn *websocket.Conn) {
	defer func() {
		b.mu.Lock()
		if b.conn == conn {
			b.conn = nil
		}
		b.mu.Unlock()
		conn.Close()
	}()

	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.logger.Warn("Overlay disconnected", slog.Any("error", err))
			}
			return
		}

		switch msg.Type {
		case "frame":
			if msg.Frame == nil {
				continue
			}
			b.mu.Lock()
			b.frame = *msg.Frame
			b.receivedAt = b.now()
			b.pointer = msg.Frame.Pointer
			b.mu.Unlock()
		default:
			b.logger.Debug("Unknown overlay message", slog.String("type", msg.Type))
		}
	}
}

// Connected reports whether an overlay is attached.
func (b *Bridge) Connected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.conn != nil
}

// current returns the latest frame, or an empty one when it is too old to trust.
func (b *Bridge) current() Frame {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.receivedAt.IsZero() || b.now().Sub(b.receivedAt) > b.maxAge {
		return Frame{}
	}

	return b.frame
}

func (b *Bridge) CurrentArea() game.Area {
	return b.current().Area
}

func (b *Bridge) PlayerSnapshot() game.PlayerState {
	return b.current().Player
}

func (b *Bridge) NearbyEntities(t game.EntityType) []game.Entity {
	return b.current().entities(t)
}

func (b *Bridge) ProjectToScreen(p game.WorldPosition) data.Position {
	f := b.current()
	return Project(f.ViewProjection, f.Window, p)
}

// IsWindowForeground is false while the frame is stale, which keeps the
// controller blocked until the overlay catches up.
func (b *Bridge) IsWindowForeground() bool {
	return b.current().Foreground
}

func (b *Bridge) UIPanelVisible(p game.Panel) bool {
	return b.current().panelVisible(p)
}

func (b *Bridge) IsMenuOpen() bool {
	return b.current().MenuOpen
}

func (b *Bridge) KeyDown(key byte) error {
	return b.send(command{Type: "key_down", Key: key})
}

func (b *Bridge) KeyUp(key byte) error {
	return b.send(command{Type: "key_up", Key: key})
}

func (b *Bridge) SetPointer(p data.Position) error {
	if err := b.send(command{Type: "set_pointer", X: p.X, Y: p.Y}); err != nil {
		return err
	}

	b.mu.Lock()
	b.pointer = p
	b.mu.Unlock()

	return nil
}

func (b *Bridge) PointerPosition() data.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.pointer
}

func (b *Bridge) send(cmd command) error {
	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("sending %s: %w", cmd.Type, err)
	}

	return nil
}
