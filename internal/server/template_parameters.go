package server

import (
	"github.com/hectorgimenez/rebuff/internal/bot"
	"github.com/hectorgimenez/rebuff/internal/remote/history"
)

type IndexData struct {
	ErrorMessage     string
	Status           bot.Status
	History          []history.Entry
	PublicURL        string
	ShowOverlay      bool
	OverlayConnected bool
}
