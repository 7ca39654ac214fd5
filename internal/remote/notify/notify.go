// Package notify decides which controller events are worth a chat message and
// how they read.
package notify

import (
	"fmt"
	"time"

	"github.com/hectorgimenez/rebuff/internal/config"
	"github.com/hectorgimenez/rebuff/internal/event"
)

// ShouldPublish applies the notification settings to e.
func ShouldPublish(cfg config.NotifyCfg, e event.Event) bool {
	switch evt := e.(type) {
	case event.SequenceFinishedEvent:
		if evt.Reason == event.FinishedAborted {
			return cfg.Aborted
		}
		return cfg.Finished
	case event.CastFailedEvent:
		return cfg.RetryThreshold > 0 && evt.Attempt == cfg.RetryThreshold
	default:
		return false
	}
}

// Text renders e as a single line, without any chat specific markup.
func Text(e event.Event) string {
	switch evt := e.(type) {
	case event.SequenceFinishedEvent:
		took := evt.OccurredAt().Sub(evt.StartedAt).Round(100 * time.Millisecond)
		return fmt.Sprintf("%s after %d attempt(s) in %s", evt.Message(), evt.Attempts, took)
	case event.CastFailedEvent:
		return fmt.Sprintf("Still no buff after %d attempts, last error: %s", evt.Attempt, evt.Reason)
	default:
		return e.Message()
	}
}
