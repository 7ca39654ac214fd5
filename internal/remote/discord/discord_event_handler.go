package discord

import (
	"context"
	"fmt"

	"github.com/hectorgimenez/rebuff/internal/event"
	"github.com/hectorgimenez/rebuff/internal/remote/notify"
)

func (b *Bot) Handle(_ context.Context, e event.Event) error {
	if !notify.ShouldPublish(b.notify, e) {
		return nil
	}

	return b.sendEventMessage(eventMessage(e))
}

func eventMessage(e event.Event) string {
	return fmt.Sprintf("**[%s]** %s", e.Controller(), notify.Text(e))
}

func (b *Bot) sendEventMessage(message string) error {
	_, err := b.discordSession.ChannelMessageSend(b.channelID, message)
	return err
}
