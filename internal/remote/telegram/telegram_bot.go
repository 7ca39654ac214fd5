package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hectorgimenez/rebuff/internal/bot"
	"github.com/hectorgimenez/rebuff/internal/config"
	"github.com/hectorgimenez/rebuff/internal/event"
	"github.com/hectorgimenez/rebuff/internal/remote/notify"
)

type StatusProvider interface {
	Status() bot.Status
}

type Bot struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	notify config.NotifyCfg
	status StatusProvider
	logger *slog.Logger
}

func NewBot(cfg config.TelegramCfg, notify config.NotifyCfg, status StatusProvider, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating Telegram bot: %w", err)
	}

	return &Bot{
		bot:    api,
		chatID: cfg.ChatID,
		notify: notify,
		status: status,
		logger: logger,
	}, nil
}

// Start answers /status from the configured chat until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.bot.GetUpdatesChan(u)
	defer b.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Chat == nil || update.Message.Chat.ID != b.chatID {
				continue
			}
			if !update.Message.IsCommand() {
				continue
			}
			if err := b.sendMessage(commandReply(update.Message.Command(), b.status)); err != nil {
				b.logger.Warn("Telegram reply failed", slog.Any("error", err))
			}
		}
	}
}

func (b *Bot) Handle(_ context.Context, e event.Event) error {
	if !notify.ShouldPublish(b.notify, e) {
		return nil
	}

	return b.sendMessage(fmt.Sprintf("[%s] %s", e.Controller(), notify.Text(e)))
}

func commandReply(command string, status StatusProvider) string {
	switch command {
	case "status":
		st := status.Status()
		gate := "ready"
		if !st.Eligible {
			gate = st.Reason
		}
		return fmt.Sprintf("[%s] %s\nGate: %s\nArea: %s\nBuff active: %t", st.Controller, st.State, gate, st.Area, st.HasBuff)
	default:
		return "Available commands: /status"
	}
}

func (b *Bot) sendMessage(text string) error {
	_, err := b.bot.Send(tgbotapi.NewMessage(b.chatID, text))
	return err
}
