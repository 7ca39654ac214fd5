package discord

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hectorgimenez/rebuff/internal/bot"
	"github.com/hectorgimenez/rebuff/internal/config"
	"github.com/hectorgimenez/rebuff/internal/remote/history"
)

type StatusProvider interface {
	Status() bot.Status
}

type HistoryReader interface {
	Recent(ctx context.Context, n int) ([]history.Entry, error)
}

type Bot struct {
	discordSession *discordgo.Session
	channelID      string
	admins         []string
	notify         config.NotifyCfg
	status         StatusProvider
	history        HistoryReader
}

// NewBot builds the Discord bot. hist may be nil when history is disabled.
func NewBot(cfg config.DiscordCfg, notify config.NotifyCfg, status StatusProvider, hist HistoryReader) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	return &Bot{
		discordSession: dg,
		channelID:      cfg.ChannelID,
		admins:         cfg.BotAdmins,
		notify:         notify,
		status:         status,
		history:        hist,
	}, nil
}

func (b *Bot) Start(ctx context.Context) error {
	b.discordSession.AddHandler(b.onMessageCreated)
	b.discordSession.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	err := b.discordSession.Open()
	if err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}

	<-ctx.Done()

	return b.discordSession.Close()
}

func (b *Bot) onMessageCreated(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID {
		return
	}

	if !slices.Contains(b.admins, m.Author.ID) {
		return
	}

	if !strings.HasPrefix(m.Content, "!") {
		return
	}

	reply := b.reply(context.Background(), strings.Fields(m.Content)[0])
	s.ChannelMessageSend(m.ChannelID, reply)
}

func (b *Bot) reply(ctx context.Context, command string) string {
	switch command {
	case "!status":
		return statusMessage(b.status.Status())
	case "!history":
		return b.historyMessage(ctx)
	case "!help":
		return "Available commands:\n`!status` current rotation state and gate reason\n`!history` last finished rotations"
	default:
		return fmt.Sprintf("Unknown command: `%s`. Type `!help` for available commands.", command)
	}
}

func statusMessage(st bot.Status) string {
	gate := "ready"
	if !st.Eligible {
		gate = st.Reason
	}

	return fmt.Sprintf("**[%s]** %s\nGate: %s\nArea: %s\nBuff active: %t\nAttempts: %d",
		st.Controller, st.State, gate, st.Area, st.HasBuff, st.Attempts)
}

func (b *Bot) historyMessage(ctx context.Context) string {
	if b.history == nil {
		return "History is disabled."
	}

	entries, err := b.history.Recent(ctx, 5)
	if err != nil {
		return fmt.Sprintf("Could not read history: %s", err)
	}
	if len(entries) == 0 {
		return "No rotations recorded yet."
	}

	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "`%s` %s, %d attempt(s), %s\n", e.FinishedAt.Local().Format("15:04:05"), e.Reason, e.Attempts, e.Duration().Round(100*time.Millisecond))
	}

	return sb.String()
}
