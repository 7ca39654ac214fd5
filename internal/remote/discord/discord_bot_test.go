package discord

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hectorgimenez/rebuff/internal/bot"
	"github.com/hectorgimenez/rebuff/internal/event"
	"github.com/hectorgimenez/rebuff/internal/remote/history"
)

type fixedStatus bot.Status

func (f fixedStatus) Status() bot.Status { return bot.Status(f) }

type fakeHistory struct {
	entries []history.Entry
	err     error
}

func (f fakeHistory) Recent(context.Context, int) ([]history.Entry, error) {
	return f.entries, f.err
}

func TestReply(t *testing.T) {
	status := fixedStatus{Controller: "SoulOffering", State: "Idle", Eligible: false, Reason: "Chat is open", Area: "Mud Flats"}
	finished := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	entries := []history.Entry{{
		SequenceID: "a",
		Reason:     event.FinishedOK,
		Attempts:   2,
		StartedAt:  finished.Add(-1500 * time.Millisecond),
		FinishedAt: finished,
	}}

	tests := []struct {
		name    string
		hist    HistoryReader
		command string
		want    []string
	}{
		{"status", nil, "!status", []string{"**[SoulOffering]** Idle", "Gate: Chat is open", "Area: Mud Flats"}},
		{"history", fakeHistory{entries: entries}, "!history", []string{"ok, 2 attempt(s), 1.5s"}},
		{"history empty", fakeHistory{}, "!history", []string{"No rotations recorded yet."}},
		{"history failing", fakeHistory{err: errors.New("disk full")}, "!history", []string{"disk full"}},
		{"history disabled", nil, "!history", []string{"History is disabled."}},
		{"help", nil, "!help", []string{"`!status`", "`!history`"}},
		{"unknown", nil, "!start", []string{"Unknown command: `!start`"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := &Bot{status: status, history: tc.hist}
			got := b.reply(context.Background(), tc.command)
			for _, want := range tc.want {
				if !strings.Contains(got, want) {
					t.Fatalf("expected %q in reply %q", want, got)
				}
			}
		})
	}
}

func TestEventMessage(t *testing.T) {
	be := event.Text("SoulOffering", "Buff is back")
	got := eventMessage(event.CastFailed(be, "s", 10, "no target"))
	if !strings.HasPrefix(got, "**[SoulOffering]** Still no buff after 10 attempts") {
		t.Fatalf("unexpected message %q", got)
	}
}
