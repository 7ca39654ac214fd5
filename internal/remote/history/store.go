package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hectorgimenez/rebuff/internal/event"
)

const schema = `
CREATE TABLE IF NOT EXISTS sequences (
	sequence_id TEXT PRIMARY KEY,
	controller TEXT NOT NULL,
	reason TEXT NOT NULL CHECK(reason IN ('ok','aborted')),
	message TEXT NOT NULL,
	attempts INTEGER NOT NULL,
	swapped INTEGER NOT NULL DEFAULT 0,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sequences_finished_at ON sequences(finished_at DESC);
`

// Entry is one finished or aborted rotation.
type Entry struct {
	SequenceID string             `json:"sequenceId"`
	Controller string             `json:"controller"`
	Reason     event.FinishReason `json:"reason"`
	Message    string             `json:"message"`
	Attempts   int                `json:"attempts"`
	Swapped    bool               `json:"swapped"`
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt"`
}

func (e Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Handle records finished sequences and ignores every other event.
func (s *Store) Handle(ctx context.Context, e event.Event) error {
	evt, ok := e.(event.SequenceFinishedEvent)
	if !ok {
		return nil
	}

	return s.Record(ctx, Entry{
		SequenceID: evt.SequenceID,
		Controller: evt.Controller(),
		Reason:     evt.Reason,
		Message:    evt.Message(),
		Attempts:   evt.Attempts,
		Swapped:    evt.Swapped,
		StartedAt:  evt.StartedAt,
		FinishedAt: evt.OccurredAt(),
	})
}

func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.SequenceID == "" {
		return errors.New("history entry without sequence id")
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO sequences(sequence_id, controller, reason, message, attempts, swapped, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(sequence_id) DO UPDATE SET
	reason=excluded.reason,
	message=excluded.message,
	attempts=excluded.attempts,
	swapped=excluded.swapped,
	finished_at=excluded.finished_at
`, e.SequenceID, e.Controller, string(e.Reason), e.Message, e.Attempts, boolToInt(e.Swapped), ts(e.StartedAt), ts(e.FinishedAt))
	if err != nil {
		return fmt.Errorf("record sequence %s: %w", e.SequenceID, err)
	}

	return nil
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT sequence_id, controller, reason, message, attempts, swapped, started_at, finished_at
FROM sequences
ORDER BY finished_at DESC
LIMIT ?
`, n)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                     Entry
			reason                string
			swapped               int
			startedAt, finishedAt string
		)
		if err := rows.Scan(&e.SequenceID, &e.Controller, &reason, &e.Message, &e.Attempts, &swapped, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Reason = event.FinishReason(reason)
		e.Swapped = swapped == 1
		if e.StartedAt, err = parseTS(startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if e.FinishedAt, err = parseTS(finishedAt); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// tsLayout is fixed width so finished_at sorts as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

func ts(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(tsLayout, s)
}
