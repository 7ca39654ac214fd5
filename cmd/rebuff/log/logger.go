package log

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	mu      sync.Mutex
	logFile *os.File
	buffer  *bufio.Writer
)

// NewLogger writes to stdout and to a dated file under dir. Debug records are
// only kept when debug is set.
func NewLogger(debug bool, dir, name string) (*slog.Logger, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating log directory: %w", err)
	}

	fileName := "rebuff-log-" + time.Now().Format("2006-01-02-15-04-05") + ".txt"
	if name != "" {
		fileName = "log-" + name + "-" + time.Now().Format("2006-01-02-15-04-05") + ".txt"
	}

	f, err := os.OpenFile(filepath.Join(dir, fileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("error opening log file: %w", err)
	}

	mu.Lock()
	logFile = f
	buffer = bufio.NewWriterSize(f, 4096)
	mu.Unlock()

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, lockedWriter{}), &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(time.TimeOnly))
			}
			return a
		},
	})

	return slog.New(handler), nil
}

type lockedWriter struct{}

func (lockedWriter) Write(p []byte) (int, error) {
	mu.Lock()
	defer mu.Unlock()
	if buffer == nil {
		return len(p), nil
	}
	return buffer.Write(p)
}

func FlushLog() {
	mu.Lock()
	defer mu.Unlock()
	if buffer != nil {
		buffer.Flush()
	}
	if logFile != nil {
		logFile.Sync()
	}
}

func FlushAndClose() {
	mu.Lock()
	defer mu.Unlock()
	if buffer != nil {
		buffer.Flush()
		buffer = nil
	}
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}
