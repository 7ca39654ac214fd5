package event

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	queueSize    = 256
	drainTimeout = 5 * time.Second
)

type Handler func(ctx context.Context, e Event) error

// Sender is what producers need to publish events.
type Sender interface {
	Send(e Event)
}

// Listener fans events out to every registered handler.
type Listener struct {
	logger *slog.Logger
	events chan Event

	mu       sync.RWMutex
	handlers []Handler
}

func NewListener(logger *slog.Logger) *Listener {
	return &Listener{
		logger: logger,
		events: make(chan Event, queueSize),
	}
}

func (l *Listener) Register(h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.handlers = append(l.handlers, h)
}

// Send queues e without blocking. Events are dropped when the queue is full.
func (l *Listener) Send(e Event) {
	select {
	case l.events <- e:
	default:
		l.logger.Warn("Event queue full, dropping event", slog.String("message", e.Message()))
	}
}

// Listen dispatches queued events until ctx is done, then flushes whatever is
// still queued before returning.
func (l *Listener) Listen(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.drain()
			return nil
		case e := <-l.events:
			l.dispatch(ctx, e)
		}
	}
}

// drain runs the handlers with their own deadline, the listen context is already done.
func (l *Listener) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case e := <-l.events:
			l.dispatch(ctx, e)
		default:
			return
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, e Event) {
	l.mu.RLock()
	handlers := append([]Handler(nil), l.handlers...)
	l.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			l.logger.Error("Error running event handler",
				slog.String("controller", e.Controller()),
				slog.String("message", e.Message()),
				slog.Any("error", err))
		}
	}
}

// Discard is a Sender that drops everything.
type Discard struct{}

func (Discard) Send(Event) {}
