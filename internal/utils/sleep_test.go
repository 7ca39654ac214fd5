package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSleepContextReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := SleepContext(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("sleep did not return early")
	}
}

func TestSleepContextZeroDuration(t *testing.T) {
	if err := SleepContext(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
