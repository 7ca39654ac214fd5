//go:build windows

package main

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/inkeliz/gowebview"
)

const (
	windowWidth  = 1040
	windowHeight = 720
)

// openWindow shows the status page in a native webview and blocks until the
// window is closed or ctx is done.
func openWindow(ctx context.Context, logger *slog.Logger, url string) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	w, err := gowebview.New(&gowebview.Config{URL: url, WindowConfig: &gowebview.WindowConfig{
		Title: "rebuff",
		Size:  &gowebview.Point{X: windowWidth, Y: windowHeight},
	}})
	if err != nil {
		if w != nil {
			w.Destroy()
		}
		return fmt.Errorf("error creating webview: %w", err)
	}
	defer w.Destroy()

	w.SetSize(&gowebview.Point{X: windowWidth, Y: windowHeight}, gowebview.HintNone)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			w.Dispatch(w.Terminate)
		case <-stop:
		}
	}()

	logger.Debug("Status window opened", slog.String("url", url))
	w.Run()

	return nil
}
