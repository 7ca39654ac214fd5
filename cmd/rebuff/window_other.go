//go:build !windows

package main

import (
	"context"
	"log/slog"
)

func openWindow(ctx context.Context, logger *slog.Logger, url string) error {
	logger.Info("Status window is only available on Windows, open the page in a browser", slog.String("url", url))
	<-ctx.Done()

	return nil
}
