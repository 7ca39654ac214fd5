package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	sloggger "github.com/hectorgimenez/rebuff/cmd/rebuff/log"
	"github.com/hectorgimenez/rebuff/internal/bot"
	"github.com/hectorgimenez/rebuff/internal/bridge"
	"github.com/hectorgimenez/rebuff/internal/config"
	"github.com/hectorgimenez/rebuff/internal/event"
	"github.com/hectorgimenez/rebuff/internal/game"
	"github.com/hectorgimenez/rebuff/internal/registry"
	"github.com/hectorgimenez/rebuff/internal/remote/discord"
	"github.com/hectorgimenez/rebuff/internal/remote/history"
	"github.com/hectorgimenez/rebuff/internal/remote/telegram"
	"github.com/hectorgimenez/rebuff/internal/server"
	"github.com/hectorgimenez/rebuff/internal/utils"
	"golang.org/x/sync/errgroup"
)

var (
	buildID   string
	buildTime string
)

// wrapWithRecover wraps a function with panic recovery logic
func wrapWithRecover(logger *slog.Logger, f func() error) func() error {
	return func() error {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(fmt.Sprintf("panic recovered: %v\nStacktrace: %s", r, debug.Stack()))
				sloggger.FlushLog()
			}
		}()
		return f()
	}
}

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML settings file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		utils.ShowDialog("Error loading configuration", err.Error())
		log.Fatalf("Error loading configuration: %s", err.Error())
		return
	}

	logger, err := sloggger.NewLogger(cfg.EnableLogging, cfg.LogSaveDirectory, cfg.ControllerName)
	if err != nil {
		log.Fatalf("Error starting logger: %s", err.Error())
	}
	defer sloggger.FlushAndClose()
	logger.Info("Starting rebuff", slog.String("build", buildID), slog.String("built", buildTime))

	defer func() {
		if r := recover(); r != nil {
			logger.Error(fmt.Sprintf("fatal error detected, rebuff will close: %v\n Stacktrace: %s", r, debug.Stack()))
			sloggger.FlushAndClose()
			utils.ShowDialog("rebuff error :(", "rebuff will close due to an unexpected error, please check the latest log file for more info!")
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	// Shutdown order: controller, then the event listener, then the chat bots.
	listenCtx, stopListener := context.WithCancel(context.Background())
	defer stopListener()
	notifyCtx, stopNotify := context.WithCancel(context.Background())
	defer stopNotify()

	reg := registry.New()
	eventListener := event.NewListener(logger)
	overlay := bridge.New(logger, time.Duration(cfg.Bridge.MaxFrameAge)*time.Millisecond)

	var input game.InputEffector = overlay
	if cfg.Input.Backend == config.InputNative {
		native, err := game.NewNativeInput()
		if err != nil {
			logger.Error("Native input unavailable, falling back to the overlay bridge", slog.Any("error", err))
		} else {
			input = native
		}
	}

	if cfg.Input.Humanize {
		reg.Publish(cfg.Input.HumanizerKey, game.NewHumanizedMover(input, utils.SleepContext, time.Now().UnixNano()))
	}

	controller := bot.NewController(*cfg, overlay, input, reg, eventListener, logger)

	var hist server.HistoryReader
	if cfg.History.Enabled {
		store, err := history.Open(ctx, cfg.History.Path)
		if err != nil {
			logger.Error("History could not been initialized", slog.Any("error", err))
		} else {
			defer store.Close()
			eventListener.Register(store.Handle)
			hist = store
		}
	}

	srv, err := server.New(logger, cfg.Server, controller, hist, overlay)
	if err != nil {
		log.Fatalf("Error starting local server: %s", err.Error())
	}

	if cfg.Discord.Enabled {
		discordBot, err := discord.NewBot(cfg.Discord, cfg.Notify, controller, hist)
		if err != nil {
			logger.Error("Discord could not been initialized", slog.Any("error", err))
			return
		}

		eventListener.Register(discordBot.Handle)
		g.Go(wrapWithRecover(logger, func() error {
			return discordBot.Start(notifyCtx)
		}))
	}

	if cfg.Telegram.Enabled {
		telegramBot, err := telegram.NewBot(cfg.Telegram, cfg.Notify, controller, logger)
		if err != nil {
			logger.Error("Telegram could not been initialized", slog.Any("error", err))
			return
		}

		eventListener.Register(telegramBot.Handle)
		g.Go(wrapWithRecover(logger, func() error {
			return telegramBot.Start(notifyCtx)
		}))
	}

	g.Go(wrapWithRecover(logger, func() error {
		defer cancel()
		return srv.Listen(ctx, cfg.Server.Port)
	}))

	g.Go(wrapWithRecover(logger, func() error {
		defer stopNotify()
		defer cancel()
		return eventListener.Listen(listenCtx)
	}))

	g.Go(wrapWithRecover(logger, func() error {
		defer stopListener()
		return controller.Run(ctx)
	}))

	if cfg.Server.Enabled && cfg.Server.OpenWindow {
		g.Go(wrapWithRecover(logger, func() error {
			defer cancel()
			return openWindow(ctx, logger, fmt.Sprintf("http://localhost:%d", cfg.Server.Port))
		}))
	}

	g.Go(wrapWithRecover(logger, func() error {
		<-ctx.Done()
		logger.Info("rebuff shutting down...")
		err := srv.Stop()
		if err != nil {
			logger.Error("error stopping local server", slog.Any("error", err))
		}

		return err
	}))

	if err = g.Wait(); err != nil {
		logger.Error("Error running rebuff", slog.Any("error", err))
		return
	}
}
