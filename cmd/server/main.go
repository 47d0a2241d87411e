package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/go-telegram/bot"
	"github.com/reshetovitsme/telegram-keyword-monitor/internal/di"
	monitorService "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/monitor/service"
	"github.com/reshetovitsme/telegram-keyword-monitor/internal/shared/config"
	httpServer "github.com/reshetovitsme/telegram-keyword-monitor/internal/transport/http"
	"github.com/samber/do/v2"
	slogmulti "github.com/samber/slog-multi"
)

func main() {
	// Setup structured logging with multiple handlers using slog-multi
	level := new(slog.LevelVar)
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	jsonHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	})

	// Use Fanout to send logs to both handlers
	multiHandler := slogmulti.Fanout(textHandler, jsonHandler)
	logger := slog.New(multiHandler)
	slog.SetDefault(logger)

	// Setup dependency injection
	injector, err := di.Setup()
	if err != nil {
		slog.Error("Failed to setup dependency injection", "error", err)
		os.Exit(1)
	}

	cfg, err := do.Invoke[*config.Config](injector)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		slog.Warn("Unknown log level, using info", "log_level", cfg.LogLevel)
	}

	runner, err := do.Invoke[di.Runner](injector)
	if err != nil {
		slog.Error("Failed to initialize message source", "source", cfg.Source, "error", err)
		os.Exit(1)
	}
	monitor := do.MustInvoke[*monitorService.Service](injector)
	server := do.MustInvoke[*httpServer.Server](injector)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Start message source client
	go func() {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Message source stopped", "source", cfg.Source, "error", err)
		}
	}()

	// Admin commands run on a separate bot when the user account is the source
	if cfg.Source == config.SourceKindMtproto && cfg.TelegramBotToken != "" {
		if b, err := do.Invoke[*bot.Bot](injector); err == nil {
			go b.Start(ctx)
		} else {
			slog.Warn("Bot commands disabled", "error", err)
		}
	}

	// Start monitoring once the source is ready
	go func() {
		if err := monitor.Start(ctx); err != nil {
			slog.Error("Monitoring not started", "error", err)
		}
	}()

	// Start HTTP server
	go func() {
		if err := server.Start(); err != nil {
			slog.Error("Failed to start HTTP server", "error", err)
			cancel()
		}
	}()

	slog.Info("Application started",
		"port", cfg.HTTPPort,
		"source", cfg.Source,
		"mode", cfg.MonitorMode,
		"app_env", cfg.AppEnv,
	)
	slog.Info("Press Ctrl+C to stop")

	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error shutting down HTTP server", "error", err)
	}

	if err := di.Shutdown(injector); err != nil {
		slog.Error("Error during shutdown", "error", err)
	}
}
