package di

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	dedupService "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/dedup/service"
	feedService "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/feed/service"
	forwardService "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/forward/service"
	"github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/adapter"
	messageRepo "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/repository"
	messageService "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/message/service"
	monitorService "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/monitor/service"
	taskService "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/task/service"
	userRepo "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/user/repository"
	userService "github.com/reshetovitsme/telegram-keyword-monitor/internal/modules/user/service"
	"github.com/reshetovitsme/telegram-keyword-monitor/internal/shared/config"
	apperrors "github.com/reshetovitsme/telegram-keyword-monitor/internal/shared/errors"
	httpServer "github.com/reshetovitsme/telegram-keyword-monitor/internal/transport/http"
	"github.com/reshetovitsme/telegram-keyword-monitor/internal/transport/mtproto"
	telegramTransport "github.com/reshetovitsme/telegram-keyword-monitor/internal/transport/telegram"
	"github.com/samber/do/v2"
	"github.com/samber/oops"
	"go.uber.org/zap"
)

// Runner is a long-running message source client
type Runner interface {
	Run(ctx context.Context) error
}

// Setup initializes the dependency injection container
func Setup() (do.Injector, error) {
	injector := do.New()

	// Register Config
	do.Provide(injector, func(i do.Injector) (*config.Config, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, oops.With("context", "failed to load config").Wrap(err)
		}
		return cfg, nil
	})

	// Register Match Repository
	do.Provide(injector, func(i do.Injector) (messageRepo.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo, err := messageRepo.NewFileStorage(cfg.StoragePath)
		if err != nil {
			return nil, oops.With("storage_path", cfg.StoragePath, "context", "failed to initialize match repository").Wrap(err)
		}
		return repo, nil
	})

	// Register User Repository
	do.Provide(injector, func(i do.Injector) (userRepo.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo, err := userRepo.NewFileStorage(cfg.StoragePath)
		if err != nil {
			return nil, oops.With("storage_path", cfg.StoragePath, "context", "failed to initialize user repository").Wrap(err)
		}
		return repo, nil
	})

	// Register Archive Service
	do.Provide(injector, func(i do.Injector) (*messageService.Service, error) {
		repo := do.MustInvoke[messageRepo.Repository](i)
		return messageService.New(repo), nil
	})

	// Register User Service
	do.Provide(injector, func(i do.Injector) (*userService.Service, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[userRepo.Repository](i)
		return userService.New(repo, cfg.AllowedUsers, nil), nil
	})

	// Register Feed Service
	do.Provide(injector, func(i do.Injector) (*feedService.Service, error) {
		archive := do.MustInvoke[*messageService.Service](i)
		return feedService.New(archive, 0), nil
	})

	// Register Formatter
	do.Provide(injector, func(i do.Injector) (*forwardService.Formatter, error) {
		cfg := do.MustInvoke[*config.Config](i)
		loc, err := cfg.Location()
		if err != nil {
			return nil, err
		}
		return forwardService.New(loc), nil
	})

	// Register MTProto client logger
	do.Provide(injector, func(i do.Injector) (*zap.Logger, error) {
		cfg := do.MustInvoke[*config.Config](i)
		zapCfg := zap.NewProductionConfig()
		if cfg.AppEnv == config.AppEnvLocal || cfg.AppEnv == config.AppEnvDevelopment {
			zapCfg = zap.NewDevelopmentConfig()
		}
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)

		logger, err := zapCfg.Build()
		if err != nil {
			return nil, oops.With("context", "failed to build zap logger").Wrap(err)
		}
		return logger, nil
	})

	// Register Bot API adapter
	do.Provide(injector, func(i do.Injector) (*telegramTransport.Adapter, error) {
		return telegramTransport.NewAdapter(slog.Default()), nil
	})

	// Register MTProto adapter
	do.Provide(injector, func(i do.Injector) (*mtproto.Adapter, error) {
		cfg := do.MustInvoke[*config.Config](i)
		zapLogger := do.MustInvoke[*zap.Logger](i)
		return mtproto.NewAdapter(mtproto.Config{
			AppID:       cfg.TelegramAPIID,
			AppHash:     cfg.TelegramAPIHash,
			Phone:       cfg.TelegramPhone,
			Password:    cfg.TelegramPassword,
			SessionPath: cfg.TelegramSessionPath,
		}, slog.Default(), zapLogger), nil
	})

	// Register the message source selected by config
	do.Provide(injector, func(i do.Injector) (adapter.Adapter, error) {
		cfg := do.MustInvoke[*config.Config](i)
		switch cfg.Source {
		case config.SourceKindMtproto:
			return do.MustInvoke[*mtproto.Adapter](i), nil
		default:
			return do.MustInvoke[*telegramTransport.Adapter](i), nil
		}
	})

	// Register Scheduler
	do.Provide(injector, func(i do.Injector) (*taskService.Scheduler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		src := do.MustInvoke[adapter.Adapter](i)
		formatter := do.MustInvoke[*forwardService.Formatter](i)
		return taskService.New(src, formatter, taskService.Options{
			RetryDelay:  cfg.RetryDelay(),
			MaxAttempts: cfg.DelayedMaxAttempts,
			SendTimeout: cfg.SendWait(),
			Logger:      slog.Default(),
		}), nil
	})

	// Register Monitor
	do.Provide(injector, func(i do.Injector) (*monitorService.Service, error) {
		cfg := do.MustInvoke[*config.Config](i)
		policy, err := cfg.Policy()
		if err != nil {
			return nil, err
		}

		return monitorService.New(
			policy,
			do.MustInvoke[adapter.Adapter](i),
			do.MustInvoke[*forwardService.Formatter](i),
			do.MustInvoke[*taskService.Scheduler](i),
			do.MustInvoke[*messageService.Service](i),
			dedupService.New(),
			monitorService.Options{
				Mode:         cfg.MonitorMode,
				PollInterval: cfg.PollEvery(),
				HistoryLimit: cfg.PollHistoryLimit,
				ChannelDelay: cfg.ChannelPause(),
				ReadyTimeout: cfg.ReadyWait(),
				SendTimeout:  cfg.SendWait(),
				Logger:       slog.Default(),
			},
		), nil
	})

	// Register Telegram command handler
	do.Provide(injector, func(i do.Injector) (*telegramTransport.Handler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		loc, err := cfg.Location()
		if err != nil {
			return nil, err
		}
		return telegramTransport.New(
			do.MustInvoke[*monitorService.Service](i),
			do.MustInvoke[*taskService.Scheduler](i),
			do.MustInvoke[*userService.Service](i),
			loc,
			slog.Default(),
		), nil
	})

	// Register Bot; it carries the admin commands for either source and the
	// message updates for the bot source
	do.Provide(injector, func(i do.Injector) (*bot.Bot, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.TelegramBotToken == "" {
			return nil, oops.Wrap(apperrors.ErrMissingBotToken)
		}

		telegramHandler := do.MustInvoke[*telegramTransport.Handler](i)
		botAdapter := do.MustInvoke[*telegramTransport.Adapter](i)

		b, err := bot.New(cfg.TelegramBotToken, botAdapter.BotOptions(cfg.Source == config.SourceKindBot)...)
		if err != nil {
			return nil, oops.With("context", "failed to create telegram bot").Wrap(err)
		}

		// Register bot commands
		telegramHandler.RegisterCommands(b)
		botAdapter.SetBot(b)

		return b, nil
	})

	// Register the source runner; the bot source needs its bot wired first
	do.Provide(injector, func(i do.Injector) (Runner, error) {
		cfg := do.MustInvoke[*config.Config](i)
		switch cfg.Source {
		case config.SourceKindMtproto:
			return do.MustInvoke[*mtproto.Adapter](i), nil
		default:
			if _, err := do.Invoke[*bot.Bot](i); err != nil {
				return nil, err
			}
			return do.MustInvoke[*telegramTransport.Adapter](i), nil
		}
	})

	// Register HTTP Server
	do.Provide(injector, func(i do.Injector) (*httpServer.Server, error) {
		cfg := do.MustInvoke[*config.Config](i)

		var codes httpServer.CodeSubmitter
		if cfg.Source == config.SourceKindMtproto {
			codes = do.MustInvoke[*mtproto.Adapter](i)
		}

		return httpServer.New(httpServer.Options{
			Port:    cfg.HTTPPort,
			Monitor: do.MustInvoke[*monitorService.Service](i),
			Tasks:   do.MustInvoke[*taskService.Scheduler](i),
			Feeds:   do.MustInvoke[*feedService.Service](i),
			Archive: do.MustInvoke[*messageService.Service](i),
			Codes:   codes,
			Logger:  slog.Default(),
		}), nil
	})

	return injector, nil
}

// Shutdown gracefully shuts down all services
func Shutdown(injector do.Injector) error {
	// Stop acquisition before the scheduler so no new tasks arrive
	if monitor, err := do.Invoke[*monitorService.Service](injector); err == nil && monitor != nil {
		monitor.Stop()
	}

	if scheduler, err := do.Invoke[*taskService.Scheduler](injector); err == nil && scheduler != nil {
		scheduler.Shutdown()
	}

	if cfg, err := do.Invoke[*config.Config](injector); err == nil && cfg.Source == config.SourceKindMtproto {
		if zapLogger, err := do.Invoke[*zap.Logger](injector); err == nil {
			_ = zapLogger.Sync()
		}
	}

	return nil
}
