// Package main - точка входа для демона Movie Night Hub.
//
// Хаб следит за совместными просмотрами: превращает события входа и выхода
// зрителей в сессии просмотра, ведёт статистику, выдаёт достижения и строит
// рейтинги киноклуба.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries)
// - Infrastructure: хранилище снапшотов, Redis-кеш, Plex API, планировщик
// - Interface: REST API и Plex webhook
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/frightclub/movie-night-hub/config"
	"github.com/frightclub/movie-night-hub/internal/application"
	"github.com/frightclub/movie-night-hub/internal/domain/shared"
	"github.com/frightclub/movie-night-hub/internal/infrastructure/messaging"
	"github.com/frightclub/movie-night-hub/internal/infrastructure/external/plex"
	"github.com/frightclub/movie-night-hub/internal/infrastructure/persistence/postgres"
	"github.com/frightclub/movie-night-hub/internal/infrastructure/persistence/redis"
	"github.com/frightclub/movie-night-hub/internal/infrastructure/scheduler"
	"github.com/frightclub/movie-night-hub/internal/infrastructure/scheduler/jobs"
	"github.com/frightclub/movie-night-hub/internal/infrastructure/service"
	httpserver "github.com/frightclub/movie-night-hub/internal/interface/http"
	"github.com/frightclub/movie-night-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	// .env присутствует только в development, поэтому ошибку игнорируем.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	slogger := setupSlog(cfg)
	slogger.Info("starting Movie Night Hub",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	appLog := logger.Default()
	if cfg.App.Debug {
		appLog = logger.New(logger.Options{Output: os.Stdout, Level: logger.LevelDebug, AddCaller: true})
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		slogger.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	slogger.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("running database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	status, err := migrator.Status(ctx)
	if err != nil {
		slogger.Warn("failed to get migration status", "error", err)
	} else {
		appliedCount := 0
		for _, m := range status {
			if m.IsApplied {
				appliedCount++
			}
		}
		slogger.Info("migrations completed", "applied", appliedCount, "total", len(status))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var leaderboardCache *redis.LeaderboardCache

	if !cfg.Redis.Disabled && cfg.Features.IsEnabled(config.FeatureLeaderboardCache) {
		slogger.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			slogger.Warn("failed to connect to Redis, leaderboard caching disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			leaderboardCache = redis.NewLeaderboardCache(redisCache)
			slogger.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ МЕДИА-СЕРВЕРА
	// ─────────────────────────────────────────────────────────────────────────
	var media service.MediaServer = service.NewUnavailableMediaServer()

	if !cfg.Plex.Disabled {
		slogger.Info("initializing Plex client...", "base_url", cfg.Plex.BaseURL)
		plexCfg := plex.DefaultClientConfig(cfg.Plex.BaseURL, cfg.Plex.Token)
		plexCfg.Timeout = cfg.Plex.RequestTimeout
		plexCfg.RateLimiterConfig.RequestsPerSecond = cfg.Plex.RateLimit
		plexCfg.RateLimiterConfig.BurstSize = cfg.Plex.RateLimitBurst
		plexCfg.Logger = appLog

		media = service.NewPlexAdapter(plex.NewClient(plexCfg))
	} else {
		slogger.Info("media server disabled, live sessions unavailable")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ШИНА ДОМЕННЫХ СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	// При наличии Redis события расходятся между инстансами через Pub/Sub,
	// иначе остаёмся на локальной шине.
	var eventBus shared.EventBus

	if redisCache != nil {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Cache:          redisCache,
			LocalBusConfig: messaging.DefaultInMemoryEventBusConfig(),
			Logger:         slogger,
		})
		if err != nil {
			return fmt.Errorf("failed to create redis event bus: %w", err)
		}
		eventBus = redisBus
	} else {
		eventBus = messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
			AsyncMode:      true,
			WorkerPoolSize: 8,
			Logger:         slogger,
			EnableMetrics:  true,
		})
	}
	defer eventBus.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ИНИЦИАЛИЗАЦИЯ ДВИЖКА ПРОСМОТРОВ
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("initializing watch engine...")

	store := postgres.NewSnapshotStore(dbConn,
		postgres.WithHistoryRetention(cfg.Database.HistoryRetention))

	app := application.New(store, appLog, application.Options{
		ResumeBuffer:        cfg.Engine.ResumeBuffer,
		ResumeFallback:      cfg.Engine.ResumeFallback,
		CompletionThreshold: cfg.Engine.CompletionThreshold,
		ExcludeUsernames:    cfg.Engine.ExcludeUsernames,
		EventBus:            eventBus,
	})

	slogger.Info("restoring state from snapshot...")
	if err := app.Load(ctx); err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	leaderboardService := service.NewLeaderboardService(
		app.Registry,
		app.Engine,
		leaderboardCache,
		appLog,
		cfg.Engine.ExcludeUsernames,
	)
	// Чтение рейтинга через API идёт сквозь кэширующий сервис.
	app.GetLeaderboard.UseRanker(leaderboardService)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ПОДПИСЧИКИ НА СОБЫТИЯ
	// ─────────────────────────────────────────────────────────────────────────
	// Диспетчер изолирует подписчиков от команд: ретраи, паники и таймауты
	// обработчиков не влияют на обработку просмотров.
	dispatcher := messaging.NewDispatcher(messaging.DefaultDispatcherConfig(eventBus))
	dispatcher.Use(messaging.RecoveryMiddleware(slogger))
	dispatcher.Use(messaging.LoggingMiddleware(slogger))

	invalidateLeaderboard := func(event shared.Event) error {
		invCtx, invCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer invCancel()
		leaderboardService.Invalidate(invCtx)
		return nil
	}
	if err := dispatcher.Register(shared.EventWatchFinished, "leaderboard-invalidate", invalidateLeaderboard); err != nil {
		return fmt.Errorf("failed to register event handler: %w", err)
	}
	if err := dispatcher.Register(shared.EventBadgeEarned, "leaderboard-invalidate-badges", invalidateLeaderboard); err != nil {
		return fmt.Errorf("failed to register event handler: %w", err)
	}

	if err := dispatcher.Register(shared.EventBadgeEarned, "badge-announcer", func(event shared.Event) error {
		payload := event.Payload()
		slogger.Info("badge earned",
			"user_id", event.AggregateID(),
			"badge_id", payload["badge_id"],
			"badge_name", payload["badge_name"],
		)
		return nil
	}); err != nil {
		return fmt.Errorf("failed to register event handler: %w", err)
	}

	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. ЗАПУСК HTTP API
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpserver.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpCfg.APIKeys = cfg.HTTP.APIKeys
	httpCfg.WebhookSecret = cfg.HTTP.WebhookSecret

	apiServer := httpserver.NewServer(httpCfg, httpserver.Dependencies{
		App:    app,
		Logger: appLog,
	})

	errCh := make(chan error, 1)
	go func() {
		slogger.Info("starting HTTP server", "address", apiServer.Address())
		if err := apiServer.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 11. ЗАПУСК ПЛАНИРОВЩИКА
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler

	if cfg.Scheduler.Enabled {
		slogger.Info("starting scheduler...")
		sched = scheduler.NewScheduler(scheduler.SchedulerConfig{
			Logger:   slogger,
			Timezone: cfg.App.Location,
		})

		if cfg.Features.IsEnabled(config.FeatureSessionAutosave) {
			autosaveCfg := jobs.DefaultAutosaveConfig()
			autosaveCfg.Timeout = cfg.Scheduler.JobTimeout
			job := jobs.NewAutosaveJob(app, media, slogger, autosaveCfg)
			if err := sched.Register(job, scheduler.NewIntervalSchedule(cfg.Scheduler.AutosaveInterval)); err != nil {
				return fmt.Errorf("failed to register autosave job: %w", err)
			}
		}

		if cfg.Features.IsEnabled(config.FeatureSnapshotBackup) {
			backupCfg := jobs.DefaultBackupConfig()
			job := jobs.NewBackupJob(app, slogger, backupCfg)
			if err := sched.Register(job, scheduler.NewIntervalSchedule(cfg.Scheduler.BackupInterval)); err != nil {
				return fmt.Errorf("failed to register backup job: %w", err)
			}
		}

		if leaderboardCache != nil && cfg.Features.IsEnabled(config.FeatureLeaderboardWarm) {
			job := jobs.NewWarmLeaderboardJob(leaderboardService, slogger, jobs.DefaultWarmLeaderboardConfig())
			if err := sched.Register(job, scheduler.NewIntervalSchedule(cfg.Scheduler.WarmLeaderboardInterval)); err != nil {
				return fmt.Errorf("failed to register leaderboard warm job: %w", err)
			}
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 12. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("Movie Night Hub is running",
		"http_address", apiServer.Address(),
		"scheduler", cfg.Scheduler.Enabled,
		"redis_cache", leaderboardCache != nil,
		"media_server", !cfg.Plex.Disabled,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		slogger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slogger.Error("service error", "error", err)
		return err
	}

	slogger.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error

	// 1. Останавливаем HTTP сервер (перестаём принимать события)
	slogger.Info("stopping HTTP server...")
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slogger.Error("failed to stop HTTP server gracefully", "error", err)
		shutdownErr = err
	}

	// 2. Останавливаем планировщик (перестаём запускать фоновые задачи)
	if sched != nil {
		slogger.Info("stopping scheduler...")
		if err := sched.Stop(); err != nil {
			slogger.Error("failed to stop scheduler gracefully", "error", err)
			shutdownErr = err
		}
	}

	// 3. Останавливаем диспетчер событий
	if err := dispatcher.Stop(); err != nil {
		slogger.Error("failed to stop dispatcher gracefully", "error", err)
		shutdownErr = err
	}

	// 4. Последний снапшот, чтобы не потерять накопленный прогресс
	slogger.Info("saving final snapshot...")
	if err := app.Save(shutdownCtx); err != nil {
		slogger.Error("failed to save final snapshot", "error", err)
		shutdownErr = err
	}

	// 5. Шина событий, Redis и база данных закроются через defer

	if shutdownErr != nil {
		slogger.Warn("shutdown completed with errors")
	} else {
		slogger.Info("shutdown completed successfully")
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupSlog настраивает структурированное логирование для инфраструктуры.
func setupSlog(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" || cfg.IsProduction() {
		// JSON формат для production (лучше для агрегаторов логов)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		// Текстовый формат для development (лучше читается)
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
