package application

import (
	"context"
	"fmt"
	"time"

	"github.com/frightclub/movie-night-hub/internal/application/command"
	"github.com/frightclub/movie-night-hub/internal/application/query"
	"github.com/frightclub/movie-night-hub/internal/domain/badge"
	"github.com/frightclub/movie-night-hub/internal/domain/rating"
	"github.com/frightclub/movie-night-hub/internal/domain/shared"
	"github.com/frightclub/movie-night-hub/internal/domain/stats"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
	"github.com/frightclub/movie-night-hub/pkg/logger"
	"github.com/frightclub/movie-night-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION CONTAINER
// Owns the in-memory engine state and exposes the use-case handlers built
// around it. Mutating handlers never persist; persistence is driven by the
// caller through Save, the autosave job and the backup job.
// ══════════════════════════════════════════════════════════════════════════════

// Options содержит настройки движка.
type Options struct {
	// ResumeBuffer добавляется к известной длительности фильма при
	// вычислении окна возобновления.
	ResumeBuffer time.Duration

	// ResumeFallback - окно возобновления при неизвестной длительности.
	ResumeFallback time.Duration

	// CompletionThreshold - порог (в процентах), с которого просмотр
	// считается завершённым.
	CompletionThreshold float64

	// ExcludeUsernames - псевдо-аккаунты, исключаемые из рейтингов.
	ExcludeUsernames []string

	// Catalog - каталог достижений (nil = каталог по умолчанию).
	Catalog *badge.Catalog

	// EventBus - шина доменных событий (nil = публикация отключена).
	EventBus shared.EventBus
}

// App is the application container for the watch engine.
type App struct {
	Tracker  *watch.Tracker
	Registry *stats.Registry
	Engine   *badge.Engine
	Ratings  *rating.Store

	// Commands
	StartSession   *command.StartSessionHandler
	UpdateProgress *command.UpdateProgressHandler
	FinishSession  *command.FinishSessionHandler
	AddManualWatch *command.AddManualWatchHandler
	RateMovie      *command.RateMovieHandler
	AwardBadge     *command.AwardBadgeHandler
	RecordSocial   *command.RecordSocialHandler

	// Queries
	GetLeaderboard  *query.GetLeaderboardHandler
	GetUserStats    *query.GetUserStatsHandler
	GetUserBadges   *query.GetUserBadgesHandler
	GetRatings      *query.GetRatingsHandler
	GetWatchHistory *query.GetWatchHistoryHandler

	store   Store
	retrier *retry.Retrier
	log     *logger.Logger

	now func() time.Time
}

// New собирает контейнер приложения вокруг доменных компонентов.
func New(store Store, log *logger.Logger, opts Options) *App {
	if opts.ResumeBuffer == 0 {
		opts.ResumeBuffer = watch.DefaultResumeBuffer
	}
	if opts.ResumeFallback == 0 {
		opts.ResumeFallback = watch.DefaultResumeWindow
	}
	if opts.CompletionThreshold == 0 {
		opts.CompletionThreshold = stats.DefaultCompletionThreshold
	}
	catalog := badge.DefaultCatalog()
	if opts.Catalog != nil {
		catalog = *opts.Catalog
	}

	tracker := watch.NewTracker(watch.WithResumeWindow(opts.ResumeBuffer, opts.ResumeFallback))
	registry := stats.NewRegistry(stats.WithCompletionThreshold(opts.CompletionThreshold))
	engine := badge.NewEngine(catalog)
	ratings := rating.NewStore(tracker)

	a := &App{
		Tracker:  tracker,
		Registry: registry,
		Engine:   engine,
		Ratings:  ratings,

		StartSession:   command.NewStartSessionHandler(tracker, opts.EventBus),
		UpdateProgress: command.NewUpdateProgressHandler(tracker, registry),
		FinishSession:  command.NewFinishSessionHandler(tracker, registry, engine, opts.EventBus),
		AddManualWatch: command.NewAddManualWatchHandler(tracker, registry, engine, opts.EventBus),
		RateMovie:      command.NewRateMovieHandler(ratings, opts.EventBus),
		AwardBadge:     command.NewAwardBadgeHandler(engine, opts.EventBus),
		RecordSocial:   command.NewRecordSocialHandler(tracker, registry, engine, opts.EventBus),

		GetLeaderboard:  query.NewGetLeaderboardHandler(registry, engine, opts.ExcludeUsernames),
		GetUserStats:    query.NewGetUserStatsHandler(registry, tracker),
		GetUserBadges:   query.NewGetUserBadgesHandler(engine),
		GetRatings:      query.NewGetRatingsHandler(ratings),
		GetWatchHistory: query.NewGetWatchHistoryHandler(tracker),

		store:   store,
		retrier: retry.SnapshotRetrier(),
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}

	return a
}

// ─────────────────────────────────────────────────────────────────────────────
// Persistence
// ─────────────────────────────────────────────────────────────────────────────

// Load восстанавливает состояние движка из последнего снапшота.
func (a *App) Load(ctx context.Context) error {
	snap, err := a.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("app: load snapshot: %w", err)
	}

	a.Tracker.Restore(snap.History)
	a.Registry.Restore(snap.Stats)
	// Закрытые записи из снапшота уже учтены в статистике: их повторная
	// финализация после возобновления не должна засчитать фильм заново.
	a.Registry.MarkApplied(a.Tracker.History())
	a.Engine.Restore(snap.Badges)
	a.Ratings.Restore(snap.Ratings)

	a.log.Info("engine state restored",
		logger.Int("users", len(snap.Stats)),
		logger.Int("history_records", len(snap.History)),
		logger.Int("ratings", len(snap.Ratings)),
	)
	return nil
}

// Save сериализует текущее состояние движка и атомарно сохраняет его.
// Переходные ошибки хранилища ретраятся с экспоненциальной задержкой.
func (a *App) Save(ctx context.Context) error {
	snap := a.snapshot()

	err := a.retrier.Do(ctx, func(ctx context.Context) error {
		if saveErr := a.store.Save(ctx, snap); saveErr != nil {
			return retry.Retryable(saveErr)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("app: save snapshot: %w", err)
	}

	a.log.Debug("engine state saved",
		logger.Int("users", len(snap.Stats)),
		logger.Int("history_records", len(snap.History)),
	)
	return nil
}

// Backup создаёт датированную копию последнего снапшота.
func (a *App) Backup(ctx context.Context) (string, error) {
	label, err := a.store.Backup(ctx)
	if err != nil {
		return "", fmt.Errorf("app: backup snapshot: %w", err)
	}
	a.log.Info("snapshot backup created", logger.String("label", label))
	return label, nil
}

// snapshot собирает копию всего состояния движка.
func (a *App) snapshot() *Snapshot {
	return &Snapshot{
		Stats:   a.Registry.All(),
		Badges:  a.Engine.All(),
		History: a.Tracker.History(),
		Ratings: a.Ratings.All(),
		SavedAt: a.now(),
	}
}
