// Package main - утилита восстановления данных Movie Night Hub.
//
// Repair выполняется вручную при подозрении на порчу данных:
// - Схлопывает дублирующиеся открытые записи одного зрителя по одному фильму
// - Пересчитывает статистику каждого зрителя напрямую из истории просмотров
// - Перед записью создаёт резервные таблицы
//
// Социальные счётчики (AI-диалоги, голоса, заявки) из истории не выводятся,
// поэтому переносятся из текущей статистики как есть.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/frightclub/movie-night-hub/config"
	"github.com/frightclub/movie-night-hub/internal/application"
	"github.com/frightclub/movie-night-hub/internal/domain/stats"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
	"github.com/frightclub/movie-night-hub/internal/infrastructure/persistence/postgres"
	"github.com/frightclub/movie-night-hub/pkg/timeutil"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report repairs without writing them back")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := run(ctx, *dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dryRun bool) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	log.Info("starting data repair", "dry_run", dryRun)

	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	store := postgres.NewSnapshotStore(conn,
		postgres.WithHistoryRetention(cfg.Database.HistoryRetention))

	snap, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	log.Info("snapshot loaded",
		"history", len(snap.History),
		"users", len(snap.Stats),
		"ratings", len(snap.Ratings),
	)

	merged := mergeDuplicateOpenRecords(snap, log)
	rebuilt := rebuildStats(snap, cfg.Engine.CompletionThreshold)
	changed := reportStatsDiff(snap.Stats, rebuilt, log)
	snap.Stats = rebuilt

	if merged == 0 && changed == 0 {
		log.Info("nothing to repair")
		return nil
	}

	if dryRun {
		log.Info("dry run, not writing repairs", "merged_records", merged, "changed_users", changed)
		return nil
	}

	label, err := store.Backup(ctx)
	if err != nil {
		return fmt.Errorf("failed to create backup before repair: %w", err)
	}
	log.Info("backup created", "label", label)

	snap.SavedAt = time.Now().UTC()
	if err := store.Save(ctx, snap); err != nil {
		return fmt.Errorf("failed to save repaired snapshot: %w", err)
	}

	log.Info("repair completed", "merged_records", merged, "changed_users", changed)
	return nil
}

// mergeDuplicateOpenRecords схлопывает несколько открытых записей одного
// зрителя по одному фильму в одну: остаётся самая ранняя, прогресс берётся
// максимальный из всех дублей.
func mergeDuplicateOpenRecords(snap *application.Snapshot, log *slog.Logger) int {
	type key struct {
		userID watch.UserID
		title  string
	}

	keep := make(map[key]*watch.Record)
	merged := 0
	out := snap.History[:0]

	for _, rec := range snap.History {
		if !rec.IsOpen() {
			out = append(out, rec)
			continue
		}

		k := key{rec.UserID, strings.ToLower(string(rec.MovieTitle))}
		prev, ok := keep[k]
		if !ok {
			keep[k] = rec
			out = append(out, rec)
			continue
		}

		// Дубль: сохраняем самое раннее начало и лучший прогресс.
		if rec.StartTime.Before(prev.StartTime) {
			prev.StartTime = rec.StartTime
		}
		if rec.WatchDurationMinutes > prev.WatchDurationMinutes {
			prev.WatchDurationMinutes = rec.WatchDurationMinutes
		}
		if rec.CompletionPercentage > prev.CompletionPercentage {
			prev.CompletionPercentage = rec.CompletionPercentage
		}
		if prev.MovieDurationMS == nil {
			prev.MovieDurationMS = rec.MovieDurationMS
		}
		merged++
		log.Info("merged duplicate open record",
			"user_id", int64(rec.UserID),
			"movie", string(rec.MovieTitle),
		)
	}

	snap.History = out
	return merged
}

// rebuildStats пересчитывает статистику из финализированной истории.
// Социальные счётчики переносятся из старой статистики.
func rebuildStats(snap *application.Snapshot, completionThreshold float64) []*stats.UserStats {
	old := make(map[watch.UserID]*stats.UserStats, len(snap.Stats))
	for _, s := range snap.Stats {
		old[s.UserID] = s
	}

	rebuilt := make(map[watch.UserID]*stats.UserStats)
	watchDates := make(map[watch.UserID]map[time.Time]struct{})

	for _, rec := range snap.History {
		if rec.IsOpen() {
			continue
		}

		s, ok := rebuilt[rec.UserID]
		if !ok {
			s = stats.NewUserStats(rec.UserID, rec.Username)
			rebuilt[rec.UserID] = s
			watchDates[rec.UserID] = make(map[time.Time]struct{})
		}
		if rec.Username != "" {
			s.Username = rec.Username
		}

		s.TotalMovies++
		s.TotalWatchTimeMinutes += rec.WatchDurationMinutes
		if rec.IsCompleted(completionThreshold) {
			s.CompletedMovies++
		}

		for _, genre := range rec.Metadata.Genres {
			s.FavoriteGenres[genre]++
		}
		if decade := rec.Metadata.Decade(); decade != "" {
			s.FavoriteDecades[decade]++
		}
		if rec.Metadata.Director != "" {
			s.DirectorsWatched[rec.Metadata.Director] = struct{}{}
		}

		date := rec.WatchDate()
		watchDates[rec.UserID][date] = struct{}{}
		if s.LastWatchDate == nil || date.After(*s.LastWatchDate) {
			d := date
			s.LastWatchDate = &d
		}
	}

	today := timeutil.StartOfDay(time.Now().UTC())
	out := make([]*stats.UserStats, 0, len(rebuilt))
	for userID, s := range rebuilt {
		current, longest := computeStreaks(watchDates[userID], today)
		s.CurrentStreakDays = current
		s.LongestStreakDays = longest

		if prev, ok := old[userID]; ok {
			s.AIInteractions = prev.AIInteractions
			s.VotesCast = prev.VotesCast
			s.MoviesRequested = prev.MoviesRequested
		}
		out = append(out, s)
	}

	// Зрители без финализированной истории, но с социальной активностью,
	// не должны пропасть при пересчёте.
	for userID, prev := range old {
		if _, ok := rebuilt[userID]; ok {
			continue
		}
		if prev.AIInteractions == 0 && prev.VotesCast == 0 && prev.MoviesRequested == 0 {
			continue
		}
		s := stats.NewUserStats(userID, prev.Username)
		s.AIInteractions = prev.AIInteractions
		s.VotesCast = prev.VotesCast
		s.MoviesRequested = prev.MoviesRequested
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// computeStreaks возвращает текущую и рекордную серию дней по множеству дат
// просмотра. Текущая серия обнуляется, если последний просмотр был раньше
// вчерашнего дня.
func computeStreaks(dates map[time.Time]struct{}, today time.Time) (current, longest int) {
	if len(dates) == 0 {
		return 0, 0
	}

	sorted := make([]time.Time, 0, len(dates))
	for d := range dates {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	run := 1
	longest = 1
	for i := 1; i < len(sorted); i++ {
		if timeutil.DaysBetween(sorted[i-1], sorted[i]) == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	last := sorted[len(sorted)-1]
	if timeutil.DaysBetween(last, today) > 1 {
		return 0, longest
	}
	return run, longest
}

// reportStatsDiff логирует расхождения между старой и пересчитанной
// статистикой и возвращает число изменившихся зрителей.
func reportStatsDiff(old, rebuilt []*stats.UserStats, log *slog.Logger) int {
	prev := make(map[watch.UserID]*stats.UserStats, len(old))
	for _, s := range old {
		prev[s.UserID] = s
	}

	changed := 0
	for _, s := range rebuilt {
		p, ok := prev[s.UserID]
		if !ok {
			changed++
			log.Info("stats restored from history", "user_id", int64(s.UserID), "username", s.Username)
			continue
		}
		if p.TotalMovies != s.TotalMovies ||
			p.TotalWatchTimeMinutes != s.TotalWatchTimeMinutes ||
			p.CompletedMovies != s.CompletedMovies ||
			p.CurrentStreakDays != s.CurrentStreakDays ||
			p.LongestStreakDays != s.LongestStreakDays {
			changed++
			log.Info("stats corrected",
				"user_id", int64(s.UserID),
				"username", s.Username,
				"movies", fmt.Sprintf("%d->%d", p.TotalMovies, s.TotalMovies),
				"minutes", fmt.Sprintf("%d->%d", p.TotalWatchTimeMinutes, s.TotalWatchTimeMinutes),
				"completed", fmt.Sprintf("%d->%d", p.CompletedMovies, s.CompletedMovies),
			)
		}
	}
	return changed
}
