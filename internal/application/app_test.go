package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frightclub/movie-night-hub/internal/application/command"
	"github.com/frightclub/movie-night-hub/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fixtures
// ──────────────────────────────────────────────────────────────────────────────

// memStore держит снапшоты в памяти и умеет имитировать сбои сохранения.
type memStore struct {
	snap *Snapshot

	saveCalls    int
	failuresLeft int
}

func (s *memStore) Load(ctx context.Context) (*Snapshot, error) {
	if s.snap == nil {
		return &Snapshot{}, nil
	}
	return s.snap, nil
}

func (s *memStore) Save(ctx context.Context, snap *Snapshot) error {
	s.saveCalls++
	if s.failuresLeft > 0 {
		s.failuresLeft--
		return errors.New("store temporarily unavailable")
	}
	s.snap = snap
	return nil
}

func (s *memStore) Backup(ctx context.Context) (string, error) {
	return "snapshot-20261031-210000", nil
}

func newApp(store Store) *App {
	return New(store, logger.Default(), Options{})
}

// ──────────────────────────────────────────────────────────────────────────────
// Persistence roundtrip
// ──────────────────────────────────────────────────────────────────────────────

func TestApp_SaveLoadRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}

	first := newApp(store)
	_, err := first.AddManualWatch.Handle(ctx, command.AddManualWatchCommand{
		UserID: 7, Username: "laurie", MovieTitle: "Halloween", DurationMinutes: 91,
	})
	require.NoError(t, err)
	_, err = first.RateMovie.Handle(ctx, command.RateMovieCommand{
		UserID: 7, Username: "laurie", MovieTitle: "Halloween", Score: 9,
	})
	require.NoError(t, err)
	_, err = first.AwardBadge.Handle(ctx, command.AwardBadgeCommand{UserID: 7, BadgeID: "bingo_master"})
	require.NoError(t, err)

	require.NoError(t, first.Save(ctx))

	// Второй экземпляр поднимает всё состояние из того же хранилища.
	second := newApp(store)
	require.NoError(t, second.Load(ctx))

	userStats, ok := second.Registry.Get(7)
	require.True(t, ok)
	assert.Equal(t, 1, userStats.TotalMovies)
	assert.Equal(t, 91, userStats.TotalWatchTimeMinutes)

	assert.True(t, second.Tracker.HasWatched(7, "Halloween"))

	// first_blood за просмотр плюс ручной bingo_master.
	assert.Equal(t, 2, second.Engine.Count(7))

	avg, rated := second.Ratings.Average("Halloween")
	require.True(t, rated)
	assert.InDelta(t, 9.0, avg, 0.01)
}

func TestApp_ResumedFinishCountsMovieOnce(t *testing.T) {
	// Уход на 45-й минуте 120-минутного фильма и возвращение: повторная
	// финализация той же записи даёт один фильм со 100% завершённости,
	// а не два фильма по 62.5%.
	ctx := context.Background()
	app := newApp(&memStore{})

	duration := int64(120 * 60 * 1000)
	join := int64(0)
	_, err := app.StartSession.Handle(ctx, command.StartSessionCommand{
		UserID: 7, Username: "laurie", MovieTitle: "Halloween (1978)",
		MovieDurationMS: &duration, JoinPositionMS: &join,
	})
	require.NoError(t, err)

	leave := int64(45 * 60 * 1000)
	first, err := app.FinishSession.Handle(ctx, command.FinishSessionCommand{
		UserID: 7, LeavePositionMS: &leave,
	})
	require.NoError(t, err)
	require.True(t, first.Finished)
	assert.InDelta(t, 37.5, first.Record.CompletionPercentage, 0.01)
	assert.Equal(t, 1, first.Stats.TotalMovies)

	resume, err := app.StartSession.Handle(ctx, command.StartSessionCommand{
		UserID: 7, Username: "laurie", MovieTitle: "Halloween (1978)",
		MovieDurationMS: &duration, JoinPositionMS: &leave,
	})
	require.NoError(t, err)
	require.True(t, resume.Resumed)

	second, err := app.FinishSession.Handle(ctx, command.FinishSessionCommand{UserID: 7})
	require.NoError(t, err)
	require.True(t, second.Finished)
	assert.Equal(t, first.Record.ID, second.Record.ID)
	assert.InDelta(t, 100.0, second.Record.CompletionPercentage, 0.01)
	assert.Equal(t, 1, second.Stats.TotalMovies)
	assert.Equal(t, 1, second.Stats.CompletedMovies)
	assert.Equal(t, 1, app.Tracker.HistoryCount())
}

func TestApp_LoadEmptyStore(t *testing.T) {
	app := newApp(&memStore{})

	require.NoError(t, app.Load(context.Background()))

	assert.Empty(t, app.Tracker.History())
	assert.Empty(t, app.Registry.All())
}

// ──────────────────────────────────────────────────────────────────────────────
// Save resilience
// ──────────────────────────────────────────────────────────────────────────────

func TestApp_SaveRetriesTransientFailures(t *testing.T) {
	store := &memStore{failuresLeft: 2}
	app := newApp(store)

	err := app.Save(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, store.saveCalls)
	assert.NotNil(t, store.snap)
}

func TestApp_SaveGivesUpEventually(t *testing.T) {
	store := &memStore{failuresLeft: 100}
	app := newApp(store)

	err := app.Save(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "save snapshot")
	assert.Nil(t, store.snap)
}

func TestApp_Backup(t *testing.T) {
	app := newApp(&memStore{})

	label, err := app.Backup(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "snapshot-20261031-210000", label)
}
