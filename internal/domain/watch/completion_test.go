package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func int64p(v int64) *int64 { return &v }

func TestCompletion_PositionBased(t *testing.T) {
	// Два часа, присоединился на старте, ушёл на середине.
	got := Completion(CompletionInput{
		MovieDurationMS: int64p(2 * 60 * 60 * 1000),
		JoinPositionMS:  int64p(0),
		LeavePositionMS: int64p(60 * 60 * 1000),
	})
	assert.InDelta(t, 50.0, got, 0.01)
}

func TestCompletion_LateJoiner(t *testing.T) {
	// Присоединился на 30-й минуте двухчасового фильма и досидел до конца:
	// увидел 75% контента, не 100%.
	got := Completion(CompletionInput{
		MovieDurationMS: int64p(120 * 60 * 1000),
		JoinPositionMS:  int64p(30 * 60 * 1000),
		LeavePositionMS: nil,
	})
	assert.InDelta(t, 75.0, got, 0.01)
}

func TestCompletion_FullPresence(t *testing.T) {
	got := Completion(CompletionInput{
		MovieDurationMS: int64p(90 * 60 * 1000),
		JoinPositionMS:  int64p(0),
	})
	assert.InDelta(t, 100.0, got, 0.01)
}

func TestCompletion_LeaveBeforeJoinClampsToZero(t *testing.T) {
	// Сервер может прислать позицию ухода меньше позиции входа (seek назад).
	got := Completion(CompletionInput{
		MovieDurationMS: int64p(120 * 60 * 1000),
		JoinPositionMS:  int64p(60 * 60 * 1000),
		LeavePositionMS: int64p(10 * 60 * 1000),
	})
	assert.Equal(t, 0.0, got)
}

func TestCompletion_TimeFallback(t *testing.T) {
	// Без позиций считаем по настенным часам.
	got := Completion(CompletionInput{
		FallbackMinutes:      45,
		FallbackTotalMinutes: 90,
	})
	assert.InDelta(t, 50.0, got, 0.01)
}

func TestCompletion_TimeFallbackDefaultRuntime(t *testing.T) {
	// Неизвестная длительность: знаменатель - DefaultRuntimeMinutes.
	got := Completion(CompletionInput{
		FallbackMinutes: 60,
	})
	assert.InDelta(t, 50.0, got, 0.01)
}

func TestCompletion_TimeFallbackClamped(t *testing.T) {
	got := Completion(CompletionInput{
		FallbackMinutes:      500,
		FallbackTotalMinutes: 90,
	})
	assert.Equal(t, 100.0, got)
}

func TestCompletion_NoData(t *testing.T) {
	assert.Equal(t, 0.0, Completion(CompletionInput{}))
}

func TestSessionProgress_PositionBased(t *testing.T) {
	start := time.Date(2026, 2, 13, 21, 0, 0, 0, time.UTC)
	s := &Session{
		StartTime:       start,
		MovieDurationMS: int64p(120 * 60 * 1000),
		JoinPositionMS:  int64p(0),
	}

	snap := s.Progress(start.Add(30*time.Minute), 30*60*1000)
	assert.Equal(t, 30, snap.DurationMinutes)
	assert.InDelta(t, 25.0, snap.CompletionPercentage, 0.01)
}

func TestSessionProgress_NoJoinPositionUsesClock(t *testing.T) {
	start := time.Date(2026, 2, 13, 21, 0, 0, 0, time.UTC)
	s := &Session{StartTime: start}

	snap := s.Progress(start.Add(42*time.Minute), 0)
	assert.Equal(t, 42, snap.DurationMinutes)
	assert.Equal(t, 0.0, snap.CompletionPercentage)
}

func TestMovieMetadata_Decade(t *testing.T) {
	assert.Equal(t, "1980s", MovieMetadata{Year: 1982}.Decade())
	assert.Equal(t, "2020s", MovieMetadata{Year: 2026}.Decade())
	assert.Equal(t, "", MovieMetadata{}.Decade())
}

func TestPercent_Clamp(t *testing.T) {
	assert.Equal(t, Percent(0), Percent(-5).Clamp())
	assert.Equal(t, Percent(100), Percent(140).Clamp())
	assert.Equal(t, Percent(62.5), Percent(62.5).Clamp())
}
