package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
	runs int
}

func (j *stubJob) Name() string        { return j.name }
func (j *stubJob) Description() string { return "stub job for tests" }
func (j *stubJob) Run(ctx context.Context) error {
	j.runs++
	return nil
}

// ──────────────────────────────────────────────
// Разбор cron-выражений
// ──────────────────────────────────────────────

func TestParseCronExpression_Fields(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		minutes []int
		hours   []int
	}{
		{
			name:    "every 15 minutes",
			expr:    Every15Minutes,
			minutes: []int{0, 15, 30, 45},
			hours:   rangeOf(0, 23),
		},
		{
			name:    "nightly snapshot at 03:30",
			expr:    "30 3 * * *",
			minutes: []int{30},
			hours:   []int{3},
		},
		{
			name:    "minute list",
			expr:    "5,20,50 * * * *",
			minutes: []int{5, 20, 50},
			hours:   rangeOf(0, 23),
		},
		{
			name:    "hour range",
			expr:    "0 18-22 * * *",
			minutes: []int{0},
			hours:   []int{18, 19, 20, 21, 22},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce, err := ParseCronExpression(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.minutes, ce.minutes)
			assert.Equal(t, tt.hours, ce.hours)
			assert.Equal(t, tt.expr, ce.String())
		})
	}
}

func TestParseCronExpression_Invalid(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"too few fields", "* * *"},
		{"too many fields", "* * * * * *"},
		{"minute out of range", "61 * * * *"},
		{"bad step", "*/0 * * * *"},
		{"not a number", "banana * * * *"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCronExpression(tt.expr)
			assert.Error(t, err)
		})
	}
}

func TestMustParseCronExpression_PanicsOnInvalid(t *testing.T) {
	assert.NotPanics(t, func() { MustParseCronExpression(EveryHour) })
	assert.Panics(t, func() { MustParseCronExpression("nope") })
}

// ──────────────────────────────────────────────
// Вычисление следующего запуска
// ──────────────────────────────────────────────

func TestCronExpression_Next(t *testing.T) {
	// Пятница, 16 октября 2026, 20:07 UTC.
	base := time.Date(2026, time.October, 16, 20, 7, 0, 0, time.UTC)

	tests := []struct {
		name string
		expr string
		want time.Time
	}{
		{
			name: "every minute",
			expr: EveryMinute,
			want: time.Date(2026, time.October, 16, 20, 8, 0, 0, time.UTC),
		},
		{
			name: "every 15 minutes",
			expr: Every15Minutes,
			want: time.Date(2026, time.October, 16, 20, 15, 0, 0, time.UTC),
		},
		{
			name: "top of next hour",
			expr: EveryHour,
			want: time.Date(2026, time.October, 16, 21, 0, 0, 0, time.UTC),
		},
		{
			name: "nightly at 21:00 same day",
			expr: EveryDay21PM,
			want: time.Date(2026, time.October, 16, 21, 0, 0, 0, time.UTC),
		},
		{
			name: "next sunday midnight",
			expr: EverySunday,
			want: time.Date(2026, time.October, 18, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "first of next month",
			expr: FirstOfMonth,
			want: time.Date(2026, time.November, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := MustParseCronExpression(tt.expr)
			assert.Equal(t, tt.want, ce.Next(base))
		})
	}
}

func TestCronExpression_NextSkipsCurrentMinute(t *testing.T) {
	// Даже если текущая минута подходит, Next возвращает следующее совпадение.
	ce := MustParseCronExpression("0 21 * * *")
	at := time.Date(2026, time.October, 16, 21, 0, 0, 0, time.UTC)

	next := ce.Next(at)
	assert.Equal(t, time.Date(2026, time.October, 17, 21, 0, 0, 0, time.UTC), next)
}

// ──────────────────────────────────────────────
// Управление задачами
// ──────────────────────────────────────────────

func TestCronScheduler_AddAndListJobs(t *testing.T) {
	cs := NewCronScheduler(
		WithLocation(time.UTC),
		WithCronLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	require.NoError(t, cs.AddJob("autosave", Every5Minutes, &stubJob{name: "autosave"}))
	require.NoError(t, cs.AddJob("backup", EveryDayMidnight, &stubJob{name: "backup"}))

	jobs := cs.ListJobs()
	require.Len(t, jobs, 2)
	// Список отсортирован по ближайшему запуску.
	assert.False(t, jobs[0].NextRun.After(jobs[1].NextRun))
	names := []string{jobs[0].Name, jobs[1].Name}
	assert.ElementsMatch(t, []string{"autosave", "backup"}, names)
	assert.True(t, jobs[0].Enabled)
	assert.False(t, jobs[0].NextRun.IsZero())
}

func TestCronScheduler_AddJobRejectsBadExpression(t *testing.T) {
	cs := NewCronScheduler(WithCronLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	err := cs.AddJob("broken", "not a cron", &stubJob{name: "broken"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse cron expression")
}

func TestCronScheduler_EnableDisable(t *testing.T) {
	cs := NewCronScheduler(
		WithLocation(time.UTC),
		WithCronLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, cs.AddJob("warmup", Every10Minutes, &stubJob{name: "warmup"}))

	require.NoError(t, cs.DisableJob("warmup"))
	job, ok := cs.GetJobStatus("warmup")
	require.True(t, ok)
	assert.False(t, job.Enabled)

	require.NoError(t, cs.EnableJob("warmup"))
	job, ok = cs.GetJobStatus("warmup")
	require.True(t, ok)
	assert.True(t, job.Enabled)

	assert.Error(t, cs.EnableJob("ghost"))
	assert.Error(t, cs.DisableJob("ghost"))
}

func TestCronScheduler_RemoveJob(t *testing.T) {
	cs := NewCronScheduler(WithCronLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, cs.AddJob("temp", EveryMinute, &stubJob{name: "temp"}))

	cs.RemoveJob("temp")

	_, ok := cs.GetJobStatus("temp")
	assert.False(t, ok)
	assert.Empty(t, cs.ListJobs())
}

// ──────────────────────────────────────────────
// Интервальное расписание
// ──────────────────────────────────────────────

func TestIntervalSchedule(t *testing.T) {
	s := NewIntervalSchedule(5 * time.Minute)

	at := time.Date(2026, time.October, 16, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, at.Add(5*time.Minute), s.Next(at))
	assert.Equal(t, "@every 5m0s", s.String())
}

func rangeOf(min, max int) []int {
	out := make([]int, 0, max-min+1)
	for i := min; i <= max; i++ {
		out = append(out, i)
	}
	return out
}
