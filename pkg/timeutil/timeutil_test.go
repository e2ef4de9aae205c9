package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartOfDay(t *testing.T) {
	in := time.Date(2026, 2, 13, 23, 45, 12, 999, time.UTC)
	got := StartOfDay(in)
	assert.Equal(t, time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC), got)
}

func TestSameDay(t *testing.T) {
	a := time.Date(2026, 2, 13, 0, 1, 0, 0, time.UTC)
	b := time.Date(2026, 2, 13, 23, 59, 0, 0, time.UTC)
	c := time.Date(2026, 2, 14, 0, 1, 0, 0, time.UTC)

	assert.True(t, SameDay(a, b))
	assert.False(t, SameDay(b, c))
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 2, 13, 23, 0, 0, 0, time.UTC)
	b := time.Date(2026, 2, 16, 1, 0, 0, 0, time.UTC)

	assert.Equal(t, 3, DaysBetween(a, b))
	assert.Equal(t, -3, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a))
}

func TestIsLateNight(t *testing.T) {
	assert.True(t, IsLateNight(time.Date(2026, 2, 14, 0, 30, 0, 0, time.UTC)))
	assert.True(t, IsLateNight(time.Date(2026, 2, 14, 5, 59, 0, 0, time.UTC)))
	assert.False(t, IsLateNight(time.Date(2026, 2, 14, 6, 0, 0, 0, time.UTC)))
	assert.False(t, IsLateNight(time.Date(2026, 2, 13, 23, 59, 0, 0, time.UTC)))
}

func TestIsWeekend(t *testing.T) {
	// 2026-02-14 - суббота.
	assert.True(t, IsWeekend(time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)))
	assert.True(t, IsWeekend(time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)))
	assert.False(t, IsWeekend(time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)))
}

func TestIsHalloween(t *testing.T) {
	assert.True(t, IsHalloween(time.Date(2026, 10, 31, 21, 0, 0, 0, time.UTC)))
	assert.False(t, IsHalloween(time.Date(2026, 10, 30, 21, 0, 0, 0, time.UTC)))
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2026-02-13")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseDate("13.02.2026")
	assert.Error(t, err)
}

func TestSetHomeTimezone(t *testing.T) {
	original := HomeTZ
	defer SetHomeTimezone(original)

	loc := time.FixedZone("UTC+6", 6*60*60)
	SetHomeTimezone(loc)

	// 20:00 UTC = 02:00 следующего дня по домашней зоне.
	in := time.Date(2026, 2, 13, 20, 0, 0, 0, time.UTC)
	assert.True(t, IsLateNight(in))
	assert.Equal(t, 14, ToHome(in).Day())

	// nil не перезаписывает зону.
	SetHomeTimezone(nil)
	assert.Equal(t, loc, HomeTZ)
}
