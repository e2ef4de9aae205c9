// Package timeutil provides calendar-day utilities for Movie Night Hub.
// Streaks are counted in calendar days of the hub's home timezone, so a
// midnight-crossing movie night still lands on the day it started.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// Common format layouts.
const (
	FormatDate     = "2006-01-02"
	FormatTime     = "15:04"
	FormatDateTime = "2006-01-02 15:04:05"
)

// HomeTZ is the hub's home timezone. UTC by default; movie nights are a
// distributed affair and the host decides what "a day" means.
var HomeTZ = time.UTC

// SetHomeTimezone overrides the home timezone. Call once at startup.
func SetHomeTimezone(loc *time.Location) {
	if loc != nil {
		HomeTZ = loc
	}
}

// Now returns the current time in the home timezone.
func Now() time.Time {
	return time.Now().In(HomeTZ)
}

// ToHome converts a time to the home timezone.
func ToHome(t time.Time) time.Time {
	return t.In(HomeTZ)
}

// Date creates a time in the home timezone with the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, HomeTZ)
}

// StartOfDay returns the start of the day (00:00:00) in the home timezone.
func StartOfDay(t time.Time) time.Time {
	home := ToHome(t)
	return time.Date(home.Year(), home.Month(), home.Day(), 0, 0, 0, 0, HomeTZ)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in the home timezone.
func EndOfDay(t time.Time) time.Time {
	home := ToHome(t)
	return time.Date(home.Year(), home.Month(), home.Day(), 23, 59, 59, 999999999, HomeTZ)
}

// SameDay checks if two times fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ha, hb := ToHome(a), ToHome(b)
	return ha.Year() == hb.Year() && ha.Month() == hb.Month() && ha.Day() == hb.Day()
}

// IsToday checks if the given time is today.
func IsToday(t time.Time) bool {
	return SameDay(t, Now())
}

// IsYesterday checks if the given time is yesterday.
func IsYesterday(t time.Time) bool {
	return SameDay(t, Now().AddDate(0, 0, -1))
}

// DaysSince calculates the number of whole calendar days since the given time.
func DaysSince(t time.Time) int {
	now := StartOfDay(Now())
	then := StartOfDay(t)
	return int(now.Sub(then).Hours() / 24)
}

// DaysBetween returns the number of whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(StartOfDay(b).Sub(StartOfDay(a)).Hours() / 24)
}

// IsHalloween checks if the given time falls on October 31st.
func IsHalloween(t time.Time) bool {
	home := ToHome(t)
	return home.Month() == time.October && home.Day() == 31
}

// IsLateNight checks if the given time is past midnight but before dawn (00:00-06:00).
func IsLateNight(t time.Time) bool {
	hour := ToHome(t).Hour()
	return hour >= 0 && hour < 6
}

// IsWeekend checks if the given time falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := ToHome(t).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Format formats a time in the home timezone with the given layout.
func Format(t time.Time, layout string) string {
	return ToHome(t).Format(layout)
}

// FormatDateStr formats a time as a date string (YYYY-MM-DD).
func FormatDateStr(t time.Time) string {
	return Format(t, FormatDate)
}

// FormatDateTimeStr formats a time as a datetime string.
func FormatDateTimeStr(t time.Time) string {
	return Format(t, FormatDateTime)
}

// FormatRelative returns a human-readable relative time string.
func FormatRelative(t time.Time) string {
	d := Now().Sub(ToHome(t))
	if d < 0 {
		return "soon"
	}

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "yesterday"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return FormatDateStr(t)
	}
}

// ParseDate parses a date string (YYYY-MM-DD) in the home timezone.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(FormatDate, value, HomeTZ)
}
