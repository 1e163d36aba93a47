// Package timeutil provides timezone utilities for the platform timezone
// (UTC-5, no DST). School-day boundaries, streak math and user-facing date
// formatting all go through here so the whole engine agrees on what "today"
// means.
package timeutil

import (
	"fmt"
	"time"
)

// PlatformTZ is the platform timezone (UTC-5, no DST).
var PlatformTZ = time.FixedZone("America/Lima", -5*60*60)

// Now returns the current time in the platform timezone.
func Now() time.Time {
	return time.Now().In(PlatformTZ)
}

// ToLocal converts a time to the platform timezone.
func ToLocal(t time.Time) time.Time {
	return t.In(PlatformTZ)
}

// ToUTC converts a time to UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// Date creates a time in the platform timezone with the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, PlatformTZ)
}

// StartOfDay returns the start of the day (00:00:00) in the platform
// timezone.
func StartOfDay(t time.Time) time.Time {
	local := ToLocal(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, PlatformTZ)
}

// EndOfDay returns the end of the day in the platform timezone.
func EndOfDay(t time.Time) time.Time {
	local := ToLocal(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 999999999, PlatformTZ)
}

// StartOfWeek returns the start of the week (Monday 00:00:00) in the
// platform timezone.
func StartOfWeek(t time.Time) time.Time {
	local := ToLocal(t)
	weekday := int(local.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return StartOfDay(local.AddDate(0, 0, -(weekday - 1)))
}

// DayKey buckets a time into its calendar day in the platform timezone.
// Two times share a key iff they fall on the same local day.
func DayKey(t time.Time) string {
	return ToLocal(t).Format("2006-01-02")
}

// DistinctDays counts the distinct platform-timezone calendar days among
// the given times.
func DistinctDays(times []time.Time) int {
	seen := make(map[string]struct{}, len(times))
	for _, t := range times {
		seen[DayKey(t)] = struct{}{}
	}
	return len(seen)
}

// WithinLastDays reports whether t falls inside the window of the last n
// calendar days ending at now, inclusive of today.
func WithinLastDays(t, now time.Time, n int) bool {
	if t.After(now) {
		return false
	}
	windowStart := StartOfDay(now).AddDate(0, 0, -(n - 1))
	return !ToLocal(t).Before(windowStart)
}

// IsToday checks if the given time is today in the platform timezone.
func IsToday(t time.Time) bool {
	return DayKey(t) == DayKey(Now())
}

// DaysSince returns the number of whole local days elapsed since t.
func DaysSince(t time.Time) int {
	days := int(StartOfDay(Now()).Sub(StartOfDay(t)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// Common format layouts.
const (
	// FormatDate is the ISO date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatTime is the time format (HH:MM).
	FormatTime = "15:04"
	// FormatDateTime is the ISO datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatSpanishDate is the user-facing date format (DD/MM/YYYY).
	FormatSpanishDate = "02/01/2006"
	// FormatSpanishDateTime is the user-facing datetime format.
	FormatSpanishDateTime = "02/01/2006 15:04"
)

// FormatLocal formats a time in the platform timezone with the given
// layout.
func FormatLocal(t time.Time, layout string) string {
	return ToLocal(t).Format(layout)
}

// FormatDateStr formats a time as a date string (YYYY-MM-DD).
func FormatDateStr(t time.Time) string {
	return FormatLocal(t, FormatDate)
}

// FormatSpanish formats a time in the user-facing format (DD/MM/YYYY).
func FormatSpanish(t time.Time) string {
	return FormatLocal(t, FormatSpanishDate)
}

// FormatRelative renders a short Spanish "hace ..." phrase for notification
// timestamps.
func FormatRelative(t time.Time) string {
	d := Now().Sub(ToLocal(t))
	switch {
	case d < time.Minute:
		return "ahora"
	case d < time.Hour:
		return fmt.Sprintf("hace %d min", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("hace %d h", int(d.Hours()))
	default:
		return fmt.Sprintf("hace %d días", int(d.Hours()/24))
	}
}

// ParseLocal parses a time string in the platform timezone.
func ParseLocal(layout, value string) (time.Time, error) {
	return time.ParseInLocation(layout, value, PlatformTZ)
}

// ParseDate parses a date string (YYYY-MM-DD) in the platform timezone.
func ParseDate(value string) (time.Time, error) {
	return ParseLocal(FormatDate, value)
}
