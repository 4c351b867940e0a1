// Package calendar holds the pure date helpers the ledger math is
// built on. All functions work in the local calendar: a "day" is the
// civil date of the given time, keys are zero-padded.
package calendar

import "time"

// DayKey returns the canonical YYYY-MM-DD key for a date.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// MonthKey returns the canonical YYYY-MM key for a date.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// IsWorkingDay reports whether the date carries an attendance
// obligation. Monday through Saturday do; Sunday is always exempt.
func IsWorkingDay(t time.Time) bool {
	return t.Weekday() != time.Sunday
}

// MondayOfWeek returns midnight of the Monday of the week containing
// t. Weeks start on Monday regardless of locale.
func MondayOfWeek(t time.Time) time.Time {
	since := (int(t.Weekday()) + 6) % 7 // days since Monday
	d := t.AddDate(0, 0, -since)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, t.Location())
}

// WorkingWeek returns the six working days (Monday..Saturday) of the
// week containing t, in order.
func WorkingWeek(t time.Time) []time.Time {
	start := MondayOfWeek(t)
	days := make([]time.Time, 6)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

// WorkingWeekKeys returns the day keys of WorkingWeek(t).
func WorkingWeekKeys(t time.Time) []string {
	days := WorkingWeek(t)
	keys := make([]string, len(days))
	for i, d := range days {
		keys[i] = DayKey(d)
	}
	return keys
}

// NextDay returns the calendar day immediately following t.
func NextDay(t time.Time) time.Time {
	return t.AddDate(0, 0, 1)
}

// StartOfDay truncates t to midnight local time.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
