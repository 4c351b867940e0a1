package calendar_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leettrack/internal/calendar"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func TestDayKey_ZeroPadded(t *testing.T) {
	assert.Equal(t, "2025-09-01", calendar.DayKey(date(2025, time.September, 1)))
	assert.Equal(t, "2025-12-31", calendar.DayKey(date(2025, time.December, 31)))
}

func TestMonthKey_IsPrefixOfDayKey(t *testing.T) {
	// every day of a month shares the month key as its day-key prefix
	for d := date(2025, time.February, 1); d.Month() == time.February; d = calendar.NextDay(d) {
		require.True(t, strings.HasPrefix(calendar.DayKey(d), calendar.MonthKey(d)))
	}
}

func TestIsWorkingDay_SundayOnlyExemption(t *testing.T) {
	// exactly one exempt day in every run of seven consecutive days
	start := date(2025, time.September, 1)
	for week := 0; week < 8; week++ {
		exempt := 0
		for i := 0; i < 7; i++ {
			if !calendar.IsWorkingDay(start.AddDate(0, 0, week*7+i)) {
				exempt++
			}
		}
		require.Equal(t, 1, exempt)
	}
	assert.False(t, calendar.IsWorkingDay(date(2025, time.September, 7))) // Sunday
	assert.True(t, calendar.IsWorkingDay(date(2025, time.September, 6))) // Saturday
}

func TestMondayOfWeek(t *testing.T) {
	monday := date(2025, time.September, 1)
	for i := 0; i < 7; i++ {
		got := calendar.MondayOfWeek(monday.AddDate(0, 0, i))
		assert.True(t, got.Equal(monday), "day %d: got %v", i, got)
	}
	// Sunday belongs to the week started by the previous Monday
	assert.Equal(t, "2025-09-01", calendar.DayKey(calendar.MondayOfWeek(date(2025, time.September, 7))))
}

func TestWorkingWeekKeys(t *testing.T) {
	keys := calendar.WorkingWeekKeys(date(2025, time.September, 3)) // a Wednesday
	require.Equal(t, []string{
		"2025-09-01", "2025-09-02", "2025-09-03",
		"2025-09-04", "2025-09-05", "2025-09-06",
	}, keys)
}

func TestNextDay_MonthRollover(t *testing.T) {
	assert.Equal(t, "2025-10-01", calendar.DayKey(calendar.NextDay(date(2025, time.September, 30))))
	assert.Equal(t, "2026-01-01", calendar.DayKey(calendar.NextDay(date(2025, time.December, 31))))
}
