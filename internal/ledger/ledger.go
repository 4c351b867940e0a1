// Package ledger is the attendance ledger calculator: fines, leave
// balances, and bonus-week completion. Every view (student summary,
// admin detail, admin overview) computes through these functions so
// the numbers can never drift between call sites.
//
// The functions are pure: inputs are pre-fetched sets and counts plus
// an explicit reference time, output is arithmetic. No I/O.
package ledger

import (
	"time"

	"leettrack/internal/calendar"
)

const (
	// DailyFine is the penalty per missed working day, in currency units.
	DailyFine = 10

	// MonthlyBaseLeaves is the leave allotment every student starts
	// each month with, before bonus grants.
	MonthlyBaseLeaves = 2
)

// Fine computes the outstanding fine for one user and one month.
//
// month is a YYYY-MM key. submitted holds the day keys with a
// submission in that month; exempt holds the day keys covered by an
// approved leave of either kind. Days are charged from the 1st of the
// month through yesterday relative to asOf — the current day is still
// in progress and never counts as missed — and never past the end of
// the month. Sundays are skipped.
func Fine(month string, submitted, exempt map[string]bool, asOf time.Time) int {
	start, err := time.ParseInLocation("2006-01", month, asOf.Location())
	if err != nil {
		return 0
	}
	yesterday := calendar.StartOfDay(asOf).AddDate(0, 0, -1)

	missing := 0
	for dt := start; !dt.After(yesterday); dt = calendar.NextDay(dt) {
		if calendar.MonthKey(dt) != month {
			break
		}
		if !calendar.IsWorkingDay(dt) {
			continue
		}
		key := calendar.DayKey(dt)
		if !submitted[key] && !exempt[key] {
			missing++
		}
	}
	return missing * DailyFine
}

// AvailableLeaves computes the remaining leave balance for the month:
// base allotment plus all-time bonus grants, minus the approved
// regular leaves already consumed this month. Skip-next-day leaves do
// not consume the allotment. Never negative.
func AvailableLeaves(bonusCount, approvedRegularCount int) int {
	n := MonthlyBaseLeaves + bonusCount - approvedRegularCount
	if n < 0 {
		return 0
	}
	return n
}

// WeekComplete reports whether every one of the given working-day
// keys has a submission.
func WeekComplete(weekKeys []string, submitted map[string]bool) bool {
	if len(weekKeys) == 0 {
		return false
	}
	for _, k := range weekKeys {
		if !submitted[k] {
			return false
		}
	}
	return true
}

// KeySet builds a membership set from day keys, keeping only keys
// belonging to the given month when month is non-empty.
func KeySet(keys []string, month string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		if month != "" && (len(k) < 7 || k[:7] != month) {
			continue
		}
		set[k] = true
	}
	return set
}
