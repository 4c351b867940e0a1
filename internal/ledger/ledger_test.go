package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"leettrack/internal/ledger"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func set(keys ...string) map[string]bool {
	s := make(map[string]bool, len(keys))
	for _, k := range keys {
		s[k] = true
	}
	return s
}

func TestFine_EmptyMonthChargedThroughYesterday(t *testing.T) {
	// September 2025: days 1..9 are Mon 1 .. Tue 9, with Sunday the
	// 7th exempt, so 8 chargeable days when asked on the 10th.
	fine := ledger.Fine("2025-09", set(), set(), date(2025, time.September, 10))
	assert.Equal(t, 8*ledger.DailyFine, fine)
}

func TestFine_FirstOfMonthIsZero(t *testing.T) {
	fine := ledger.Fine("2025-09", set(), set(), date(2025, time.September, 1))
	assert.Equal(t, 0, fine)
}

func TestFine_CurrentDayNeverCounted(t *testing.T) {
	// asked on the 2nd, only the 1st is chargeable
	fine := ledger.Fine("2025-09", set(), set(), date(2025, time.September, 2))
	assert.Equal(t, ledger.DailyFine, fine)
}

func TestFine_ExemptionReducesByExactlyOneDay(t *testing.T) {
	asOf := date(2025, time.September, 10)
	base := ledger.Fine("2025-09", set(), set(), asOf)

	exempt := set("2025-09-03")
	assert.Equal(t, base-ledger.DailyFine, ledger.Fine("2025-09", set(), exempt, asOf))

	// idempotent: the same exemption cannot reduce twice
	exempt["2025-09-03"] = true
	assert.Equal(t, base-ledger.DailyFine, ledger.Fine("2025-09", set(), exempt, asOf))
}

func TestFine_SubmissionAndExemptionDoNotStack(t *testing.T) {
	asOf := date(2025, time.September, 10)
	base := ledger.Fine("2025-09", set(), set(), asOf)
	fine := ledger.Fine("2025-09", set("2025-09-03"), set("2025-09-03"), asOf)
	assert.Equal(t, base-ledger.DailyFine, fine)
}

func TestFine_NeverIteratesPastMonthEnd(t *testing.T) {
	// asked far in the future: only September's working days count.
	// September 2025 has 26 working days (30 days, 4 Sundays).
	fine := ledger.Fine("2025-09", set(), set(), date(2026, time.March, 15))
	assert.Equal(t, 26*ledger.DailyFine, fine)
}

func TestFine_SundaysNeverCharged(t *testing.T) {
	// submissions on every working day -> zero, Sundays irrelevant
	subs := set()
	for d := date(2025, time.September, 1); d.Month() == time.September; d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Sunday {
			subs[d.Format("2006-01-02")] = true
		}
	}
	assert.Equal(t, 0, ledger.Fine("2025-09", subs, set(), date(2025, time.October, 5)))
}

func TestAvailableLeaves(t *testing.T) {
	tests := []struct {
		name             string
		bonuses, approved int
		want             int
	}{
		{"untouched", 0, 0, 2},
		{"one bonus two used", 1, 2, 1},
		{"overdrawn clamps to zero", 0, 5, 0},
		{"bonuses extend base", 3, 0, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ledger.AvailableLeaves(tt.bonuses, tt.approved))
		})
	}
}

func TestWeekComplete(t *testing.T) {
	week := []string{"2025-09-01", "2025-09-02", "2025-09-03", "2025-09-04", "2025-09-05", "2025-09-06"}

	partial := set(week[:5]...)
	assert.False(t, ledger.WeekComplete(week, partial))

	full := set(week...)
	assert.True(t, ledger.WeekComplete(week, full))

	assert.False(t, ledger.WeekComplete(nil, full))
}

func TestKeySet_FiltersToMonth(t *testing.T) {
	s := ledger.KeySet([]string{"2025-09-01", "2025-08-31", "2025-09-15", "bad"}, "2025-09")
	assert.Equal(t, set("2025-09-01", "2025-09-15"), s)
}
