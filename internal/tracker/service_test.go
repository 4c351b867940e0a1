package tracker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leettrack/internal/events"
	"leettrack/internal/tracker"
)

// testClock is a settable wall clock for the service under test.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Set(y int, m time.Month, d int) {
	c.now = time.Date(y, m, d, 12, 0, 0, 0, time.Local)
}

func newTestService(t *testing.T) (*tracker.Service, *tracker.MemoryStore, *testClock) {
	st := tracker.NewMemoryStore()
	clock := &testClock{}
	clock.Set(2025, time.September, 1)
	return tracker.NewService(st, events.NewMemoryFeed(), clock.Now), st, clock
}

func newStudent(t *testing.T, svc *tracker.Service, email string) tracker.User {
	u, err := svc.SignUp(context.Background(), email, "secret123", nil)
	require.NoError(t, err)
	require.Equal(t, tracker.RoleStudent, u.Role)
	return u
}

func TestSignUpAndAuthenticate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	u := newStudent(t, svc, "ada@example.com")

	got, err := svc.Authenticate(ctx, "ada@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Authenticate(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, tracker.ErrInvalidCredentials)

	_, err = svc.SignUp(ctx, "ada@example.com", "another", nil)
	assert.ErrorIs(t, err, tracker.ErrEmailTaken)
}

func TestRecordSubmission_OnePerDay(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	u := newStudent(t, svc, "ada@example.com")

	sub, err := svc.RecordSubmission(ctx, u.ID, "https://img.example/1.png")
	require.NoError(t, err)
	assert.Equal(t, "2025-09-01", sub.DateKey)
	assert.Equal(t, tracker.SubmissionPending, sub.Status)

	_, err = svc.RecordSubmission(ctx, u.ID, "https://img.example/2.png")
	assert.ErrorIs(t, err, tracker.ErrDuplicateSubmission)
}

func TestBonus_PartialWeekGrantsNothing(t *testing.T) {
	svc, st, clock := newTestService(t)
	ctx := context.Background()
	u := newStudent(t, svc, "ada@example.com")

	// Monday through Friday only
	for d := 1; d <= 5; d++ {
		clock.Set(2025, time.September, d)
		_, err := svc.RecordSubmission(ctx, u.ID, "https://img.example/s.png")
		require.NoError(t, err)
	}

	n, err := st.CountBonuses(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestBonus_FullWeekGrantsExactlyOnce(t *testing.T) {
	svc, st, clock := newTestService(t)
	ctx := context.Background()
	u := newStudent(t, svc, "ada@example.com")

	for d := 1; d <= 6; d++ {
		clock.Set(2025, time.September, d)
		_, err := svc.RecordSubmission(ctx, u.ID, "https://img.example/s.png")
		require.NoError(t, err)
	}

	grants, err := st.ListBonuses(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, "2025-09-01", grants[0].WeekStartKey)

	// Sunday's submission re-evaluates the same week; no second grant
	clock.Set(2025, time.September, 7)
	_, err = svc.RecordSubmission(ctx, u.ID, "https://img.example/s.png")
	require.NoError(t, err)

	n, err := st.CountBonuses(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRequestLeave_GateAndRecordShape(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	u := newStudent(t, svc, "ada@example.com")

	// no approvals yet: 0 < 2, request goes through as pending
	l, err := svc.RequestLeave(ctx, u.ID, "2025-09-15", "family visit", false)
	require.NoError(t, err)
	assert.Equal(t, tracker.LeavePending, l.Status)
	assert.Equal(t, tracker.LeaveRegular, l.Kind)
	assert.Equal(t, "2025-09", l.Month)
	assert.Equal(t, l.Month, l.DateKey[:7])

	require.NoError(t, svc.ResolveLeave(ctx, l.ID, tracker.LeaveApproved))

	// one approval: available is now 1, and 1 >= 1 blocks the next
	_, err = svc.RequestLeave(ctx, u.ID, "2025-09-16", "", false)
	assert.ErrorIs(t, err, tracker.ErrNoLeaveBalance)

	leaves, err := svc.Leaves(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, leaves, 1) // the rejected request wrote nothing
}

func TestRequestLeave_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	u := newStudent(t, svc, "ada@example.com")

	_, err := svc.RequestLeave(ctx, u.ID, "", "", false)
	assert.Error(t, err)

	_, err = svc.RequestLeave(ctx, u.ID, "15-09-2025", "", false)
	assert.Error(t, err)
}

func TestResolveSubmission_NeverReverts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	u := newStudent(t, svc, "ada@example.com")

	sub, err := svc.RecordSubmission(ctx, u.ID, "https://img.example/s.png")
	require.NoError(t, err)

	require.NoError(t, svc.ResolveSubmission(ctx, sub.ID, tracker.SubmissionVerified))
	assert.ErrorIs(t, svc.ResolveSubmission(ctx, sub.ID, tracker.SubmissionRejected), tracker.ErrNotPending)

	assert.Error(t, svc.ResolveSubmission(ctx, sub.ID, "pending"))
	assert.ErrorIs(t, svc.ResolveSubmission(ctx, "nope", tracker.SubmissionVerified), tracker.ErrNotFound)
}

func TestSummarize_FineAndBalance(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	u := newStudent(t, svc, "ada@example.com")

	for d := 1; d <= 6; d++ {
		clock.Set(2025, time.September, d)
		_, err := svc.RecordSubmission(ctx, u.ID, "https://img.example/s.png")
		require.NoError(t, err)
	}

	// as of the 10th: days 1..9 chargeable, 7th is Sunday, 1..6
	// submitted, so the 8th and 9th are missing
	clock.Set(2025, time.September, 10)
	sum, err := svc.Summarize(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, sum.Fine)
	assert.Equal(t, 1, sum.BonusLeaves)
	assert.Equal(t, 0, sum.ApprovedLeaves)
	assert.Equal(t, 3, sum.AvailableLeaves)
	assert.Equal(t, "2025-09-06", sum.LastSubmission)
}

func TestSkipNextDayLeave_ExemptsFineWithoutConsumingAllotment(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	u := newStudent(t, svc, "ada@example.com")

	for d := 1; d <= 6; d++ {
		clock.Set(2025, time.September, d)
		_, err := svc.RecordSubmission(ctx, u.ID, "https://img.example/s.png")
		require.NoError(t, err)
	}

	clock.Set(2025, time.September, 10)
	l, err := svc.RequestLeave(ctx, u.ID, "", "review day", true)
	require.NoError(t, err)
	assert.Equal(t, "2025-09-11", l.DateKey) // auto-selected tomorrow
	assert.Equal(t, tracker.LeaveSkipNextDay, l.Kind)
	assert.True(t, l.SkipNextDay)

	require.NoError(t, svc.ResolveLeave(ctx, l.ID, tracker.LeaveApproved))

	clock.Set(2025, time.September, 12)
	sum, err := svc.Summarize(ctx, u.ID)
	require.NoError(t, err)
	// chargeable 1..11 minus Sunday the 7th; 1..6 submitted, the
	// 11th exempted by the approved skip leave -> 8th, 9th, 10th
	assert.Equal(t, 30, sum.Fine)
	// the skip leave consumed no allotment
	assert.Equal(t, 0, sum.ApprovedLeaves)
	assert.Equal(t, 3, sum.AvailableLeaves)
}

func TestOverviewAndDetail_AgreeWithSummary(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	u := newStudent(t, svc, "ada@example.com")
	newStudent(t, svc, "bob@example.com")

	clock.Set(2025, time.September, 3)
	_, err := svc.RecordSubmission(ctx, u.ID, "https://img.example/s.png")
	require.NoError(t, err)

	sum, err := svc.Summarize(ctx, u.ID)
	require.NoError(t, err)

	rows, err := svc.Overview(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, sum, rows[0].Summary) // ada sorts first

	detail, err := svc.Detail(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, sum, detail.Summary)
	assert.Len(t, detail.Submissions, 1)
}

func TestEndToEnd_BonusWeekThenReviewSkip(t *testing.T) {
	svc, st, clock := newTestService(t)
	ctx := context.Background()
	u := newStudent(t, svc, "ada@example.com")

	// upload every working day of the week 2025-09-01 .. 09-06
	for d := 1; d <= 6; d++ {
		clock.Set(2025, time.September, d)
		_, err := svc.RecordSubmission(ctx, u.ID, "https://img.example/s.png")
		require.NoError(t, err)
	}

	grants, err := st.ListBonuses(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, "2025-09-01", grants[0].WeekStartKey)

	// on the 10th, a "review" leave with skip-next-day lands on the 11th
	clock.Set(2025, time.September, 10)
	l, err := svc.RequestLeave(ctx, u.ID, "", "review", true)
	require.NoError(t, err)
	assert.Equal(t, "2025-09-11", l.DateKey)
	assert.Equal(t, tracker.LeaveSkipNextDay, l.Kind)
	assert.Equal(t, "2025-09", l.Month)
}
