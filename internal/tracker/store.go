package tracker

import (
	"context"
	"errors"
)

// Sentinel errors returned by stores and the service. Handlers map
// these to HTTP statuses; everything else is an upstream failure.
var (
	ErrNotFound            = errors.New("record not found")
	ErrEmailTaken          = errors.New("email already registered")
	ErrDuplicateSubmission = errors.New("already uploaded today")
	ErrNoLeaveBalance      = errors.New("no remaining leaves this month")
	ErrNotPending          = errors.New("record already resolved")
	ErrInvalidCredentials  = errors.New("invalid email or password")
)

// Store persists tracker records. The invariant-bearing inserts
// (submission per day, bonus per week) are conditional: they report
// inserted=false on a key collision instead of failing, so callers
// never need a separate existence check.
type Store interface {
	CreateUser(ctx context.Context, u User) (User, error)
	UserByID(ctx context.Context, id string) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	ListStudents(ctx context.Context) ([]User, error)

	// InsertSubmission writes s unless a submission already exists for
	// (s.UserID, s.DateKey). inserted is false on that collision.
	InsertSubmission(ctx context.Context, s Submission) (sub Submission, inserted bool, err error)
	SubmissionByID(ctx context.Context, id string) (*Submission, error)
	// ListSubmissions returns the user's submissions, newest day first.
	ListSubmissions(ctx context.Context, userID string) ([]Submission, error)
	// SubmissionDays reports which of the given day keys have a
	// submission for the user.
	SubmissionDays(ctx context.Context, userID string, keys []string) (map[string]bool, error)
	// SetSubmissionStatus resolves a pending submission. updated is
	// false when the record is missing or no longer pending.
	SetSubmissionStatus(ctx context.Context, id string, status SubmissionStatus) (updated bool, err error)

	InsertLeave(ctx context.Context, l LeaveRequest) (LeaveRequest, error)
	LeaveByID(ctx context.Context, id string) (*LeaveRequest, error)
	ListLeaves(ctx context.Context, userID string) ([]LeaveRequest, error)
	LeavesByMonth(ctx context.Context, userID, month string) ([]LeaveRequest, error)
	SetLeaveStatus(ctx context.Context, id string, status LeaveStatus) (updated bool, err error)

	// InsertBonus writes b unless a grant already exists for
	// (b.UserID, b.WeekStartKey). inserted is false on that collision.
	InsertBonus(ctx context.Context, b BonusGrant) (inserted bool, err error)
	CountBonuses(ctx context.Context, userID string) (int, error)
	ListBonuses(ctx context.Context, userID string) ([]BonusGrant, error)
}
