// Package tracker implements the attendance tracker domain: daily
// proof-of-work submissions, leave requests, bonus grants, and the
// operations students and admins perform on them.
package tracker

import "time"

// Role of a user. Students submit work; admins verify it and resolve
// leave requests. Roles default to student and are never escalated by
// the application itself.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// SubmissionStatus lifecycle: pending until an admin verifies or
// rejects. A resolved submission never reverts.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionVerified SubmissionStatus = "verified"
	SubmissionRejected SubmissionStatus = "rejected"
)

// LeaveStatus lifecycle mirrors submissions: pending until resolved.
type LeaveStatus string

const (
	LeavePending  LeaveStatus = "pending"
	LeaveApproved LeaveStatus = "approved"
	LeaveRejected LeaveStatus = "rejected"
)

// LeaveKind distinguishes regular leaves, which consume the monthly
// allotment, from skip-next-day leaves, which only exempt a fine.
type LeaveKind string

const (
	LeaveRegular     LeaveKind = "regular"
	LeaveSkipNextDay LeaveKind = "skip-next-day"
)

// User is an account record. Created at sign-up with role student.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         *string   `json:"name,omitempty"`
	Role         Role      `json:"role"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Submission is one day's proof-of-work screenshot. At most one per
// (user, day); the store enforces this with a unique key.
type Submission struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	DateKey   string           `json:"date_key"` // YYYY-MM-DD
	ImageURL  string           `json:"image_url"`
	Status    SubmissionStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// LeaveRequest is a student's request to be exempted on one day.
// Month is always the first 7 characters of DateKey.
type LeaveRequest struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Month       string      `json:"month"`    // YYYY-MM
	DateKey     string      `json:"date_key"` // YYYY-MM-DD
	Reason      string      `json:"reason,omitempty"`
	Status      LeaveStatus `json:"status"`
	Kind        LeaveKind   `json:"kind"`
	SkipNextDay bool        `json:"skip_next_day"`
	RequestedAt time.Time   `json:"requested_at"`
}

// BonusGrant is one extra leave unit awarded for a fully-submitted
// working week. At most one per (user, week-start); never mutated.
type BonusGrant struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	WeekStartKey string    `json:"week_start_key"` // Monday, YYYY-MM-DD
	AwardedAt    time.Time `json:"awarded_at"`
}
