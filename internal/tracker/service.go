package tracker

import (
	"context"
	"errors"
	"strings"
	"time"

	"leettrack/internal/auth"
	"leettrack/internal/calendar"
	"leettrack/internal/events"
	"leettrack/internal/ledger"
)

// Service holds every tracker operation. All reads that feed the
// fine and balance figures go through the ledger package, so the
// student view, the admin detail, and the admin overview always
// agree.
type Service struct {
	store Store
	feed  events.Feed
	now   func() time.Time
}

// NewService creates a service. feed may be nil when no consumer is
// interested in change events; now may be nil to use the wall clock.
func NewService(store Store, feed events.Feed, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, feed: feed, now: now}
}

// SignUp registers a new account. The user record is created with
// role student; roles are only ever changed out of band.
func (s *Service) SignUp(ctx context.Context, email, password string, name *string) (User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return User{}, errors.New("email and password required")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return User{}, err
	}
	u, err := s.store.CreateUser(ctx, User{
		Email:        email,
		Name:         name,
		Role:         RoleStudent,
		PasswordHash: hash,
	})
	if err != nil {
		return User{}, err
	}
	s.publish(ctx, "users", u.ID, u.ID, "created")
	return u, nil
}

// Authenticate verifies credentials and returns the user record.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, password) {
		return User{}, ErrInvalidCredentials
	}
	return *u, nil
}

// User returns a user record, or ErrNotFound.
func (s *Service) User(ctx context.Context, id string) (User, error) {
	u, err := s.store.UserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if u == nil {
		return User{}, ErrNotFound
	}
	return *u, nil
}

// RecordSubmission writes today's submission for the user and then
// evaluates the bonus week. The insert is conditional on the
// (user, day) key, so a racing duplicate loses cleanly.
func (s *Service) RecordSubmission(ctx context.Context, userID, imageURL string) (Submission, error) {
	if imageURL == "" {
		return Submission{}, errors.New("image url required")
	}
	today := s.now()
	sub, inserted, err := s.store.InsertSubmission(ctx, Submission{
		UserID:   userID,
		DateKey:  calendar.DayKey(today),
		ImageURL: imageURL,
		Status:   SubmissionPending,
	})
	if err != nil {
		return Submission{}, err
	}
	if !inserted {
		return Submission{}, ErrDuplicateSubmission
	}

	if err := s.maybeAwardBonus(ctx, userID, today); err != nil {
		// the submission itself stands; the next submission in the
		// week re-evaluates
		return sub, err
	}
	s.publish(ctx, "submissions", sub.ID, userID, "created")
	return sub, nil
}

// maybeAwardBonus grants one bonus leave when every working day of
// the week containing day has a submission. The grant insert is
// conditional on (user, week-start), so re-evaluation is idempotent.
func (s *Service) maybeAwardBonus(ctx context.Context, userID string, day time.Time) error {
	weekKeys := calendar.WorkingWeekKeys(day)
	have, err := s.store.SubmissionDays(ctx, userID, weekKeys)
	if err != nil {
		return err
	}
	if !ledger.WeekComplete(weekKeys, have) {
		return nil
	}
	grant := BonusGrant{UserID: userID, WeekStartKey: weekKeys[0]}
	inserted, err := s.store.InsertBonus(ctx, grant)
	if err != nil {
		return err
	}
	if inserted {
		s.publish(ctx, "bonuses", grant.ID, userID, "created")
	}
	return nil
}

// Submissions lists the user's submissions, newest day first.
func (s *Service) Submissions(ctx context.Context, userID string) ([]Submission, error) {
	return s.store.ListSubmissions(ctx, userID)
}

// RequestLeave gates and creates a leave request. With skipNextDay
// the target date is auto-selected as tomorrow; otherwise dateKey is
// required as YYYY-MM-DD. The request is rejected without a write
// when the month's approved count has already reached the available
// balance.
func (s *Service) RequestLeave(ctx context.Context, userID, dateKey, reason string, skipNextDay bool) (LeaveRequest, error) {
	if skipNextDay {
		dateKey = calendar.DayKey(calendar.NextDay(s.now()))
	}
	if dateKey == "" {
		return LeaveRequest{}, errors.New("leave date required")
	}
	if _, err := time.Parse("2006-01-02", dateKey); err != nil {
		return LeaveRequest{}, errors.New("leave date must be YYYY-MM-DD")
	}
	month := dateKey[:7]

	approved, err := s.approvedRegularCount(ctx, userID, month)
	if err != nil {
		return LeaveRequest{}, err
	}
	bonuses, err := s.store.CountBonuses(ctx, userID)
	if err != nil {
		return LeaveRequest{}, err
	}
	if approved >= ledger.AvailableLeaves(bonuses, approved) {
		return LeaveRequest{}, ErrNoLeaveBalance
	}

	kind := LeaveRegular
	if skipNextDay {
		kind = LeaveSkipNextDay
	}
	l, err := s.store.InsertLeave(ctx, LeaveRequest{
		UserID:      userID,
		Month:       month,
		DateKey:     dateKey,
		Reason:      reason,
		Status:      LeavePending,
		Kind:        kind,
		SkipNextDay: skipNextDay,
	})
	if err != nil {
		return LeaveRequest{}, err
	}
	s.publish(ctx, "leaves", l.ID, userID, "created")
	return l, nil
}

// Leaves lists the user's leave requests, newest target day first.
func (s *Service) Leaves(ctx context.Context, userID string) ([]LeaveRequest, error) {
	return s.store.ListLeaves(ctx, userID)
}

// ResolveSubmission verifies or rejects a pending submission.
func (s *Service) ResolveSubmission(ctx context.Context, id string, status SubmissionStatus) error {
	if status != SubmissionVerified && status != SubmissionRejected {
		return errors.New("status must be verified or rejected")
	}
	sub, err := s.store.SubmissionByID(ctx, id)
	if err != nil {
		return err
	}
	if sub == nil {
		return ErrNotFound
	}
	updated, err := s.store.SetSubmissionStatus(ctx, id, status)
	if err != nil {
		return err
	}
	if !updated {
		return ErrNotPending
	}
	s.publish(ctx, "submissions", id, sub.UserID, "updated")
	return nil
}

// ResolveLeave approves or rejects a pending leave request.
func (s *Service) ResolveLeave(ctx context.Context, id string, status LeaveStatus) error {
	if status != LeaveApproved && status != LeaveRejected {
		return errors.New("status must be approved or rejected")
	}
	l, err := s.leaveByID(ctx, id)
	if err != nil {
		return err
	}
	updated, err := s.store.SetLeaveStatus(ctx, id, status)
	if err != nil {
		return err
	}
	if !updated {
		return ErrNotPending
	}
	s.publish(ctx, "leaves", id, l.UserID, "updated")
	return nil
}

// Summary is the one set of ledger figures for a student's current
// month: the three UI surfaces all render exactly this.
type Summary struct {
	Month           string `json:"month"`
	Fine            int    `json:"fine"`
	BonusLeaves     int    `json:"bonus_leaves"`
	ApprovedLeaves  int    `json:"approved_leaves"` // regular kind, this month
	AvailableLeaves int    `json:"available_leaves"`
	LastSubmission  string `json:"last_submission,omitempty"`
}

// Summarize computes the fine and leave balance for the user as of
// the service clock.
func (s *Service) Summarize(ctx context.Context, userID string) (Summary, error) {
	now := s.now()
	month := calendar.MonthKey(now)

	subs, err := s.store.ListSubmissions(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	subKeys := make([]string, len(subs))
	for i, sub := range subs {
		subKeys[i] = sub.DateKey
	}
	submitted := ledger.KeySet(subKeys, month)

	leaves, err := s.store.LeavesByMonth(ctx, userID, month)
	if err != nil {
		return Summary{}, err
	}
	exempt := make(map[string]bool)
	approvedRegular := 0
	for _, l := range leaves {
		if l.Status != LeaveApproved {
			continue
		}
		// any approved leave exempts its date from the fine; only
		// regular leaves consume the monthly allotment
		exempt[l.DateKey] = true
		if l.Kind != LeaveSkipNextDay {
			approvedRegular++
		}
	}

	bonuses, err := s.store.CountBonuses(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{
		Month:           month,
		Fine:            ledger.Fine(month, submitted, exempt, now),
		BonusLeaves:     bonuses,
		ApprovedLeaves:  approvedRegular,
		AvailableLeaves: ledger.AvailableLeaves(bonuses, approvedRegular),
	}
	if len(subs) > 0 {
		out.LastSubmission = subs[0].DateKey
	}
	return out, nil
}

// StudentRow is one line of the admin overview.
type StudentRow struct {
	User    User    `json:"user"`
	Summary Summary `json:"summary"`
}

// Overview computes the ledger for every student.
func (s *Service) Overview(ctx context.Context) ([]StudentRow, error) {
	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]StudentRow, 0, len(students))
	for _, u := range students {
		sum, err := s.Summarize(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, StudentRow{User: u, Summary: sum})
	}
	return rows, nil
}

// StudentDetail is the admin view of one student.
type StudentDetail struct {
	User        User           `json:"user"`
	Summary     Summary        `json:"summary"`
	Submissions []Submission   `json:"submissions"`
	Leaves      []LeaveRequest `json:"leaves"`
	Bonuses     []BonusGrant   `json:"bonuses"`
}

// Detail assembles everything the admin sees for one student.
func (s *Service) Detail(ctx context.Context, userID string) (StudentDetail, error) {
	u, err := s.User(ctx, userID)
	if err != nil {
		return StudentDetail{}, err
	}
	sum, err := s.Summarize(ctx, userID)
	if err != nil {
		return StudentDetail{}, err
	}
	subs, err := s.store.ListSubmissions(ctx, userID)
	if err != nil {
		return StudentDetail{}, err
	}
	leaves, err := s.store.ListLeaves(ctx, userID)
	if err != nil {
		return StudentDetail{}, err
	}
	bonuses, err := s.store.ListBonuses(ctx, userID)
	if err != nil {
		return StudentDetail{}, err
	}
	return StudentDetail{User: u, Summary: sum, Submissions: subs, Leaves: leaves, Bonuses: bonuses}, nil
}

func (s *Service) approvedRegularCount(ctx context.Context, userID, month string) (int, error) {
	leaves, err := s.store.LeavesByMonth(ctx, userID, month)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, l := range leaves {
		if l.Status == LeaveApproved && l.Kind != LeaveSkipNextDay {
			n++
		}
	}
	return n, nil
}

func (s *Service) leaveByID(ctx context.Context, id string) (LeaveRequest, error) {
	l, err := s.store.LeaveByID(ctx, id)
	if err != nil {
		return LeaveRequest{}, err
	}
	if l == nil {
		return LeaveRequest{}, ErrNotFound
	}
	return *l, nil
}

func (s *Service) publish(ctx context.Context, collection, id, userID, action string) {
	if s.feed == nil {
		return
	}
	_ = s.feed.Publish(ctx, events.Change{Collection: collection, ID: id, UserID: userID, Action: action})
}
