package tracker

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a mutex-guarded in-memory Store for dev mode and
// tests. It enforces the same uniqueness rules as the SQL schema.
type MemoryStore struct {
	mu          sync.Mutex
	users       map[string]User
	submissions map[string]Submission
	leaves      map[string]LeaveRequest
	bonuses     map[string]BonusGrant
	subKeys     map[string]string // userID+"|"+dateKey -> submission id
	bonusKeys   map[string]bool   // userID+"|"+weekStartKey
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]User),
		submissions: make(map[string]Submission),
		leaves:      make(map[string]LeaveRequest),
		bonuses:     make(map[string]BonusGrant),
		subKeys:     make(map[string]string),
		bonusKeys:   make(map[string]bool),
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) CreateUser(ctx context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.users {
		if strings.EqualFold(ex.Email, u.Email) {
			return User{}, ErrEmailTaken
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleStudent
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *MemoryStore) UserByID(ctx context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MemoryStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) ListStudents(ctx context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []User
	for _, u := range m.users {
		if u.Role == RoleStudent {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *MemoryStore) InsertSubmission(ctx context.Context, s Submission) (Submission, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := s.UserID + "|" + s.DateKey
	if _, exists := m.subKeys[key]; exists {
		return Submission{}, false, nil
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = SubmissionPending
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	m.submissions[s.ID] = s
	m.subKeys[key] = s.ID
	return s, true, nil
}

func (m *MemoryStore) SubmissionByID(ctx context.Context, id string) (*Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) ListSubmissions(ctx context.Context, userID string) ([]Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Submission
	for _, s := range m.submissions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateKey > out[j].DateKey })
	return out, nil
}

func (m *MemoryStore) SubmissionDays(ctx context.Context, userID string, keys []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		if _, ok := m.subKeys[userID+"|"+k]; ok {
			set[k] = true
		}
	}
	return set, nil
}

func (m *MemoryStore) SetSubmissionStatus(ctx context.Context, id string, status SubmissionStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[id]
	if !ok || s.Status != SubmissionPending {
		return false, nil
	}
	s.Status = status
	m.submissions[id] = s
	return true, nil
}

func (m *MemoryStore) InsertLeave(ctx context.Context, l LeaveRequest) (LeaveRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Status == "" {
		l.Status = LeavePending
	}
	if l.RequestedAt.IsZero() {
		l.RequestedAt = time.Now().UTC()
	}
	m.leaves[l.ID] = l
	return l, nil
}

func (m *MemoryStore) LeaveByID(ctx context.Context, id string) (*LeaveRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leaves[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (m *MemoryStore) ListLeaves(ctx context.Context, userID string) ([]LeaveRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LeaveRequest
	for _, l := range m.leaves {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateKey > out[j].DateKey })
	return out, nil
}

func (m *MemoryStore) LeavesByMonth(ctx context.Context, userID, month string) ([]LeaveRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LeaveRequest
	for _, l := range m.leaves {
		if l.UserID == userID && l.Month == month {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateKey > out[j].DateKey })
	return out, nil
}

func (m *MemoryStore) SetLeaveStatus(ctx context.Context, id string, status LeaveStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leaves[id]
	if !ok || l.Status != LeavePending {
		return false, nil
	}
	l.Status = status
	m.leaves[id] = l
	return true, nil
}

func (m *MemoryStore) InsertBonus(ctx context.Context, b BonusGrant) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := b.UserID + "|" + b.WeekStartKey
	if m.bonusKeys[key] {
		return false, nil
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.AwardedAt.IsZero() {
		b.AwardedAt = time.Now().UTC()
	}
	m.bonuses[b.ID] = b
	m.bonusKeys[key] = true
	return true, nil
}

func (m *MemoryStore) CountBonuses(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.bonuses {
		if b.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ListBonuses(ctx context.Context, userID string) ([]BonusGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []BonusGrant
	for _, b := range m.bonuses {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStartKey > out[j].WeekStartKey })
	return out, nil
}
