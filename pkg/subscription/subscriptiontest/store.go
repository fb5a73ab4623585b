// Package subscriptiontest provides an in-memory store for entitlement tests.
package subscriptiontest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"webaudit_backend/internal/model"
	"webaudit_backend/pkg/subscription"
)

// Store keeps users, plans, project counts and ledger rows in memory. It
// satisfies subscription.Repository, subscription.ProjectCounter and the plan
// expiry job's store. Exported Fail* fields inject errors.
type Store struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*model.User
	plans    []*model.Plan
	projects map[uuid.UUID]int64
	ledger   []model.Payment
	calls    map[string]int

	FailFindUser   error
	FailFindPlan   error
	FailListExpiry error
	FailLedger     error
	FailDowngrade  map[uuid.UUID]error
}

func New() *Store {
	return &Store{
		users:         make(map[uuid.UUID]*model.User),
		projects:      make(map[uuid.UUID]int64),
		calls:         make(map[string]int),
		FailDowngrade: make(map[uuid.UUID]error),
	}
}

// AddUser stores a copy of u, assigning an id when missing.
func (s *Store) AddUser(u model.User) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Email == "" {
		u.Email = u.ID.String() + "@example.com"
	}
	cp := u
	s.users[u.ID] = &cp
	return u
}

// AddPlan stores a copy of p. Plans without CreatedAt are stamped in insertion
// order so that earliest-created tie-breaks are deterministic.
func (s *Store) AddPlan(p model.Plan) model.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(len(s.plans)) * time.Minute)
	}
	cp := p
	s.plans = append(s.plans, &cp)
	return p
}

func (s *Store) SetProjectCount(userID uuid.UUID, n int64) {
	s.mu.Lock()
	s.projects[userID] = n
	s.mu.Unlock()
}

// User returns a snapshot of the stored user.
func (s *Store) User(id uuid.UUID) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, false
	}
	return *u, true
}

func (s *Store) Ledger() []model.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Payment(nil), s.ledger...)
}

// Calls reports how many times the named method ran.
func (s *Store) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *Store) FindUser(_ context.Context, id uuid.UUID) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["FindUser"]++
	if s.FailFindUser != nil {
		return nil, s.FailFindUser
	}
	u, ok := s.users[id]
	if !ok {
		return nil, subscription.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["CreateUser"]++
	if _, exists := s.users[user.ID]; exists {
		return fmt.Errorf("user %s already exists", user.ID)
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *Store) FindActivePlanByID(_ context.Context, id uuid.UUID) (*model.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["FindActivePlanByID"]++
	if s.FailFindPlan != nil {
		return nil, s.FailFindPlan
	}
	for _, p := range s.plans {
		if p.ID == id && p.IsActive {
			cp := *p
			return &cp, nil
		}
	}
	return nil, subscription.ErrPlanNotFound
}

func (s *Store) FindActivePlanByType(_ context.Context, planType subscription.PlanType) (*model.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["FindActivePlanByType"]++
	if s.FailFindPlan != nil {
		return nil, s.FailFindPlan
	}
	var matches []*model.Plan
	for _, p := range s.plans {
		if p.IsActive && p.PlanType == string(planType) {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return nil, subscription.ErrPlanNotFound
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
	cp := *matches[0]
	return &cp, nil
}

func (s *Store) CountProjects(_ context.Context, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["CountProjects"]++
	return s.projects[userID], nil
}

func (s *Store) ListExpiredUsers(_ context.Context, now time.Time) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["ListExpiredUsers"]++
	if s.FailListExpiry != nil {
		return nil, s.FailListExpiry
	}
	var out []model.User
	for _, u := range s.users {
		if expired(u, now) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PlanExpiresAt.Equal(*out[j].PlanExpiresAt) {
			return out[i].PlanExpiresAt.Before(*out[j].PlanExpiresAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func expired(u *model.User, now time.Time) bool {
	return !strings.EqualFold(u.PlanType, string(subscription.StarterPlan)) &&
		u.PlanExpiresAt != nil && u.PlanExpiresAt.Before(now)
}

// SetExpiry changes a stored user's expiry, as a renewal would.
func (s *Store) SetExpiry(id uuid.UUID, expiresAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.PlanExpiresAt = expiresAt
	}
}

func (s *Store) DowngradeUser(_ context.Context, userID uuid.UUID, plan *model.Plan, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["DowngradeUser"]++
	if err := s.FailDowngrade[userID]; err != nil {
		return err
	}
	u, ok := s.users[userID]
	if !ok {
		return subscription.ErrUserNotFound
	}
	if !expired(u, now) {
		return subscription.ErrNoLongerExpired
	}
	planID := plan.ID
	u.PlanType = plan.PlanType
	u.PlanID = &planID
	u.MaxProjects = subscription.DefaultMaxProjects
	if plan.MaxProjects != nil {
		u.MaxProjects = *plan.MaxProjects
	}
	u.AllowedFeatures = append(datatypes.JSONSlice[string]{}, plan.Features...)
	u.BillingCycle = nil
	u.PlanExpiresAt = nil
	return nil
}

func (s *Store) CreateLedgerEntry(_ context.Context, entry *model.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["CreateLedgerEntry"]++
	if s.FailLedger != nil {
		return s.FailLedger
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	s.ledger = append(s.ledger, *entry)
	return nil
}
