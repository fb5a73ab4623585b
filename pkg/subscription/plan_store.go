package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"

	"webaudit_backend/internal/model"
	"webaudit_backend/pkg/metrics"
)

// Repository is the read side of the user and plan tables. Lookups report
// ErrUserNotFound / ErrPlanNotFound when no row matches, and wrap
// ErrDatabaseUnavailable for transport failures.
type Repository interface {
	FindUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	FindActivePlanByID(ctx context.Context, id uuid.UUID) (*model.Plan, error)
	// FindActivePlanByType returns the earliest created active plan of a type.
	FindActivePlanByType(ctx context.Context, planType PlanType) (*model.Plan, error)
}

// Strategy is one step of the plan fallback chain. Returning ErrPlanNotFound
// hands resolution to the next strategy; any other error stops the chain.
type Strategy struct {
	Name    string
	Resolve func(ctx context.Context, repo Repository, user *model.User) (*model.Plan, error)
}

var (
	ByPlanID = Strategy{
		Name: "plan_id",
		Resolve: func(ctx context.Context, repo Repository, user *model.User) (*model.Plan, error) {
			if user == nil || user.PlanID == nil || *user.PlanID == uuid.Nil {
				return nil, ErrPlanNotFound
			}
			return repo.FindActivePlanByID(ctx, *user.PlanID)
		},
	}

	ByPlanType = Strategy{
		Name: "plan_type",
		Resolve: func(ctx context.Context, repo Repository, user *model.User) (*model.Plan, error) {
			if user == nil {
				return nil, ErrPlanNotFound
			}
			planType, ok := ParsePlanType(user.PlanType)
			if !ok {
				return nil, ErrPlanNotFound
			}
			return repo.FindActivePlanByType(ctx, planType)
		},
	}

	StarterFallback = Strategy{
		Name: "starter",
		Resolve: func(ctx context.Context, repo Repository, _ *model.User) (*model.Plan, error) {
			return repo.FindActivePlanByType(ctx, StarterPlan)
		},
	}
)

// DefaultStrategies is the id -> type -> Starter chain.
func DefaultStrategies() []Strategy {
	return []Strategy{ByPlanID, ByPlanType, StarterFallback}
}

// Resolution is the outcome of ResolvePlan.
type Resolution struct {
	User     *model.User
	Plan     *model.Plan
	Strategy string
}

type PlanStore struct {
	repo       Repository
	strategies []Strategy
	emailFor   func(uuid.UUID) string
}

type PlanStoreOption func(*PlanStore)

// WithStrategies replaces the default fallback chain.
func WithStrategies(strategies ...Strategy) PlanStoreOption {
	return func(s *PlanStore) {
		s.strategies = strategies
	}
}

// WithCreateMissingUser makes ResolvePlan create a Starter user with the email
// produced by emailFor when the user row does not exist.
func WithCreateMissingUser(emailFor func(uuid.UUID) string) PlanStoreOption {
	return func(s *PlanStore) {
		s.emailFor = emailFor
	}
}

func NewPlanStore(repo Repository, opts ...PlanStoreOption) *PlanStore {
	s := &PlanStore{
		repo:       repo,
		strategies: DefaultStrategies(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolvePlan loads the user and walks the strategy chain until one yields an
// active plan. The returned plan is normalized and never shares memory with
// the repository's copy.
func (s *PlanStore) ResolvePlan(ctx context.Context, userID uuid.UUID) (*Resolution, error) {
	user, err := s.repo.FindUser(ctx, userID)
	if errors.Is(err, ErrUserNotFound) && s.emailFor != nil {
		user, err = s.createDefaultUser(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	for _, strategy := range s.strategies {
		plan, err := strategy.Resolve(ctx, s.repo, user)
		if err != nil && !errors.Is(err, ErrPlanNotFound) {
			metrics.PlanResolutions.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("resolve plan for user %s via %s: %w", userID, strategy.Name, err)
		}
		if plan == nil {
			log.Debug().
				Str("user_id", userID.String()).
				Str("strategy", strategy.Name).
				Msg("Plan strategy had no match, falling back")
			continue
		}

		metrics.PlanResolutions.WithLabelValues(strategy.Name).Inc()
		return &Resolution{
			User:     user,
			Plan:     NormalizePlan(plan),
			Strategy: strategy.Name,
		}, nil
	}

	metrics.PlanResolutions.WithLabelValues("none").Inc()
	log.Error().Str("user_id", userID.String()).Msg("No active plan found, Starter plan is missing")
	return nil, ErrNoPlanAvailable
}

// StarterPlan resolves the active Starter plan on its own.
func (s *PlanStore) StarterPlan(ctx context.Context) (*model.Plan, error) {
	plan, err := StarterFallback.Resolve(ctx, s.repo, nil)
	if errors.Is(err, ErrPlanNotFound) || (err == nil && plan == nil) {
		return nil, ErrNoPlanAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("resolve starter plan: %w", err)
	}
	return NormalizePlan(plan), nil
}

func (s *PlanStore) createDefaultUser(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user := &model.User{
		ID:              userID,
		Email:           s.emailFor(userID),
		PlanType:        string(StarterPlan),
		MaxProjects:     DefaultMaxProjects,
		AllowedFeatures: datatypes.JSONSlice[string]{},
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create missing user %s: %w", userID, err)
	}
	log.Warn().Str("user_id", userID.String()).Str("email", user.Email).Msg("Created missing user during plan resolution")
	return user, nil
}

// NormalizePlan returns a copy of plan whose feature list and project limit are
// never nil.
func NormalizePlan(plan *model.Plan) *model.Plan {
	out := *plan
	out.Features = make(datatypes.JSONSlice[string], len(plan.Features))
	copy(out.Features, plan.Features)

	limit := DefaultMaxProjects
	if plan.MaxProjects != nil {
		limit = *plan.MaxProjects
	}
	out.MaxProjects = &limit
	return &out
}
