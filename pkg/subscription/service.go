package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"webaudit_backend/pkg/metrics"
)

type ProjectCounter interface {
	CountProjects(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Service answers entitlement questions for a user: decision cache first, then
// plan resolution and the feature gate.
type Service struct {
	plans    *PlanStore
	projects ProjectCounter
	cache    *DecisionCache
}

// NewService wires the entitlement flow. cache may be nil.
func NewService(plans *PlanStore, projects ProjectCounter, cache *DecisionCache) *Service {
	return &Service{plans: plans, projects: projects, cache: cache}
}

// HasAccess reports whether userID may use feature. Any error denies access and
// is never cached.
func (s *Service) HasAccess(ctx context.Context, userID uuid.UUID, feature Feature) (bool, error) {
	if allowed, ok := s.cache.Get(ctx, feature, userID); ok {
		return allowed, nil
	}

	res, err := s.plans.ResolvePlan(ctx, userID)
	if err != nil {
		metrics.FeatureDecisions.WithLabelValues("error").Inc()
		return false, err
	}

	allowed := HasFeature(res.Plan, feature)
	s.cache.Set(ctx, feature, userID, allowed)

	decision := "deny"
	if allowed {
		decision = "allow"
	}
	metrics.FeatureDecisions.WithLabelValues(decision).Inc()
	log.Debug().
		Str("user_id", userID.String()).
		Str("feature", string(feature)).
		Str("plan_type", res.Plan.PlanType).
		Bool("allowed", allowed).
		Msg("Feature access resolved")
	return allowed, nil
}

type ProjectQuota struct {
	PlanType     string `json:"plan_type"`
	MaxProjects  int    `json:"max_projects"`
	Unlimited    bool   `json:"unlimited"`
	ProjectCount int64  `json:"project_count"`
	CanCreate    bool   `json:"can_create_project"`
}

// ProjectQuota resolves the plan and the current project count. It is not
// cached since the count changes with every created project.
func (s *Service) ProjectQuota(ctx context.Context, userID uuid.UUID) (*ProjectQuota, error) {
	res, err := s.plans.ResolvePlan(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.quotaFor(ctx, userID, res)
}

func (s *Service) quotaFor(ctx context.Context, userID uuid.UUID, res *Resolution) (*ProjectQuota, error) {
	count, err := s.projects.CountProjects(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count projects for user %s: %w", userID, err)
	}
	limit := *res.Plan.MaxProjects
	return &ProjectQuota{
		PlanType:     res.Plan.PlanType,
		MaxProjects:  limit,
		Unlimited:    limit == UnlimitedProjects,
		ProjectCount: count,
		CanCreate:    CanCreateProject(res.Plan, count),
	}, nil
}

// Summary is the entitlement view rendered by the dashboard.
type Summary struct {
	UserID        uuid.UUID     `json:"user_id"`
	PlanID        uuid.UUID     `json:"plan_id"`
	PlanName      string        `json:"plan_name"`
	PlanType      string        `json:"plan_type"`
	Features      []Feature     `json:"features"`
	Quota         *ProjectQuota `json:"quota"`
	PlanExpiresAt *time.Time    `json:"plan_expires_at"`
	BillingCycle  *string       `json:"billing_cycle"`
	ResolvedBy    string        `json:"resolved_by"`
}

func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	res, err := s.plans.ResolvePlan(ctx, userID)
	if err != nil {
		return nil, err
	}
	quota, err := s.quotaFor(ctx, userID, res)
	if err != nil {
		return nil, err
	}
	return &Summary{
		UserID:        res.User.ID,
		PlanID:        res.Plan.ID,
		PlanName:      res.Plan.Name,
		PlanType:      res.Plan.PlanType,
		Features:      AllowedFeatures(res.Plan),
		Quota:         quota,
		PlanExpiresAt: res.User.PlanExpiresAt,
		BillingCycle:  res.User.BillingCycle,
		ResolvedBy:    res.Strategy,
	}, nil
}

func (s *Service) InvalidateUser(ctx context.Context, userID uuid.UUID) {
	s.cache.InvalidateUser(ctx, userID)
}

func (s *Service) InvalidateAll(ctx context.Context) {
	s.cache.Flush(ctx)
}
