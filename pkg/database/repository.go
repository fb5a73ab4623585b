package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"webaudit_backend/internal/model"
	"webaudit_backend/pkg/subscription"
)

var ErrInvalidPaymentKind = errors.New("invalid payment kind")

// Repository implements the entitlement, expiry and project stores on gorm.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// translate maps gorm errors onto the subscription error kinds.
func translate(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	default:
		return fmt.Errorf("%w: %v", subscription.ErrDatabaseUnavailable, err)
	}
}

func (r *Repository) FindUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err, subscription.ErrUserNotFound)
	}
	return &user, nil
}

func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error, nil)
}

func (r *Repository) FindActivePlanByID(ctx context.Context, id uuid.UUID) (*model.Plan, error) {
	var plan model.Plan
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&plan).Error
	if err != nil {
		return nil, translate(err, subscription.ErrPlanNotFound)
	}
	return &plan, nil
}

func (r *Repository) FindActivePlanByType(ctx context.Context, planType subscription.PlanType) (*model.Plan, error) {
	var plan model.Plan
	err := r.db.WithContext(ctx).
		Where("plan_type = ? AND is_active = ?", string(planType), true).
		Order("created_at ASC").
		First(&plan).Error
	if err != nil {
		return nil, translate(err, subscription.ErrPlanNotFound)
	}
	return &plan, nil
}

func (r *Repository) CountProjects(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Project{}).Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return 0, translate(err, nil)
	}
	return count, nil
}

// expiredPlan is the expiry selection predicate. Plan types compare
// case-insensitively, matching subscription.ParsePlanType.
const expiredPlan = "LOWER(plan_type) <> LOWER(?) AND plan_expires_at IS NOT NULL AND plan_expires_at < ?"

func (r *Repository) ListExpiredUsers(ctx context.Context, now time.Time) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where(expiredPlan, string(subscription.StarterPlan), now.UTC()).
		Order("plan_expires_at ASC").
		Find(&users).Error
	if err != nil {
		return nil, translate(err, nil)
	}
	return users, nil
}

// DowngradeUser copies the plan's entitlements onto the user row and clears
// the billing cycle and expiry. The row is only updated while it still matches
// the expiry predicate at now; otherwise ErrNoLongerExpired is returned.
func (r *Repository) DowngradeUser(ctx context.Context, userID uuid.UUID, plan *model.Plan, now time.Time) error {
	maxProjects := subscription.DefaultMaxProjects
	if plan.MaxProjects != nil {
		maxProjects = *plan.MaxProjects
	}
	features := datatypes.JSONSlice[string]{}
	features = append(features, plan.Features...)

	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Where(expiredPlan, string(subscription.StarterPlan), now.UTC()).
		Updates(map[string]interface{}{
			"plan_type":        plan.PlanType,
			"plan_id":          plan.ID,
			"max_projects":     maxProjects,
			"allowed_features": features,
			"billing_cycle":    nil,
			"plan_expires_at":  nil,
		})
	if res.Error != nil {
		return translate(res.Error, nil)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var exists int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Count(&exists).Error; err != nil {
		return translate(err, nil)
	}
	if exists == 0 {
		return subscription.ErrUserNotFound
	}
	return subscription.ErrNoLongerExpired
}

// CreateLedgerEntry appends a ledger row. Unknown kinds are rejected before
// reaching the database.
func (r *Repository) CreateLedgerEntry(ctx context.Context, entry *model.Payment) error {
	if !model.ValidPaymentKind(entry.Kind) {
		return fmt.Errorf("%w: %q", ErrInvalidPaymentKind, entry.Kind)
	}
	return translate(r.db.WithContext(ctx).Create(entry).Error, nil)
}

func (r *Repository) ListLedgerEntries(ctx context.Context, userID uuid.UUID) ([]model.Payment, error) {
	var entries []model.Payment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, translate(err, nil)
	}
	return entries, nil
}

func (r *Repository) ListPlans(ctx context.Context, activeOnly bool) ([]model.Plan, error) {
	var plans []model.Plan
	q := r.db.WithContext(ctx).Order("price ASC, created_at ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&plans).Error; err != nil {
		return nil, translate(err, nil)
	}
	return plans, nil
}

func (r *Repository) FindPlan(ctx context.Context, id uuid.UUID) (*model.Plan, error) {
	var plan model.Plan
	if err := r.db.WithContext(ctx).First(&plan, "id = ?", id).Error; err != nil {
		return nil, translate(err, subscription.ErrPlanNotFound)
	}
	return &plan, nil
}

func (r *Repository) CreatePlan(ctx context.Context, plan *model.Plan) error {
	return translate(r.db.WithContext(ctx).Create(plan).Error, nil)
}

func (r *Repository) SavePlan(ctx context.Context, plan *model.Plan) error {
	return translate(r.db.WithContext(ctx).Save(plan).Error, nil)
}

func (r *Repository) CreateProject(ctx context.Context, project *model.Project) error {
	return translate(r.db.WithContext(ctx).Create(project).Error, nil)
}

func (r *Repository) ListProjects(ctx context.Context, userID uuid.UUID) ([]model.Project, error) {
	var projects []model.Project
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&projects).Error
	if err != nil {
		return nil, translate(err, nil)
	}
	return projects, nil
}
