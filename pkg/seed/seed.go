package seed

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"webaudit_backend/internal/model"
	"webaudit_backend/pkg/subscription"
)

// SeedPlans creates the default Starter, Growth and Scale plans when no active
// plan of that type exists. Existing rows are never modified.
func SeedPlans(ctx context.Context, db *gorm.DB) (int, error) {
	created := 0
	for _, planType := range []subscription.PlanType{subscription.StarterPlan, subscription.GrowthPlan, subscription.ScalePlan} {
		defaults := subscription.DefaultPlans[planType]
		maxProjects := defaults.MaxProjects

		plan := model.Plan{
			Name:         defaults.Name,
			PlanType:     string(planType),
			Features:     datatypes.JSONSlice[string](subscription.FeatureStrings(defaults.Features)),
			MaxProjects:  &maxProjects,
			Price:        defaults.Price,
			Currency:     "INR",
			BillingCycle: defaults.BillingCycle,
			IsActive:     true,
		}

		var existing int64
		err := db.WithContext(ctx).Model(&model.Plan{}).
			Where("plan_type = ? AND is_active = ?", string(planType), true).
			Count(&existing).Error
		if err != nil {
			return created, fmt.Errorf("check %s plan: %w", planType, err)
		}
		if existing > 0 {
			continue
		}

		if err := db.WithContext(ctx).Create(&plan).Error; err != nil {
			return created, fmt.Errorf("seed %s plan: %w", planType, err)
		}
		created++
		log.Info().Str("plan_type", string(planType)).Msg("Seeded plan")
	}
	return created, nil
}
