package controller

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"

	"webaudit_backend/internal/model"
	"webaudit_backend/pkg/subscription"
)

type PlanRepository interface {
	ListPlans(ctx context.Context, activeOnly bool) ([]model.Plan, error)
	FindPlan(ctx context.Context, id uuid.UUID) (*model.Plan, error)
	CreatePlan(ctx context.Context, plan *model.Plan) error
	SavePlan(ctx context.Context, plan *model.Plan) error
}

var planRepo PlanRepository

func InitPlanController(repo PlanRepository) {
	planRepo = repo
}

type PlanInput struct {
	Name         string   `json:"name"`
	PlanType     string   `json:"plan_type"`
	Features     []string `json:"features"`
	MaxProjects  *int     `json:"max_projects"`
	Price        int64    `json:"price"`
	Currency     string   `json:"currency"`
	BillingCycle string   `json:"billing_cycle"`
	IsActive     *bool    `json:"is_active"`
}

func (in *PlanInput) validate() (subscription.PlanType, error) {
	if strings.TrimSpace(in.Name) == "" {
		return "", errors.New("name is required")
	}
	planType, ok := subscription.ParsePlanType(in.PlanType)
	if !ok {
		return "", errors.New("plan_type must be one of Starter, Growth, Scale")
	}
	if err := subscription.ValidateFeatures(in.Features); err != nil {
		return "", err
	}
	if in.MaxProjects != nil && *in.MaxProjects < subscription.UnlimitedProjects {
		return "", errors.New("max_projects must be -1 (unlimited) or a non-negative number")
	}
	if in.Price < 0 {
		return "", errors.New("price must not be negative")
	}
	return planType, nil
}

func (in *PlanInput) apply(plan *model.Plan, planType subscription.PlanType) {
	plan.Name = strings.TrimSpace(in.Name)
	plan.PlanType = string(planType)
	plan.Features = append(datatypes.JSONSlice[string]{}, in.Features...)
	if in.MaxProjects != nil {
		limit := *in.MaxProjects
		plan.MaxProjects = &limit
	} else {
		limit := subscription.DefaultMaxProjects
		plan.MaxProjects = &limit
	}
	plan.Price = in.Price
	plan.Currency = in.Currency
	if plan.Currency == "" {
		plan.Currency = "INR"
	}
	plan.BillingCycle = in.BillingCycle
	plan.IsActive = in.IsActive == nil || *in.IsActive
}

// ListPlans returns the active plans for the pricing page.
func ListPlans(c *fiber.Ctx) error {
	plans, err := planRepo.ListPlans(c.UserContext(), true)
	if err != nil {
		log.Error().Err(err).Msg("Could not fetch plans")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch plans",
		})
	}
	return c.JSON(fiber.Map{
		"plans": plans,
		"total": len(plans),
	})
}

func CreatePlan(c *fiber.Ctx) error {
	input := new(PlanInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}
	planType, err := input.validate()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var plan model.Plan
	input.apply(&plan, planType)
	if err := planRepo.CreatePlan(c.UserContext(), &plan); err != nil {
		log.Error().Err(err).Msg("Could not create plan")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create plan",
		})
	}

	entitlementService.InvalidateAll(c.UserContext())
	log.Info().Str("plan_id", plan.ID.String()).Str("plan_type", plan.PlanType).Msg("Plan created")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Plan created successfully",
		"plan":    plan,
	})
}

func UpdatePlan(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid plan id",
		})
	}

	input := new(PlanInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}
	planType, err := input.validate()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	plan, err := planRepo.FindPlan(c.UserContext(), id)
	if errors.Is(err, subscription.ErrPlanNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Plan not found",
		})
	}
	if err != nil {
		log.Error().Err(err).Msg("Could not fetch plan")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch plan",
		})
	}

	input.apply(plan, planType)
	if err := planRepo.SavePlan(c.UserContext(), plan); err != nil {
		log.Error().Err(err).Msg("Could not update plan")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not update plan",
		})
	}

	entitlementService.InvalidateAll(c.UserContext())
	log.Info().Str("plan_id", plan.ID.String()).Msg("Plan updated")

	return c.JSON(fiber.Map{
		"message": "Plan updated successfully",
		"plan":    plan,
	})
}
