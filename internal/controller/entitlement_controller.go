package controller

import (
	"github.com/gofiber/fiber/v2"

	"webaudit_backend/internal/middleware"
	"webaudit_backend/pkg/subscription"
)

var entitlementService *subscription.Service

func InitEntitlementController(svc *subscription.Service) {
	entitlementService = svc
}

// GetMyPlan returns the resolved plan, feature list and project quota.
func GetMyPlan(c *fiber.Ctx) error {
	claims, _ := middleware.CurrentClaims(c)

	summary, err := entitlementService.Summary(c.UserContext(), claims.UserID)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.JSON(summary)
}

// GetFeatureAccess answers whether the current user may use :feature.
func GetFeatureAccess(c *fiber.Ctx) error {
	claims, _ := middleware.CurrentClaims(c)
	feature := subscription.Feature(c.Params("feature"))

	allowed, err := entitlementService.HasAccess(c.UserContext(), claims.UserID, feature)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"feature":    feature,
		"has_access": allowed,
	})
}

func GetProjectQuota(c *fiber.Ctx) error {
	claims, _ := middleware.CurrentClaims(c)

	quota, err := entitlementService.ProjectQuota(c.UserContext(), claims.UserID)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return c.JSON(quota)
}
