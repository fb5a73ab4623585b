package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"webaudit_backend/pkg/subscription"
)

// ErrorResponse maps entitlement errors to an HTTP status and body. Callers
// must treat every error as a denial.
func ErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, subscription.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	case errors.Is(err, subscription.ErrNoPlanAvailable):
		log.Error().Err(err).Msg("No plan configured")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "No plan information available",
		})
	case errors.Is(err, subscription.ErrDatabaseUnavailable):
		log.Error().Err(err).Msg("Entitlement lookup failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Plan information is temporarily unavailable",
		})
	default:
		log.Error().Err(err).Msg("Unexpected entitlement error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not resolve plan",
		})
	}
}

// RequireFeature rejects requests from users whose plan lacks feature.
func RequireFeature(svc *subscription.Service, feature subscription.Feature) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := CurrentClaims(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		allowed, err := svc.HasAccess(c.UserContext(), claims.UserID, feature)
		if err != nil {
			return ErrorResponse(c, err)
		}
		if !allowed {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "This feature requires a higher plan",
				"feature": feature,
				"upgrade": true,
			})
		}
		return c.Next()
	}
}

// CheckProjectLimit rejects project creation once the plan quota is used up.
// The count and the insert are separate statements, so concurrent requests can
// overshoot the quota; the check is advisory.
func CheckProjectLimit(svc *subscription.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := CurrentClaims(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		quota, err := svc.ProjectQuota(c.UserContext(), claims.UserID)
		if err != nil {
			return ErrorResponse(c, err)
		}
		if !quota.CanCreate {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":         "You have reached your project limit",
				"current_count": quota.ProjectCount,
				"max_limit":     quota.MaxProjects,
				"upgrade":       true,
			})
		}
		return c.Next()
	}
}
