package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"webaudit_backend/pkg/cron"
)

var expiryJob *cron.PlanExpiryJob

func InitCronController(job *cron.PlanExpiryJob) {
	expiryJob = job
}

// RunPlanExpiry is the manual and external-scheduler trigger for the plan
// expiry job.
func RunPlanExpiry(c *fiber.Ctx) error {
	log.Info().Str("ip", c.IP()).Msg("Plan expiry run triggered over HTTP")

	result, err := expiryJob.Run(c.UserContext())
	if err != nil {
		log.Error().Err(err).Msg("Plan expiry run failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Plan expiry run failed",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"result":  result,
	})
}
