package cron

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultPlanExpirySchedule runs the expiry job daily at midnight.
const DefaultPlanExpirySchedule = "0 0 * * *"

// cronLogger routes robfig/cron logging through zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}

// StartPlanExpiryCron runs job on schedule. Overlapping runs are skipped.
func StartPlanExpiryCron(job *PlanExpiryJob, schedule string) (*cron.Cron, error) {
	if schedule == "" {
		schedule = DefaultPlanExpirySchedule
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	_, err := c.AddFunc(schedule, func() {
		if _, err := job.Run(context.Background()); err != nil {
			log.Error().Err(err).Msg("Scheduled plan expiry run failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule plan expiry job %q: %w", schedule, err)
	}

	c.Start()
	log.Info().Str("schedule", schedule).Msg("Plan expiry cron initialized")
	return c, nil
}
