package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"webaudit_backend/internal/controller"
	"webaudit_backend/pkg/config"
	"webaudit_backend/pkg/cron"
	"webaudit_backend/pkg/database"
	"webaudit_backend/pkg/logging"
	"webaudit_backend/pkg/seed"
	"webaudit_backend/pkg/subscription"
	"webaudit_backend/pkg/utils/jwt"
)

const tokenTTL = 72 * time.Hour

func newDecisionCache(cfg config.CacheConfig) *subscription.DecisionCache {
	if cfg.RedisURL == "" {
		log.Info().Dur("ttl", cfg.TTL).Msg("Using in-memory entitlement cache")
		return subscription.NewMemoryDecisionCache(cfg.TTL, nil)
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid REDIS_URL")
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("Redis is unreachable, entitlement decisions will not be cached until it recovers")
	}

	log.Info().Str("addr", opts.Addr).Dur("ttl", cfg.TTL).Msg("Using Redis entitlement cache")
	return subscription.NewRedisDecisionCache(client, cfg.RedisPrefix, cfg.TTL)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init(logging.Config{Component: "api"})
		log.Fatal().Err(err).Msg("Could not load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Component: "api"})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	db, err := database.Open(cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not connect to database")
	}
	if err := database.MigrateDatabase(db, database.Models()...); err != nil {
		log.Warn().Err(err).Msg("Migration warning")
	}
	if created, err := seed.SeedPlans(context.Background(), db); err != nil {
		log.Error().Err(err).Msg("Could not seed default plans")
	} else if created > 0 {
		log.Info().Int("created", created).Msg("Seeded default plans")
	}

	repo := database.NewRepository(db)
	plans := subscription.NewPlanStore(repo)
	entitlements := subscription.NewService(plans, repo, newDecisionCache(cfg.Cache))

	expiryJob := cron.NewPlanExpiryJob(repo, plans, cron.WithDowngradeHook(entitlements.InvalidateUser))
	if cfg.Cron.Disabled {
		log.Info().Msg("Plan expiry cron disabled, relying on the HTTP trigger")
	} else {
		scheduler, err := cron.StartPlanExpiryCron(expiryJob, cfg.Cron.PlanExpirySchedule)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not start plan expiry cron")
		}
		defer scheduler.Stop()
	}
	if cfg.Cron.Secret == "" {
		log.Warn().Msg("CRON_SECRET is not set, the HTTP expiry trigger will reject every request")
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New())

	controller.SetupRoutes(app, controller.Dependencies{
		Signer:       jwt.NewSigner(cfg.JWT.Secret, tokenTTL),
		Entitlements: entitlements,
		Repository:   repo,
		ExpiryJob:    expiryJob,
		CronSecret:   cfg.Cron.Secret,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	log.Info().Str("port", cfg.Server.Port).Msg("Server is running")
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}
