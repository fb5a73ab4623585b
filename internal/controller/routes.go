package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"webaudit_backend/internal/middleware"
	"webaudit_backend/pkg/cron"
	"webaudit_backend/pkg/metrics"
	"webaudit_backend/pkg/subscription"
	"webaudit_backend/pkg/utils/jwt"
)

type Repository interface {
	PlanRepository
	ProjectRepository
}

type Dependencies struct {
	Signer       *jwt.Signer
	Entitlements *subscription.Service
	Repository   Repository
	ExpiryJob    *cron.PlanExpiryJob
	CronSecret   string
}

// SetupRoutes initializes the controllers and mounts every route on app.
func SetupRoutes(app *fiber.App, deps Dependencies) {
	InitEntitlementController(deps.Entitlements)
	InitPlanController(deps.Repository)
	InitProjectController(deps.Repository)
	InitCronController(deps.ExpiryJob)

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := app.Group("/api")
	auth := middleware.AuthMiddleware(deps.Signer)

	// Public plan listing
	api.Get("/plans", ListPlans)

	// Entitlements of the signed-in user
	me := api.Group("/me", auth)
	me.Get("/plan", GetMyPlan)
	me.Get("/features/:feature", GetFeatureAccess)
	me.Get("/can-create-project", GetProjectQuota)

	// Audit projects with quota enforcement
	projects := api.Group("/projects", auth)
	projects.Get("/", ListMyProjects)
	projects.Post("/", middleware.CheckProjectLimit(deps.Entitlements), CreateProject)

	// Programmatic access for plans with API access
	v1 := api.Group("/v1", auth, middleware.RequireFeature(deps.Entitlements, subscription.APIAccess))
	v1.Get("/projects", ListMyProjects)

	// Scheduler trigger
	cronRoutes := api.Group("/cron", middleware.RequireCronSecret(deps.CronSecret))
	cronRoutes.Get("/downgrade-expired", RunPlanExpiry)
	cronRoutes.Post("/downgrade-expired", RunPlanExpiry)

	// Plan administration
	admin := api.Group("/admin", auth, middleware.RequireAdmin())
	admin.Post("/plans", CreatePlan)
	admin.Put("/plans/:id", UpdatePlan)
}
