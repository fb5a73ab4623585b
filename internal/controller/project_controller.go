package controller

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"webaudit_backend/internal/middleware"
	"webaudit_backend/internal/model"
	"webaudit_backend/pkg/utils/validation"
)

type ProjectRepository interface {
	CreateProject(ctx context.Context, project *model.Project) error
	ListProjects(ctx context.Context, userID uuid.UUID) ([]model.Project, error)
}

var projectRepo ProjectRepository

func InitProjectController(repo ProjectRepository) {
	projectRepo = repo
}

type ProjectInput struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func ListMyProjects(c *fiber.Ctx) error {
	claims, _ := middleware.CurrentClaims(c)

	projects, err := projectRepo.ListProjects(c.UserContext(), claims.UserID)
	if err != nil {
		log.Error().Err(err).Msg("Could not fetch projects")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch projects",
		})
	}
	return c.JSON(fiber.Map{
		"projects": projects,
		"total":    len(projects),
	})
}

// CreateProject runs behind CheckProjectLimit, which enforces the plan quota.
func CreateProject(c *fiber.Ctx) error {
	claims, _ := middleware.CurrentClaims(c)

	input := new(ProjectInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	name, site, err := validation.ValidateProject(input.Name, input.URL)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	project := model.Project{
		UserID: claims.UserID,
		Name:   name,
		URL:    site,
	}
	if err := projectRepo.CreateProject(c.UserContext(), &project); err != nil {
		log.Error().Err(err).Msg("Could not create project")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create project",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Project created successfully",
		"project": project,
	})
}
