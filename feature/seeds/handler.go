package seeds

import (
	"ap-tools/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for the seed archive.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the seeds routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/seeds")
	group.Get("/", h.HandleList)
}

// HandleList returns the archived seeds as JSON.
func (h *Handler) HandleList(c *fiber.Ctx) error {
	l := logger.WithReqID(h.service.logger, c)
	l.Info("Listing seeds")

	seeds, err := h.service.List(c.Context())
	if err != nil {
		l.Error("Failed to list seeds", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if seeds == nil {
		seeds = []Seed{}
	}
	return c.JSON(seeds)
}
