package worlds

import (
	"strings"

	"ap-tools/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for the world listing.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the worlds routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/worlds")
	group.Get("/", h.HandleList)
}

// HandleList returns the world listing as JSON. The optional ?names= query
// parameter narrows the listing, comma separated.
func (h *Handler) HandleList(c *fiber.Ctx) error {
	l := logger.WithReqID(h.service.logger, c)
	l.Info("Listing worlds")

	var names []string
	if raw := c.Query("names"); raw != "" {
		names = strings.Split(raw, ",")
	}

	rows, err := h.service.Rows(names)
	if err != nil {
		if strings.Contains(err.Error(), "not found in config") {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		l.Error("Failed to build world listing", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(rows)
}
