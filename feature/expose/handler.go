package expose

import (
	"ap-tools/core/logger"

	"github.com/gofiber/fiber/v2"
)

// Handler serves the proxy's status over the status API.
type Handler struct {
	proxy *Proxy
}

// NewHandler creates a new HTTP handler.
func NewHandler(proxy *Proxy) *Handler {
	return &Handler{proxy: proxy}
}

// RegisterRoutes registers the expose routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Get("/status", h.HandleStatus)
}

// HandleStatus returns uptime and per-listener connection counts.
func (h *Handler) HandleStatus(c *fiber.Ctx) error {
	logger.WithReqID(h.proxy.logger, c).Debug("Reporting proxy status")
	return c.JSON(h.proxy.Status())
}
