package server

import (
	"ap-tools/core/logger"
	"ap-tools/core/middleware/auth"
	"ap-tools/core/middleware/reqid"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// New builds the Fiber app with the shared middleware stack. Features are
// registered on the returned app by the caller, via the loader.
func New(cfg Config, logg *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true, // we log our own startup message
	})

	// Request id first, so everything downstream can be traced.
	app.Use(reqid.New())

	app.Use(func(c *fiber.Ctx) error {
		l := logger.WithReqID(logg, c)
		l.Info("Request started",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
		)
		err := c.Next()
		if err != nil {
			l.Error("Request error", zap.Error(err))
		}
		return err
	})

	// Liveness stays public so process supervisors can poll it.
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Use(auth.New(auth.Config{ApiKey: cfg.ApiKey}))

	return app
}
