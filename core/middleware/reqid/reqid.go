package reqid

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// New returns a middleware that tags every request with a unique id.
//
// The id is stored in Locals under "request_id" (where logger.WithReqID picks
// it up) and echoed in the X-Request-ID response header.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := uuid.NewString()
		c.Locals("request_id", id)
		c.Set("X-Request-ID", id)
		return c.Next()
	}
}
