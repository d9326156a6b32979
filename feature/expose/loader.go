package expose

import (
	"github.com/gofiber/fiber/v2"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	proxy   *Proxy
	handler *Handler
}

// NewFeature creates the expose feature around a running proxy.
func NewFeature(proxy *Proxy) *Feature {
	return &Feature{proxy: proxy, handler: NewHandler(proxy)}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "expose"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return true
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
