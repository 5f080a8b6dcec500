package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger is a dependency the health check probes.
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	Checks map[string]Pinger
}

func (h *HealthHandler) Healthz(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := fiber.StatusOK
	deps := fiber.Map{}
	for name, ping := range h.Checks {
		if err := ping(ctx); err != nil {
			deps[name] = err.Error()
			status = fiber.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	return c.Status(status).JSON(fiber.Map{
		"success": status == fiber.StatusOK,
		"data":    deps,
	})
}
