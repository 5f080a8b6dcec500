package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/metrics"
)

// RequestLogger logs each request and records it in the HTTP metrics. It
// runs after the error handler has set the final status.
func RequestLogger(log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		elapsed := time.Since(start)
		route := c.Route().Path
		if status == fiber.StatusNotFound && route == c.Path() {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Method(), route, status, elapsed)

		entry := log.WithFields(logrus.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"latency_ms": elapsed.Milliseconds(),
			"ip":         c.IP(),
		})
		switch {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request handled")
		}
		return nil
	}
}
