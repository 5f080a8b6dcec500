package handlers

import (
	"errors"
	"math"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/apperr"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/middleware"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/models"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/store"
)

func respond(c *fiber.Ctx, status int, message string, data any) error {
	body := fiber.Map{
		"success": true,
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	return c.Status(status).JSON(body)
}

func respondPage(c *fiber.Ctx, message string, data any, page store.Page, total int64) error {
	page = page.Normalize()
	return c.JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
		"meta": fiber.Map{
			"page":        page.Page,
			"limit":       page.Limit,
			"total_items": total,
			"total_pages": int(math.Ceil(float64(total) / float64(page.Limit))),
		},
	})
}

// ErrorHandler renders every error returned by a handler or middleware in the
// response envelope. Internal errors are logged and returned opaque.
func ErrorHandler(log logrus.FieldLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var ferr *fiber.Error
		if errors.As(err, &ferr) {
			return c.Status(ferr.Code).JSON(fiber.Map{
				"success": false,
				"message": ferr.Message,
			})
		}

		e := apperr.As(err)
		if e.Kind == apperr.KindInternal {
			log.WithError(err).WithFields(logrus.Fields{
				"method": c.Method(),
				"path":   c.Path(),
			}).Error("internal error")
		}
		body := fiber.Map{
			"success": false,
			"message": e.Message,
		}
		if len(e.Fields) > 0 {
			body["errors"] = e.Fields
		}
		return c.Status(e.Status()).JSON(body)
	}
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperr.Validation(apperr.FieldErrors{"body": {"is not valid JSON"}})
	}
	return nil
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.NotFound("resource not found")
	}
	return id, nil
}

func pageFrom(c *fiber.Ctx) store.Page {
	return store.Page{Page: c.QueryInt("page", 1), Limit: c.QueryInt("limit", store.DefaultLimit)}.Normalize()
}

// caller is set by the guard on every protected route.
func caller(c *fiber.Ctx) models.Caller {
	cl, _ := middleware.CallerFrom(c)
	return cl
}
