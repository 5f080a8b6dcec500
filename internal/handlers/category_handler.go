package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/mission"
)

type CategoryHandler struct {
	Missions *mission.MissionService
}

func NewCategoryHandler(missions *mission.MissionService) *CategoryHandler {
	return &CategoryHandler{Missions: missions}
}

// List returns the distinct categories of open missions, for the browse filter.
func (h *CategoryHandler) List(c *fiber.Ctx) error {
	out, err := h.Missions.Categories(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", out)
}
