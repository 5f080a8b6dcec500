package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/review"
)

type ReviewHandler struct {
	Reviews *review.ReviewService
}

func NewReviewHandler(reviews *review.ReviewService) *ReviewHandler {
	return &ReviewHandler{Reviews: reviews}
}

func (h *ReviewHandler) Submit(c *fiber.Ctx) error {
	missionID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var in review.SubmitInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	r, err := h.Reviews.Submit(c.UserContext(), caller(c), missionID, in)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "Review submitted", r)
}

func (h *ReviewHandler) ListForUser(c *fiber.Ctx) error {
	userID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	page := pageFrom(c)
	out, total, err := h.Reviews.ListForUser(c.UserContext(), userID, page)
	if err != nil {
		return err
	}
	return respondPage(c, "", out, page, total)
}
