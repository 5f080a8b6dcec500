package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/apperr"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/models"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/mission"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/store"
)

type MissionHandler struct {
	Missions *mission.MissionService
}

func NewMissionHandler(missions *mission.MissionService) *MissionHandler {
	return &MissionHandler{Missions: missions}
}

func queryInt64(c *fiber.Ctx, key string, fields apperr.FieldErrors) *int64 {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		fields.Add(key, "must be a non-negative integer")
		return nil
	}
	return &v
}

func missionQuery(c *fiber.Ctx) (store.MissionQuery, error) {
	fields := apperr.FieldErrors{}
	q := store.MissionQuery{
		Category:  strings.TrimSpace(c.Query("category")),
		Search:    c.Query("q"),
		BudgetMin: queryInt64(c, "budget_min", fields),
		BudgetMax: queryInt64(c, "budget_max", fields),
		Page:      pageFrom(c),
	}
	if raw := c.Query("skills"); raw != "" {
		q.Skills = strings.Split(raw, ",")
	}
	if raw := c.Query("urgent"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			fields.Add("urgent", "must be true or false")
		} else {
			q.Urgent = &v
		}
	}
	if len(fields) > 0 {
		return q, apperr.Validation(fields)
	}
	return q, nil
}

func (h *MissionHandler) List(c *fiber.Ctx) error {
	q, err := missionQuery(c)
	if err != nil {
		return err
	}
	out, total, err := h.Missions.List(c.UserContext(), q)
	if err != nil {
		return err
	}
	return respondPage(c, "", out, q.Page, total)
}

// Mine lists the caller's own missions in any status unless one is requested.
func (h *MissionHandler) Mine(c *fiber.Ctx) error {
	q, err := missionQuery(c)
	if err != nil {
		return err
	}
	cl := caller(c)
	q.ClientID = &cl.ID
	if raw := strings.ToUpper(c.Query("status")); raw != "" {
		s := models.MissionStatus(raw)
		q.Status = &s
	}
	out, total, err := h.Missions.List(c.UserContext(), q)
	if err != nil {
		return err
	}
	return respondPage(c, "", out, q.Page, total)
}

func (h *MissionHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	m, err := h.Missions.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", m)
}

func (h *MissionHandler) Create(c *fiber.Ctx) error {
	var in mission.CreateInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	m, err := h.Missions.Create(c.UserContext(), caller(c), in)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "Mission created", m)
}

func (h *MissionHandler) Update(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var patch mission.Patch
	if err := parseBody(c, &patch); err != nil {
		return err
	}
	m, err := h.Missions.Update(c.UserContext(), caller(c), id, patch)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Mission updated", m)
}

func (h *MissionHandler) Delete(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Missions.Delete(c.UserContext(), caller(c), id); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Mission deleted", nil)
}

func (h *MissionHandler) Apply(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var in mission.ApplyInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	a, err := h.Missions.Apply(c.UserContext(), caller(c), id, in)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "Application submitted", a)
}

func (h *MissionHandler) ListApplications(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	out, err := h.Missions.ListApplications(c.UserContext(), caller(c), id)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", out)
}

func (h *MissionHandler) MyApplications(c *fiber.Ctx) error {
	out, err := h.Missions.MyApplications(c.UserContext(), caller(c))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", out)
}

type assignReq struct {
	FreelanceID string `json:"freelance_id"`
}

func (h *MissionHandler) Assign(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req assignReq
	if err := parseBody(c, &req); err != nil {
		return err
	}
	fid, err := uuid.Parse(strings.TrimSpace(req.FreelanceID))
	if err != nil {
		return apperr.Validation(apperr.FieldErrors{"freelance_id": {"must be a valid id"}})
	}
	m, err := h.Missions.Assign(c.UserContext(), caller(c), id, fid)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Mission assigned", m)
}

func (h *MissionHandler) Complete(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	m, err := h.Missions.Complete(c.UserContext(), caller(c), id)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Mission completed", m)
}
