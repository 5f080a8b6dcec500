package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/message"
)

type MessageHandler struct {
	Messages *message.MessageService
}

func NewMessageHandler(messages *message.MessageService) *MessageHandler {
	return &MessageHandler{Messages: messages}
}

func (h *MessageHandler) Send(c *fiber.Ctx) error {
	var in message.SendInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	m, err := h.Messages.Send(c.UserContext(), caller(c), in)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "Message sent", m)
}

func (h *MessageHandler) Conversation(c *fiber.Ctx) error {
	other, err := paramUUID(c, "userId")
	if err != nil {
		return err
	}
	page := pageFrom(c)
	out, err := h.Messages.Conversation(c.UserContext(), caller(c), other, page)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", out)
}

func (h *MessageHandler) MarkRead(c *fiber.Ctx) error {
	other, err := paramUUID(c, "userId")
	if err != nil {
		return err
	}
	n, err := h.Messages.MarkRead(c.UserContext(), caller(c), other)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{"marked": n})
}

func (h *MessageHandler) Unread(c *fiber.Ctx) error {
	n, err := h.Messages.Unread(c.UserContext(), caller(c))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{"unread": n})
}
