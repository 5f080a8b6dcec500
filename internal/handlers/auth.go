package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/middleware"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/account"
)

type AuthHandler struct {
	Accounts     *account.AccountService
	TTL          time.Duration
	SecureCookie bool
}

func (h *AuthHandler) setSession(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.SecureCookie,
		SameSite: "Lax",
		MaxAge:   int(h.TTL.Seconds()),
	})
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var in account.RegisterInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	u, err := h.Accounts.Register(c.UserContext(), in)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "Registration successful", fiber.Map{"user": u})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in account.LoginInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	u, token, err := h.Accounts.Login(c.UserContext(), in, c.IP())
	if err != nil {
		return err
	}
	h.setSession(c, token)
	return respond(c, fiber.StatusOK, "Login successful", fiber.Map{"user": u, "token": token})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.SecureCookie,
		SameSite: "Lax",
	})
	return respond(c, fiber.StatusOK, "Logout successful", nil)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	u, err := h.Accounts.Me(c.UserContext(), caller(c))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", u)
}

func (h *AuthHandler) UpdateMe(c *fiber.Ctx) error {
	var patch account.ProfilePatch
	if err := parseBody(c, &patch); err != nil {
		return err
	}
	u, err := h.Accounts.UpdateProfile(c.UserContext(), caller(c), patch)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Profile updated", u)
}

func (h *AuthHandler) DeleteMe(c *fiber.Ctx) error {
	if err := h.Accounts.Deactivate(c.UserContext(), caller(c)); err != nil {
		return err
	}
	return h.Logout(c)
}
