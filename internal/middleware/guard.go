package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/apperr"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/models"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/utils"
)

// CookieName is the session cookie set at login.
const CookieName = "jm_token"

const (
	localUser   = "user"
	localCaller = "caller"
)

type UserLoader interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type Guard struct {
	tokens *utils.TokenService
	users  UserLoader
}

func NewGuard(tokens *utils.TokenService, users UserLoader) *Guard {
	return &Guard{tokens: tokens, users: users}
}

// BearerToken returns the Authorization bearer token, falling back to the
// session cookie.
func BearerToken(c *fiber.Ctx) string {
	h := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		if tok := strings.TrimSpace(h[7:]); tok != "" {
			return tok
		}
	}
	return c.Cookies(CookieName)
}

// ResolveCaller returns the user behind the request's token, or nil when the
// token is absent, invalid or names an unknown user.
func (g *Guard) ResolveCaller(c *fiber.Ctx) *models.User {
	claims := g.tokens.Verify(BearerToken(c))
	if claims == nil {
		return nil
	}
	id, ok := claims.UID()
	if !ok {
		return nil
	}
	u, err := g.users.GetUser(c.UserContext(), id)
	if err != nil {
		return nil
	}
	return u
}

// authenticate stores the active caller in locals.
func (g *Guard) authenticate(c *fiber.Ctx) error {
	if _, ok := CallerFrom(c); ok {
		return nil
	}
	u := g.ResolveCaller(c)
	if u == nil {
		return apperr.Unauthenticated("authentication required")
	}
	if !u.IsActive {
		return apperr.Unauthenticated("account is deactivated")
	}
	c.Locals(localUser, u)
	c.Locals(localCaller, models.Caller{ID: u.ID, Role: u.Role})
	return nil
}

func (g *Guard) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := g.authenticate(c); err != nil {
			return err
		}
		return c.Next()
	}
}

func (g *Guard) RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := g.authenticate(c); err != nil {
			return err
		}
		caller, _ := CallerFrom(c)
		for _, r := range roles {
			if caller.Is(r) {
				return c.Next()
			}
		}
		return apperr.Forbidden("your role cannot perform this action")
	}
}

func CallerFrom(c *fiber.Ctx) (models.Caller, bool) {
	caller, ok := c.Locals(localCaller).(models.Caller)
	return caller, ok
}

func UserFrom(c *fiber.Ctx) *models.User {
	u, _ := c.Locals(localUser).(*models.User)
	return u
}
