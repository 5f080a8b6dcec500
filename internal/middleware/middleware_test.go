package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/apperr"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/logging"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/models"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/store"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/utils"
)

func statusOnly(c *fiber.Ctx, err error) error {
	return c.SendStatus(apperr.As(err).Status())
}

type guardFixture struct {
	app       *fiber.App
	tokens    *utils.TokenService
	client    *models.User
	freelance *models.User
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()
	st := store.NewMemory()
	tokens := utils.NewTokenService("guard-secret", time.Hour)
	c := models.NewUser("Client", "c@example.com", "h", models.RoleClient)
	f := models.NewUser("Freelance", "f@example.com", "h", models.RoleFreelance)
	require.NoError(t, st.CreateUser(context.Background(), c))
	require.NoError(t, st.CreateUser(context.Background(), f))

	g := NewGuard(tokens, st)
	app := fiber.New(fiber.Config{ErrorHandler: statusOnly})
	app.Get("/who", g.RequireAuth(), func(c *fiber.Ctx) error {
		caller, ok := CallerFrom(c)
		require.True(t, ok)
		require.NotNil(t, UserFrom(c))
		return c.SendString(caller.ID.String())
	})
	app.Get("/clients", g.RequireRole(models.RoleClient), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	app.Get("/deactivate/:id", func(c *fiber.Ctx) error {
		id := uuid.MustParse(c.Params("id"))
		return st.SetUserActive(c.UserContext(), id, false)
	})
	return &guardFixture{app: app, tokens: tokens, client: c, freelance: f}
}

func (fx *guardFixture) token(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := fx.tokens.Issue(u.ID, u.Email, string(u.Role))
	require.NoError(t, err)
	return tok
}

func (fx *guardFixture) get(t *testing.T, path string, mutate func(*http.Request)) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if mutate != nil {
		mutate(req)
	}
	resp, err := fx.app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode
}

func bearer(tok string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func TestRequireAuth(t *testing.T) {
	fx := newGuardFixture(t)

	assert.Equal(t, http.StatusUnauthorized, fx.get(t, "/who", nil))
	assert.Equal(t, http.StatusUnauthorized, fx.get(t, "/who", bearer("garbage")))
	assert.Equal(t, http.StatusOK, fx.get(t, "/who", bearer(fx.token(t, fx.client))))

	cookie := func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: CookieName, Value: fx.token(t, fx.freelance)})
	}
	assert.Equal(t, http.StatusOK, fx.get(t, "/who", cookie))

	// token for a user that does not exist
	ghost := models.NewUser("Ghost", "g@example.com", "h", models.RoleClient)
	assert.Equal(t, http.StatusUnauthorized, fx.get(t, "/who", bearer(fx.token(t, ghost))))
}

func TestHeaderWinsOverCookie(t *testing.T) {
	fx := newGuardFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("Authorization", "Bearer "+fx.token(t, fx.client))
	req.AddCookie(&http.Cookie{Name: CookieName, Value: fx.token(t, fx.freelance)})

	resp, err := fx.app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, fx.client.ID.String(), string(body))
}

func TestRequireRole(t *testing.T) {
	fx := newGuardFixture(t)

	assert.Equal(t, http.StatusUnauthorized, fx.get(t, "/clients", nil))
	assert.Equal(t, http.StatusForbidden, fx.get(t, "/clients", bearer(fx.token(t, fx.freelance))))
	assert.Equal(t, http.StatusNoContent, fx.get(t, "/clients", bearer(fx.token(t, fx.client))))
}

func TestInactiveUserRejected(t *testing.T) {
	fx := newGuardFixture(t)
	tok := fx.token(t, fx.client)

	fx.get(t, "/deactivate/"+fx.client.ID.String(), nil)
	assert.Equal(t, http.StatusUnauthorized, fx.get(t, "/who", bearer(tok)))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2, logging.Discard())
	app := fiber.New(fiber.Config{ErrorHandler: statusOnly})
	app.Use(rl.Handler())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	var codes []int
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	rl.Cleanup()
	assert.Len(t, rl.limiters, 1)
}

func TestRequestLoggerRendersErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: statusOnly})
	app.Use(RequestLogger(logging.Discard()))
	app.Get("/boom", func(c *fiber.Ctx) error { return apperr.Conflict("taken") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
