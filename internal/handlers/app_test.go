package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/logging"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/middleware"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/notify"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/account"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/gateway"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/message"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/mission"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/payment"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/review"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/wallet"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/store"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/throttle"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/utils"
)

const callbackKey = "callback-private-key"

// fakeProvider hands out sequential references.
type fakeProvider struct {
	mu sync.Mutex
	n  int
}

func (p *fakeProvider) Checkout(_ context.Context, r gateway.CheckoutRequest) (*gateway.Checkout, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	ref := "T-" + r.PaymentID.String()[:8]
	return &gateway.Checkout{Reference: ref, CheckoutURL: "https://pay.example.com/" + ref}, nil
}

type testApp struct {
	app *fiber.App
	st  *store.Memory
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	log := logging.Discard()
	st := store.NewMemory()
	tokens := utils.NewTokenService("handler-secret", time.Hour)

	accounts := account.NewAccountService(st, utils.NewPasswordHasher(bcrypt.MinCost), tokens,
		throttle.NewMemory(5, time.Minute), notify.Nop{}, log)
	payments := payment.NewPaymentService(st, wallet.NewWalletService(), &fakeProvider{}, notify.Nop{}, log,
		payment.Config{FeePercent: 10, Currency: "XOF"})
	missions := mission.NewMissionService(st, payments, notify.Nop{}, log)
	messages := message.NewMessageService(st, notify.Nop{}, log)

	auth := &AuthHandler{Accounts: accounts, TTL: time.Hour}
	app := NewApp(Server{
		Auth:     auth,
		Missions: NewMissionHandler(missions),
		Payments: NewPaymentHandler(payments, &gateway.Client{PrivateKey: callbackKey}, log),
		Reviews:  NewReviewHandler(review.NewReviewService(st, notify.Nop{}, log)),
		Messages: NewMessageHandler(messages),
		Category: NewCategoryHandler(missions),
		Wallet:   NewWalletHandler(wallet.NewLedger(st), accounts, messages),
		Health:   &HealthHandler{Checks: map[string]Pinger{"store": func(context.Context) error { return nil }}},
		Guard:    middleware.NewGuard(tokens, st),
		Log:      log,
	})
	return &testApp{app: app, st: st}
}

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  map[string][]string `json:"errors"`
	Meta    map[string]any      `json:"meta"`
}

func (ta *testApp) do(t *testing.T, method, path, token string, body any, headers ...string) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

type userOut struct {
	ID           string  `json:"id"`
	Role         string  `json:"role"`
	Rating       float64 `json:"rating"`
	TotalReviews int     `json:"total_reviews"`
	Balance      int64   `json:"balance"`
}

func (ta *testApp) signup(t *testing.T, email, role string) (userOut, string) {
	t.Helper()
	status, env := ta.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"name": "User " + role, "email": email, "password": "s3cret-pass", "role": role,
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	status, env = ta.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{"email": email, "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, status, env.Message)
	out := decode[struct {
		User  userOut `json:"user"`
		Token string  `json:"token"`
	}](t, env.Data)
	return out.User, out.Token
}

func sign(body []byte) string {
	h := hmac.New(sha256.New, []byte(callbackKey))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func (ta *testApp) callback(t *testing.T, payload fiber.Map) (int, envelope) {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/payments/callback", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signatureHeader, sign(b))
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func deadline(days int) string {
	return time.Now().UTC().AddDate(0, 0, days).Format("2006-01-02")
}

type idOut struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// register, publish, apply, assign, pay, complete, review.
func TestScenarioFullMission(t *testing.T) {
	ta := newTestApp(t)
	_, ct := ta.signup(t, "client@example.com", "CLIENT")
	f, ft := ta.signup(t, "freelance@example.com", "FREELANCE")

	status, env := ta.do(t, http.MethodPost, "/api/missions", ct, fiber.Map{
		"title": "Landing page", "description": "Marketing landing page", "category": "web",
		"skills": []string{"html", "css"}, "budget": 100000, "deadline": deadline(20),
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	m := decode[idOut](t, env.Data)
	assert.Equal(t, "OPEN", m.Status)

	status, env = ta.do(t, http.MethodPost, "/api/missions/"+m.ID+"/applications", ft, fiber.Map{
		"cover_letter": "I build fast landing pages.", "proposed_budget": 95000, "proposed_deadline": deadline(15),
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	status, env = ta.do(t, http.MethodPost, "/api/missions/"+m.ID+"/assign", ct, fiber.Map{"freelance_id": f.ID})
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.Equal(t, "IN_PROGRESS", decode[idOut](t, env.Data).Status)

	status, env = ta.do(t, http.MethodPost, "/api/missions/"+m.ID+"/payments", ct, fiber.Map{
		"amount": 100000, "method": "WAVE", "phone_number": "+221770000000",
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	p := decode[struct {
		ID              string `json:"id"`
		Reference       string `json:"reference"`
		PlatformFee     int64  `json:"platform_fee"`
		FreelanceAmount int64  `json:"freelance_amount"`
	}](t, env.Data)
	assert.Equal(t, int64(10000), p.PlatformFee)
	assert.Equal(t, int64(90000), p.FreelanceAmount)
	require.NotEmpty(t, p.Reference)

	// a second payment while one is active
	status, _ = ta.do(t, http.MethodPost, "/api/missions/"+m.ID+"/payments", ct, fiber.Map{"amount": 100000, "method": "CARD"})
	assert.Equal(t, http.StatusConflict, status)

	status, env = ta.callback(t, fiber.Map{"reference": p.Reference, "status": "PAID", "paid_at": time.Now().Unix()})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = ta.do(t, http.MethodPost, "/api/missions/"+m.ID+"/complete", ct, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.Equal(t, "COMPLETED", decode[idOut](t, env.Data).Status)

	status, env = ta.do(t, http.MethodPost, "/api/missions/"+m.ID+"/reviews", ct, fiber.Map{
		"reviewed_user_id": f.ID, "score": 5, "comment": "Excellent",
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	status, env = ta.do(t, http.MethodGet, "/api/me", ft, nil)
	require.Equal(t, http.StatusOK, status)
	me := decode[userOut](t, env.Data)
	assert.Equal(t, 5.0, me.Rating)
	assert.Equal(t, 1, me.TotalReviews)
	assert.Equal(t, int64(90000), me.Balance)

	status, env = ta.do(t, http.MethodGet, "/api/users/"+f.ID+"/reviews", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, env.Meta["total_items"])

	status, env = ta.do(t, http.MethodGet, "/api/wallet", ft, nil)
	require.Equal(t, http.StatusOK, status)
	w := decode[struct {
		Balance      int64             `json:"balance"`
		TotalEarned  int64             `json:"total_earned"`
		Transactions []json.RawMessage `json:"transactions"`
	}](t, env.Data)
	assert.Equal(t, int64(90000), w.Balance)
	assert.Equal(t, int64(90000), w.TotalEarned)
	assert.Len(t, w.Transactions, 1)

	status, env = ta.do(t, http.MethodGet, "/api/dashboard", ft, nil)
	require.Equal(t, http.StatusOK, status)
	d := decode[map[string]any](t, env.Data)
	assert.EqualValues(t, 1, d["completed_projects"])
	assert.NotContains(t, d, "projects_published")

	// applying to a completed mission
	_, other := ta.signup(t, "late@example.com", "FREELANCE")
	status, _ = ta.do(t, http.MethodPost, "/api/missions/"+m.ID+"/applications", other, fiber.Map{
		"cover_letter": "Sorry I am late here.", "proposed_budget": 1000, "proposed_deadline": deadline(5),
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAuthErrors(t *testing.T) {
	ta := newTestApp(t)
	ta.signup(t, "client@example.com", "CLIENT")

	status, env := ta.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{"email": "client@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)

	status, env = ta.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{"email": "bad", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Errors, "email")

	status, _ = ta.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"name": "Again", "email": "client@example.com", "password": "s3cret-pass", "role": "CLIENT",
	})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = ta.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = ta.do(t, http.MethodGet, "/api/me", "not.a.token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestLoginSetsCookieAndLogoutClearsIt(t *testing.T) {
	ta := newTestApp(t)
	ta.signup(t, "client@example.com", "CLIENT")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"client@example.com","password":"s3cret-pass"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	var session *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == middleware.CookieName {
			session = ck
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	// the cookie alone authenticates
	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: session.Value})
	resp, err = ta.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	status, _ := ta.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestRoleAndOwnershipChecks(t *testing.T) {
	ta := newTestApp(t)
	_, ct := ta.signup(t, "client@example.com", "CLIENT")
	_, ft := ta.signup(t, "freelance@example.com", "FREELANCE")
	_, ot := ta.signup(t, "other@example.com", "CLIENT")

	body := fiber.Map{"title": "Logo", "description": "A logo", "category": "design", "budget": 5000, "deadline": deadline(10)}
	status, _ := ta.do(t, http.MethodPost, "/api/missions", ft, body)
	assert.Equal(t, http.StatusForbidden, status)

	status, env := ta.do(t, http.MethodPost, "/api/missions", ct, body)
	require.Equal(t, http.StatusCreated, status)
	m := decode[idOut](t, env.Data)

	for _, tok := range []string{ft, ot} {
		status, _ = ta.do(t, http.MethodPatch, "/api/missions/"+m.ID, tok, fiber.Map{"title": "Mine now"})
		assert.Equal(t, http.StatusForbidden, status)
		status, _ = ta.do(t, http.MethodDelete, "/api/missions/"+m.ID, tok, nil)
		assert.Equal(t, http.StatusForbidden, status)
	}

	status, _ = ta.do(t, http.MethodGet, "/api/missions/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = ta.do(t, http.MethodPost, "/api/missions", ct, fiber.Map{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Errors, "budget")
}

func TestMissionListing(t *testing.T) {
	ta := newTestApp(t)
	_, ct := ta.signup(t, "client@example.com", "CLIENT")
	for i, cat := range []string{"web", "web", "design"} {
		status, _ := ta.do(t, http.MethodPost, "/api/missions", ct, fiber.Map{
			"title": "Mission", "description": "Something to do", "category": cat,
			"budget": 1000 * (i + 1), "deadline": deadline(10), "is_urgent": i == 2,
		})
		require.Equal(t, http.StatusCreated, status)
	}

	status, env := ta.do(t, http.MethodGet, "/api/missions?category=web&limit=1", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, env.Meta["total_items"])
	assert.EqualValues(t, 2, env.Meta["total_pages"])

	status, env = ta.do(t, http.MethodGet, "/api/missions", "", nil)
	require.Equal(t, http.StatusOK, status)
	list := decode[[]struct {
		IsUrgent bool `json:"is_urgent"`
	}](t, env.Data)
	require.Len(t, list, 3)
	assert.True(t, list[0].IsUrgent)

	status, env = ta.do(t, http.MethodGet, "/api/missions?budget_min=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Errors, "budget_min")

	status, env = ta.do(t, http.MethodGet, "/api/missions/mine", ct, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, env.Meta["total_items"])

	status, env = ta.do(t, http.MethodGet, "/api/categories", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"design", "web"}, decode[[]string](t, env.Data))
}

func TestPaymentCallbackSignature(t *testing.T) {
	ta := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/callback", strings.NewReader(`{"reference":"T-1","status":"PAID"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signatureHeader, "deadbeef")
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	status, _ := ta.callback(t, fiber.Map{"reference": "unknown", "status": "PAID"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestMessagingRoutes(t *testing.T) {
	ta := newTestApp(t)
	c, ct := ta.signup(t, "client@example.com", "CLIENT")
	f, ft := ta.signup(t, "freelance@example.com", "FREELANCE")

	status, env := ta.do(t, http.MethodPost, "/api/messages", ct, fiber.Map{"receiver_id": f.ID, "content": "Hello"})
	require.Equal(t, http.StatusCreated, status, env.Message)

	status, env = ta.do(t, http.MethodGet, "/api/messages/unread", ft, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, decode[map[string]int](t, env.Data)["unread"])

	status, env = ta.do(t, http.MethodGet, "/api/messages/"+c.ID, ft, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]json.RawMessage](t, env.Data), 1)

	status, env = ta.do(t, http.MethodPatch, "/api/messages/"+c.ID+"/read", ft, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, decode[map[string]int](t, env.Data)["marked"])
}

func TestHealthAndUnknownRoute(t *testing.T) {
	ta := newTestApp(t)

	status, env := ta.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)

	status, env = ta.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)
}
