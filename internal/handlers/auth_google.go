package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/apperr"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/account"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type GoogleOAuthHandler struct {
	Auth            *AuthHandler
	Accounts        *account.AccountService
	OAuth           *oauth2.Config
	FrontendBaseURL string
	UserInfoURL     string
}

func NewGoogleOAuthHandler(auth *AuthHandler, clientID, secret, redirect, frontendBaseURL string) *GoogleOAuthHandler {
	return &GoogleOAuthHandler{
		Auth:     auth,
		Accounts: auth.Accounts,
		OAuth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: secret,
			RedirectURL:  redirect,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		FrontendBaseURL: strings.TrimRight(frontendBaseURL, "/"),
		UserInfoURL:     googleUserInfoURL,
	}
}

func randomState(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (h *GoogleOAuthHandler) shortCookie(c *fiber.Ctx, name, value string, maxAge int) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.Auth.SecureCookie,
		SameSite: "Lax",
		MaxAge:   maxAge,
	})
}

func (h *GoogleOAuthHandler) Start(c *fiber.Ctx) error {
	state := randomState(32)
	h.shortCookie(c, "oauth_state", state, 10*60)
	h.shortCookie(c, "oauth_next", c.Query("next", "/"), 10*60)
	return c.Redirect(h.OAuth.AuthCodeURL(state, oauth2.AccessTypeOffline), http.StatusTemporaryRedirect)
}

type googleUserInfo struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func (h *GoogleOAuthHandler) Callback(c *fiber.Ctx) error {
	code, state := c.Query("code"), c.Query("state")
	if code == "" || state == "" {
		return apperr.Validation(apperr.FieldErrors{"code": {"is required"}, "state": {"is required"}})
	}
	if want := c.Cookies("oauth_state"); want == "" || want != state {
		return apperr.Validation(apperr.FieldErrors{"state": {"does not match"}})
	}
	next := c.Cookies("oauth_next")
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = "/"
	}

	ctx := c.UserContext()
	tok, err := h.OAuth.Exchange(ctx, code)
	if err != nil {
		return apperr.Unauthenticated("google sign-in failed")
	}
	resp, err := h.OAuth.Client(ctx, tok).Get(h.UserInfoURL)
	if err != nil {
		return apperr.Internal(err)
	}
	defer resp.Body.Close()

	var gu googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return apperr.Internal(err)
	}

	h.shortCookie(c, "oauth_state", "", -1)
	h.shortCookie(c, "oauth_next", "", -1)

	_, token, err := h.Accounts.LoginWithGoogle(ctx, gu.Email, gu.Name)
	if apperr.KindOf(err) == apperr.KindForbidden {
		return c.Redirect(h.FrontendBaseURL+"/auth/login?err="+url.QueryEscape("account is deactivated"), http.StatusTemporaryRedirect)
	}
	if err != nil {
		return err
	}
	h.Auth.setSession(c, token)
	return c.Redirect(h.FrontendBaseURL+next, http.StatusTemporaryRedirect)
}
