package account

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/apperr"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/metrics"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/models"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/notify"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/store"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/throttle"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/utils"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/validation"
)

const badCredentials = "invalid email or password"

type AccountService struct {
	store    store.Store
	hasher   utils.PasswordHasher
	tokens   *utils.TokenService
	throttle throttle.Throttle
	notifier notify.Notifier
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewAccountService(st store.Store, hasher utils.PasswordHasher, tokens *utils.TokenService, th throttle.Throttle, n notify.Notifier, log logrus.FieldLogger) *AccountService {
	return &AccountService{
		store:    st,
		hasher:   hasher,
		tokens:   tokens,
		throttle: th,
		notifier: n,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Phone    string `json:"phone" validate:"omitempty,min=8,max=30"`
	Role     string `json:"role" validate:"required,oneof=FREELANCE CLIENT"`
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Role = strings.ToUpper(strings.TrimSpace(in.Role))
	if fields := validation.Struct(in); fields != nil {
		return nil, apperr.Validation(fields)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	u := models.NewUser(in.Name, in.Email, hash, models.Role(in.Role))
	u.Phone = in.Phone
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("email is already registered")
		}
		return nil, apperr.Internal(err)
	}

	s.log.WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role}).Info("user registered")
	if err := s.notifier.Notify(ctx, notify.Event{Type: notify.EmailVerification, UserID: u.ID, Data: map[string]any{
		"email": u.Email, "name": u.Name,
	}}); err != nil {
		s.log.WithError(err).WithField("user_id", u.ID).Warn("verification notification not delivered")
	}
	return u, nil
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// allow counts one attempt against key. A throttle backend failure lets the
// attempt through.
func (s *AccountService) allow(ctx context.Context, key string) bool {
	ok, err := s.throttle.Hit(ctx, key)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("login throttle unavailable")
		return true
	}
	return ok
}

// Login checks credentials and returns the user with a fresh session token.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, in LoginInput, clientIP string) (*models.User, string, error) {
	in.Email = normalizeEmail(in.Email)
	if fields := validation.Struct(in); fields != nil {
		return nil, "", apperr.Validation(fields)
	}

	ipKey, emailKey := "ip:"+clientIP, "email:"+in.Email
	if !s.allow(ctx, ipKey) || !s.allow(ctx, emailKey) {
		metrics.Login("throttled")
		return nil, "", apperr.RateLimited("too many login attempts, try again later")
	}

	u, err := s.store.GetUserByEmail(ctx, in.Email)
	if errors.Is(err, store.ErrNotFound) {
		metrics.Login("failed")
		return nil, "", apperr.Unauthenticated(badCredentials)
	}
	if err != nil {
		return nil, "", apperr.Internal(err)
	}
	if !utils.CheckPassword(u.Password, in.Password) {
		metrics.Login("failed")
		s.log.WithField("user_id", u.ID).Info("login rejected")
		return nil, "", apperr.Unauthenticated(badCredentials)
	}
	if !u.IsActive {
		metrics.Login("inactive")
		return nil, "", apperr.Forbidden("account is deactivated")
	}

	if err := s.throttle.Reset(ctx, emailKey); err != nil {
		s.log.WithError(err).Warn("login throttle not reset")
	}
	return s.session(ctx, u)
}

func (s *AccountService) session(ctx context.Context, u *models.User) (*models.User, string, error) {
	at := s.now()
	if err := s.store.TouchLogin(ctx, u.ID, at); err != nil {
		return nil, "", apperr.Internal(err)
	}
	u.LastLoginAt = &at

	token, err := s.tokens.Issue(u.ID, u.Email, string(u.Role))
	if err != nil {
		return nil, "", apperr.Internal(err)
	}
	metrics.Login("success")
	s.log.WithField("user_id", u.ID).Info("user logged in")
	return u, token, nil
}

func randomSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// LoginWithGoogle signs in the Google account's user, creating a CLIENT on
// first sight. The generated password is never handed out.
func (s *AccountService) LoginWithGoogle(ctx context.Context, email, name string) (*models.User, string, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if !validation.Email(email) {
		return nil, "", apperr.Validation(apperr.FieldErrors{"email": {"must be a valid email address"}})
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if name == "" {
			name = strings.SplitN(email, "@", 2)[0]
		}
		secret, err := randomSecret(24)
		if err != nil {
			return nil, "", apperr.Internal(err)
		}
		hash, err := s.hasher.Hash(secret)
		if err != nil {
			return nil, "", apperr.Internal(err)
		}
		u = models.NewUser(name, email, hash, models.RoleClient)
		u.EmailVerified = true
		if err := s.store.CreateUser(ctx, u); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return nil, "", apperr.Conflict("email is already registered")
			}
			return nil, "", apperr.Internal(err)
		}
		s.log.WithField("user_id", u.ID).Info("user registered with google")
	case err != nil:
		return nil, "", apperr.Internal(err)
	case name != "" && u.Name != name:
		u.Name = name
		if err := s.store.UpdateUser(ctx, u); err != nil {
			s.log.WithError(err).WithField("user_id", u.ID).Warn("google name not synced")
		}
	}

	if !u.IsActive {
		metrics.Login("inactive")
		return nil, "", apperr.Forbidden("account is deactivated")
	}
	return s.session(ctx, u)
}

func (s *AccountService) Me(ctx context.Context, caller models.Caller) (*models.User, error) {
	u, err := s.store.GetUser(ctx, caller.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return u, nil
}

// ProfilePatch carries the identity fields plus the fields of either role
// profile. Fields of the other role are rejected.
type ProfilePatch struct {
	Name  *string `json:"name" validate:"omitempty,max=120"`
	Phone *string `json:"phone" validate:"omitempty,max=30"`

	Title      *string   `json:"title" validate:"omitempty,max=120"`
	Bio        *string   `json:"bio" validate:"omitempty,max=5000"`
	Skills     *[]string `json:"skills" validate:"omitempty,max=30,dive,required,max=50"`
	HourlyRate *int64    `json:"hourly_rate" validate:"omitempty,gte=0"`
	DailyRate  *int64    `json:"daily_rate" validate:"omitempty,gte=0"`

	CompanyName *string `json:"company_name" validate:"omitempty,max=150"`
}

func (p ProfilePatch) freelanceFields() []string {
	var out []string
	if p.Title != nil {
		out = append(out, "title")
	}
	if p.Bio != nil {
		out = append(out, "bio")
	}
	if p.Skills != nil {
		out = append(out, "skills")
	}
	if p.HourlyRate != nil {
		out = append(out, "hourly_rate")
	}
	if p.DailyRate != nil {
		out = append(out, "daily_rate")
	}
	return out
}

func (s *AccountService) UpdateProfile(ctx context.Context, caller models.Caller, patch ProfilePatch) (*models.User, error) {
	fields := validation.Struct(patch)
	if fields == nil {
		fields = apperr.FieldErrors{}
	}
	if caller.Is(models.RoleClient) {
		for _, f := range patch.freelanceFields() {
			fields.Add(f, "is only available to freelances")
		}
	}
	if caller.Is(models.RoleFreelance) && patch.CompanyName != nil {
		fields.Add("company_name", "is only available to clients")
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		fields.Add("name", "is required")
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}

	u, err := s.Me(ctx, caller)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		u.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Phone != nil {
		u.Phone = strings.TrimSpace(*patch.Phone)
	}
	if p, ok := u.Freelance(); ok {
		if patch.Title != nil {
			p.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Bio != nil {
			p.Bio = strings.TrimSpace(*patch.Bio)
		}
		if patch.Skills != nil {
			p.Skills = normalizeSkills(*patch.Skills)
		}
		if patch.HourlyRate != nil {
			p.HourlyRate = *patch.HourlyRate
		}
		if patch.DailyRate != nil {
			p.DailyRate = *patch.DailyRate
		}
	}
	if p, ok := u.Client(); ok && patch.CompanyName != nil {
		p.CompanyName = strings.TrimSpace(*patch.CompanyName)
	}

	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, apperr.Internal(err)
	}
	return s.Me(ctx, caller)
}

func normalizeSkills(in []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func (s *AccountService) Deactivate(ctx context.Context, caller models.Caller) error {
	if err := s.store.SetUserActive(ctx, caller.ID, false); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("user not found")
		}
		return apperr.Internal(err)
	}
	s.log.WithField("user_id", caller.ID).Info("account deactivated")
	return nil
}
