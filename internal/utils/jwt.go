package utils

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrMissingSecret = errors.New("jwt secret is not configured")

type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// UID returns the user id carried by the token.
func (c *Claims) UID() (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.UserID))
	return id, err == nil
}

type TokenService struct {
	Secret string
	TTL    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{Secret: secret, TTL: ttl, now: time.Now}
}

func (s *TokenService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Issue signs uid/email/role with HS256 and stamps iat and exp.
func (s *TokenService) Issue(userID uuid.UUID, email, role string) (string, error) {
	if s.Secret == "" {
		return "", ErrMissingSecret
	}
	now := s.clock()
	claims := Claims{
		UserID: userID.String(),
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.TTL)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.Secret))
}

// Verify returns nil for any token that is expired, tampered, signed with
// another algorithm or malformed.
func (s *TokenService) Verify(raw string) *Claims {
	if s.Secret == "" || raw == "" {
		return nil
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock),
	)
	if err != nil || !token.Valid {
		return nil
	}
	return claims
}
