package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Role string

const (
	RoleFreelance Role = "FREELANCE"
	RoleClient    Role = "CLIENT"
)

func (r Role) Valid() bool {
	return r == RoleFreelance || r == RoleClient
}

// internal/models/user.go
type User struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name  string    `gorm:"not null" json:"name"`
	Email string    `gorm:"uniqueIndex;not null" json:"email"`
	Phone string    `gorm:"type:varchar(30)" json:"phone"`

	Password      string `gorm:"not null" json:"-"`
	Role          Role   `gorm:"type:varchar(20);not null;index" json:"role"`
	IsActive      bool   `gorm:"not null" json:"is_active"`
	EmailVerified bool   `gorm:"not null" json:"email_verified"`

	// escrow ledger balance, see services/wallet
	Balance int64 `gorm:"not null" json:"balance"`

	RatingSum    int64   `gorm:"not null" json:"-"`
	TotalReviews int     `gorm:"not null" json:"total_reviews"`
	Rating       float64 `gorm:"type:numeric(3,2);not null" json:"rating"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	FreelanceProfile *FreelanceProfile `gorm:"foreignKey:UserID;references:ID" json:"freelance_profile,omitempty"`
	ClientProfile    *ClientProfile    `gorm:"foreignKey:UserID;references:ID" json:"client_profile,omitempty"`
}

// RoleProfile is the role-specific half of a User. Only *FreelanceProfile and
// *ClientProfile implement it.
type RoleProfile interface {
	role() Role
}

type FreelanceProfile struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"-"`

	Title             string         `gorm:"type:varchar(120)" json:"title"`
	Bio               string         `gorm:"type:text" json:"bio"`
	Skills            pq.StringArray `gorm:"type:text[]" json:"skills"`
	HourlyRate        int64          `json:"hourly_rate"`
	DailyRate         int64          `json:"daily_rate"`
	CompletedProjects int            `gorm:"not null" json:"completed_projects"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (*FreelanceProfile) role() Role { return RoleFreelance }

type ClientProfile struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"-"`

	CompanyName       string `gorm:"type:varchar(150)" json:"company_name"`
	TotalSpent        int64  `gorm:"not null" json:"total_spent"`
	ProjectsPublished int    `gorm:"not null" json:"projects_published"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (*ClientProfile) role() Role { return RoleClient }

// NewUser builds a user of the given role together with the matching empty
// profile, so a freelance never carries client fields and vice versa.
func NewUser(name, email, passwordHash string, role Role) *User {
	u := &User{
		ID:       uuid.New(),
		Name:     name,
		Email:    email,
		Password: passwordHash,
		Role:     role,
		IsActive: true,
	}
	switch role {
	case RoleFreelance:
		u.FreelanceProfile = &FreelanceProfile{ID: uuid.New(), UserID: u.ID, Skills: pq.StringArray{}}
	case RoleClient:
		u.ClientProfile = &ClientProfile{ID: uuid.New(), UserID: u.ID}
	}
	return u
}

// Profile returns the variant matching u.Role, or nil when it was not loaded.
func (u *User) Profile() RoleProfile {
	switch u.Role {
	case RoleFreelance:
		if u.FreelanceProfile != nil {
			return u.FreelanceProfile
		}
	case RoleClient:
		if u.ClientProfile != nil {
			return u.ClientProfile
		}
	}
	return nil
}

func (u *User) Freelance() (*FreelanceProfile, bool) {
	p, ok := u.Profile().(*FreelanceProfile)
	return p, ok
}

func (u *User) Client() (*ClientProfile, bool) {
	p, ok := u.Profile().(*ClientProfile)
	return p, ok
}
