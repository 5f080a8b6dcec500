// Package store is the system of record for users, missions, applications,
// payments, reviews and messages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/models"
)

var (
	ErrNotFound  = errors.New("store: record not found")
	ErrDuplicate = errors.New("store: duplicate key")
	// ErrStale means a conditional write found the row in another state.
	ErrStale = errors.New("store: stale state")
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Page struct {
	Page  int
	Limit int
}

// Normalize clamps page to >= 1 and limit to [1, MaxLimit], defaulting to DefaultLimit.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// MissionQuery is the filter set of the public mission listing.
// Without ClientID and Status only OPEN missions are returned.
type MissionQuery struct {
	Category  string
	Skills    []string // any-of
	BudgetMin *int64
	BudgetMax *int64
	Urgent    *bool
	Search    string
	ClientID  *uuid.UUID
	Status    *models.MissionStatus
	Page      Page
}

type PaymentQuery struct {
	UserID uuid.UUID // client or freelance side
	Status *models.PaymentStatus
	Page   Page
}

type MissionTransition struct {
	From        models.MissionStatus
	To          models.MissionStatus
	FreelanceID *uuid.UUID
	At          time.Time
}

type Store interface {
	// WithTx runs fn against a transactional view. Any error rolls back.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	SetUserActive(ctx context.Context, id uuid.UUID, active bool) error
	AddReviewScore(ctx context.Context, userID uuid.UUID, score int) error
	AddClientSpend(ctx context.Context, userID uuid.UUID, amount int64) error
	IncrementProjectsPublished(ctx context.Context, userID uuid.UUID) error
	IncrementCompletedProjects(ctx context.Context, userID uuid.UUID) error
	AddBalance(ctx context.Context, userID uuid.UUID, delta int64) error
	CreateWalletTransaction(ctx context.Context, t *models.WalletTransaction) error
	ListWalletTransactions(ctx context.Context, userID uuid.UUID) ([]models.WalletTransaction, error)

	CreateMission(ctx context.Context, m *models.Mission) error
	GetMission(ctx context.Context, id uuid.UUID) (*models.Mission, error)
	// LockMission reads the mission and holds its row lock until the
	// surrounding transaction ends. Mission locks are taken before payment locks.
	LockMission(ctx context.Context, id uuid.UUID) (*models.Mission, error)
	ListMissions(ctx context.Context, q MissionQuery) ([]models.Mission, int64, error)
	UpdateMission(ctx context.Context, m *models.Mission, expect models.MissionStatus) error
	DeleteMission(ctx context.Context, id uuid.UUID, expect models.MissionStatus) error
	IncrementMissionViews(ctx context.Context, id uuid.UUID) error
	ListOpenCategories(ctx context.Context) ([]string, error)
	TransitionMission(ctx context.Context, id uuid.UUID, t MissionTransition) error

	CreateApplication(ctx context.Context, a *models.Application) error
	ListApplications(ctx context.Context, missionID uuid.UUID) ([]models.Application, error)
	ListFreelanceApplications(ctx context.Context, freelanceID uuid.UUID) ([]models.Application, error)
	HasApplied(ctx context.Context, missionID, freelanceID uuid.UUID) (bool, error)

	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetPaymentByReference(ctx context.Context, ref string) (*models.Payment, error)
	ActivePayment(ctx context.Context, missionID uuid.UUID) (*models.Payment, error)
	LockActivePayment(ctx context.Context, missionID uuid.UUID) (*models.Payment, error)
	ListPayments(ctx context.Context, q PaymentQuery) ([]models.Payment, int64, error)
	UpdatePayment(ctx context.Context, p *models.Payment, from models.PaymentStatus) error

	CreateReview(ctx context.Context, r *models.Review) error
	ListUserReviews(ctx context.Context, userID uuid.UUID, page Page) ([]models.Review, int64, error)

	CreateMessage(ctx context.Context, m *models.Message) error
	ListConversation(ctx context.Context, a, b uuid.UUID, page Page) ([]models.Message, error)
	MarkConversationRead(ctx context.Context, receiverID, senderID uuid.UUID, at time.Time) (int64, error)
	CountUnread(ctx context.Context, receiverID uuid.UUID) (int64, error)
}
