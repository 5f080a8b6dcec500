package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/models"
)

const pgUniqueViolation = "23505"

type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}

// affected maps a conditional write that touched no row to miss.
func affected(res *gorm.DB, miss error) error {
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return miss
	}
	return nil
}

func (s *Gorm) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *Gorm) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Gorm{db: tx})
	})
}

// --- users

func (s *Gorm) CreateUser(ctx context.Context, u *models.User) error {
	if err := s.conn(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("create user: %w", translate(err))
	}
	return nil
}

func (s *Gorm) withProfiles(ctx context.Context) *gorm.DB {
	return s.conn(ctx).Preload("FreelanceProfile").Preload("ClientProfile")
}

func (s *Gorm) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.withProfiles(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Gorm) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.withProfiles(ctx).First(&u, "email = ?", email).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// UpdateUser writes the editable identity fields and the role profile.
func (s *Gorm) UpdateUser(ctx context.Context, u *models.User) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", u.ID).Updates(map[string]any{
			"name":  u.Name,
			"phone": u.Phone,
		})
		if err := affected(res, ErrNotFound); err != nil {
			return err
		}
		switch p := u.Profile().(type) {
		case *models.FreelanceProfile:
			return translate(tx.Model(&models.FreelanceProfile{}).Where("user_id = ?", u.ID).Updates(map[string]any{
				"title":       p.Title,
				"bio":         p.Bio,
				"skills":      pq.StringArray(p.Skills),
				"hourly_rate": p.HourlyRate,
				"daily_rate":  p.DailyRate,
			}).Error)
		case *models.ClientProfile:
			return translate(tx.Model(&models.ClientProfile{}).Where("user_id = ?", u.ID).
				Update("company_name", p.CompanyName).Error)
		}
		return nil
	})
}

func (s *Gorm) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := s.conn(ctx).Model(&models.User{}).Where("id = ?", id).UpdateColumn("last_login_at", at)
	return affected(res, ErrNotFound)
}

func (s *Gorm) SetUserActive(ctx context.Context, id uuid.UUID, active bool) error {
	res := s.conn(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_active", active)
	return affected(res, ErrNotFound)
}

// AddReviewScore folds one score into the running (sum, count) pair and
// recomputes the rating from them in the same statement.
func (s *Gorm) AddReviewScore(ctx context.Context, userID uuid.UUID, score int) error {
	res := s.conn(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
		"rating_sum":    gorm.Expr("rating_sum + ?", score),
		"total_reviews": gorm.Expr("total_reviews + 1"),
		"rating":        gorm.Expr("ROUND((rating_sum + ?)::numeric / (total_reviews + 1), 2)", score),
	})
	return affected(res, ErrNotFound)
}

func (s *Gorm) AddClientSpend(ctx context.Context, userID uuid.UUID, amount int64) error {
	res := s.conn(ctx).Model(&models.ClientProfile{}).Where("user_id = ?", userID).
		UpdateColumn("total_spent", gorm.Expr("total_spent + ?", amount))
	return affected(res, ErrNotFound)
}

func (s *Gorm) IncrementProjectsPublished(ctx context.Context, userID uuid.UUID) error {
	res := s.conn(ctx).Model(&models.ClientProfile{}).Where("user_id = ?", userID).
		UpdateColumn("projects_published", gorm.Expr("projects_published + 1"))
	return affected(res, ErrNotFound)
}

func (s *Gorm) IncrementCompletedProjects(ctx context.Context, userID uuid.UUID) error {
	res := s.conn(ctx).Model(&models.FreelanceProfile{}).Where("user_id = ?", userID).
		UpdateColumn("completed_projects", gorm.Expr("completed_projects + 1"))
	return affected(res, ErrNotFound)
}

// AddBalance moves users.balance by delta; a debit below zero is ErrStale.
func (s *Gorm) AddBalance(ctx context.Context, userID uuid.UUID, delta int64) error {
	q := s.conn(ctx).Model(&models.User{}).Where("id = ?", userID)
	if delta < 0 {
		q = q.Where("balance >= ?", -delta)
	}
	res := q.Update("balance", gorm.Expr("balance + ?", delta))
	return affected(res, ErrStale)
}

func (s *Gorm) CreateWalletTransaction(ctx context.Context, t *models.WalletTransaction) error {
	return translate(s.conn(ctx).Create(t).Error)
}

func (s *Gorm) ListWalletTransactions(ctx context.Context, userID uuid.UUID) ([]models.WalletTransaction, error) {
	var out []models.WalletTransaction
	err := s.conn(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error
	return out, translate(err)
}

// --- missions

func (s *Gorm) CreateMission(ctx context.Context, m *models.Mission) error {
	if err := s.conn(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create mission: %w", translate(err))
	}
	return nil
}

func (s *Gorm) GetMission(ctx context.Context, id uuid.UUID) (*models.Mission, error) {
	var m models.Mission
	if err := s.conn(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *Gorm) LockMission(ctx context.Context, id uuid.UUID) (*models.Mission, error) {
	var m models.Mission
	err := s.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// ListOpenCategories returns the distinct categories of open missions.
func (s *Gorm) ListOpenCategories(ctx context.Context) ([]string, error) {
	var out []string
	err := s.conn(ctx).Model(&models.Mission{}).
		Where("status = ?", models.MissionOpen).
		Distinct("category").
		Order("category").
		Pluck("category", &out).Error
	return out, translate(err)
}

func (s *Gorm) ListMissions(ctx context.Context, q MissionQuery) ([]models.Mission, int64, error) {
	page := q.Page.Normalize()
	tx := s.conn(ctx).Model(&models.Mission{})

	switch {
	case q.Status != nil:
		tx = tx.Where("status = ?", *q.Status)
	case q.ClientID == nil:
		tx = tx.Where("status = ?", models.MissionOpen)
	}
	if q.ClientID != nil {
		tx = tx.Where("client_id = ?", *q.ClientID)
	}
	if q.Category != "" {
		tx = tx.Where("category = ?", q.Category)
	}
	if len(q.Skills) > 0 {
		tx = tx.Where("skills && ?", pq.StringArray(q.Skills))
	}
	if q.BudgetMin != nil {
		tx = tx.Where("budget >= ?", *q.BudgetMin)
	}
	if q.BudgetMax != nil {
		tx = tx.Where("budget <= ?", *q.BudgetMax)
	}
	if q.Urgent != nil {
		tx = tx.Where("is_urgent = ?", *q.Urgent)
	}
	if q.Search != "" {
		p := likePattern(q.Search)
		tx = tx.Where("(title ILIKE ? OR description ILIKE ?)", p, p)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var out []models.Mission
	err := tx.Order("is_urgent DESC").Order("created_at DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return out, total, nil
}

func (s *Gorm) UpdateMission(ctx context.Context, m *models.Mission, expect models.MissionStatus) error {
	res := s.conn(ctx).Model(&models.Mission{}).
		Where("id = ? AND status = ?", m.ID, expect).
		Updates(map[string]any{
			"title":       m.Title,
			"description": m.Description,
			"category":    m.Category,
			"skills":      pq.StringArray(m.Skills),
			"budget":      m.Budget,
			"deadline":    m.Deadline,
			"is_urgent":   m.IsUrgent,
		})
	return affected(res, ErrStale)
}

func (s *Gorm) DeleteMission(ctx context.Context, id uuid.UUID, expect models.MissionStatus) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("mission_id = ?", id).Delete(&models.Application{}).Error; err != nil {
			return translate(err)
		}
		res := tx.Where("id = ? AND status = ?", id, expect).Delete(&models.Mission{})
		return affected(res, ErrStale)
	})
}

func (s *Gorm) IncrementMissionViews(ctx context.Context, id uuid.UUID) error {
	res := s.conn(ctx).Model(&models.Mission{}).Where("id = ?", id).
		UpdateColumn("views_count", gorm.Expr("views_count + 1"))
	return affected(res, ErrNotFound)
}

func (s *Gorm) TransitionMission(ctx context.Context, id uuid.UUID, t MissionTransition) error {
	set := map[string]any{"status": t.To}
	if t.FreelanceID != nil {
		set["freelance_id"] = *t.FreelanceID
	}
	switch t.To {
	case models.MissionInProgress:
		set["assigned_at"] = t.At
	case models.MissionCompleted:
		set["completed_at"] = t.At
	}
	res := s.conn(ctx).Model(&models.Mission{}).
		Where("id = ? AND status = ?", id, t.From).
		Updates(set)
	return affected(res, ErrStale)
}

// --- applications

// CreateApplication inserts under the (mission, freelance) unique index and
// bumps the counter only while the mission is still OPEN.
func (s *Gorm) CreateApplication(ctx context.Context, a *models.Application) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(a).Error; err != nil {
			return translate(err)
		}
		res := tx.Model(&models.Mission{}).
			Where("id = ? AND status = ?", a.MissionID, models.MissionOpen).
			UpdateColumn("applications_count", gorm.Expr("applications_count + 1"))
		return affected(res, ErrStale)
	})
}

func (s *Gorm) ListApplications(ctx context.Context, missionID uuid.UUID) ([]models.Application, error) {
	var out []models.Application
	err := s.conn(ctx).Preload("Freelance").Preload("Freelance.FreelanceProfile").
		Where("mission_id = ?", missionID).Order("created_at DESC").Find(&out).Error
	return out, translate(err)
}

func (s *Gorm) ListFreelanceApplications(ctx context.Context, freelanceID uuid.UUID) ([]models.Application, error) {
	var out []models.Application
	err := s.conn(ctx).Where("freelance_id = ?", freelanceID).Order("created_at DESC").Find(&out).Error
	return out, translate(err)
}

func (s *Gorm) HasApplied(ctx context.Context, missionID, freelanceID uuid.UUID) (bool, error) {
	var n int64
	err := s.conn(ctx).Model(&models.Application{}).
		Where("mission_id = ? AND freelance_id = ?", missionID, freelanceID).
		Count(&n).Error
	return n > 0, translate(err)
}

// --- payments

func (s *Gorm) CreatePayment(ctx context.Context, p *models.Payment) error {
	if err := s.conn(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create payment: %w", translate(err))
	}
	return nil
}

func (s *Gorm) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	if err := s.conn(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *Gorm) GetPaymentByReference(ctx context.Context, ref string) (*models.Payment, error) {
	var p models.Payment
	if err := s.conn(ctx).First(&p, "reference = ?", ref).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *Gorm) ActivePayment(ctx context.Context, missionID uuid.UUID) (*models.Payment, error) {
	return s.activePayment(s.conn(ctx), missionID)
}

func (s *Gorm) activePayment(db *gorm.DB, missionID uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	err := db.
		Where("mission_id = ? AND status IN ?", missionID, []models.PaymentStatus{models.PaymentPending, models.PaymentCompleted}).
		First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *Gorm) LockActivePayment(ctx context.Context, missionID uuid.UUID) (*models.Payment, error) {
	return s.activePayment(s.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), missionID)
}

func (s *Gorm) ListPayments(ctx context.Context, q PaymentQuery) ([]models.Payment, int64, error) {
	page := q.Page.Normalize()
	tx := s.conn(ctx).Model(&models.Payment{}).
		Where("(client_id = ? OR freelance_id = ?)", q.UserID, q.UserID)
	if q.Status != nil {
		tx = tx.Where("status = ?", *q.Status)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}
	var out []models.Payment
	err := tx.Order("created_at DESC").Offset(page.Offset()).Limit(page.Limit).Find(&out).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return out, total, nil
}

// UpdatePayment writes the mutable payment fields if the row is still in from.
func (s *Gorm) UpdatePayment(ctx context.Context, p *models.Payment, from models.PaymentStatus) error {
	res := s.conn(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", p.ID, from).
		Updates(map[string]any{
			"status":         p.Status,
			"reference":      p.Reference,
			"checkout_url":   p.CheckoutURL,
			"failure_reason": p.FailureReason,
			"paid_at":        p.PaidAt,
			"refunded_at":    p.RefundedAt,
			"released_at":    p.ReleasedAt,
		})
	return affected(res, ErrStale)
}

// --- reviews

func (s *Gorm) CreateReview(ctx context.Context, r *models.Review) error {
	return translate(s.conn(ctx).Create(r).Error)
}

func (s *Gorm) ListUserReviews(ctx context.Context, userID uuid.UUID, page Page) ([]models.Review, int64, error) {
	page = page.Normalize()
	tx := s.conn(ctx).Model(&models.Review{}).Where("reviewed_user_id = ?", userID)

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}
	var out []models.Review
	err := tx.Order("created_at DESC").Offset(page.Offset()).Limit(page.Limit).Find(&out).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return out, total, nil
}

// --- messages

func (s *Gorm) CreateMessage(ctx context.Context, m *models.Message) error {
	return translate(s.conn(ctx).Create(m).Error)
}

func (s *Gorm) ListConversation(ctx context.Context, a, b uuid.UUID, page Page) ([]models.Message, error) {
	page = page.Normalize()
	var out []models.Message
	err := s.conn(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Order("created_at DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&out).Error
	return out, translate(err)
}

func (s *Gorm) MarkConversationRead(ctx context.Context, receiverID, senderID uuid.UUID, at time.Time) (int64, error) {
	res := s.conn(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND read_at IS NULL", receiverID, senderID).
		UpdateColumn("read_at", at)
	return res.RowsAffected, translate(res.Error)
}

func (s *Gorm) CountUnread(ctx context.Context, receiverID uuid.UUID) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND read_at IS NULL", receiverID).
		Count(&n).Error
	return n, translate(err)
}
