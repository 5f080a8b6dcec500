package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/models"
)

// Memory is an in-process Store. All access is serialized by one mutex and
// WithTx restores a snapshot when fn fails.
type Memory struct {
	mu   *sync.Mutex
	data *memData
	inTx bool
}

type memData struct {
	users        map[uuid.UUID]*models.User
	emails       map[string]uuid.UUID
	missions     map[uuid.UUID]*models.Mission
	missionOrder []uuid.UUID
	applications []models.Application
	payments     []models.Payment
	reviews      []models.Review
	messages     []models.Message
	wallet       []models.WalletTransaction
}

func NewMemory() *Memory {
	return &Memory{
		mu: &sync.Mutex{},
		data: &memData{
			users:    map[uuid.UUID]*models.User{},
			emails:   map[string]uuid.UUID{},
			missions: map[uuid.UUID]*models.Mission{},
		},
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		users:        make(map[uuid.UUID]*models.User, len(d.users)),
		emails:       make(map[string]uuid.UUID, len(d.emails)),
		missions:     make(map[uuid.UUID]*models.Mission, len(d.missions)),
		missionOrder: append([]uuid.UUID(nil), d.missionOrder...),
		applications: append([]models.Application(nil), d.applications...),
		payments:     append([]models.Payment(nil), d.payments...),
		reviews:      append([]models.Review(nil), d.reviews...),
		messages:     append([]models.Message(nil), d.messages...),
		wallet:       append([]models.WalletTransaction(nil), d.wallet...),
	}
	for id, u := range d.users {
		c.users[id] = copyUser(u)
	}
	for k, v := range d.emails {
		c.emails[k] = v
	}
	for id, m := range d.missions {
		c.missions[id] = copyMission(m)
	}
	return c
}

func copyUser(u *models.User) *models.User {
	out := *u
	if u.FreelanceProfile != nil {
		p := *u.FreelanceProfile
		p.Skills = append(pq.StringArray{}, u.FreelanceProfile.Skills...)
		out.FreelanceProfile = &p
	}
	if u.ClientProfile != nil {
		p := *u.ClientProfile
		out.ClientProfile = &p
	}
	return &out
}

func copyMission(m *models.Mission) *models.Mission {
	out := *m
	out.Skills = append(pq.StringArray{}, m.Skills...)
	if m.FreelanceID != nil {
		id := *m.FreelanceID
		out.FreelanceID = &id
	}
	return &out
}

func (s *Memory) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Memory) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.data.clone()
	tx := &Memory{mu: s.mu, data: s.data, inTx: true}
	if err := fn(tx); err != nil {
		*s.data = *snap
		return err
	}
	return nil
}

func now() time.Time { return time.Now().UTC() }

// --- users

func (s *Memory) CreateUser(_ context.Context, u *models.User) error {
	defer s.lock()()
	if _, ok := s.data.emails[u.Email]; ok {
		return ErrDuplicate
	}
	if _, ok := s.data.users[u.ID]; ok {
		return ErrDuplicate
	}
	t := now()
	u.CreatedAt, u.UpdatedAt = t, t
	s.data.users[u.ID] = copyUser(u)
	s.data.emails[u.Email] = u.ID
	return nil
}

func (s *Memory) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	defer s.lock()()
	u, ok := s.data.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (s *Memory) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	defer s.lock()()
	id, ok := s.data.emails[email]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(s.data.users[id]), nil
}

func (s *Memory) UpdateUser(_ context.Context, u *models.User) error {
	defer s.lock()()
	cur, ok := s.data.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Name = u.Name
	cur.Phone = u.Phone
	cur.UpdatedAt = now()
	if p, ok := u.Freelance(); ok && cur.FreelanceProfile != nil {
		cur.FreelanceProfile.Title = p.Title
		cur.FreelanceProfile.Bio = p.Bio
		cur.FreelanceProfile.Skills = append(pq.StringArray{}, p.Skills...)
		cur.FreelanceProfile.HourlyRate = p.HourlyRate
		cur.FreelanceProfile.DailyRate = p.DailyRate
	}
	if p, ok := u.Client(); ok && cur.ClientProfile != nil {
		cur.ClientProfile.CompanyName = p.CompanyName
	}
	return nil
}

func (s *Memory) user(id uuid.UUID) (*models.User, error) {
	u, ok := s.data.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *Memory) TouchLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	defer s.lock()()
	u, err := s.user(id)
	if err != nil {
		return err
	}
	u.LastLoginAt = &at
	return nil
}

func (s *Memory) SetUserActive(_ context.Context, id uuid.UUID, active bool) error {
	defer s.lock()()
	u, err := s.user(id)
	if err != nil {
		return err
	}
	u.IsActive = active
	u.UpdatedAt = now()
	return nil
}

func roundedRating(sum int64, count int) float64 {
	if count == 0 {
		return 0
	}
	r, _ := decimal.NewFromInt(sum).DivRound(decimal.NewFromInt(int64(count)), 2).Float64()
	return r
}

func (s *Memory) AddReviewScore(_ context.Context, userID uuid.UUID, score int) error {
	defer s.lock()()
	u, err := s.user(userID)
	if err != nil {
		return err
	}
	u.RatingSum += int64(score)
	u.TotalReviews++
	u.Rating = roundedRating(u.RatingSum, u.TotalReviews)
	return nil
}

func (s *Memory) AddClientSpend(_ context.Context, userID uuid.UUID, amount int64) error {
	defer s.lock()()
	u, err := s.user(userID)
	if err != nil || u.ClientProfile == nil {
		return ErrNotFound
	}
	u.ClientProfile.TotalSpent += amount
	return nil
}

func (s *Memory) IncrementProjectsPublished(_ context.Context, userID uuid.UUID) error {
	defer s.lock()()
	u, err := s.user(userID)
	if err != nil || u.ClientProfile == nil {
		return ErrNotFound
	}
	u.ClientProfile.ProjectsPublished++
	return nil
}

func (s *Memory) IncrementCompletedProjects(_ context.Context, userID uuid.UUID) error {
	defer s.lock()()
	u, err := s.user(userID)
	if err != nil || u.FreelanceProfile == nil {
		return ErrNotFound
	}
	u.FreelanceProfile.CompletedProjects++
	return nil
}

func (s *Memory) AddBalance(_ context.Context, userID uuid.UUID, delta int64) error {
	defer s.lock()()
	u, err := s.user(userID)
	if err != nil {
		return ErrStale
	}
	if u.Balance+delta < 0 {
		return ErrStale
	}
	u.Balance += delta
	return nil
}

func (s *Memory) CreateWalletTransaction(_ context.Context, t *models.WalletTransaction) error {
	defer s.lock()()
	t.CreatedAt = now()
	s.data.wallet = append(s.data.wallet, *t)
	return nil
}

func (s *Memory) ListWalletTransactions(_ context.Context, userID uuid.UUID) ([]models.WalletTransaction, error) {
	defer s.lock()()
	var out []models.WalletTransaction
	for i := len(s.data.wallet) - 1; i >= 0; i-- {
		if s.data.wallet[i].UserID == userID {
			out = append(out, s.data.wallet[i])
		}
	}
	return out, nil
}

// --- missions

func (s *Memory) CreateMission(_ context.Context, m *models.Mission) error {
	defer s.lock()()
	if _, ok := s.data.missions[m.ID]; ok {
		return ErrDuplicate
	}
	t := now()
	m.CreatedAt, m.UpdatedAt = t, t
	s.data.missions[m.ID] = copyMission(m)
	s.data.missionOrder = append(s.data.missionOrder, m.ID)
	return nil
}

func (s *Memory) GetMission(_ context.Context, id uuid.UUID) (*models.Mission, error) {
	defer s.lock()()
	m, ok := s.data.missions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyMission(m), nil
}

// LockMission is GetMission: the store mutex already serializes writers.
func (s *Memory) LockMission(ctx context.Context, id uuid.UUID) (*models.Mission, error) {
	return s.GetMission(ctx, id)
}

func matchMission(m *models.Mission, q MissionQuery) bool {
	switch {
	case q.Status != nil:
		if m.Status != *q.Status {
			return false
		}
	case q.ClientID == nil:
		if m.Status != models.MissionOpen {
			return false
		}
	}
	if q.ClientID != nil && m.ClientID != *q.ClientID {
		return false
	}
	if q.Category != "" && m.Category != q.Category {
		return false
	}
	if len(q.Skills) > 0 && !overlaps(m.Skills, q.Skills) {
		return false
	}
	if q.BudgetMin != nil && m.Budget < *q.BudgetMin {
		return false
	}
	if q.BudgetMax != nil && m.Budget > *q.BudgetMax {
		return false
	}
	if q.Urgent != nil && m.IsUrgent != *q.Urgent {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(m.Title), needle) &&
			!strings.Contains(strings.ToLower(m.Description), needle) {
			return false
		}
	}
	return true
}

func overlaps(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func window(total, offset, limit int) (int, int) {
	return min(offset, total), min(offset+limit, total)
}

func (s *Memory) ListMissions(_ context.Context, q MissionQuery) ([]models.Mission, int64, error) {
	defer s.lock()()
	page := q.Page.Normalize()

	var hits []models.Mission
	for i := len(s.data.missionOrder) - 1; i >= 0; i-- {
		m := s.data.missions[s.data.missionOrder[i]]
		if matchMission(m, q) {
			hits = append(hits, *copyMission(m))
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].IsUrgent != hits[j].IsUrgent {
			return hits[i].IsUrgent
		}
		return hits[i].CreatedAt.After(hits[j].CreatedAt)
	})

	lo, hi := window(len(hits), page.Offset(), page.Limit)
	return hits[lo:hi], int64(len(hits)), nil
}

func (s *Memory) ListOpenCategories(_ context.Context) ([]string, error) {
	defer s.lock()()
	seen := map[string]bool{}
	out := []string{}
	for _, m := range s.data.missions {
		if m.Status == models.MissionOpen && !seen[m.Category] {
			seen[m.Category] = true
			out = append(out, m.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Memory) UpdateMission(_ context.Context, m *models.Mission, expect models.MissionStatus) error {
	defer s.lock()()
	cur, ok := s.data.missions[m.ID]
	if !ok || cur.Status != expect {
		return ErrStale
	}
	cur.Title = m.Title
	cur.Description = m.Description
	cur.Category = m.Category
	cur.Skills = append(pq.StringArray{}, m.Skills...)
	cur.Budget = m.Budget
	cur.Deadline = m.Deadline
	cur.IsUrgent = m.IsUrgent
	cur.UpdatedAt = now()
	return nil
}

func (s *Memory) DeleteMission(_ context.Context, id uuid.UUID, expect models.MissionStatus) error {
	defer s.lock()()
	cur, ok := s.data.missions[id]
	if !ok || cur.Status != expect {
		return ErrStale
	}
	delete(s.data.missions, id)
	for i, mid := range s.data.missionOrder {
		if mid == id {
			s.data.missionOrder = append(s.data.missionOrder[:i:i], s.data.missionOrder[i+1:]...)
			break
		}
	}
	kept := s.data.applications[:0:0]
	for _, a := range s.data.applications {
		if a.MissionID != id {
			kept = append(kept, a)
		}
	}
	s.data.applications = kept
	return nil
}

func (s *Memory) IncrementMissionViews(_ context.Context, id uuid.UUID) error {
	defer s.lock()()
	m, ok := s.data.missions[id]
	if !ok {
		return ErrNotFound
	}
	m.ViewsCount++
	return nil
}

func (s *Memory) TransitionMission(_ context.Context, id uuid.UUID, t MissionTransition) error {
	defer s.lock()()
	m, ok := s.data.missions[id]
	if !ok || m.Status != t.From {
		return ErrStale
	}
	m.Status = t.To
	if t.FreelanceID != nil {
		fid := *t.FreelanceID
		m.FreelanceID = &fid
	}
	at := t.At
	switch t.To {
	case models.MissionInProgress:
		m.AssignedAt = &at
	case models.MissionCompleted:
		m.CompletedAt = &at
	}
	m.UpdatedAt = now()
	return nil
}

// --- applications

func (s *Memory) CreateApplication(_ context.Context, a *models.Application) error {
	defer s.lock()()
	for _, cur := range s.data.applications {
		if cur.MissionID == a.MissionID && cur.FreelanceID == a.FreelanceID {
			return ErrDuplicate
		}
	}
	m, ok := s.data.missions[a.MissionID]
	if !ok || m.Status != models.MissionOpen {
		return ErrStale
	}
	a.CreatedAt = now()
	stored := *a
	stored.Freelance = nil
	s.data.applications = append(s.data.applications, stored)
	m.ApplicationsCount++
	return nil
}

func (s *Memory) applicationsWhere(match func(models.Application) bool) []models.Application {
	var out []models.Application
	for i := len(s.data.applications) - 1; i >= 0; i-- {
		if a := s.data.applications[i]; match(a) {
			out = append(out, a)
		}
	}
	return out
}

func (s *Memory) ListApplications(_ context.Context, missionID uuid.UUID) ([]models.Application, error) {
	defer s.lock()()
	out := s.applicationsWhere(func(a models.Application) bool { return a.MissionID == missionID })
	for i := range out {
		if u, ok := s.data.users[out[i].FreelanceID]; ok {
			out[i].Freelance = copyUser(u)
		}
	}
	return out, nil
}

func (s *Memory) ListFreelanceApplications(_ context.Context, freelanceID uuid.UUID) ([]models.Application, error) {
	defer s.lock()()
	return s.applicationsWhere(func(a models.Application) bool { return a.FreelanceID == freelanceID }), nil
}

func (s *Memory) HasApplied(_ context.Context, missionID, freelanceID uuid.UUID) (bool, error) {
	defer s.lock()()
	for _, a := range s.data.applications {
		if a.MissionID == missionID && a.FreelanceID == freelanceID {
			return true, nil
		}
	}
	return false, nil
}

// --- payments

func (s *Memory) CreatePayment(_ context.Context, p *models.Payment) error {
	defer s.lock()()
	for _, cur := range s.data.payments {
		if cur.ID == p.ID {
			return ErrDuplicate
		}
		if p.Status.Active() && cur.MissionID == p.MissionID && cur.Status.Active() {
			return ErrDuplicate
		}
		if p.Reference != nil && cur.Reference != nil && *cur.Reference == *p.Reference {
			return ErrDuplicate
		}
	}
	t := now()
	p.CreatedAt, p.UpdatedAt = t, t
	s.data.payments = append(s.data.payments, *p)
	return nil
}

func (s *Memory) findPayment(match func(models.Payment) bool) (*models.Payment, error) {
	for i := range s.data.payments {
		if match(s.data.payments[i]) {
			p := s.data.payments[i]
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (s *Memory) GetPayment(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	defer s.lock()()
	return s.findPayment(func(p models.Payment) bool { return p.ID == id })
}

func (s *Memory) GetPaymentByReference(_ context.Context, ref string) (*models.Payment, error) {
	defer s.lock()()
	return s.findPayment(func(p models.Payment) bool { return p.Reference != nil && *p.Reference == ref })
}

func (s *Memory) ActivePayment(_ context.Context, missionID uuid.UUID) (*models.Payment, error) {
	defer s.lock()()
	return s.findPayment(func(p models.Payment) bool { return p.MissionID == missionID && p.Status.Active() })
}

func (s *Memory) LockActivePayment(ctx context.Context, missionID uuid.UUID) (*models.Payment, error) {
	return s.ActivePayment(ctx, missionID)
}

func (s *Memory) ListPayments(_ context.Context, q PaymentQuery) ([]models.Payment, int64, error) {
	defer s.lock()()
	page := q.Page.Normalize()

	var hits []models.Payment
	for i := len(s.data.payments) - 1; i >= 0; i-- {
		p := s.data.payments[i]
		if p.ClientID != q.UserID && p.FreelanceID != q.UserID {
			continue
		}
		if q.Status != nil && p.Status != *q.Status {
			continue
		}
		hits = append(hits, p)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].CreatedAt.After(hits[j].CreatedAt) })

	lo, hi := window(len(hits), page.Offset(), page.Limit)
	return hits[lo:hi], int64(len(hits)), nil
}

func (s *Memory) UpdatePayment(_ context.Context, p *models.Payment, from models.PaymentStatus) error {
	defer s.lock()()
	for i := range s.data.payments {
		cur := &s.data.payments[i]
		if cur.ID != p.ID {
			continue
		}
		if cur.Status != from {
			return ErrStale
		}
		if p.Reference != nil {
			for _, other := range s.data.payments {
				if other.ID != p.ID && other.Reference != nil && *other.Reference == *p.Reference {
					return ErrDuplicate
				}
			}
		}
		cur.Status = p.Status
		cur.Reference = p.Reference
		cur.CheckoutURL = p.CheckoutURL
		cur.FailureReason = p.FailureReason
		cur.PaidAt = p.PaidAt
		cur.RefundedAt = p.RefundedAt
		cur.ReleasedAt = p.ReleasedAt
		cur.UpdatedAt = now()
		return nil
	}
	return ErrStale
}

// --- reviews

func (s *Memory) CreateReview(_ context.Context, r *models.Review) error {
	defer s.lock()()
	for _, cur := range s.data.reviews {
		if cur.MissionID == r.MissionID && cur.ReviewerID == r.ReviewerID && cur.ReviewedUserID == r.ReviewedUserID {
			return ErrDuplicate
		}
	}
	r.CreatedAt = now()
	s.data.reviews = append(s.data.reviews, *r)
	return nil
}

func (s *Memory) ListUserReviews(_ context.Context, userID uuid.UUID, page Page) ([]models.Review, int64, error) {
	defer s.lock()()
	page = page.Normalize()
	var hits []models.Review
	for i := len(s.data.reviews) - 1; i >= 0; i-- {
		if s.data.reviews[i].ReviewedUserID == userID {
			hits = append(hits, s.data.reviews[i])
		}
	}
	lo, hi := window(len(hits), page.Offset(), page.Limit)
	return hits[lo:hi], int64(len(hits)), nil
}

// --- messages

func (s *Memory) CreateMessage(_ context.Context, m *models.Message) error {
	defer s.lock()()
	m.CreatedAt = now()
	s.data.messages = append(s.data.messages, *m)
	return nil
}

func (s *Memory) ListConversation(_ context.Context, a, b uuid.UUID, page Page) ([]models.Message, error) {
	defer s.lock()()
	page = page.Normalize()
	var hits []models.Message
	for i := len(s.data.messages) - 1; i >= 0; i-- {
		m := s.data.messages[i]
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			hits = append(hits, m)
		}
	}
	lo, hi := window(len(hits), page.Offset(), page.Limit)
	return hits[lo:hi], nil
}

func (s *Memory) MarkConversationRead(_ context.Context, receiverID, senderID uuid.UUID, at time.Time) (int64, error) {
	defer s.lock()()
	var n int64
	for i := range s.data.messages {
		m := &s.data.messages[i]
		if m.ReceiverID == receiverID && m.SenderID == senderID && m.ReadAt == nil {
			t := at
			m.ReadAt = &t
			n++
		}
	}
	return n, nil
}

func (s *Memory) CountUnread(_ context.Context, receiverID uuid.UUID) (int64, error) {
	defer s.lock()()
	var n int64
	for _, m := range s.data.messages {
		if m.ReceiverID == receiverID && m.ReadAt == nil {
			n++
		}
	}
	return n, nil
}
