package mission

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/apperr"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/metrics"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/models"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/notify"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/store"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/validation"
)

// EscrowReleaser pays out a mission's confirmed escrow inside tx.
type EscrowReleaser interface {
	ReleaseForMission(ctx context.Context, tx store.Store, missionID uuid.UUID) error
}

type MissionService struct {
	store    store.Store
	escrow   EscrowReleaser
	notifier notify.Notifier
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewMissionService(st store.Store, escrow EscrowReleaser, n notify.Notifier, log logrus.FieldLogger) *MissionService {
	return &MissionService{
		store:    st,
		escrow:   escrow,
		notifier: n,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type CreateInput struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"required,max=10000"`
	Category    string   `json:"category" validate:"required,max=80"`
	Skills      []string `json:"skills" validate:"max=20,dive,required,max=50"`
	Budget      int64    `json:"budget" validate:"gt=0"`
	Deadline    string   `json:"deadline" validate:"required"`
	IsUrgent    bool     `json:"is_urgent"`
}

func cleanSkills(in []string) pq.StringArray {
	out := pq.StringArray{}
	seen := map[string]bool{}
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func (s *MissionService) loadMission(ctx context.Context, id uuid.UUID) (*models.Mission, error) {
	m, err := s.store.GetMission(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("mission not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return m, nil
}

// loadOwned loads the mission and checks caller owns it.
func (s *MissionService) loadOwned(ctx context.Context, caller models.Caller, id uuid.UUID) (*models.Mission, error) {
	m, err := s.loadMission(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.ClientID != caller.ID {
		return nil, apperr.Forbidden("only the mission's client can do this")
	}
	return m, nil
}

func (s *MissionService) Create(ctx context.Context, caller models.Caller, in CreateInput) (*models.Mission, error) {
	if !caller.Is(models.RoleClient) {
		return nil, apperr.Forbidden("only clients can publish missions")
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)

	fields := validation.Struct(in)
	if fields == nil {
		fields = apperr.FieldErrors{}
	}
	var deadline time.Time
	if in.Deadline != "" {
		d, err := ParseDeadline(in.Deadline, s.now())
		if err != nil {
			fields.Add("deadline", err.Error())
		}
		deadline = d
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}

	m := &models.Mission{
		ID:          uuid.New(),
		ClientID:    caller.ID,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Skills:      cleanSkills(in.Skills),
		Budget:      in.Budget,
		Deadline:    deadline,
		IsUrgent:    in.IsUrgent,
		Status:      models.MissionOpen,
	}
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.CreateMission(ctx, m); err != nil {
			return err
		}
		return tx.IncrementProjectsPublished(ctx, caller.ID)
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}

	metrics.MissionCreated()
	s.log.WithFields(logrus.Fields{"mission_id": m.ID, "user_id": caller.ID}).Info("mission created")
	return m, nil
}

func (s *MissionService) List(ctx context.Context, q store.MissionQuery) ([]models.Mission, int64, error) {
	if q.BudgetMin != nil && q.BudgetMax != nil && *q.BudgetMin > *q.BudgetMax {
		return nil, 0, apperr.Validation(apperr.FieldErrors{"budget_min": {"must not exceed budget_max"}})
	}
	q.Skills = cleanSkills(q.Skills)
	q.Search = strings.TrimSpace(q.Search)
	out, total, err := s.store.ListMissions(ctx, q)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return out, total, nil
}

// Get returns the mission and counts the view; a failed count never fails the read.
func (s *MissionService) Get(ctx context.Context, id uuid.UUID) (*models.Mission, error) {
	m, err := s.loadMission(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.IncrementMissionViews(ctx, id); err != nil {
		s.log.WithError(err).WithField("mission_id", id).Warn("view count not incremented")
	} else {
		m.ViewsCount++
	}
	return m, nil
}

// Categories lists the categories that currently have open missions.
func (s *MissionService) Categories(ctx context.Context) ([]string, error) {
	out, err := s.store.ListOpenCategories(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

type Patch struct {
	Title       *string   `json:"title" validate:"omitempty,max=200"`
	Description *string   `json:"description" validate:"omitempty,max=10000"`
	Category    *string   `json:"category" validate:"omitempty,max=80"`
	Skills      *[]string `json:"skills" validate:"omitempty,max=20,dive,required,max=50"`
	Budget      *int64    `json:"budget" validate:"omitempty,gt=0"`
	Deadline    *string   `json:"deadline"`
	IsUrgent    *bool     `json:"is_urgent"`
}

func trimmed(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	return strings.TrimSpace(*p), true
}

func (s *MissionService) Update(ctx context.Context, caller models.Caller, id uuid.UUID, patch Patch) (*models.Mission, error) {
	m, err := s.loadOwned(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MissionOpen {
		return nil, apperr.InvalidState("only open missions can be edited")
	}

	fields := validation.Struct(patch)
	if fields == nil {
		fields = apperr.FieldErrors{}
	}
	if patch.Budget != nil && *patch.Budget <= 0 {
		fields.Add("budget", "must be greater than 0")
	}
	if v, ok := trimmed(patch.Title); ok {
		if v == "" {
			fields.Add("title", "is required")
		}
		m.Title = v
	}
	if v, ok := trimmed(patch.Description); ok {
		if v == "" {
			fields.Add("description", "is required")
		}
		m.Description = v
	}
	if v, ok := trimmed(patch.Category); ok {
		if v == "" {
			fields.Add("category", "is required")
		}
		m.Category = v
	}
	if patch.Deadline != nil {
		d, err := ParseDeadline(*patch.Deadline, s.now())
		if err != nil {
			fields.Add("deadline", err.Error())
		}
		m.Deadline = d
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}
	if patch.Skills != nil {
		m.Skills = cleanSkills(*patch.Skills)
	}
	if patch.Budget != nil {
		m.Budget = *patch.Budget
	}
	if patch.IsUrgent != nil {
		m.IsUrgent = *patch.IsUrgent
	}

	if err := s.store.UpdateMission(ctx, m, models.MissionOpen); err != nil {
		if errors.Is(err, store.ErrStale) {
			return nil, apperr.InvalidState("mission is no longer open")
		}
		return nil, apperr.Internal(err)
	}
	return s.loadMission(ctx, id)
}

func (s *MissionService) Delete(ctx context.Context, caller models.Caller, id uuid.UUID) error {
	m, err := s.loadOwned(ctx, caller, id)
	if err != nil {
		return err
	}
	switch m.Status {
	case models.MissionOpen:
	case models.MissionInProgress:
		return apperr.InvalidState("a mission in progress cannot be deleted")
	default:
		return apperr.InvalidState("only open missions can be deleted")
	}
	if err := s.store.DeleteMission(ctx, id, models.MissionOpen); err != nil {
		if errors.Is(err, store.ErrStale) {
			return apperr.InvalidState("mission is no longer open")
		}
		return apperr.Internal(err)
	}
	s.log.WithFields(logrus.Fields{"mission_id": id, "user_id": caller.ID}).Info("mission deleted")
	return nil
}

type ApplyInput struct {
	CoverLetter      string   `json:"cover_letter" validate:"required,min=10,max=5000"`
	ProposedBudget   int64    `json:"proposed_budget" validate:"gt=0"`
	ProposedDeadline string   `json:"proposed_deadline" validate:"required"`
	PortfolioURL     string   `json:"portfolio_url" validate:"omitempty,url,max=500"`
	Attachments      []string `json:"attachments" validate:"max=10,dive,required,max=500"`
}

func (s *MissionService) Apply(ctx context.Context, caller models.Caller, missionID uuid.UUID, in ApplyInput) (*models.Application, error) {
	if !caller.Is(models.RoleFreelance) {
		return nil, apperr.Forbidden("only freelances can apply")
	}
	m, err := s.loadMission(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MissionOpen {
		return nil, apperr.InvalidState("mission is not open for applications")
	}
	if m.ClientID == caller.ID {
		return nil, apperr.Forbidden("cannot apply to your own mission")
	}

	in.CoverLetter = strings.TrimSpace(in.CoverLetter)
	in.PortfolioURL = strings.TrimSpace(in.PortfolioURL)
	fields := validation.Struct(in)
	if fields == nil {
		fields = apperr.FieldErrors{}
	}
	var deadline time.Time
	if in.ProposedDeadline != "" {
		d, err := ParseDeadline(in.ProposedDeadline, s.now())
		if err != nil {
			fields.Add("proposed_deadline", err.Error())
		}
		deadline = d
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}

	a := &models.Application{
		ID:               uuid.New(),
		MissionID:        m.ID,
		FreelanceID:      caller.ID,
		CoverLetter:      in.CoverLetter,
		ProposedBudget:   in.ProposedBudget,
		ProposedDeadline: deadline,
		PortfolioURL:     in.PortfolioURL,
	}
	if len(in.Attachments) > 0 {
		raw, err := json.Marshal(in.Attachments)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		a.Attachments = datatypes.JSON(raw)
	}

	if err := s.store.CreateApplication(ctx, a); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return nil, apperr.Conflict("you already applied to this mission")
		case errors.Is(err, store.ErrStale):
			return nil, apperr.InvalidState("mission is not open for applications")
		}
		return nil, apperr.Internal(err)
	}

	metrics.ApplicationSubmitted()
	s.log.WithFields(logrus.Fields{"mission_id": m.ID, "user_id": caller.ID}).Info("application submitted")
	s.publish(ctx, notify.Event{Type: notify.ApplicationCreated, UserID: m.ClientID, Data: map[string]any{
		"mission_id": m.ID, "application_id": a.ID, "freelance_id": caller.ID,
	}})
	return a, nil
}

func (s *MissionService) ListApplications(ctx context.Context, caller models.Caller, missionID uuid.UUID) ([]models.Application, error) {
	if _, err := s.loadOwned(ctx, caller, missionID); err != nil {
		return nil, err
	}
	out, err := s.store.ListApplications(ctx, missionID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

func (s *MissionService) MyApplications(ctx context.Context, caller models.Caller) ([]models.Application, error) {
	if !caller.Is(models.RoleFreelance) {
		return nil, apperr.Forbidden("only freelances have applications")
	}
	out, err := s.store.ListFreelanceApplications(ctx, caller.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

// Assign hands the mission to a freelance who applied to it.
func (s *MissionService) Assign(ctx context.Context, caller models.Caller, missionID, freelanceID uuid.UUID) (*models.Mission, error) {
	m, err := s.loadOwned(ctx, caller, missionID)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MissionOpen {
		return nil, apperr.InvalidState("only open missions can be assigned")
	}
	applied, err := s.store.HasApplied(ctx, missionID, freelanceID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !applied {
		return nil, apperr.Validation(apperr.FieldErrors{"freelance_id": {"has not applied to this mission"}})
	}

	err = s.store.TransitionMission(ctx, missionID, store.MissionTransition{
		From: models.MissionOpen, To: models.MissionInProgress, FreelanceID: &freelanceID, At: s.now(),
	})
	if errors.Is(err, store.ErrStale) {
		return nil, apperr.InvalidState("mission is no longer open")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	metrics.MissionTransition(string(models.MissionInProgress))
	s.log.WithFields(logrus.Fields{"mission_id": missionID, "freelance_id": freelanceID}).Info("mission assigned")
	s.publish(ctx, notify.Event{Type: notify.MissionAssigned, UserID: freelanceID, Data: map[string]any{"mission_id": missionID}})
	return s.loadMission(ctx, missionID)
}

// Complete records the client's acceptance of the delivery and releases a
// confirmed escrow in the same transaction.
func (s *MissionService) Complete(ctx context.Context, caller models.Caller, missionID uuid.UUID) (*models.Mission, error) {
	m, err := s.loadOwned(ctx, caller, missionID)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MissionInProgress || m.FreelanceID == nil {
		return nil, apperr.InvalidState("only missions in progress can be completed")
	}
	freelanceID := *m.FreelanceID

	err = s.store.WithTx(ctx, func(tx store.Store) error {
		err := tx.TransitionMission(ctx, missionID, store.MissionTransition{
			From: models.MissionInProgress, To: models.MissionCompleted, At: s.now(),
		})
		if err != nil {
			return err
		}
		if err := tx.IncrementCompletedProjects(ctx, freelanceID); err != nil {
			return err
		}
		return s.escrow.ReleaseForMission(ctx, tx, missionID)
	})
	if errors.Is(err, store.ErrStale) {
		return nil, apperr.InvalidState("mission is no longer in progress")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	metrics.MissionTransition(string(models.MissionCompleted))
	s.log.WithFields(logrus.Fields{"mission_id": missionID, "freelance_id": freelanceID}).Info("mission completed")
	s.publish(ctx, notify.Event{Type: notify.MissionCompleted, UserID: freelanceID, Data: map[string]any{"mission_id": missionID}})
	return s.loadMission(ctx, missionID)
}

func (s *MissionService) publish(ctx context.Context, e notify.Event) {
	if err := s.notifier.Notify(ctx, e); err != nil {
		s.log.WithError(err).WithField("event", e.Type).Warn("notification not delivered")
	}
}
