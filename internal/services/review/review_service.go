package review

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/apperr"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/metrics"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/models"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/notify"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/store"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/validation"
)

type ReviewService struct {
	store    store.Store
	notifier notify.Notifier
	log      logrus.FieldLogger
}

func NewReviewService(st store.Store, n notify.Notifier, log logrus.FieldLogger) *ReviewService {
	return &ReviewService{store: st, notifier: n, log: log}
}

type SubmitInput struct {
	ReviewedUserID uuid.UUID            `json:"reviewed_user_id" validate:"required"`
	Score          int                  `json:"score" validate:"min=1,max=5"`
	Comment        string               `json:"comment" validate:"max=2000"`
	Detail         *models.ReviewDetail `json:"detail"`
}

// Submit records one party's review of the other on a completed mission and
// folds the score into the reviewed user's rating in the same transaction.
func (s *ReviewService) Submit(ctx context.Context, caller models.Caller, missionID uuid.UUID, in SubmitInput) (*models.Review, error) {
	m, err := s.store.GetMission(ctx, missionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("mission not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if m.Status != models.MissionCompleted {
		return nil, apperr.InvalidState("only completed missions can be reviewed")
	}
	if !m.IsParty(caller.ID) {
		return nil, apperr.Forbidden("not a party to this mission")
	}

	in.Comment = strings.TrimSpace(in.Comment)
	if fields := validation.Struct(in); fields != nil {
		return nil, apperr.Validation(fields)
	}
	if in.ReviewedUserID == caller.ID {
		return nil, apperr.Conflict("you cannot review yourself")
	}
	if in.ReviewedUserID != m.OtherParty(caller.ID) {
		return nil, apperr.Conflict("reviewed user is not the other party of this mission")
	}

	r := &models.Review{
		ID:             uuid.New(),
		MissionID:      m.ID,
		ReviewerID:     caller.ID,
		ReviewedUserID: in.ReviewedUserID,
		Score:          in.Score,
		Comment:        in.Comment,
	}
	if in.Detail != nil {
		raw, err := json.Marshal(in.Detail)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		r.Detail = datatypes.JSON(raw)
	}

	err = s.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.CreateReview(ctx, r); err != nil {
			return err
		}
		return tx.AddReviewScore(ctx, r.ReviewedUserID, r.Score)
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, apperr.Conflict("you already reviewed this user for this mission")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	metrics.ReviewSubmitted()
	s.log.WithFields(logrus.Fields{"mission_id": m.ID, "user_id": caller.ID, "reviewed_user_id": r.ReviewedUserID}).Info("review submitted")
	if err := s.notifier.Notify(ctx, notify.Event{Type: notify.ReviewReceived, UserID: r.ReviewedUserID, Data: map[string]any{
		"review_id": r.ID, "mission_id": m.ID, "score": r.Score,
	}}); err != nil {
		s.log.WithError(err).Warn("notification not delivered")
	}
	return r, nil
}

func (s *ReviewService) ListForUser(ctx context.Context, userID uuid.UUID, page store.Page) ([]models.Review, int64, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, apperr.NotFound("user not found")
		}
		return nil, 0, apperr.Internal(err)
	}
	out, total, err := s.store.ListUserReviews(ctx, userID, page)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return out, total, nil
}
