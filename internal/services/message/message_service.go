package message

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/apperr"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/models"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/notify"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/store"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/validation"
)

const previewLen = 80

type MessageService struct {
	store    store.Store
	notifier notify.Notifier
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewMessageService(st store.Store, n notify.Notifier, log logrus.FieldLogger) *MessageService {
	return &MessageService{
		store:    st,
		notifier: n,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type SendInput struct {
	ReceiverID uuid.UUID  `json:"receiver_id" validate:"required"`
	MissionID  *uuid.UUID `json:"mission_id"`
	Content    string     `json:"content" validate:"required,max=5000"`
}

func (s *MessageService) Send(ctx context.Context, caller models.Caller, in SendInput) (*models.Message, error) {
	in.Content = strings.TrimSpace(in.Content)
	if fields := validation.Struct(in); fields != nil {
		return nil, apperr.Validation(fields)
	}
	if in.ReceiverID == caller.ID {
		return nil, apperr.Conflict("you cannot message yourself")
	}

	receiver, err := s.store.GetUser(ctx, in.ReceiverID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("receiver not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !receiver.IsActive {
		return nil, apperr.InvalidState("receiver account is deactivated")
	}

	if in.MissionID != nil {
		if err := s.checkMissionScope(ctx, *in.MissionID, caller.ID, in.ReceiverID); err != nil {
			return nil, err
		}
	}

	msg := &models.Message{
		ID:         uuid.New(),
		SenderID:   caller.ID,
		ReceiverID: in.ReceiverID,
		MissionID:  in.MissionID,
		Content:    in.Content,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, apperr.Internal(err)
	}

	preview := msg.Content
	if r := []rune(preview); len(r) > previewLen {
		preview = string(r[:previewLen]) + "…"
	}
	if err := s.notifier.Notify(ctx, notify.Event{Type: notify.MessageReceived, UserID: msg.ReceiverID, Data: map[string]any{
		"message_id": msg.ID, "sender_id": msg.SenderID, "preview": preview,
	}}); err != nil {
		s.log.WithError(err).WithField("message_id", msg.ID).Warn("notification not delivered")
	}
	return msg, nil
}

// checkMissionScope requires both users to belong to the mission, one of
// them being its client. Applicants count as members.
func (s *MessageService) checkMissionScope(ctx context.Context, missionID, a, b uuid.UUID) error {
	m, err := s.store.GetMission(ctx, missionID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("mission not found")
	}
	if err != nil {
		return apperr.Internal(err)
	}
	if m.ClientID != a && m.ClientID != b {
		return apperr.Forbidden("mission messages must involve the mission's client")
	}
	other := a
	if m.ClientID == a {
		other = b
	}
	if m.FreelanceID != nil && *m.FreelanceID == other {
		return nil
	}
	applied, err := s.store.HasApplied(ctx, missionID, other)
	if err != nil {
		return apperr.Internal(err)
	}
	if !applied {
		return apperr.Forbidden("both users must belong to the mission")
	}
	return nil
}

func (s *MessageService) Conversation(ctx context.Context, caller models.Caller, otherID uuid.UUID, page store.Page) ([]models.Message, error) {
	out, err := s.store.ListConversation(ctx, caller.ID, otherID, page)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

// MarkRead marks every message otherID sent to the caller as read and
// returns how many changed.
func (s *MessageService) MarkRead(ctx context.Context, caller models.Caller, otherID uuid.UUID) (int64, error) {
	n, err := s.store.MarkConversationRead(ctx, caller.ID, otherID, s.now())
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}

func (s *MessageService) Unread(ctx context.Context, caller models.Caller) (int64, error) {
	n, err := s.store.CountUnread(ctx, caller.ID)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}
