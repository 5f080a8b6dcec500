package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/apperr"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/metrics"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/models"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/notify"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/gateway"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/wallet"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/store"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/validation"
)

// Provider opens a checkout at the payment provider.
type Provider interface {
	Checkout(ctx context.Context, r gateway.CheckoutRequest) (*gateway.Checkout, error)
}

// Provider event statuses as posted to the callback.
const (
	EventPaid    = "PAID"
	EventFailed  = "FAILED"
	EventExpired = "EXPIRED"
	EventRefund  = "REFUND"
)

type Config struct {
	FeePercent int64
	Currency   string
}

type PaymentService struct {
	store    store.Store
	wallet   *wallet.WalletService
	provider Provider
	notifier notify.Notifier
	log      logrus.FieldLogger
	cfg      Config
	now      func() time.Time
}

// NewPaymentService wires the manager. provider may be nil, in which case
// payments stay PENDING until a provider event arrives.
func NewPaymentService(st store.Store, w *wallet.WalletService, provider Provider, n notify.Notifier, log logrus.FieldLogger, cfg Config) *PaymentService {
	if cfg.Currency == "" {
		cfg.Currency = "XOF"
	}
	return &PaymentService{
		store:    st,
		wallet:   w,
		provider: provider,
		notifier: n,
		log:      log,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type InitiateInput struct {
	Amount      int64  `json:"amount" validate:"gt=0"`
	Method      string `json:"method" validate:"required,oneof=ORANGE_MONEY MTN_MONEY MOOV_MONEY WAVE CARD BANK_TRANSFER"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,min=8,max=30"`
}

func (s *PaymentService) Initiate(ctx context.Context, caller models.Caller, missionID uuid.UUID, in InitiateInput) (*models.Payment, error) {
	m, err := s.store.GetMission(ctx, missionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("mission not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if m.ClientID != caller.ID {
		return nil, apperr.Forbidden("only the mission's client can pay for it")
	}
	if m.FreelanceID == nil {
		return nil, apperr.InvalidState("mission has no assigned freelance")
	}

	in.Method = strings.ToUpper(strings.TrimSpace(in.Method))
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	fields := validation.Struct(in)
	method := models.PaymentMethod(in.Method)
	if method.MobileMoney() && in.PhoneNumber == "" {
		if fields == nil {
			fields = apperr.FieldErrors{}
		}
		fields.Add("phone_number", "is required for mobile money")
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}

	fee, net := Fee(in.Amount, s.cfg.FeePercent)
	if net <= 0 {
		return nil, apperr.Validation(apperr.FieldErrors{"amount": {"is too small to cover the platform fee"}})
	}
	p := &models.Payment{
		ID:              uuid.New(),
		MissionID:       m.ID,
		ClientID:        m.ClientID,
		FreelanceID:     *m.FreelanceID,
		Amount:          in.Amount,
		Currency:        s.cfg.Currency,
		Method:          method,
		PhoneNumber:     in.PhoneNumber,
		PlatformFee:     fee,
		FreelanceAmount: net,
		Status:          models.PaymentPending,
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("mission already has an active payment")
		}
		return nil, apperr.Internal(err)
	}
	metrics.PaymentStatus(string(models.PaymentPending))

	log := s.log.WithFields(logrus.Fields{"payment_id": p.ID, "mission_id": m.ID})
	log.Info("payment initiated")

	if s.provider == nil {
		return p, nil
	}
	return s.checkout(ctx, log, caller, m, p)
}

func (s *PaymentService) checkout(ctx context.Context, log logrus.FieldLogger, caller models.Caller, m *models.Mission, p *models.Payment) (*models.Payment, error) {
	req := gateway.CheckoutRequest{
		PaymentID:   p.ID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Method:      string(p.Method),
		Phone:       p.PhoneNumber,
		Description: m.Title,
	}
	if u, err := s.store.GetUser(ctx, caller.ID); err == nil {
		req.CustomerName, req.CustomerEmail = u.Name, u.Email
	}

	out, err := s.provider.Checkout(ctx, req)
	if err != nil {
		log.WithError(err).Error("provider checkout failed")
		p.Status = models.PaymentFailed
		p.FailureReason = err.Error()
		if uerr := s.store.UpdatePayment(ctx, p, models.PaymentPending); uerr != nil {
			log.WithError(uerr).Error("mark payment failed")
		} else {
			metrics.PaymentStatus(string(models.PaymentFailed))
		}
		return nil, apperr.Internal(err)
	}

	ref := out.Reference
	p.Reference = &ref
	p.CheckoutURL = out.CheckoutURL
	if err := s.store.UpdatePayment(ctx, p, models.PaymentPending); err != nil {
		return nil, apperr.Internal(err)
	}
	return p, nil
}

func (s *PaymentService) List(ctx context.Context, caller models.Caller, status *models.PaymentStatus, page store.Page) ([]models.Payment, int64, error) {
	if status != nil && !status.Valid() {
		return nil, 0, apperr.Validation(apperr.FieldErrors{"status": {"is invalid"}})
	}
	out, total, err := s.store.ListPayments(ctx, store.PaymentQuery{UserID: caller.ID, Status: status, Page: page})
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return out, total, nil
}

func (s *PaymentService) Get(ctx context.Context, caller models.Caller, id uuid.UUID) (*models.Payment, error) {
	p, err := s.store.GetPayment(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("payment not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if p.ClientID != caller.ID && p.FreelanceID != caller.ID {
		return nil, apperr.Forbidden("not a party to this payment")
	}
	return p, nil
}

// HandleProviderEvent applies a verified provider status to the payment with
// that reference. Replaying an event already applied is a no-op.
func (s *PaymentService) HandleProviderEvent(ctx context.Context, reference, status string, paidAt *time.Time) (*models.Payment, error) {
	p, err := s.store.GetPaymentByReference(ctx, reference)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("payment not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	log := s.log.WithFields(logrus.Fields{"payment_id": p.ID, "mission_id": p.MissionID, "event": status})

	switch strings.ToUpper(status) {
	case EventPaid:
		if p.Status == models.PaymentCompleted {
			return p, nil
		}
		if p.Status != models.PaymentPending {
			return nil, apperr.InvalidState("payment is " + string(p.Status))
		}
		err = s.confirm(ctx, p, paidAt)
	case EventFailed, EventExpired:
		if p.Status == models.PaymentFailed {
			return p, nil
		}
		if p.Status != models.PaymentPending {
			return nil, apperr.InvalidState("payment is " + string(p.Status))
		}
		p.Status = models.PaymentFailed
		p.FailureReason = strings.ToLower(status)
		err = s.store.UpdatePayment(ctx, p, models.PaymentPending)
	case EventRefund:
		if p.Status == models.PaymentRefunded {
			return p, nil
		}
		if p.Status != models.PaymentCompleted {
			return nil, apperr.InvalidState("only completed payments can be refunded")
		}
		if p.ReleasedAt != nil {
			return nil, apperr.InvalidState("escrow already released to the freelance")
		}
		err = s.refund(ctx, p)
	default:
		return nil, apperr.Validation(apperr.FieldErrors{"status": {"is not a known provider status"}})
	}

	if errors.Is(err, store.ErrStale) {
		return nil, apperr.InvalidState("payment changed concurrently")
	}
	if err != nil {
		log.WithError(err).Error("apply provider event")
		return nil, apperr.Internal(err)
	}
	metrics.PaymentStatus(string(p.Status))
	log.WithField("status", p.Status).Info("payment updated from provider")
	return p, nil
}

func (s *PaymentService) confirm(ctx context.Context, p *models.Payment, paidAt *time.Time) error {
	at := s.now()
	if paidAt != nil {
		at = paidAt.UTC()
	}
	p.Status = models.PaymentCompleted
	p.PaidAt = &at

	err := s.store.WithTx(ctx, func(tx store.Store) error {
		// Complete locks the mission row first too, so whichever commits
		// second sees the other's state and releases.
		m, err := tx.LockMission(ctx, p.MissionID)
		if err != nil {
			return err
		}
		if err := tx.UpdatePayment(ctx, p, models.PaymentPending); err != nil {
			return err
		}
		if err := tx.AddClientSpend(ctx, p.ClientID, p.Amount); err != nil {
			return err
		}
		if err := s.wallet.HoldEscrow(ctx, tx, p); err != nil {
			return err
		}
		if m.Status == models.MissionCompleted {
			return s.release(ctx, tx, p)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, notify.Event{Type: notify.PaymentCompleted, UserID: p.FreelanceID, Data: map[string]any{
		"payment_id": p.ID, "mission_id": p.MissionID, "amount": p.FreelanceAmount,
	}})
	return nil
}

func (s *PaymentService) refund(ctx context.Context, p *models.Payment) error {
	at := s.now()
	p.Status = models.PaymentRefunded
	p.RefundedAt = &at

	err := s.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.UpdatePayment(ctx, p, models.PaymentCompleted); err != nil {
			return err
		}
		return s.wallet.RefundClient(ctx, tx, p)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, notify.Event{Type: notify.PaymentRefunded, UserID: p.ClientID, Data: map[string]any{
		"payment_id": p.ID, "mission_id": p.MissionID, "amount": p.Amount,
	}})
	return nil
}

func (s *PaymentService) release(ctx context.Context, tx store.Store, p *models.Payment) error {
	if err := s.wallet.ReleaseToFreelance(ctx, tx, p); err != nil {
		return err
	}
	at := s.now()
	p.ReleasedAt = &at
	return tx.UpdatePayment(ctx, p, models.PaymentCompleted)
}

// ReleaseForMission releases a confirmed, unreleased escrow for the mission.
// Missions without a confirmed payment are left alone.
func (s *PaymentService) ReleaseForMission(ctx context.Context, tx store.Store, missionID uuid.UUID) error {
	p, err := tx.LockActivePayment(ctx, missionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if p.Status != models.PaymentCompleted || p.ReleasedAt != nil {
		return nil
	}
	if err := s.release(ctx, tx, p); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"payment_id": p.ID, "mission_id": missionID}).Info("escrow released")
	return nil
}

func (s *PaymentService) publish(ctx context.Context, e notify.Event) {
	if err := s.notifier.Notify(ctx, e); err != nil {
		s.log.WithError(err).WithField("event", e.Type).Warn("notification not delivered")
	}
}
