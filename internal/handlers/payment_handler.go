package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/apperr"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/models"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/gateway"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/services/payment"
)

const signatureHeader = "X-Callback-Signature"

type SignatureVerifier interface {
	ValidateSignature(signature string, body []byte) bool
}

type PaymentHandler struct {
	Payments *payment.PaymentService
	// Verifier is nil when no provider is configured; callbacks are then refused.
	Verifier SignatureVerifier
	Log      logrus.FieldLogger
}

func NewPaymentHandler(payments *payment.PaymentService, verifier SignatureVerifier, log logrus.FieldLogger) *PaymentHandler {
	return &PaymentHandler{Payments: payments, Verifier: verifier, Log: log}
}

func (h *PaymentHandler) Initiate(c *fiber.Ctx) error {
	missionID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var in payment.InitiateInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	p, err := h.Payments.Initiate(c.UserContext(), caller(c), missionID, in)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "Payment initiated", p)
}

func (h *PaymentHandler) List(c *fiber.Ctx) error {
	var status *models.PaymentStatus
	if raw := strings.ToUpper(strings.TrimSpace(c.Query("status"))); raw != "" {
		s := models.PaymentStatus(raw)
		status = &s
	}
	page := pageFrom(c)
	out, total, err := h.Payments.List(c.UserContext(), caller(c), status, page)
	if err != nil {
		return err
	}
	return respondPage(c, "", out, page, total)
}

func (h *PaymentHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.Payments.Get(c.UserContext(), caller(c), id)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", p)
}

// Callback receives the provider's signed status notification.
func (h *PaymentHandler) Callback(c *fiber.Ctx) error {
	if h.Verifier == nil {
		return apperr.NotFound("payment provider is not configured")
	}
	sig := c.Get(signatureHeader)
	if sig == "" {
		return apperr.Validation(apperr.FieldErrors{"signature": {"is required"}})
	}
	if !h.Verifier.ValidateSignature(sig, c.Body()) {
		h.Log.WithField("ip", c.IP()).Warn("payment callback with invalid signature")
		return apperr.Validation(apperr.FieldErrors{"signature": {"is invalid"}})
	}

	var payload gateway.CallbackPayload
	if err := parseBody(c, &payload); err != nil {
		return err
	}
	if payload.Reference == "" {
		return apperr.Validation(apperr.FieldErrors{"reference": {"is required"}})
	}
	var paidAt *time.Time
	if payload.PaidAt > 0 {
		t := time.Unix(payload.PaidAt, 0).UTC()
		paidAt = &t
	}

	p, err := h.Payments.HandleProviderEvent(c.UserContext(), payload.Reference, strings.ToUpper(payload.Status), paidAt)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "Callback processed", fiber.Map{"payment_id": p.ID, "status": p.Status})
}
