package models

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// Active statuses hold the mission's single escrow slot.
func (s PaymentStatus) Active() bool {
	return s == PaymentPending || s == PaymentCompleted
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

type PaymentMethod string

const (
	MethodOrangeMoney  PaymentMethod = "ORANGE_MONEY"
	MethodMTNMoney     PaymentMethod = "MTN_MONEY"
	MethodMoovMoney    PaymentMethod = "MOOV_MONEY"
	MethodWave         PaymentMethod = "WAVE"
	MethodCard         PaymentMethod = "CARD"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodOrangeMoney, MethodMTNMoney, MethodMoovMoney, MethodWave, MethodCard, MethodBankTransfer:
		return true
	}
	return false
}

func (m PaymentMethod) MobileMoney() bool {
	switch m {
	case MethodOrangeMoney, MethodMTNMoney, MethodMoovMoney, MethodWave:
		return true
	}
	return false
}

type Payment struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MissionID   uuid.UUID `gorm:"type:uuid;not null;index" json:"mission_id"`
	ClientID    uuid.UUID `gorm:"type:uuid;not null;index" json:"client_id"`
	FreelanceID uuid.UUID `gorm:"type:uuid;not null;index" json:"freelance_id"`

	Amount          int64         `gorm:"not null" json:"amount"`
	Currency        string        `gorm:"type:varchar(3);not null" json:"currency"`
	Method          PaymentMethod `gorm:"type:varchar(30);not null" json:"method"`
	PhoneNumber     string        `gorm:"type:varchar(30)" json:"phone_number,omitempty"`
	PlatformFee     int64         `gorm:"not null" json:"platform_fee"`
	FreelanceAmount int64         `gorm:"not null" json:"freelance_amount"`

	Status        PaymentStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Reference     *string       `gorm:"type:varchar(64);uniqueIndex" json:"reference,omitempty"` // provider reference
	CheckoutURL   string        `gorm:"type:text" json:"checkout_url,omitempty"`
	FailureReason string        `gorm:"type:text" json:"failure_reason,omitempty"`

	PaidAt     *time.Time `json:"paid_at,omitempty"`
	RefundedAt *time.Time `json:"refunded_at,omitempty"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
