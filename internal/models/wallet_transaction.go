package models

import (
	"time"

	"github.com/google/uuid"
)

type WalletTrxType string

const (
	WalletTrxCredit WalletTrxType = "credit" // escrow released to a freelance
	WalletTrxDebit  WalletTrxType = "debit"  // funds taken into escrow
	WalletTrxRefund WalletTrxType = "refund" // escrow returned to a client
)

type WalletTransaction struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID     `gorm:"type:uuid;index;not null" json:"user_id"`
	Amount      int64         `gorm:"not null" json:"amount"`
	Type        WalletTrxType `gorm:"type:varchar(20);not null" json:"type"`
	Description string        `gorm:"type:text" json:"description"`
	ReferenceID *uuid.UUID    `gorm:"type:uuid;index" json:"reference_id,omitempty"` // payment id
	CreatedAt   time.Time     `json:"created_at"`
}
