package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/models"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/store"
)

var ErrNonPositive = errors.New("wallet: amount must be greater than zero")

// WalletService keeps the escrow ledger. Every method expects tx to be a
// transactional store so balance and ledger rows move together.
type WalletService struct{}

func NewWalletService() *WalletService {
	return &WalletService{}
}

func (s *WalletService) entry(ctx context.Context, tx store.Store, userID uuid.UUID, amount int64, typ models.WalletTrxType, ref uuid.UUID, desc string) error {
	return tx.CreateWalletTransaction(ctx, &models.WalletTransaction{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      amount,
		Type:        typ,
		Description: desc,
		ReferenceID: &ref,
	})
}

// HoldEscrow records the client's confirmed payment as held by the platform.
// The funds came from the provider, so no balance moves.
func (s *WalletService) HoldEscrow(ctx context.Context, tx store.Store, p *models.Payment) error {
	if p.Amount <= 0 {
		return ErrNonPositive
	}
	return s.entry(ctx, tx, p.ClientID, p.Amount, models.WalletTrxDebit, p.ID, "escrow hold for mission "+p.MissionID.String())
}

// ReleaseToFreelance credits the freelance with the payment net of the platform fee.
func (s *WalletService) ReleaseToFreelance(ctx context.Context, tx store.Store, p *models.Payment) error {
	if p.FreelanceAmount <= 0 {
		return ErrNonPositive
	}
	if err := tx.AddBalance(ctx, p.FreelanceID, p.FreelanceAmount); err != nil {
		return fmt.Errorf("credit freelance %s: %w", p.FreelanceID, err)
	}
	return s.entry(ctx, tx, p.FreelanceID, p.FreelanceAmount, models.WalletTrxCredit, p.ID, "escrow release for mission "+p.MissionID.String())
}

// RefundClient returns the full amount to the client's balance.
func (s *WalletService) RefundClient(ctx context.Context, tx store.Store, p *models.Payment) error {
	if p.Amount <= 0 {
		return ErrNonPositive
	}
	if err := tx.AddBalance(ctx, p.ClientID, p.Amount); err != nil {
		return fmt.Errorf("refund client %s: %w", p.ClientID, err)
	}
	return s.entry(ctx, tx, p.ClientID, p.Amount, models.WalletTrxRefund, p.ID, "escrow refund for mission "+p.MissionID.String())
}
