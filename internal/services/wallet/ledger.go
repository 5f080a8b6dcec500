package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/apperr"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/models"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/store"
)

// Statement is a user's balance with the ledger that explains it.
type Statement struct {
	Balance       int64                      `json:"balance"`
	TotalEarned   int64                      `json:"total_earned"`
	TotalRefunded int64                      `json:"total_refunded"`
	TotalEscrowed int64                      `json:"total_escrowed"`
	Transactions  []models.WalletTransaction `json:"transactions"`
}

type Ledger struct {
	store store.Store
}

func NewLedger(st store.Store) *Ledger {
	return &Ledger{store: st}
}

func (l *Ledger) Statement(ctx context.Context, userID uuid.UUID) (*Statement, error) {
	u, err := l.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	trx, err := l.store.ListWalletTransactions(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	st := &Statement{Balance: u.Balance, Transactions: trx}
	if st.Transactions == nil {
		st.Transactions = []models.WalletTransaction{}
	}
	for _, t := range trx {
		switch t.Type {
		case models.WalletTrxCredit:
			st.TotalEarned += t.Amount
		case models.WalletTrxRefund:
			st.TotalRefunded += t.Amount
		case models.WalletTrxDebit:
			st.TotalEscrowed += t.Amount
		}
	}
	return st, nil
}
