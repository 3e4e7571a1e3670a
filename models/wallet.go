package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionCredit     TransactionType = "CREDIT"
	TransactionDebit      TransactionType = "DEBIT"
	TransactionRefund     TransactionType = "REFUND"
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
)

const TransactionCompleted = "completed"

// IsInflow reports whether the type increases a balance.
func (t TransactionType) IsInflow() bool {
	return t == TransactionCredit || t == TransactionRefund
}

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionCredit, TransactionDebit, TransactionRefund, TransactionWithdrawal:
		return true
	}
	return false
}

type Wallet struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
	Version       int64           `json:"version"`
	Transactions  []Transaction   `json:"transactions,omitempty"`
}

// Transaction is immutable once appended. Balance is the wallet balance right after it.
type Transaction struct {
	TransactionID string          `json:"transaction_id"`
	Sequence      int64           `json:"sequence"`
	Date          time.Time       `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	Type          TransactionType `json:"type"`
	Balance       decimal.Decimal `json:"balance"`
	Status        string          `json:"status"`
	Description   string          `json:"description,omitempty"`
	Reference     string          `json:"reference,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	EventID       string          `json:"event_id,omitempty"`
	EventName     string          `json:"event_name,omitempty"`
}

// Signed returns the amount with the sign it contributes to the balance.
func (t *Transaction) Signed() decimal.Decimal {
	if t.Type.IsInflow() {
		return t.Amount
	}
	return t.Amount.Neg()
}

// Replay rebuilds the balance from zero over txns (oldest first) and checks every
// snapshot along the way and the final balance against WalletBalance.
func (w *Wallet) Replay(txns []Transaction) error {
	balance := decimal.Zero
	for i := range txns {
		balance = balance.Add(txns[i].Signed())
		if !balance.Equal(txns[i].Balance) {
			return fmt.Errorf("transaction %s: snapshot %s, replayed %s",
				txns[i].TransactionID, txns[i].Balance, balance)
		}
	}
	if !balance.Equal(w.WalletBalance) {
		return fmt.Errorf("wallet %s: balance %s, replayed %s", w.UserID, w.WalletBalance, balance)
	}
	return nil
}
