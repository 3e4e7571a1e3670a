package pbstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"event-marketplace/internal/status"
	"event-marketplace/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

type walletRow struct {
	ID            string `db:"id"`
	User          string `db:"user"`
	WalletBalance string `db:"wallet_balance"`
	Version       int64  `db:"version"`
}

type transactionRow struct {
	TransactionID string         `db:"transaction_id"`
	Sequence      int64          `db:"sequence"`
	Date          types.DateTime `db:"date"`
	Amount        string         `db:"amount"`
	Type          string         `db:"type"`
	Balance       string         `db:"balance"`
	Status        string         `db:"status"`
	Description   string         `db:"description"`
	Reference     string         `db:"reference"`
	Metadata      types.JSONRaw  `db:"metadata"`
	Event         string         `db:"event"`
	EventName     string         `db:"event_name"`
}

var transactionColumns = []string{
	"transaction_id", "sequence", "date", "amount", "type", "balance", "status",
	"description", "reference", "metadata", "event", "event_name",
}

func (r walletRow) toModel() (*models.Wallet, error) {
	balance, err := toDecimal(r.WalletBalance)
	if err != nil {
		return nil, fmt.Errorf("wallet %s balance: %w", r.ID, err)
	}
	return &models.Wallet{ID: r.ID, UserID: r.User, WalletBalance: balance, Version: r.Version}, nil
}

func (r transactionRow) toModel() (models.Transaction, error) {
	amount, err := toDecimal(r.Amount)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %s amount: %w", r.TransactionID, err)
	}
	balance, err := toDecimal(r.Balance)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %s balance: %w", r.TransactionID, err)
	}

	var metadata map[string]any
	if len(r.Metadata) > 0 && string(r.Metadata) != "null" {
		if err := json.Unmarshal(r.Metadata, &metadata); err != nil {
			return models.Transaction{}, fmt.Errorf("transaction %s metadata: %w", r.TransactionID, err)
		}
	}

	return models.Transaction{
		TransactionID: r.TransactionID,
		Sequence:      r.Sequence,
		Date:          fromDBTime(r.Date),
		Amount:        amount,
		Type:          models.TransactionType(r.Type),
		Balance:       balance,
		Status:        r.Status,
		Description:   r.Description,
		Reference:     r.Reference,
		Metadata:      metadata,
		EventID:       r.Event,
		EventName:     r.EventName,
	}, nil
}

func (s *Store) FindWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	var row walletRow
	err := s.app.DB().Select("id", "user", "wallet_balance", "version").
		From(colWallets).
		Where(dbx.HashExp{"user": userID}).
		WithContext(ctx).
		One(&row)
	if err != nil {
		return nil, notFound(err, "wallet of %s", userID)
	}
	return row.toModel()
}

func (s *Store) GetOrCreateWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	w, err := s.FindWallet(ctx, userID)
	if err == nil || !errors.Is(err, status.ErrNotFound) {
		return w, err
	}

	col, err := s.app.FindCollectionByNameOrId(colWallets)
	if err != nil {
		return nil, err
	}
	rec := core.NewRecord(col)
	rec.Set("user", userID)
	rec.Set("wallet_balance", "0")
	rec.Set("version", 0)
	if err := s.app.SaveWithContext(ctx, rec); err != nil {
		// Lost a creation race on the unique user index.
		if w, ferr := s.FindWallet(ctx, userID); ferr == nil {
			return w, nil
		}
		return nil, fmt.Errorf("create wallet for %s: %w", userID, err)
	}
	return s.FindWallet(ctx, userID)
}

func (s *Store) AppendTransaction(ctx context.Context, walletID string, expectedVersion int64, txn *models.Transaction) error {
	metadata := "{}"
	if len(txn.Metadata) > 0 {
		raw, err := json.Marshal(txn.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		metadata = string(raw)
	}

	return s.app.RunInTransaction(func(tx core.App) error {
		db := tx.DB()

		if txn.Reference != "" {
			var existing transactionRow
			err := db.Select("transaction_id").From(colTransactions).
				Where(dbx.HashExp{"wallet": walletID, "reference": txn.Reference}).
				WithContext(ctx).
				One(&existing)
			if err == nil {
				return status.ErrDuplicateTransaction
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
		}

		n, err := rowsAffected(db.Update(colWallets,
			dbx.Params{
				"wallet_balance": txn.Balance.String(),
				"version":        dbx.NewExp("[[version]] + 1"),
			},
			dbx.HashExp{"id": walletID, "version": expectedVersion},
		).WithContext(ctx).Execute())
		if err != nil {
			return fmt.Errorf("update wallet %s: %w", walletID, err)
		}
		if n == 0 {
			var w walletRow
			err := db.Select("id").From(colWallets).Where(dbx.HashExp{"id": walletID}).WithContext(ctx).One(&w)
			if err != nil {
				return notFound(err, "wallet %s", walletID)
			}
			return status.ErrConflict
		}

		_, err = db.Insert(colTransactions, dbx.Params{
			"id":             core.GenerateDefaultRandomId(),
			"wallet":         walletID,
			"transaction_id": txn.TransactionID,
			"sequence":       txn.Sequence,
			"date":           toDBTime(txn.Date),
			"amount":         txn.Amount.String(),
			"type":           string(txn.Type),
			"balance":        txn.Balance.String(),
			"status":         txn.Status,
			"description":    txn.Description,
			"reference":      txn.Reference,
			"metadata":       metadata,
			"event":          txn.EventID,
			"event_name":     txn.EventName,
		}).WithContext(ctx).Execute()
		if err != nil {
			return fmt.Errorf("insert transaction %s: %w", txn.TransactionID, err)
		}
		return nil
	})
}

func (s *Store) ListTransactions(ctx context.Context, walletID string, limit int) ([]models.Transaction, error) {
	q := s.app.DB().Select(transactionColumns...).
		From(colTransactions).
		Where(dbx.HashExp{"wallet": walletID}).
		OrderBy("sequence DESC")
	if limit > 0 {
		q = q.Limit(int64(limit))
	}

	var rows []transactionRow
	if err := q.WithContext(ctx).All(&rows); err != nil {
		return nil, fmt.Errorf("list transactions of %s: %w", walletID, err)
	}

	txns := make([]models.Transaction, 0, len(rows))
	for _, r := range rows {
		t, err := r.toModel()
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, nil
}

func (s *Store) FindTransactionByReference(ctx context.Context, walletID, reference string) (*models.Transaction, error) {
	var row transactionRow
	err := s.app.DB().Select(transactionColumns...).
		From(colTransactions).
		Where(dbx.HashExp{"wallet": walletID, "reference": reference}).
		WithContext(ctx).
		One(&row)
	if err != nil {
		return nil, notFound(err, "reference %s", reference)
	}
	t, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &t, nil
}
