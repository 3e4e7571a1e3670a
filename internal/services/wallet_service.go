package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"event-marketplace/config"
	"event-marketplace/internal/status"
	"event-marketplace/models"
	"event-marketplace/monitoring"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEntry describes one wallet movement. Reference, when set, makes the entry
// idempotent per wallet.
type LedgerEntry struct {
	Amount      decimal.Decimal
	Type        models.TransactionType
	Description string
	Reference   string
	Metadata    map[string]any
	EventID     string
	EventName   string
}

// WalletService is the only component allowed to change a wallet balance.
type WalletService struct {
	store      WalletStore
	monitor    *monitoring.Monitor
	logger     *slog.Logger
	places     int32
	maxRetries int
	now        func() time.Time
}

func NewWalletService(store WalletStore, monitor *monitoring.Monitor, logger *slog.Logger, cfg *config.Config) *WalletService {
	return &WalletService{
		store:      store,
		monitor:    monitor,
		logger:     logger,
		places:     cfg.CurrencyPlaces,
		maxRetries: cfg.LedgerMaxRetries,
		now:        time.Now,
	}
}

func (s *WalletService) GetOrCreate(ctx context.Context, userID string) (*models.Wallet, error) {
	if userID == "" {
		return nil, fmt.Errorf("wallet: empty user id: %w", status.ErrNotFound)
	}
	return s.store.GetOrCreateWallet(ctx, userID)
}

// Credit adds a CREDIT or REFUND entry, creating the wallet on first use.
func (s *WalletService) Credit(ctx context.Context, userID string, entry LedgerEntry) (*models.Transaction, error) {
	if entry.Type == "" {
		entry.Type = models.TransactionCredit
	}
	if !entry.Type.IsInflow() {
		return nil, fmt.Errorf("credit with %s: %w", entry.Type, status.ErrInvalidType)
	}
	return s.apply(ctx, userID, entry)
}

// Debit removes a DEBIT or WITHDRAWAL entry. It never creates a wallet and never
// lets the balance go negative.
func (s *WalletService) Debit(ctx context.Context, userID string, entry LedgerEntry) (*models.Transaction, error) {
	if entry.Type == "" {
		entry.Type = models.TransactionDebit
	}
	if !entry.Type.Valid() || entry.Type.IsInflow() {
		return nil, fmt.Errorf("debit with %s: %w", entry.Type, status.ErrInvalidType)
	}
	return s.apply(ctx, userID, entry)
}

func (s *WalletService) apply(ctx context.Context, userID string, entry LedgerEntry) (*models.Transaction, error) {
	amount := entry.Amount
	if !amount.IsPositive() {
		s.monitor.TrackWalletTransaction(string(entry.Type), "invalid")
		return nil, fmt.Errorf("%s %s: %w", entry.Type, entry.Amount, status.ErrInvalidAmount)
	}
	if !amount.Equal(amount.Truncate(s.places)) {
		s.monitor.TrackWalletTransaction(string(entry.Type), "invalid")
		return nil, fmt.Errorf("%s %s is finer than %d decimal places: %w", entry.Type, entry.Amount, s.places, status.ErrInvalidAmount)
	}

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		wallet, err := s.load(ctx, userID, entry.Type)
		if err != nil {
			return nil, err
		}

		if entry.Reference != "" {
			existing, err := s.store.FindTransactionByReference(ctx, wallet.ID, entry.Reference)
			if err == nil {
				s.monitor.TrackWalletTransaction(string(entry.Type), "duplicate")
				return existing, fmt.Errorf("reference %s: %w", entry.Reference, status.ErrDuplicateTransaction)
			}
			if !errors.Is(err, status.ErrNotFound) {
				return nil, fmt.Errorf("lookup reference %s: %w", entry.Reference, err)
			}
		}

		balance := wallet.WalletBalance
		if entry.Type.IsInflow() {
			balance = balance.Add(amount)
		} else {
			if amount.GreaterThan(balance) {
				s.monitor.TrackWalletTransaction(string(entry.Type), "insufficient_funds")
				return nil, fmt.Errorf("debit %s from balance %s: %w", amount, wallet.WalletBalance, status.ErrInsufficientFunds)
			}
			balance = balance.Sub(amount)
		}

		txn := &models.Transaction{
			TransactionID: uuid.NewString(),
			Sequence:      wallet.Version + 1,
			Date:          s.now().UTC(),
			Amount:        amount,
			Type:          entry.Type,
			Balance:       balance,
			Status:        models.TransactionCompleted,
			Description:   entry.Description,
			Reference:     entry.Reference,
			Metadata:      entry.Metadata,
			EventID:       entry.EventID,
			EventName:     entry.EventName,
		}

		err = s.store.AppendTransaction(ctx, wallet.ID, wallet.Version, txn)
		switch {
		case err == nil:
			s.monitor.TrackWalletTransaction(string(entry.Type), "success")
			s.logger.Info("wallet transaction appended",
				"user_id", userID,
				"transaction_id", txn.TransactionID,
				"type", txn.Type,
				"amount", txn.Amount.String(),
				"balance", txn.Balance.String(),
			)
			return txn, nil
		case errors.Is(err, status.ErrConflict):
			s.monitor.TrackWalletRetry()
			s.logger.Debug("wallet changed underneath, retrying", "user_id", userID, "attempt", attempt)
			continue
		case errors.Is(err, status.ErrDuplicateTransaction):
			s.monitor.TrackWalletTransaction(string(entry.Type), "duplicate")
			existing, ferr := s.store.FindTransactionByReference(ctx, wallet.ID, entry.Reference)
			if ferr != nil {
				return nil, fmt.Errorf("reference %s: %w", entry.Reference, err)
			}
			return existing, fmt.Errorf("reference %s: %w", entry.Reference, err)
		default:
			s.monitor.TrackWalletTransaction(string(entry.Type), "error")
			return nil, fmt.Errorf("append transaction for %s: %w", userID, err)
		}
	}

	s.monitor.TrackWalletTransaction(string(entry.Type), "conflict")
	return nil, fmt.Errorf("wallet %s after %d attempts: %w", userID, s.maxRetries, status.ErrConflict)
}

func (s *WalletService) load(ctx context.Context, userID string, txType models.TransactionType) (*models.Wallet, error) {
	if txType.IsInflow() {
		wallet, err := s.GetOrCreate(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("get or create wallet: %w", err)
		}
		return wallet, nil
	}

	wallet, err := s.store.FindWallet(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find wallet %s: %w", userID, err)
	}
	return wallet, nil
}

// GetBalance returns zero for users that never had a wallet.
func (s *WalletService) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	wallet, err := s.store.FindWallet(ctx, userID)
	if errors.Is(err, status.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("find wallet %s: %w", userID, err)
	}
	return wallet.WalletBalance, nil
}

// GetHistory returns up to limit transactions, most recent first.
func (s *WalletService) GetHistory(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	wallet, err := s.store.FindWallet(ctx, userID)
	if errors.Is(err, status.ErrNotFound) {
		return []models.Transaction{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find wallet %s: %w", userID, err)
	}
	return s.store.ListTransactions(ctx, wallet.ID, limit)
}

// GetWalletWithHistory returns an empty zero-balance wallet for users that never
// had one, like GetBalance and GetHistory. Nothing is created.
func (s *WalletService) GetWalletWithHistory(ctx context.Context, userID string, limit int) (*models.Wallet, error) {
	wallet, err := s.store.FindWallet(ctx, userID)
	if errors.Is(err, status.ErrNotFound) {
		return &models.Wallet{UserID: userID, WalletBalance: decimal.Zero, Transactions: []models.Transaction{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find wallet %s: %w", userID, err)
	}
	txns, err := s.store.ListTransactions(ctx, wallet.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	wallet.Transactions = txns
	return wallet, nil
}

// FindByReference returns the transaction a wallet holds for reference, or
// status.ErrNotFound when the user has no wallet or no such entry.
func (s *WalletService) FindByReference(ctx context.Context, userID, reference string) (*models.Transaction, error) {
	wallet, err := s.store.FindWallet(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find wallet %s: %w", userID, err)
	}
	txn, err := s.store.FindTransactionByReference(ctx, wallet.ID, reference)
	if err != nil {
		return nil, fmt.Errorf("reference %s on wallet %s: %w", reference, wallet.ID, err)
	}
	return txn, nil
}

// VerifyLedger replays the whole history of a wallet against its stored snapshots.
func (s *WalletService) VerifyLedger(ctx context.Context, userID string) error {
	wallet, err := s.store.FindWallet(ctx, userID)
	if err != nil {
		return fmt.Errorf("find wallet %s: %w", userID, err)
	}
	txns, err := s.store.ListTransactions(ctx, wallet.ID, 0)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}

	oldestFirst := make([]models.Transaction, len(txns))
	for i := range txns {
		oldestFirst[len(txns)-1-i] = txns[i]
	}
	if err := wallet.Replay(oldestFirst); err != nil {
		s.logger.Error("ledger replay mismatch", "user_id", userID, "error", err)
		return &status.InconsistentStateError{
			Operation: "verify_ledger",
			Stage:     "replay",
			Refs:      map[string]string{"user_id": userID, "wallet_id": wallet.ID},
			Err:       err,
		}
	}
	return nil
}
