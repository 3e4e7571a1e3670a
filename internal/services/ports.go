package services

import (
	"context"
	"time"

	"event-marketplace/models"
)

// BookingRepository is the read side of checkout plus the one write this engine owns:
// per-ticket status transitions.
type BookingRepository interface {
	FindCompletedBookingsByEvent(ctx context.Context, eventID string) ([]models.Booking, error)
	FindBookingByID(ctx context.Context, id string) (*models.Booking, error)
	// UpdateTicketStatus moves a ticket from one status to another and fails with
	// status.ErrAlreadyCancelled / status.ErrConflict when the ticket is no longer in from.
	UpdateTicketStatus(ctx context.Context, bookingID, ticketUniqueID string, from, to models.TicketStatus) (*models.Booking, error)
}

type EventRepository interface {
	// FindEligibleFinishedEvents returns listed events ended before now that were not paid out.
	FindEligibleFinishedEvents(ctx context.Context, now time.Time) ([]models.Event, error)
	FindEventByID(ctx context.Context, id string) (*models.Event, error)
	// AdjustTicketInventory applies signed deltas atomically: positive consumes, negative restores.
	AdjustTicketInventory(ctx context.Context, eventID string, deltas map[string]int) (*models.Event, error)
}

type OwnerResolver interface {
	ResolveOwner(ctx context.Context, eventID string) (string, error)
}

type WalletStore interface {
	// GetOrCreateWallet returns the wallet header (no transactions), creating it at zero.
	GetOrCreateWallet(ctx context.Context, userID string) (*models.Wallet, error)
	FindWallet(ctx context.Context, userID string) (*models.Wallet, error)
	// AppendTransaction writes txn and sets the balance to txn.Balance in one unit, only if
	// the wallet is still at expectedVersion. Returns status.ErrConflict otherwise and
	// status.ErrDuplicateTransaction when txn.Reference was already used on this wallet.
	AppendTransaction(ctx context.Context, walletID string, expectedVersion int64, txn *models.Transaction) error
	// ListTransactions returns most-recent-first; limit <= 0 means all.
	ListTransactions(ctx context.Context, walletID string, limit int) ([]models.Transaction, error)
	FindTransactionByReference(ctx context.Context, walletID, reference string) (*models.Transaction, error)
}

type DistributionStore interface {
	FindByEvent(ctx context.Context, eventID string) (*models.RevenueDistribution, error)
	// ClaimPending upserts the computed figures and takes the lease in one conditional write.
	ClaimPending(ctx context.Context, d *models.RevenueDistribution, token string, leaseUntil, now time.Time) (*models.RevenueDistribution, error)
	// MarkDistributed flips is_distributed only for the current lease holder.
	MarkDistributed(ctx context.Context, eventID, token string, at time.Time) (*models.RevenueDistribution, error)
	ReleaseClaim(ctx context.Context, eventID, token string) error
	ListCompleted(ctx context.Context) ([]models.RevenueDistribution, error)
}

type Notifier interface {
	NotifyPayout(ctx context.Context, organizerID string, d *models.RevenueDistribution, txn *models.Transaction) error
	NotifyRefund(ctx context.Context, userID string, booking *models.Booking, ticket *models.Ticket, txn *models.Transaction) error
}

// Locker guards work that must not overlap across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}
