package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"event-marketplace/config"
	"event-marketplace/internal/store/memory"
	"event-marketplace/models"
	"event-marketplace/monitoring"

	"github.com/shopspring/decimal"
)

func testConfig() *config.Config {
	return &config.Config{
		AdminPercentage:        decimal.NewFromInt(10),
		PlatformSurcharge:      decimal.NewFromInt(40),
		DistributionLease:      2 * time.Minute,
		CancellationFeePercent: decimal.NewFromInt(10),
		CurrencyPlaces:         2,
		LedgerMaxRetries:       5,
		SweepConcurrency:       4,
		SweepLockTTL:           time.Minute,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type recordingNotifier struct {
	mu      sync.Mutex
	payouts []string
	refunds []string
}

func (n *recordingNotifier) NotifyPayout(_ context.Context, organizerID string, _ *models.RevenueDistribution, txn *models.Transaction) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payouts = append(n.payouts, organizerID+":"+txn.Amount.String())
	return nil
}

func (n *recordingNotifier) NotifyRefund(_ context.Context, userID string, _ *models.Booking, _ *models.Ticket, txn *models.Transaction) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.refunds = append(n.refunds, userID+":"+txn.Amount.String())
	return nil
}

type harness struct {
	cfg          *config.Config
	store        *memory.Store
	notifier     *recordingNotifier
	wallet       *WalletService
	inventory    *InventoryService
	distribution *DistributionService
	cancellation *CancellationService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := testConfig()
	store := memory.New()
	monitor := monitoring.NewMonitor()
	logger := testLogger()
	notifier := &recordingNotifier{}

	wallet := NewWalletService(store, monitor, logger, cfg)
	inventory := NewInventoryService(store, monitor, logger)

	return &harness{
		cfg:          cfg,
		store:        store,
		notifier:     notifier,
		wallet:       wallet,
		inventory:    inventory,
		distribution: NewDistributionService(store, store, store, store, wallet, notifier, monitor, logger, PolicyFromConfig(cfg)),
		cancellation: NewCancellationService(store, inventory, wallet, notifier, monitor, logger, cfg),
	}
}

var pastEnd = time.Date(2025, 3, 1, 22, 0, 0, 0, time.UTC)

func seedEvent(h *harness, id, organizerID string, tickets ...models.TicketType) {
	h.store.PutEvent(models.Event{
		ID:          id,
		Name:        "Event " + id,
		OrganizerID: organizerID,
		EndingDate:  pastEnd,
		Status:      true,
		Tickets:     tickets,
	})
}

func ticket(uniqueID, ticketType, price string, qty int, st models.TicketStatus) models.Ticket {
	p := dec(price)
	return models.Ticket{
		Type:       ticketType,
		Price:      p,
		Quantity:   qty,
		TotalPrice: p.Mul(decimal.NewFromInt(int64(qty))),
		UniqueID:   uniqueID,
		Status:     st,
	}
}

func seedBooking(h *harness, id, eventID, userID string, ps models.PaymentStatus, tickets ...models.Ticket) {
	total := decimal.Zero
	for _, t := range tickets {
		total = total.Add(t.TotalPrice)
	}
	h.store.PutBooking(models.Booking{
		ID:            id,
		EventID:       eventID,
		UserID:        userID,
		Tickets:       tickets,
		TotalAmount:   total,
		PaymentStatus: ps,
		CreatedAt:     pastEnd.Add(-48 * time.Hour),
	})
}

func monitoringForTest() *monitoring.Monitor {
	return monitoring.NewMonitor()
}
