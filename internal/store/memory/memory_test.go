package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"event-marketplace/internal/status"
	"event-marketplace/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustTicketInventory(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.PutEvent(models.Event{ID: "e1", Tickets: []models.TicketType{
		{Type: "VIP", Price: decimal.NewFromInt(500), Quantity: 2},
		{Type: "GA", Price: decimal.NewFromInt(100), Quantity: 10},
	}})

	e, err := s.AdjustTicketInventory(ctx, "e1", map[string]int{"VIP": 2, "GA": 1})
	require.NoError(t, err)
	vip, _ := e.TicketType("VIP")
	assert.Equal(t, 0, vip.Quantity)

	_, err = s.AdjustTicketInventory(ctx, "e1", map[string]int{"GA": 1, "VIP": 1})
	assert.ErrorIs(t, err, status.ErrInsufficientInventory)

	e, err = s.FindEventByID(ctx, "e1")
	require.NoError(t, err)
	ga, _ := e.TicketType("GA")
	assert.Equal(t, 9, ga.Quantity, "a rejected batch must not apply partially")

	_, err = s.AdjustTicketInventory(ctx, "e1", map[string]int{"Balcony": -1})
	assert.ErrorIs(t, err, status.ErrNotFound)

	e, err = s.AdjustTicketInventory(ctx, "missing", map[string]int{"GA": -1})
	assert.NoError(t, err)
	assert.Nil(t, e)
}

func TestAdjustTicketInventoryConcurrent(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.PutEvent(models.Event{ID: "e1", Tickets: []models.TicketType{
		{Type: "GA", Price: decimal.NewFromInt(100), Quantity: 10},
	}})

	const restores, consumes = 30, 10
	var wg sync.WaitGroup
	for i := 0; i < restores+consumes; i++ {
		delta := 1
		if i < restores {
			delta = -1
		}
		wg.Add(1)
		go func(delta int) {
			defer wg.Done()
			_, err := s.AdjustTicketInventory(ctx, "e1", map[string]int{"GA": delta})
			assert.NoError(t, err)
		}(delta)
	}
	wg.Wait()

	e, err := s.FindEventByID(ctx, "e1")
	require.NoError(t, err)
	ga, _ := e.TicketType("GA")
	assert.Equal(t, 10+restores-consumes, ga.Quantity)
}

func TestUpdateTicketStatus(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.PutBooking(models.Booking{ID: "b1", Tickets: []models.Ticket{{UniqueID: "t1", Status: models.TicketActive}}})

	b, err := s.UpdateTicketStatus(ctx, "b1", "t1", models.TicketActive, models.TicketCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.TicketCancelled, b.Tickets[0].Status)

	_, err = s.UpdateTicketStatus(ctx, "b1", "t1", models.TicketActive, models.TicketCancelled)
	assert.ErrorIs(t, err, status.ErrAlreadyCancelled)

	b, err = s.UpdateTicketStatus(ctx, "nope", "t1", models.TicketActive, models.TicketCancelled)
	assert.NoError(t, err)
	assert.Nil(t, b)
}

func TestAppendTransaction(t *testing.T) {
	s := New()
	ctx := context.Background()

	w, err := s.GetOrCreateWallet(ctx, "u1")
	require.NoError(t, err)

	txn := &models.Transaction{TransactionID: "x1", Amount: decimal.NewFromInt(10), Balance: decimal.NewFromInt(10), Reference: "r1"}
	require.NoError(t, s.AppendTransaction(ctx, w.ID, 0, txn))

	assert.ErrorIs(t, s.AppendTransaction(ctx, w.ID, 0, &models.Transaction{TransactionID: "x2"}), status.ErrConflict)
	assert.ErrorIs(t, s.AppendTransaction(ctx, w.ID, 1, &models.Transaction{TransactionID: "x3", Reference: "r1"}), status.ErrDuplicateTransaction)

	w, err = s.FindWallet(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.Version)
	assert.True(t, w.WalletBalance.Equal(decimal.NewFromInt(10)))

	found, err := s.FindTransactionByReference(ctx, w.ID, "r1")
	require.NoError(t, err)
	assert.Equal(t, "x1", found.TransactionID)
}

func TestClaimLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d := &models.RevenueDistribution{EventID: "e1", TotalRevenue: decimal.NewFromInt(100)}

	first, err := s.ClaimPending(ctx, d, "a", now.Add(time.Minute), now)
	require.NoError(t, err)

	_, err = s.ClaimPending(ctx, d, "b", now.Add(time.Minute), now)
	assert.ErrorIs(t, err, status.ErrDistributionInProgress)

	require.NoError(t, s.ReleaseClaim(ctx, "e1", "a"))
	second, err := s.ClaimPending(ctx, d, "b", now.Add(time.Minute), now)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = s.MarkDistributed(ctx, "e1", "a", now)
	assert.ErrorIs(t, err, status.ErrConflict)

	done, err := s.MarkDistributed(ctx, "e1", "b", now)
	require.NoError(t, err)
	assert.True(t, done.IsDistributed)

	_, err = s.ClaimPending(ctx, d, "c", now.Add(time.Minute), now.Add(time.Hour))
	assert.ErrorIs(t, err, status.ErrAlreadyDistributed)

	completed, err := s.ListCompleted(ctx)
	require.NoError(t, err)
	assert.Len(t, completed, 1)
}

func TestClaimExpiredLease(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d := &models.RevenueDistribution{EventID: "e1"}

	_, err := s.ClaimPending(ctx, d, "a", now.Add(time.Minute), now)
	require.NoError(t, err)

	_, err = s.ClaimPending(ctx, d, "b", now.Add(3*time.Minute), now.Add(2*time.Minute))
	assert.NoError(t, err)
}
