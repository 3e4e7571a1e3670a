package pbstore

import (
	"context"
	"testing"
	"time"

	"event-marketplace/internal/services"
	"event-marketplace/internal/status"
	"event-marketplace/models"

	"github.com/pocketbase/pocketbase/tests"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ services.EventRepository   = (*Store)(nil)
	_ services.BookingRepository = (*Store)(nil)
	_ services.OwnerResolver     = (*Store)(nil)
	_ services.WalletStore       = (*Store)(nil)
	_ services.DistributionStore = (*Store)(nil)
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	app, err := tests.NewTestApp()
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)

	require.NoError(t, EnsureCollections(app))
	require.NoError(t, EnsureCollections(app), "second run must be a no-op")

	return New(app)
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var ended = time.Date(2025, 3, 1, 22, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store) (*models.Event, *models.Booking) {
	t.Helper()
	ctx := context.Background()

	event, err := s.CreateEvent(ctx, &models.Event{
		Name:        "Closing Night",
		OrganizerID: "org1",
		EndingDate:  ended,
		Status:      true,
		Tickets: []models.TicketType{
			{Type: "VIP", Price: d("500"), Quantity: 7},
			{Type: "GA", Price: d("200"), Quantity: 20},
		},
	})
	require.NoError(t, err)

	booking, err := s.CreateBooking(ctx, &models.Booking{
		EventID:       event.ID,
		UserID:        "buyer1",
		TotalAmount:   d("1500"),
		PaymentStatus: models.PaymentCompleted,
		CreatedAt:     ended.Add(-time.Hour),
		Tickets: []models.Ticket{
			{Type: "VIP", Price: d("500"), Quantity: 2, TotalPrice: d("1000"), UniqueID: "t1", Status: models.TicketActive},
			{Type: "VIP", Price: d("500"), Quantity: 1, TotalPrice: d("500"), UniqueID: "t2", Status: models.TicketCancelled},
		},
	})
	require.NoError(t, err)

	return event, booking
}

func TestEventsAndInventory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	event, _ := seed(t, s)

	found, err := s.FindEventByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, "Closing Night", found.Name)
	assert.True(t, found.EndingDate.Equal(ended))
	require.Len(t, found.Tickets, 2)

	owner, err := s.ResolveOwner(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, "org1", owner)

	updated, err := s.AdjustTicketInventory(ctx, event.ID, map[string]int{"VIP": 3, "GA": -5})
	require.NoError(t, err)
	vip, _ := updated.TicketType("VIP")
	ga, _ := updated.TicketType("GA")
	assert.Equal(t, 4, vip.Quantity)
	assert.Equal(t, 25, ga.Quantity)

	_, err = s.AdjustTicketInventory(ctx, event.ID, map[string]int{"GA": 1, "VIP": 5})
	assert.ErrorIs(t, err, status.ErrInsufficientInventory)

	after, err := s.FindEventByID(ctx, event.ID)
	require.NoError(t, err)
	ga, _ = after.TicketType("GA")
	assert.Equal(t, 25, ga.Quantity, "failed batch must roll back")

	_, err = s.AdjustTicketInventory(ctx, event.ID, map[string]int{"Balcony": 1})
	assert.ErrorIs(t, err, status.ErrNotFound)

	missing, err := s.AdjustTicketInventory(ctx, "nosuchevent0000", map[string]int{"GA": 1})
	assert.NoError(t, err)
	assert.Nil(t, missing)

	eligible, err := s.FindEligibleFinishedEvents(ctx, ended.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, event.ID, eligible[0].ID)

	notYet, err := s.FindEligibleFinishedEvents(ctx, ended.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, notYet)
}

func TestBookingsAndTicketStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	event, booking := seed(t, s)

	completed, err := s.FindCompletedBookingsByEvent(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	require.Len(t, completed[0].Tickets, 2)
	assert.Equal(t, "t1", completed[0].Tickets[0].UniqueID)
	assert.True(t, completed[0].Tickets[0].TotalPrice.Equal(d("1000")))

	updated, err := s.UpdateTicketStatus(ctx, booking.ID, "t1", models.TicketActive, models.TicketCancelled)
	require.NoError(t, err)
	t1, _ := updated.FindTicket("t1")
	assert.Equal(t, models.TicketCancelled, t1.Status)

	_, err = s.UpdateTicketStatus(ctx, booking.ID, "t1", models.TicketActive, models.TicketCancelled)
	assert.ErrorIs(t, err, status.ErrAlreadyCancelled)

	_, err = s.UpdateTicketStatus(ctx, booking.ID, "nope", models.TicketActive, models.TicketCancelled)
	assert.ErrorIs(t, err, status.ErrNotFound)

	none, err := s.UpdateTicketStatus(ctx, "nosuchbooking00", "t1", models.TicketActive, models.TicketCancelled)
	assert.NoError(t, err)
	assert.Nil(t, none)

	_, err = s.FindBookingByID(ctx, "nosuchbooking00")
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestWalletLedger(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.FindWallet(ctx, "user1")
	assert.ErrorIs(t, err, status.ErrNotFound)

	w, err := s.GetOrCreateWallet(ctx, "user1")
	require.NoError(t, err)
	assert.True(t, w.WalletBalance.IsZero())

	same, err := s.GetOrCreateWallet(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, w.ID, same.ID)

	first := &models.Transaction{
		TransactionID: "tx-1", Sequence: 1, Date: ended, Amount: d("936"), Type: models.TransactionCredit,
		Balance: d("936"), Status: models.TransactionCompleted, Reference: "distribution:abc",
		Metadata: map[string]any{"distributionId": "abc"},
	}
	require.NoError(t, s.AppendTransaction(ctx, w.ID, 0, first))

	stale := &models.Transaction{TransactionID: "tx-2", Sequence: 1, Amount: d("1"), Type: models.TransactionCredit, Balance: d("1")}
	assert.ErrorIs(t, s.AppendTransaction(ctx, w.ID, 0, stale), status.ErrConflict)

	dup := &models.Transaction{TransactionID: "tx-3", Sequence: 2, Amount: d("936"), Type: models.TransactionCredit, Balance: d("1872"), Reference: "distribution:abc"}
	assert.ErrorIs(t, s.AppendTransaction(ctx, w.ID, 1, dup), status.ErrDuplicateTransaction)

	second := &models.Transaction{TransactionID: "tx-4", Sequence: 2, Date: ended, Amount: d("36"), Type: models.TransactionWithdrawal, Balance: d("900"), Status: models.TransactionCompleted}
	require.NoError(t, s.AppendTransaction(ctx, w.ID, 1, second))

	w, err = s.FindWallet(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), w.Version)
	assert.True(t, w.WalletBalance.Equal(d("900")))

	txns, err := s.ListTransactions(ctx, w.ID, 0)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "tx-4", txns[0].TransactionID)
	assert.NoError(t, w.Replay([]models.Transaction{txns[1], txns[0]}))

	latest, err := s.ListTransactions(ctx, w.ID, 1)
	require.NoError(t, err)
	assert.Len(t, latest, 1)

	byRef, err := s.FindTransactionByReference(ctx, w.ID, "distribution:abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", byRef.Metadata["distributionId"])
	assert.True(t, byRef.Date.Equal(ended))
}

func TestDistributionClaims(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	event, _ := seed(t, s)
	now := ended.Add(24 * time.Hour)

	rec := &models.RevenueDistribution{
		EventID:           event.ID,
		AdminPercentage:   d("10"),
		TicketRevenue:     d("1000"),
		Surcharge:         d("40"),
		TotalRevenue:      d("1040"),
		TotalParticipants: 2,
		AdminAmount:       d("104"),
		OrganizerAmount:   d("936"),
	}

	claimed, err := s.ClaimPending(ctx, rec, "a", now.Add(time.Minute), now)
	require.NoError(t, err)
	assert.Equal(t, "a", claimed.ClaimToken)
	assert.True(t, claimed.OrganizerAmount.Equal(d("936")))

	_, err = s.ClaimPending(ctx, rec, "b", now.Add(time.Minute), now)
	assert.ErrorIs(t, err, status.ErrDistributionInProgress)

	require.NoError(t, s.ReleaseClaim(ctx, event.ID, "a"))

	reclaimed, err := s.ClaimPending(ctx, rec, "b", now.Add(time.Minute), now)
	require.NoError(t, err)
	assert.Equal(t, claimed.ID, reclaimed.ID)

	_, err = s.MarkDistributed(ctx, event.ID, "a", now)
	assert.ErrorIs(t, err, status.ErrConflict)

	done, err := s.MarkDistributed(ctx, event.ID, "b", now)
	require.NoError(t, err)
	assert.True(t, done.IsDistributed)
	require.NotNil(t, done.DistributedAt)
	assert.Empty(t, done.ClaimToken)

	_, err = s.ClaimPending(ctx, rec, "c", now.Add(time.Hour), now.Add(time.Minute))
	assert.ErrorIs(t, err, status.ErrAlreadyDistributed)

	eligible, err := s.FindEligibleFinishedEvents(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, eligible)

	completed, err := s.ListCompleted(ctx)
	require.NoError(t, err)
	assert.Len(t, completed, 1)
}

func TestDistributionClaimExpires(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	event, _ := seed(t, s)
	now := ended.Add(24 * time.Hour)
	rec := &models.RevenueDistribution{EventID: event.ID, TotalRevenue: d("1040")}

	_, err := s.ClaimPending(ctx, rec, "a", now.Add(time.Minute), now)
	require.NoError(t, err)

	_, err = s.ClaimPending(ctx, rec, "b", now.Add(3*time.Minute), now.Add(2*time.Minute))
	assert.NoError(t, err)
}
