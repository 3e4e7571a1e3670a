package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBooking_ActiveRevenue_SkipsCancelled(t *testing.T) {
	booking := Booking{
		ID: "booking-1",
		Tickets: []Ticket{
			{Type: "VIP", Price: dec("500"), Quantity: 2, TotalPrice: dec("1000"), UniqueID: "t1", Status: TicketActive},
			{Type: "VIP", Price: dec("500"), Quantity: 1, TotalPrice: dec("500"), UniqueID: "t2", Status: TicketCancelled},
		},
	}

	revenue, participants := booking.ActiveRevenue()

	assert.True(t, revenue.Equal(dec("1000")), "revenue %s", revenue)
	assert.Equal(t, 2, participants)
}

func TestBooking_FindTicket(t *testing.T) {
	booking := Booking{Tickets: []Ticket{{UniqueID: "a"}, {UniqueID: "b", Type: "GA"}}}

	ticket, ok := booking.FindTicket("b")
	require.True(t, ok)
	assert.Equal(t, "GA", ticket.Type)

	_, ok = booking.FindTicket("missing")
	assert.False(t, ok)
}

func TestBooking_CloneDoesNotShareTickets(t *testing.T) {
	original := &Booking{ID: "b1", Tickets: []Ticket{{UniqueID: "t1", Status: TicketActive}}}

	clone := original.Clone()
	clone.Tickets[0].Status = TicketCancelled

	assert.Equal(t, TicketActive, original.Tickets[0].Status)
}

func TestEvent_EndedAndTicketType(t *testing.T) {
	now := time.Now()
	event := Event{
		EndingDate: now.Add(-time.Hour),
		Tickets:    []TicketType{{Type: "VIP", Price: dec("500"), Quantity: 10}},
	}

	assert.True(t, event.Ended(now))
	assert.False(t, event.Ended(now.Add(-2*time.Hour)))

	tt, ok := event.TicketType("VIP")
	require.True(t, ok)
	assert.Equal(t, 10, tt.Quantity)
}

func TestTransactionType_Direction(t *testing.T) {
	assert.True(t, TransactionCredit.IsInflow())
	assert.True(t, TransactionRefund.IsInflow())
	assert.False(t, TransactionDebit.IsInflow())
	assert.False(t, TransactionWithdrawal.IsInflow())
	assert.False(t, TransactionType("BONUS").Valid())
}

func TestWallet_Replay(t *testing.T) {
	txns := []Transaction{
		{TransactionID: "1", Type: TransactionCredit, Amount: dec("100"), Balance: dec("100")},
		{TransactionID: "2", Type: TransactionDebit, Amount: dec("30.5"), Balance: dec("69.5")},
		{TransactionID: "3", Type: TransactionRefund, Amount: dec("0.5"), Balance: dec("70")},
	}

	wallet := Wallet{UserID: "u1", WalletBalance: dec("70")}
	assert.NoError(t, wallet.Replay(txns))

	wallet.WalletBalance = dec("71")
	assert.Error(t, wallet.Replay(txns))

	wallet.WalletBalance = dec("70")
	txns[1].Balance = dec("70")
	assert.Error(t, wallet.Replay(txns))
}

func TestRevenueDistribution_Claimable(t *testing.T) {
	now := time.Now()

	d := RevenueDistribution{}
	assert.True(t, d.Claimable("a", now))

	d.ClaimToken = "a"
	d.ClaimExpiresAt = now.Add(time.Minute)
	assert.True(t, d.Claimable("a", now))
	assert.False(t, d.Claimable("b", now))
	assert.True(t, d.Claimable("b", now.Add(2*time.Minute)))

	d.IsDistributed = true
	assert.False(t, d.Claimable("a", now))
}
