package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentCompleted PaymentStatus = "Completed"
	PaymentFailed    PaymentStatus = "Failed"
)

type TicketStatus string

const (
	TicketActive    TicketStatus = "Active"
	TicketCancelled TicketStatus = "Cancelled"
)

type Booking struct {
	ID            string          `json:"id"`
	EventID       string          `json:"event_id"`
	UserID        string          `json:"user_id"`
	Tickets       []Ticket        `json:"tickets"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Ticket is a line item of a booking. TotalPrice is fixed at purchase time.
type Ticket struct {
	Type         string          `json:"type"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	UsedTickets  int             `json:"used_tickets"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	UniqueID     string          `json:"unique_id"`
	UniqueQRCode string          `json:"unique_qr_code"`
	Status       TicketStatus    `json:"status"`
}

func (t *Ticket) IsCancelled() bool {
	return t.Status == TicketCancelled
}

// FindTicket locates a line item by its unique id.
func (b *Booking) FindTicket(uniqueID string) (*Ticket, bool) {
	for i := range b.Tickets {
		if b.Tickets[i].UniqueID == uniqueID {
			return &b.Tickets[i], true
		}
	}
	return nil, false
}

// ActiveRevenue sums the total price and quantity of every non-cancelled ticket.
func (b *Booking) ActiveRevenue() (decimal.Decimal, int) {
	revenue := decimal.Zero
	participants := 0
	for _, t := range b.Tickets {
		if t.IsCancelled() {
			continue
		}
		revenue = revenue.Add(t.TotalPrice)
		participants += t.Quantity
	}
	return revenue, participants
}

// Clone returns a deep copy so stores never hand out their own slices.
func (b *Booking) Clone() *Booking {
	c := *b
	c.Tickets = append([]Ticket(nil), b.Tickets...)
	return &c
}
