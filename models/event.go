package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Event struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	OrganizerID string       `json:"organizer_id"`
	EndingDate  time.Time    `json:"ending_date"`
	Status      bool         `json:"status"` // listed / unlisted
	Tickets     []TicketType `json:"tickets"`
}

// TicketType is one entry of an event's catalog; Quantity is what is still on sale.
type TicketType struct {
	Type     string          `json:"type"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Ended reports whether the event finished before now.
func (e *Event) Ended(now time.Time) bool {
	return e.EndingDate.Before(now)
}

// TicketType returns the catalog entry with the given type name.
func (e *Event) TicketType(name string) (*TicketType, bool) {
	for i := range e.Tickets {
		if e.Tickets[i].Type == name {
			return &e.Tickets[i], true
		}
	}
	return nil, false
}
