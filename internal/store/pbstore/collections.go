package pbstore

import (
	"fmt"

	"github.com/pocketbase/pocketbase/core"
)

const (
	colEvents         = "events"
	colEventTickets   = "event_tickets"
	colBookings       = "bookings"
	colBookingTickets = "booking_tickets"
	colWallets        = "wallets"
	colTransactions   = "wallet_transactions"
	colDistributions  = "revenue_distributions"
)

// Amounts are stored as TEXT so they round-trip through decimal.Decimal exactly.
func collectionSchemas() []*core.Collection {
	events := core.NewBaseCollection(colEvents)
	events.Fields.Add(
		&core.TextField{Name: "name", Required: true},
		&core.TextField{Name: "organizer"},
		&core.DateField{Name: "ending_date"},
		&core.BoolField{Name: "status"},
	)
	events.AddIndex("idx_events_ending_date", false, "ending_date, status", "")

	eventTickets := core.NewBaseCollection(colEventTickets)
	eventTickets.Fields.Add(
		&core.TextField{Name: "event", Required: true},
		&core.TextField{Name: "type", Required: true},
		&core.TextField{Name: "price"},
		&core.NumberField{Name: "quantity", OnlyInt: true},
	)
	eventTickets.AddIndex("idx_event_tickets_event_type", true, "event, type", "")

	bookings := core.NewBaseCollection(colBookings)
	bookings.Fields.Add(
		&core.TextField{Name: "event", Required: true},
		&core.TextField{Name: "user", Required: true},
		&core.TextField{Name: "total_amount"},
		&core.TextField{Name: "payment_status"},
		&core.DateField{Name: "created_at"},
	)
	bookings.AddIndex("idx_bookings_event_status", false, "event, payment_status", "")

	bookingTickets := core.NewBaseCollection(colBookingTickets)
	bookingTickets.Fields.Add(
		&core.TextField{Name: "booking", Required: true},
		&core.NumberField{Name: "position", OnlyInt: true},
		&core.TextField{Name: "type"},
		&core.TextField{Name: "price"},
		&core.NumberField{Name: "quantity", OnlyInt: true},
		&core.NumberField{Name: "used_tickets", OnlyInt: true},
		&core.TextField{Name: "total_price"},
		&core.TextField{Name: "unique_id", Required: true},
		&core.TextField{Name: "unique_qr_code"},
		&core.TextField{Name: "status"},
	)
	bookingTickets.AddIndex("idx_booking_tickets_unique", true, "booking, unique_id", "")

	wallets := core.NewBaseCollection(colWallets)
	wallets.Fields.Add(
		&core.TextField{Name: "user", Required: true},
		&core.TextField{Name: "wallet_balance"},
		&core.NumberField{Name: "version", OnlyInt: true},
	)
	wallets.AddIndex("idx_wallets_user", true, "user", "")

	transactions := core.NewBaseCollection(colTransactions)
	transactions.Fields.Add(
		&core.TextField{Name: "wallet", Required: true},
		&core.TextField{Name: "transaction_id", Required: true},
		&core.NumberField{Name: "sequence", OnlyInt: true},
		&core.DateField{Name: "date"},
		&core.TextField{Name: "amount"},
		&core.TextField{Name: "type"},
		&core.TextField{Name: "balance"},
		&core.TextField{Name: "status"},
		&core.TextField{Name: "description"},
		&core.TextField{Name: "reference"},
		&core.JSONField{Name: "metadata", MaxSize: 1 << 16},
		&core.TextField{Name: "event"},
		&core.TextField{Name: "event_name"},
	)
	transactions.AddIndex("idx_wallet_transactions_id", true, "transaction_id", "")
	transactions.AddIndex("idx_wallet_transactions_sequence", true, "wallet, sequence", "")
	transactions.AddIndex("idx_wallet_transactions_reference", true, "wallet, reference", "reference != ''")

	distributions := core.NewBaseCollection(colDistributions)
	distributions.Fields.Add(
		&core.TextField{Name: "event", Required: true},
		&core.TextField{Name: "admin_percentage"},
		&core.TextField{Name: "ticket_revenue"},
		&core.TextField{Name: "surcharge"},
		&core.TextField{Name: "total_revenue"},
		&core.NumberField{Name: "total_participants", OnlyInt: true},
		&core.TextField{Name: "admin_amount"},
		&core.TextField{Name: "organizer_amount"},
		&core.DateField{Name: "distributed_at"},
		&core.BoolField{Name: "is_distributed"},
		&core.TextField{Name: "claim_token"},
		&core.DateField{Name: "claim_expires_at"},
		&core.DateField{Name: "created_at"},
		&core.DateField{Name: "updated_at"},
	)
	distributions.AddIndex("idx_revenue_distributions_event", true, "event", "")

	return []*core.Collection{events, eventTickets, bookings, bookingTickets, wallets, transactions, distributions}
}

// EnsureCollections creates every collection the engine needs that does not exist yet.
func EnsureCollections(app core.App) error {
	for _, c := range collectionSchemas() {
		if _, err := app.FindCollectionByNameOrId(c.Name); err == nil {
			continue
		}
		if err := app.Save(c); err != nil {
			return fmt.Errorf("create collection %s: %w", c.Name, err)
		}
	}
	return nil
}

// DropCollections removes the engine's collections in reverse dependency order.
func DropCollections(app core.App) error {
	schemas := collectionSchemas()
	for i := len(schemas) - 1; i >= 0; i-- {
		c, err := app.FindCollectionByNameOrId(schemas[i].Name)
		if err != nil {
			continue
		}
		if err := app.Delete(c); err != nil {
			return fmt.Errorf("drop collection %s: %w", c.Name, err)
		}
	}
	return nil
}
