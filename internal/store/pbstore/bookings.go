package pbstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"event-marketplace/internal/status"
	"event-marketplace/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

type bookingRow struct {
	ID            string         `db:"id"`
	Event         string         `db:"event"`
	User          string         `db:"user"`
	TotalAmount   string         `db:"total_amount"`
	PaymentStatus string         `db:"payment_status"`
	CreatedAt     types.DateTime `db:"created_at"`
}

type bookingTicketRow struct {
	Booking      string `db:"booking"`
	Type         string `db:"type"`
	Price        string `db:"price"`
	Quantity     int    `db:"quantity"`
	UsedTickets  int    `db:"used_tickets"`
	TotalPrice   string `db:"total_price"`
	UniqueID     string `db:"unique_id"`
	UniqueQRCode string `db:"unique_qr_code"`
	Status       string `db:"status"`
}

var bookingColumns = []string{"id", "event", "user", "total_amount", "payment_status", "created_at"}

var bookingTicketColumns = []string{
	"booking", "type", "price", "quantity", "used_tickets", "total_price", "unique_id", "unique_qr_code", "status",
}

// CreateBooking inserts a booking with its ticket lines, keeping their order.
func (s *Store) CreateBooking(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	var id string
	err := s.app.RunInTransaction(func(tx core.App) error {
		col, err := tx.FindCollectionByNameOrId(colBookings)
		if err != nil {
			return err
		}
		rec := core.NewRecord(col)
		rec.Set("event", b.EventID)
		rec.Set("user", b.UserID)
		rec.Set("total_amount", b.TotalAmount.String())
		rec.Set("payment_status", string(b.PaymentStatus))
		rec.Set("created_at", b.CreatedAt)
		if err := tx.SaveWithContext(ctx, rec); err != nil {
			return fmt.Errorf("save booking: %w", err)
		}
		id = rec.Id

		ticketCol, err := tx.FindCollectionByNameOrId(colBookingTickets)
		if err != nil {
			return err
		}
		for i, t := range b.Tickets {
			st := t.Status
			if st == "" {
				st = models.TicketActive
			}
			tr := core.NewRecord(ticketCol)
			tr.Set("booking", id)
			tr.Set("position", i)
			tr.Set("type", t.Type)
			tr.Set("price", t.Price.String())
			tr.Set("quantity", t.Quantity)
			tr.Set("used_tickets", t.UsedTickets)
			tr.Set("total_price", t.TotalPrice.String())
			tr.Set("unique_id", t.UniqueID)
			tr.Set("unique_qr_code", t.UniqueQRCode)
			tr.Set("status", string(st))
			if err := tx.SaveWithContext(ctx, tr); err != nil {
				return fmt.Errorf("save ticket %s: %w", t.UniqueID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.FindBookingByID(ctx, id)
}

func (s *Store) FindBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	return findBooking(ctx, s.app.DB(), id)
}

func findBooking(ctx context.Context, db dbx.Builder, id string) (*models.Booking, error) {
	var row bookingRow
	err := db.Select(bookingColumns...).
		From(colBookings).
		Where(dbx.HashExp{"id": id}).
		WithContext(ctx).
		One(&row)
	if err != nil {
		return nil, notFound(err, "booking %s", id)
	}

	bookings, err := attachBookingTickets(ctx, db, []bookingRow{row})
	if err != nil {
		return nil, err
	}
	return &bookings[0], nil
}

func (s *Store) FindCompletedBookingsByEvent(ctx context.Context, eventID string) ([]models.Booking, error) {
	var rows []bookingRow
	err := s.app.DB().Select(bookingColumns...).
		From(colBookings).
		Where(dbx.HashExp{"event": eventID, "payment_status": string(models.PaymentCompleted)}).
		OrderBy("created_at ASC", "id ASC").
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, fmt.Errorf("query bookings of %s: %w", eventID, err)
	}
	return attachBookingTickets(ctx, s.app.DB(), rows)
}

func attachBookingTickets(ctx context.Context, db dbx.Builder, rows []bookingRow) ([]models.Booking, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	var tickets []bookingTicketRow
	err := db.Select(bookingTicketColumns...).
		From(colBookingTickets).
		Where(inStrings("booking", ids)).
		OrderBy("booking ASC", "position ASC").
		WithContext(ctx).
		All(&tickets)
	if err != nil {
		return nil, fmt.Errorf("load booking tickets: %w", err)
	}

	byBooking := make(map[string][]models.Ticket, len(rows))
	for _, t := range tickets {
		price, err := toDecimal(t.Price)
		if err != nil {
			return nil, fmt.Errorf("ticket %s price: %w", t.UniqueID, err)
		}
		total, err := toDecimal(t.TotalPrice)
		if err != nil {
			return nil, fmt.Errorf("ticket %s total price: %w", t.UniqueID, err)
		}
		byBooking[t.Booking] = append(byBooking[t.Booking], models.Ticket{
			Type:         t.Type,
			Price:        price,
			Quantity:     t.Quantity,
			UsedTickets:  t.UsedTickets,
			TotalPrice:   total,
			UniqueID:     t.UniqueID,
			UniqueQRCode: t.UniqueQRCode,
			Status:       models.TicketStatus(t.Status),
		})
	}

	bookings := make([]models.Booking, len(rows))
	for i, r := range rows {
		total, err := toDecimal(r.TotalAmount)
		if err != nil {
			return nil, fmt.Errorf("booking %s total: %w", r.ID, err)
		}
		bookings[i] = models.Booking{
			ID:            r.ID,
			EventID:       r.Event,
			UserID:        r.User,
			Tickets:       byBooking[r.ID],
			TotalAmount:   total,
			PaymentStatus: models.PaymentStatus(r.PaymentStatus),
			CreatedAt:     fromDBTime(r.CreatedAt),
		}
	}
	return bookings, nil
}

// UpdateTicketStatus moves one ticket line from one status to another. A missing
// booking yields nil without error.
func (s *Store) UpdateTicketStatus(ctx context.Context, bookingID, ticketUniqueID string, from, to models.TicketStatus) (*models.Booking, error) {
	var booking *models.Booking
	err := s.app.RunInTransaction(func(tx core.App) error {
		db := tx.DB()

		n, err := rowsAffected(db.Update(colBookingTickets,
			dbx.Params{"status": string(to)},
			dbx.HashExp{"booking": bookingID, "unique_id": ticketUniqueID, "status": string(from)},
		).WithContext(ctx).Execute())
		if err != nil {
			return fmt.Errorf("update ticket %s: %w", ticketUniqueID, err)
		}

		if n == 0 {
			if _, err := findBooking(ctx, db, bookingID); errors.Is(err, status.ErrNotFound) {
				return nil
			} else if err != nil {
				return err
			}

			var t bookingTicketRow
			err := db.Select("status").From(colBookingTickets).
				Where(dbx.HashExp{"booking": bookingID, "unique_id": ticketUniqueID}).
				WithContext(ctx).
				One(&t)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("ticket %s: %w", ticketUniqueID, status.ErrNotFound)
			}
			if err != nil {
				return err
			}
			if models.TicketStatus(t.Status) == models.TicketCancelled {
				return status.ErrAlreadyCancelled
			}
			return fmt.Errorf("ticket %s is %s: %w", ticketUniqueID, t.Status, status.ErrConflict)
		}

		booking, err = findBooking(ctx, db, bookingID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}
