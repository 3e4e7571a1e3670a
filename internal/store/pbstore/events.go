package pbstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"event-marketplace/internal/status"
	"event-marketplace/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

type eventRow struct {
	ID         string         `db:"id"`
	Name       string         `db:"name"`
	Organizer  string         `db:"organizer"`
	EndingDate types.DateTime `db:"ending_date"`
	Status     bool           `db:"status"`
}

type eventTicketRow struct {
	Event    string `db:"event"`
	Type     string `db:"type"`
	Price    string `db:"price"`
	Quantity int    `db:"quantity"`
}

// CreateEvent inserts an event and its ticket catalog and returns it with ids set.
func (s *Store) CreateEvent(ctx context.Context, e *models.Event) (*models.Event, error) {
	var id string
	err := s.app.RunInTransaction(func(tx core.App) error {
		col, err := tx.FindCollectionByNameOrId(colEvents)
		if err != nil {
			return err
		}
		rec := core.NewRecord(col)
		rec.Set("name", e.Name)
		rec.Set("organizer", e.OrganizerID)
		rec.Set("ending_date", e.EndingDate)
		rec.Set("status", e.Status)
		if err := tx.SaveWithContext(ctx, rec); err != nil {
			return fmt.Errorf("save event: %w", err)
		}
		id = rec.Id

		ticketCol, err := tx.FindCollectionByNameOrId(colEventTickets)
		if err != nil {
			return err
		}
		for _, t := range e.Tickets {
			tr := core.NewRecord(ticketCol)
			tr.Set("event", id)
			tr.Set("type", t.Type)
			tr.Set("price", t.Price.String())
			tr.Set("quantity", t.Quantity)
			if err := tx.SaveWithContext(ctx, tr); err != nil {
				return fmt.Errorf("save ticket type %s: %w", t.Type, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.FindEventByID(ctx, id)
}

func (s *Store) FindEventByID(ctx context.Context, id string) (*models.Event, error) {
	return findEvent(ctx, s.app.DB(), id)
}

func findEvent(ctx context.Context, db dbx.Builder, id string) (*models.Event, error) {
	var row eventRow
	err := db.Select("id", "name", "organizer", "ending_date", "status").
		From(colEvents).
		Where(dbx.HashExp{"id": id}).
		WithContext(ctx).
		One(&row)
	if err != nil {
		return nil, notFound(err, "event %s", id)
	}

	events, err := attachEventTickets(ctx, db, []eventRow{row})
	if err != nil {
		return nil, err
	}
	return &events[0], nil
}

func attachEventTickets(ctx context.Context, db dbx.Builder, rows []eventRow) ([]models.Event, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	var tickets []eventTicketRow
	err := db.Select("event", "type", "price", "quantity").
		From(colEventTickets).
		Where(inStrings("event", ids)).
		OrderBy("event ASC", "type ASC").
		WithContext(ctx).
		All(&tickets)
	if err != nil {
		return nil, fmt.Errorf("load ticket types: %w", err)
	}

	byEvent := make(map[string][]models.TicketType, len(rows))
	for _, t := range tickets {
		price, err := toDecimal(t.Price)
		if err != nil {
			return nil, fmt.Errorf("ticket type %s of %s: %w", t.Type, t.Event, err)
		}
		byEvent[t.Event] = append(byEvent[t.Event], models.TicketType{Type: t.Type, Price: price, Quantity: t.Quantity})
	}

	events := make([]models.Event, len(rows))
	for i, r := range rows {
		events[i] = models.Event{
			ID:          r.ID,
			Name:        r.Name,
			OrganizerID: r.Organizer,
			EndingDate:  fromDBTime(r.EndingDate),
			Status:      r.Status,
			Tickets:     byEvent[r.ID],
		}
	}
	return events, nil
}

func (s *Store) FindEligibleFinishedEvents(ctx context.Context, now time.Time) ([]models.Event, error) {
	var rows []eventRow
	err := s.app.DB().Select("id", "name", "organizer", "ending_date", "status").
		From(colEvents).
		Where(dbx.HashExp{"status": true}).
		AndWhere(dbx.NewExp("[[ending_date]] != '' AND [[ending_date]] < {:now}", dbx.Params{"now": toDBTime(now)})).
		AndWhere(dbx.NewExp(
			"NOT EXISTS (SELECT 1 FROM {{revenue_distributions}} d WHERE [[d.event]] = [[events.id]] AND [[d.is_distributed]] = TRUE)",
		)).
		OrderBy("ending_date ASC").
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, fmt.Errorf("query eligible events: %w", err)
	}
	return attachEventTickets(ctx, s.app.DB(), rows)
}

func (s *Store) ResolveOwner(ctx context.Context, eventID string) (string, error) {
	var row eventRow
	err := s.app.DB().Select("id", "organizer").
		From(colEvents).
		Where(dbx.HashExp{"id": eventID}).
		WithContext(ctx).
		One(&row)
	if err != nil {
		return "", notFound(err, "event %s", eventID)
	}
	if row.Organizer == "" {
		return "", fmt.Errorf("event %s has no organizer: %w", eventID, status.ErrNotFound)
	}
	return row.Organizer, nil
}

// AdjustTicketInventory applies all deltas in one transaction. A missing event
// yields nil without error.
func (s *Store) AdjustTicketInventory(ctx context.Context, eventID string, deltas map[string]int) (*models.Event, error) {
	ticketTypes := make([]string, 0, len(deltas))
	for t := range deltas {
		ticketTypes = append(ticketTypes, t)
	}
	sort.Strings(ticketTypes)

	var event *models.Event
	err := s.app.RunInTransaction(func(tx core.App) error {
		db := tx.DB()

		var exists struct {
			ID string `db:"id"`
		}
		err := db.Select("id").From(colEvents).Where(dbx.HashExp{"id": eventID}).WithContext(ctx).One(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		for _, ticketType := range ticketTypes {
			delta := deltas[ticketType]
			if delta == 0 {
				return fmt.Errorf("ticket type %s: zero delta", ticketType)
			}

			n, err := rowsAffected(db.Update(colEventTickets,
				dbx.Params{"quantity": dbx.NewExp("[[quantity]] - {:delta}", dbx.Params{"delta": delta})},
				dbx.And(
					dbx.HashExp{"event": eventID, "type": ticketType},
					dbx.NewExp("[[quantity]] - {:need} >= 0", dbx.Params{"need": delta}),
				),
			).WithContext(ctx).Execute())
			if err != nil {
				return fmt.Errorf("adjust %s: %w", ticketType, err)
			}
			if n == 0 {
				var t eventTicketRow
				err := db.Select("quantity").From(colEventTickets).
					Where(dbx.HashExp{"event": eventID, "type": ticketType}).
					WithContext(ctx).
					One(&t)
				if err != nil {
					return notFound(err, "ticket type %s on event %s", ticketType, eventID)
				}
				return fmt.Errorf("ticket type %s has %d left, wanted %d: %w", ticketType, t.Quantity, delta, status.ErrInsufficientInventory)
			}
		}

		event, err = findEvent(ctx, db, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}
