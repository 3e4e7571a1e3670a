package services

import (
	"context"
	"fmt"
	"log/slog"

	"event-marketplace/internal/status"
	"event-marketplace/models"
	"event-marketplace/monitoring"
)

// InventoryService routes both sale and cancellation through the same atomic
// storage delta so the two paths cannot drift apart.
type InventoryService struct {
	events  EventRepository
	monitor *monitoring.Monitor
	logger  *slog.Logger
}

func NewInventoryService(events EventRepository, monitor *monitoring.Monitor, logger *slog.Logger) *InventoryService {
	return &InventoryService{
		events:  events,
		monitor: monitor,
		logger:  logger,
	}
}

// Consume takes sold quantities out of the event's stock.
func (s *InventoryService) Consume(ctx context.Context, eventID string, quantities map[string]int) (*models.Event, error) {
	deltas := make(map[string]int, len(quantities))
	for ticketType, qty := range quantities {
		if qty <= 0 {
			return nil, fmt.Errorf("consume %d of %s: quantity must be positive", qty, ticketType)
		}
		deltas[ticketType] = qty
	}
	return s.adjust(ctx, eventID, deltas, "consume")
}

// Restore puts cancelled quantity of one ticket type back on sale.
func (s *InventoryService) Restore(ctx context.Context, eventID, ticketType string, qty int) (*models.Event, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("restore %d of %s: quantity must be positive", qty, ticketType)
	}
	return s.adjust(ctx, eventID, map[string]int{ticketType: -qty}, "restore")
}

func (s *InventoryService) adjust(ctx context.Context, eventID string, deltas map[string]int, direction string) (*models.Event, error) {
	if len(deltas) == 0 {
		return nil, fmt.Errorf("%s on event %s: no ticket types given", direction, eventID)
	}

	event, err := s.events.AdjustTicketInventory(ctx, eventID, deltas)
	if err != nil {
		s.monitor.TrackInventory(direction, "error")
		return nil, fmt.Errorf("%s inventory on event %s: %w", direction, eventID, err)
	}
	if event == nil {
		s.monitor.TrackInventory(direction, "not_found")
		return nil, fmt.Errorf("%s inventory on event %s: %w", direction, eventID, status.ErrNotFound)
	}

	s.monitor.TrackInventory(direction, "success")
	s.logger.Info("ticket inventory adjusted", "event_id", eventID, "direction", direction, "deltas", deltas)
	return event, nil
}
