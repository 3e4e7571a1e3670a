package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"event-marketplace/config"
	"event-marketplace/internal/status"
	"event-marketplace/models"
	"event-marketplace/monitoring"

	"github.com/shopspring/decimal"
)

type CancelResult struct {
	RefundAmount   decimal.Decimal
	UpdatedBooking *models.Booking
	Transaction    *models.Transaction
}

type inventoryRestorer interface {
	Restore(ctx context.Context, eventID, ticketType string, qty int) (*models.Event, error)
}

type CancellationService struct {
	bookings  BookingRepository
	inventory inventoryRestorer
	wallet    walletCrediter
	notifier  Notifier
	monitor   *monitoring.Monitor
	logger    *slog.Logger
	feePct    decimal.Decimal
	places    int32
}

func NewCancellationService(
	bookings BookingRepository,
	inventory inventoryRestorer,
	wallet walletCrediter,
	notifier Notifier,
	monitor *monitoring.Monitor,
	logger *slog.Logger,
	cfg *config.Config,
) *CancellationService {
	return &CancellationService{
		bookings:  bookings,
		inventory: inventory,
		wallet:    wallet,
		notifier:  notifier,
		monitor:   monitor,
		logger:    logger,
		feePct:    cfg.CancellationFeePercent,
		places:    cfg.CurrencyPlaces,
	}
}

// RefundFor returns the refund and the fee kept for one ticket line.
// The refund is floored to the minor unit.
func (s *CancellationService) RefundFor(t *models.Ticket) (refund, fee decimal.Decimal) {
	gross := t.Price.Mul(decimal.NewFromInt(int64(t.Quantity)))
	refund = gross.Mul(hundred.Sub(s.feePct)).Div(hundred).RoundFloor(s.places)
	return refund, gross.Sub(refund)
}

// CancelTicket cancels one ticket line of a booking owned by userID, puts the
// quantity back on sale and refunds the user's wallet.
func (s *CancellationService) CancelTicket(ctx context.Context, userID, bookingID, ticketUniqueID string) (*CancelResult, error) {
	booking, err := s.bookings.FindBookingByID(ctx, bookingID)
	if err != nil {
		s.monitor.TrackRefund("rejected")
		return nil, fmt.Errorf("find booking %s: %w", bookingID, err)
	}
	if booking.UserID != userID {
		s.monitor.TrackRefund("rejected")
		return nil, fmt.Errorf("booking %s for user %s: %w", bookingID, userID, status.ErrForbidden)
	}
	if booking.PaymentStatus != models.PaymentCompleted {
		s.monitor.TrackRefund("rejected")
		return nil, fmt.Errorf("booking %s is %s: %w", bookingID, booking.PaymentStatus, status.ErrBookingNotPaid)
	}

	ticket, ok := booking.FindTicket(ticketUniqueID)
	if !ok {
		s.monitor.TrackRefund("rejected")
		return nil, fmt.Errorf("ticket %s in booking %s: %w", ticketUniqueID, bookingID, status.ErrNotFound)
	}
	if ticket.IsCancelled() {
		s.monitor.TrackRefund("already_cancelled")
		return nil, fmt.Errorf("ticket %s: %w", ticketUniqueID, status.ErrAlreadyCancelled)
	}

	refund, fee := s.RefundFor(ticket)
	line := *ticket

	updated, err := s.bookings.UpdateTicketStatus(ctx, bookingID, ticketUniqueID, models.TicketActive, models.TicketCancelled)
	if err != nil {
		if errors.Is(err, status.ErrConflict) {
			err = status.ErrAlreadyCancelled
		}
		s.monitor.TrackRefund("status_failed")
		return nil, fmt.Errorf("cancel ticket %s: %w", ticketUniqueID, err)
	}
	if updated == nil {
		s.monitor.TrackRefund("status_failed")
		return nil, fmt.Errorf("cancel ticket %s: booking %s: %w", ticketUniqueID, bookingID, status.ErrNotFound)
	}

	refs := map[string]string{
		"booking_id": bookingID,
		"ticket_id":  ticketUniqueID,
		"event_id":   booking.EventID,
		"user_id":    userID,
	}

	if _, err := s.inventory.Restore(ctx, booking.EventID, line.Type, line.Quantity); err != nil {
		s.monitor.TrackRefund("inconsistent")
		s.logger.Error("ticket cancelled but inventory not restored", "booking_id", bookingID, "ticket_id", ticketUniqueID, "error", err)
		return nil, &status.InconsistentStateError{Operation: "cancel_ticket", Stage: "restore_inventory", Refs: refs, Err: err}
	}

	var txn *models.Transaction
	if refund.IsPositive() {
		txn, err = s.wallet.Credit(ctx, userID, LedgerEntry{
			Amount:      refund,
			Type:        models.TransactionRefund,
			Description: fmt.Sprintf("Refund for %d x %s ticket", line.Quantity, line.Type),
			Reference:   fmt.Sprintf("refund:%s:%s", bookingID, ticketUniqueID),
			Metadata: map[string]any{
				"bookingId":       bookingID,
				"ticketType":      line.Type,
				"quantity":        line.Quantity,
				"originalPrice":   line.Price.String(),
				"cancellationFee": fee.String(),
			},
			EventID: booking.EventID,
		})
		if err != nil && !errors.Is(err, status.ErrDuplicateTransaction) {
			s.monitor.TrackRefund("inconsistent")
			s.logger.Error("ticket cancelled and inventory restored but refund not paid",
				"booking_id", bookingID,
				"ticket_id", ticketUniqueID,
				"refund", refund.String(),
				"error", err,
			)
			refs["refund_amount"] = refund.String()
			return nil, &status.InconsistentStateError{Operation: "cancel_ticket", Stage: "credit_refund", Refs: refs, Err: err}
		}
	}

	s.monitor.TrackRefund("refunded")
	s.logger.Info("ticket cancelled",
		"booking_id", bookingID,
		"ticket_id", ticketUniqueID,
		"user_id", userID,
		"quantity", line.Quantity,
		"refund", refund.String(),
		"fee", fee.String(),
	)

	if txn != nil && s.notifier != nil {
		if cancelled, ok := updated.FindTicket(ticketUniqueID); ok {
			if err := s.notifier.NotifyRefund(ctx, userID, updated, cancelled, txn); err != nil {
				s.logger.Warn("refund notification failed", "booking_id", bookingID, "error", err)
			}
		}
	}

	return &CancelResult{RefundAmount: refund, UpdatedBooking: updated, Transaction: txn}, nil
}
