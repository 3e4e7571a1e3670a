package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"event-marketplace/config"
	"event-marketplace/internal/status"
	"event-marketplace/models"
	"event-marketplace/monitoring"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DistributionPolicy holds the split parameters. They come from configuration and
// are never stored per event.
type DistributionPolicy struct {
	AdminPercentage decimal.Decimal
	Surcharge       decimal.Decimal
	Places          int32
	Lease           time.Duration
}

func PolicyFromConfig(cfg *config.Config) DistributionPolicy {
	return DistributionPolicy{
		AdminPercentage: cfg.AdminPercentage,
		Surcharge:       cfg.PlatformSurcharge,
		Places:          cfg.CurrencyPlaces,
		Lease:           cfg.DistributionLease,
	}
}

type Split struct {
	TicketRevenue   decimal.Decimal
	Surcharge       decimal.Decimal
	Pool            decimal.Decimal
	AdminAmount     decimal.Decimal
	OrganizerAmount decimal.Decimal
}

// Split rounds the admin share half-up to the minor unit and gives the organizer
// the exact remainder, so AdminAmount+OrganizerAmount == Pool always.
func (p DistributionPolicy) Split(ticketRevenue decimal.Decimal) Split {
	pool := ticketRevenue.Add(p.Surcharge).Round(p.Places)
	admin := pool.Mul(p.AdminPercentage).Div(hundred).Round(p.Places)
	return Split{
		TicketRevenue:   ticketRevenue,
		Surcharge:       p.Surcharge,
		Pool:            pool,
		AdminAmount:     admin,
		OrganizerAmount: pool.Sub(admin),
	}
}

type walletCrediter interface {
	Credit(ctx context.Context, userID string, entry LedgerEntry) (*models.Transaction, error)
	FindByReference(ctx context.Context, userID, reference string) (*models.Transaction, error)
}

type DistributionService struct {
	events   EventRepository
	bookings BookingRepository
	owners   OwnerResolver
	store    DistributionStore
	wallet   walletCrediter
	notifier Notifier
	monitor  *monitoring.Monitor
	logger   *slog.Logger
	policy   DistributionPolicy
	now      func() time.Time
	newToken func() string
}

func NewDistributionService(
	events EventRepository,
	bookings BookingRepository,
	owners OwnerResolver,
	store DistributionStore,
	wallet walletCrediter,
	notifier Notifier,
	monitor *monitoring.Monitor,
	logger *slog.Logger,
	policy DistributionPolicy,
) *DistributionService {
	return &DistributionService{
		events:   events,
		bookings: bookings,
		owners:   owners,
		store:    store,
		wallet:   wallet,
		notifier: notifier,
		monitor:  monitor,
		logger:   logger,
		policy:   policy,
		now:      time.Now,
		newToken: uuid.NewString,
	}
}

// FindEligibleEvents lists ended, listed events that are not paid out yet.
func (s *DistributionService) FindEligibleEvents(ctx context.Context) ([]models.Event, error) {
	events, err := s.events.FindEligibleFinishedEvents(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("find eligible events: %w", err)
	}
	return events, nil
}

// Distribute computes and pays out the organizer share of one event exactly once.
func (s *DistributionService) Distribute(ctx context.Context, eventID string) (*models.RevenueDistribution, error) {
	existing, err := s.store.FindByEvent(ctx, eventID)
	switch {
	case err == nil && existing.IsDistributed:
		s.monitor.TrackDistribution("already_distributed")
		return existing, fmt.Errorf("event %s: %w", eventID, status.ErrAlreadyDistributed)
	case errors.Is(err, status.ErrNotFound):
		existing = nil
	case err != nil:
		return nil, fmt.Errorf("load distribution for %s: %w", eventID, err)
	}

	event, err := s.events.FindEventByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event %s: %w", eventID, err)
	}

	// A pending record whose credit already landed is finished with the figures that were paid.
	if existing != nil {
		organizerID, err := s.owners.ResolveOwner(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("resolve organizer of %s: %w", eventID, err)
		}
		prior, err := s.wallet.FindByReference(ctx, organizerID, creditReference(existing.ID))
		switch {
		case err == nil:
			return s.resume(ctx, event, organizerID, existing, prior)
		case !errors.Is(err, status.ErrNotFound):
			return nil, fmt.Errorf("lookup prior credit for %s: %w", eventID, err)
		}
	}

	bookings, err := s.bookings.FindCompletedBookingsByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load bookings for %s: %w", eventID, err)
	}

	revenue, participants, qualifying := aggregateRevenue(bookings)
	if qualifying == 0 {
		s.monitor.TrackDistribution("no_revenue")
		return nil, fmt.Errorf("event %s: %w", eventID, status.ErrNoRevenue)
	}

	split := s.policy.Split(revenue)

	organizerID, err := s.owners.ResolveOwner(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("resolve organizer of %s: %w", eventID, err)
	}

	token := s.newToken()
	record, err := s.claim(ctx, &models.RevenueDistribution{
		EventID:           eventID,
		AdminPercentage:   s.policy.AdminPercentage,
		TicketRevenue:     split.TicketRevenue,
		Surcharge:         split.Surcharge,
		TotalRevenue:      split.Pool,
		TotalParticipants: participants,
		AdminAmount:       split.AdminAmount,
		OrganizerAmount:   split.OrganizerAmount,
	}, token)
	if err != nil {
		return nil, err
	}

	txn, duplicate, err := s.creditOrganizer(ctx, organizerID, event, record)
	if err != nil {
		s.monitor.TrackDistribution("credit_failed")
		if rerr := s.store.ReleaseClaim(context.WithoutCancel(ctx), eventID, token); rerr != nil {
			s.logger.Error("failed to release distribution claim", "event_id", eventID, "error", rerr)
		}
		return nil, fmt.Errorf("credit organizer %s for %s: %w", organizerID, eventID, err)
	}

	// Another attempt credited between our lookup and our claim; its figures win.
	if duplicate && !txn.Amount.Equal(record.OrganizerAmount) {
		settled, err := settledFigures(record, txn)
		if err != nil {
			return nil, err
		}
		if record, err = s.claim(ctx, settled, token); err != nil {
			return nil, err
		}
	}

	return s.complete(ctx, organizerID, record, token, txn)
}

// resume completes a record whose organizer credit was committed by an earlier attempt.
func (s *DistributionService) resume(ctx context.Context, event *models.Event, organizerID string, existing *models.RevenueDistribution, prior *models.Transaction) (*models.RevenueDistribution, error) {
	settled, err := settledFigures(existing, prior)
	if err != nil {
		return nil, err
	}

	s.logger.Warn("resuming distribution already credited by an earlier attempt",
		"event_id", event.ID,
		"distribution_id", existing.ID,
		"transaction_id", prior.TransactionID,
	)

	token := s.newToken()
	record, err := s.claim(ctx, settled, token)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, organizerID, record, token, prior)
}

func (s *DistributionService) claim(ctx context.Context, d *models.RevenueDistribution, token string) (*models.RevenueDistribution, error) {
	now := s.now()
	record, err := s.store.ClaimPending(ctx, d, token, now.Add(s.policy.Lease), now)
	if err != nil {
		switch {
		case errors.Is(err, status.ErrAlreadyDistributed):
			s.monitor.TrackDistribution("already_distributed")
		case errors.Is(err, status.ErrDistributionInProgress):
			s.monitor.TrackDistribution("in_progress")
		default:
			s.monitor.TrackDistribution("error")
		}
		return nil, fmt.Errorf("claim distribution for %s: %w", d.EventID, err)
	}
	return record, nil
}

func (s *DistributionService) complete(ctx context.Context, organizerID string, record *models.RevenueDistribution, token string, txn *models.Transaction) (*models.RevenueDistribution, error) {
	done, err := s.store.MarkDistributed(ctx, record.EventID, token, s.now())
	if err != nil {
		// The credit is keyed by distribution id, so a later run completes this without paying twice.
		s.monitor.TrackDistribution("mark_failed")
		s.logger.Error("organizer credited but distribution not marked",
			"event_id", record.EventID,
			"distribution_id", record.ID,
			"error", err,
		)
		return nil, fmt.Errorf("mark distribution %s: %w", record.ID, err)
	}

	s.monitor.TrackDistribution("distributed")
	s.monitor.TrackDistributedAmount(done.AdminAmount, done.OrganizerAmount)
	s.logger.Info("revenue distributed",
		"event_id", done.EventID,
		"distribution_id", done.ID,
		"organizer_id", organizerID,
		"total_revenue", done.TotalRevenue.String(),
		"admin_amount", done.AdminAmount.String(),
		"organizer_amount", done.OrganizerAmount.String(),
		"participants", done.TotalParticipants,
	)

	if txn != nil && s.notifier != nil {
		if err := s.notifier.NotifyPayout(ctx, organizerID, done, txn); err != nil {
			s.logger.Warn("payout notification failed", "event_id", done.EventID, "error", err)
		}
	}

	return done, nil
}

func creditReference(distributionID string) string {
	return "distribution:" + distributionID
}

// creditOrganizer reports duplicate when the wallet already holds the credit for d.
func (s *DistributionService) creditOrganizer(ctx context.Context, organizerID string, event *models.Event, d *models.RevenueDistribution) (*models.Transaction, bool, error) {
	if !d.OrganizerAmount.IsPositive() {
		return nil, false, nil
	}

	txn, err := s.wallet.Credit(ctx, organizerID, LedgerEntry{
		Amount:      d.OrganizerAmount,
		Type:        models.TransactionCredit,
		Description: fmt.Sprintf("Revenue share for %s", event.Name),
		Reference:   creditReference(d.ID),
		Metadata:    figuresMetadata(d),
		EventID:     event.ID,
		EventName:   event.Name,
	})
	if errors.Is(err, status.ErrDuplicateTransaction) && txn != nil {
		s.logger.Warn("organizer already credited by an earlier attempt", "event_id", d.EventID, "distribution_id", d.ID)
		return txn, true, nil
	}
	return txn, false, err
}

// figuresMetadata records the split on the credit so the paid figures can be recovered.
func figuresMetadata(d *models.RevenueDistribution) map[string]any {
	return map[string]any{
		"eventId":            d.EventID,
		"distributionId":     d.ID,
		"ticket_revenue":     d.TicketRevenue.String(),
		"surcharge":          d.Surcharge.String(),
		"total_revenue":      d.TotalRevenue.String(),
		"total_participants": strconv.Itoa(d.TotalParticipants),
		"admin_percentage":   d.AdminPercentage.String(),
		"admin_amount":       d.AdminAmount.String(),
	}
}

// settledFigures returns record with the figures of the credit that was actually paid.
func settledFigures(record *models.RevenueDistribution, paid *models.Transaction) (*models.RevenueDistribution, error) {
	settled := *record
	settled.DistributedAt = nil
	if paid.Amount.Equal(record.OrganizerAmount) {
		return &settled, nil
	}

	inconsistent := func(err error) error {
		return &status.InconsistentStateError{
			Operation: "distribute",
			Stage:     "settle_figures",
			Refs: map[string]string{
				"event_id":        record.EventID,
				"distribution_id": record.ID,
				"transaction_id":  paid.TransactionID,
			},
			Err: err,
		}
	}

	field := func(key string) (decimal.Decimal, error) {
		raw, ok := paid.Metadata[key].(string)
		if !ok {
			return decimal.Zero, fmt.Errorf("credit metadata missing %s", key)
		}
		return decimal.NewFromString(raw)
	}

	var err error
	if settled.TicketRevenue, err = field("ticket_revenue"); err != nil {
		return nil, inconsistent(err)
	}
	if settled.Surcharge, err = field("surcharge"); err != nil {
		return nil, inconsistent(err)
	}
	if settled.TotalRevenue, err = field("total_revenue"); err != nil {
		return nil, inconsistent(err)
	}
	if settled.AdminPercentage, err = field("admin_percentage"); err != nil {
		return nil, inconsistent(err)
	}
	if settled.AdminAmount, err = field("admin_amount"); err != nil {
		return nil, inconsistent(err)
	}
	participants, ok := paid.Metadata["total_participants"].(string)
	if !ok {
		return nil, inconsistent(errors.New("credit metadata missing total_participants"))
	}
	if settled.TotalParticipants, err = strconv.Atoi(participants); err != nil {
		return nil, inconsistent(err)
	}
	settled.OrganizerAmount = paid.Amount

	if !settled.AdminAmount.Add(settled.OrganizerAmount).Equal(settled.TotalRevenue) {
		return nil, inconsistent(fmt.Errorf("credited figures do not add up: admin %s + organizer %s != %s",
			settled.AdminAmount, settled.OrganizerAmount, settled.TotalRevenue))
	}
	return &settled, nil
}

func (s *DistributionService) GetDistributionByEvent(ctx context.Context, eventID string) (*models.RevenueDistribution, error) {
	return s.store.FindByEvent(ctx, eventID)
}

func (s *DistributionService) ListCompletedDistributions(ctx context.Context) ([]models.RevenueDistribution, error) {
	return s.store.ListCompleted(ctx)
}

// aggregateRevenue counts a booking as qualifying when it still holds an active ticket.
func aggregateRevenue(bookings []models.Booking) (decimal.Decimal, int, int) {
	revenue := decimal.Zero
	participants := 0
	qualifying := 0
	for i := range bookings {
		if bookings[i].PaymentStatus != models.PaymentCompleted {
			continue
		}
		r, p := bookings[i].ActiveRevenue()
		if p == 0 {
			continue
		}
		revenue = revenue.Add(r)
		participants += p
		qualifying++
	}
	return revenue, participants, qualifying
}
