// Package memory is an in-process implementation of every store the services
// depend on. It keeps the same conditional-write contracts as pbstore.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"event-marketplace/internal/status"
	"event-marketplace/models"

	"github.com/google/uuid"
)

type Store struct {
	mu            sync.Mutex
	events        map[string]*models.Event
	bookings      map[string]*models.Booking
	bookingOrder  []string
	wallets       map[string]*models.Wallet // by user id
	walletIDs     map[string]string         // wallet id -> user id
	transactions  map[string][]models.Transaction
	references    map[string]map[string]int
	distributions map[string]*models.RevenueDistribution // by event id
}

func New() *Store {
	return &Store{
		events:        make(map[string]*models.Event),
		bookings:      make(map[string]*models.Booking),
		wallets:       make(map[string]*models.Wallet),
		walletIDs:     make(map[string]string),
		transactions:  make(map[string][]models.Transaction),
		references:    make(map[string]map[string]int),
		distributions: make(map[string]*models.RevenueDistribution),
	}
}

func cloneEvent(e *models.Event) *models.Event {
	c := *e
	c.Tickets = append([]models.TicketType(nil), e.Tickets...)
	return &c
}

func cloneDistribution(d *models.RevenueDistribution) *models.RevenueDistribution {
	c := *d
	if d.DistributedAt != nil {
		at := *d.DistributedAt
		c.DistributedAt = &at
	}
	return &c
}

// PutEvent inserts or replaces an event.
func (s *Store) PutEvent(e models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = cloneEvent(&e)
}

// PutBooking inserts or replaces a booking.
func (s *Store) PutBooking(b models.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[b.ID]; !ok {
		s.bookingOrder = append(s.bookingOrder, b.ID)
	}
	s.bookings[b.ID] = b.Clone()
}

// Events

func (s *Store) FindEventByID(_ context.Context, id string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", id, status.ErrNotFound)
	}
	return cloneEvent(e), nil
}

func (s *Store) FindEligibleFinishedEvents(_ context.Context, now time.Time) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Event
	for _, e := range s.events {
		if !e.Status || !e.Ended(now) {
			continue
		}
		if d, ok := s.distributions[e.ID]; ok && d.IsDistributed {
			continue
		}
		out = append(out, *cloneEvent(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndingDate.Before(out[j].EndingDate) })
	return out, nil
}

// AdjustTicketInventory returns nil without error when the event does not exist.
func (s *Store) AdjustTicketInventory(_ context.Context, eventID string, deltas map[string]int) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[eventID]
	if !ok {
		return nil, nil
	}

	for ticketType, delta := range deltas {
		if delta == 0 {
			return nil, fmt.Errorf("ticket type %s: zero delta", ticketType)
		}
		tt, ok := e.TicketType(ticketType)
		if !ok {
			return nil, fmt.Errorf("ticket type %s on event %s: %w", ticketType, eventID, status.ErrNotFound)
		}
		if tt.Quantity-delta < 0 {
			return nil, fmt.Errorf("ticket type %s has %d left, wanted %d: %w", ticketType, tt.Quantity, delta, status.ErrInsufficientInventory)
		}
	}
	for ticketType, delta := range deltas {
		tt, _ := e.TicketType(ticketType)
		tt.Quantity -= delta
	}
	return cloneEvent(e), nil
}

func (s *Store) ResolveOwner(_ context.Context, eventID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[eventID]
	if !ok || e.OrganizerID == "" {
		return "", fmt.Errorf("organizer of event %s: %w", eventID, status.ErrNotFound)
	}
	return e.OrganizerID, nil
}

// Bookings

func (s *Store) FindCompletedBookingsByEvent(_ context.Context, eventID string) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Booking
	for _, id := range s.bookingOrder {
		b := s.bookings[id]
		if b.EventID == eventID && b.PaymentStatus == models.PaymentCompleted {
			out = append(out, *b.Clone())
		}
	}
	return out, nil
}

func (s *Store) FindBookingByID(_ context.Context, id string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking %s: %w", id, status.ErrNotFound)
	}
	return b.Clone(), nil
}

// UpdateTicketStatus returns nil without error when the booking does not exist.
func (s *Store) UpdateTicketStatus(_ context.Context, bookingID, ticketUniqueID string, from, to models.TicketStatus) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[bookingID]
	if !ok {
		return nil, nil
	}
	t, ok := b.FindTicket(ticketUniqueID)
	if !ok {
		return nil, fmt.Errorf("ticket %s: %w", ticketUniqueID, status.ErrNotFound)
	}
	if t.Status != from {
		if t.Status == models.TicketCancelled {
			return nil, status.ErrAlreadyCancelled
		}
		return nil, fmt.Errorf("ticket %s is %s: %w", ticketUniqueID, t.Status, status.ErrConflict)
	}
	t.Status = to
	return b.Clone(), nil
}

// Wallets

func (s *Store) GetOrCreateWallet(_ context.Context, userID string) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.wallets[userID]; ok {
		c := *w
		return &c, nil
	}
	w := &models.Wallet{ID: uuid.NewString(), UserID: userID}
	s.wallets[userID] = w
	s.walletIDs[w.ID] = userID
	c := *w
	return &c, nil
}

func (s *Store) FindWallet(_ context.Context, userID string) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[userID]
	if !ok {
		return nil, fmt.Errorf("wallet of %s: %w", userID, status.ErrNotFound)
	}
	c := *w
	return &c, nil
}

func (s *Store) AppendTransaction(_ context.Context, walletID string, expectedVersion int64, txn *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.walletIDs[walletID]
	if !ok {
		return fmt.Errorf("wallet %s: %w", walletID, status.ErrNotFound)
	}
	w := s.wallets[userID]

	if txn.Reference != "" {
		if _, dup := s.references[walletID][txn.Reference]; dup {
			return status.ErrDuplicateTransaction
		}
	}
	if w.Version != expectedVersion {
		return status.ErrConflict
	}

	s.transactions[walletID] = append(s.transactions[walletID], *txn)
	if txn.Reference != "" {
		if s.references[walletID] == nil {
			s.references[walletID] = make(map[string]int)
		}
		s.references[walletID][txn.Reference] = len(s.transactions[walletID]) - 1
	}
	w.WalletBalance = txn.Balance
	w.Version++
	return nil
}

func (s *Store) ListTransactions(_ context.Context, walletID string, limit int) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txns := s.transactions[walletID]
	n := len(txns)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.Transaction, 0, n)
	for i := len(txns) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, txns[i])
	}
	return out, nil
}

func (s *Store) FindTransactionByReference(_ context.Context, walletID, reference string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.references[walletID][reference]
	if !ok {
		return nil, fmt.Errorf("reference %s: %w", reference, status.ErrNotFound)
	}
	txn := s.transactions[walletID][i]
	return &txn, nil
}

// Distributions

func (s *Store) FindByEvent(_ context.Context, eventID string) (*models.RevenueDistribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.distributions[eventID]
	if !ok {
		return nil, fmt.Errorf("distribution for %s: %w", eventID, status.ErrNotFound)
	}
	return cloneDistribution(d), nil
}

func (s *Store) ClaimPending(_ context.Context, d *models.RevenueDistribution, token string, leaseUntil, now time.Time) (*models.RevenueDistribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.distributions[d.EventID]
	switch {
	case !ok:
		rec = &models.RevenueDistribution{ID: uuid.NewString(), EventID: d.EventID, CreatedAt: now}
		s.distributions[d.EventID] = rec
	case rec.IsDistributed:
		return nil, status.ErrAlreadyDistributed
	case !rec.Claimable(token, now):
		return nil, status.ErrDistributionInProgress
	}

	rec.AdminPercentage = d.AdminPercentage
	rec.TicketRevenue = d.TicketRevenue
	rec.Surcharge = d.Surcharge
	rec.TotalRevenue = d.TotalRevenue
	rec.TotalParticipants = d.TotalParticipants
	rec.AdminAmount = d.AdminAmount
	rec.OrganizerAmount = d.OrganizerAmount
	rec.ClaimToken = token
	rec.ClaimExpiresAt = leaseUntil
	rec.UpdatedAt = now
	return cloneDistribution(rec), nil
}

func (s *Store) MarkDistributed(_ context.Context, eventID, token string, at time.Time) (*models.RevenueDistribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.distributions[eventID]
	switch {
	case !ok:
		return nil, fmt.Errorf("distribution for %s: %w", eventID, status.ErrNotFound)
	case rec.IsDistributed:
		return nil, status.ErrAlreadyDistributed
	case rec.ClaimToken != token:
		return nil, fmt.Errorf("claim on %s lost: %w", eventID, status.ErrConflict)
	}

	rec.IsDistributed = true
	rec.DistributedAt = &at
	rec.ClaimToken = ""
	rec.ClaimExpiresAt = time.Time{}
	rec.UpdatedAt = at
	return cloneDistribution(rec), nil
}

func (s *Store) ReleaseClaim(_ context.Context, eventID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.distributions[eventID]
	if !ok || rec.IsDistributed || rec.ClaimToken != token {
		return nil
	}
	rec.ClaimToken = ""
	rec.ClaimExpiresAt = time.Time{}
	return nil
}

func (s *Store) ListCompleted(_ context.Context) ([]models.RevenueDistribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.RevenueDistribution
	for _, d := range s.distributions {
		if d.IsDistributed {
			out = append(out, *cloneDistribution(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistributedAt.Before(*out[j].DistributedAt) })
	return out, nil
}
