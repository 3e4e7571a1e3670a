package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RevenueDistribution is the per-event payout record. IsDistributed is the only
// thing that decides whether an event was paid out.
type RevenueDistribution struct {
	ID                string          `json:"id"`
	EventID           string          `json:"event_id"`
	AdminPercentage   decimal.Decimal `json:"admin_percentage"`
	TicketRevenue     decimal.Decimal `json:"ticket_revenue"`
	Surcharge         decimal.Decimal `json:"surcharge"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TotalParticipants int             `json:"total_participants"`
	AdminAmount       decimal.Decimal `json:"admin_amount"`
	OrganizerAmount   decimal.Decimal `json:"organizer_amount"`
	DistributedAt     *time.Time      `json:"distributed_at,omitempty"`
	IsDistributed     bool            `json:"is_distributed"`
	ClaimToken        string          `json:"-"`
	ClaimExpiresAt    time.Time       `json:"-"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Claimable reports whether a worker holding token may take the record at now.
func (d *RevenueDistribution) Claimable(token string, now time.Time) bool {
	if d.IsDistributed {
		return false
	}
	return d.ClaimToken == "" || d.ClaimToken == token || !d.ClaimExpiresAt.After(now)
}
