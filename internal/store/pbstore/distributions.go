package pbstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"event-marketplace/internal/status"
	"event-marketplace/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

type distributionRow struct {
	ID                string         `db:"id"`
	Event             string         `db:"event"`
	AdminPercentage   string         `db:"admin_percentage"`
	TicketRevenue     string         `db:"ticket_revenue"`
	Surcharge         string         `db:"surcharge"`
	TotalRevenue      string         `db:"total_revenue"`
	TotalParticipants int            `db:"total_participants"`
	AdminAmount       string         `db:"admin_amount"`
	OrganizerAmount   string         `db:"organizer_amount"`
	DistributedAt     types.DateTime `db:"distributed_at"`
	IsDistributed     bool           `db:"is_distributed"`
	ClaimToken        string         `db:"claim_token"`
	ClaimExpiresAt    types.DateTime `db:"claim_expires_at"`
	CreatedAt         types.DateTime `db:"created_at"`
	UpdatedAt         types.DateTime `db:"updated_at"`
}

var distributionColumns = []string{
	"id", "event", "admin_percentage", "ticket_revenue", "surcharge", "total_revenue",
	"total_participants", "admin_amount", "organizer_amount", "distributed_at",
	"is_distributed", "claim_token", "claim_expires_at", "created_at", "updated_at",
}

func (r distributionRow) toModel() (*models.RevenueDistribution, error) {
	d := &models.RevenueDistribution{
		ID:                r.ID,
		EventID:           r.Event,
		TotalParticipants: r.TotalParticipants,
		IsDistributed:     r.IsDistributed,
		ClaimToken:        r.ClaimToken,
		ClaimExpiresAt:    fromDBTime(r.ClaimExpiresAt),
		CreatedAt:         fromDBTime(r.CreatedAt),
		UpdatedAt:         fromDBTime(r.UpdatedAt),
	}
	if !r.DistributedAt.IsZero() {
		at := r.DistributedAt.Time()
		d.DistributedAt = &at
	}

	var err error
	if d.AdminPercentage, err = toDecimal(r.AdminPercentage); err != nil {
		return nil, fmt.Errorf("distribution %s admin_percentage: %w", r.ID, err)
	}
	if d.TicketRevenue, err = toDecimal(r.TicketRevenue); err != nil {
		return nil, fmt.Errorf("distribution %s ticket_revenue: %w", r.ID, err)
	}
	if d.Surcharge, err = toDecimal(r.Surcharge); err != nil {
		return nil, fmt.Errorf("distribution %s surcharge: %w", r.ID, err)
	}
	if d.TotalRevenue, err = toDecimal(r.TotalRevenue); err != nil {
		return nil, fmt.Errorf("distribution %s total_revenue: %w", r.ID, err)
	}
	if d.AdminAmount, err = toDecimal(r.AdminAmount); err != nil {
		return nil, fmt.Errorf("distribution %s admin_amount: %w", r.ID, err)
	}
	if d.OrganizerAmount, err = toDecimal(r.OrganizerAmount); err != nil {
		return nil, fmt.Errorf("distribution %s organizer_amount: %w", r.ID, err)
	}
	return d, nil
}

func findDistribution(ctx context.Context, db dbx.Builder, eventID string) (*models.RevenueDistribution, error) {
	var row distributionRow
	err := db.Select(distributionColumns...).
		From(colDistributions).
		Where(dbx.HashExp{"event": eventID}).
		WithContext(ctx).
		One(&row)
	if err != nil {
		return nil, notFound(err, "distribution for %s", eventID)
	}
	return row.toModel()
}

func (s *Store) FindByEvent(ctx context.Context, eventID string) (*models.RevenueDistribution, error) {
	return findDistribution(ctx, s.app.DB(), eventID)
}

func figures(d *models.RevenueDistribution) dbx.Params {
	return dbx.Params{
		"admin_percentage":   d.AdminPercentage.String(),
		"ticket_revenue":     d.TicketRevenue.String(),
		"surcharge":          d.Surcharge.String(),
		"total_revenue":      d.TotalRevenue.String(),
		"total_participants": d.TotalParticipants,
		"admin_amount":       d.AdminAmount.String(),
		"organizer_amount":   d.OrganizerAmount.String(),
	}
}

// ClaimPending writes the computed figures and takes the lease. It fails with
// status.ErrAlreadyDistributed or status.ErrDistributionInProgress when the
// record is done or leased by someone else.
func (s *Store) ClaimPending(ctx context.Context, d *models.RevenueDistribution, token string, leaseUntil, now time.Time) (*models.RevenueDistribution, error) {
	var claimed *models.RevenueDistribution
	err := s.app.RunInTransaction(func(tx core.App) error {
		db := tx.DB()

		params := figures(d)
		params["claim_token"] = token
		params["claim_expires_at"] = toDBTime(leaseUntil)
		params["updated_at"] = toDBTime(now)

		existing, err := findDistribution(ctx, db, d.EventID)
		switch {
		case errors.Is(err, status.ErrNotFound):
			params["id"] = core.GenerateDefaultRandomId()
			params["event"] = d.EventID
			params["is_distributed"] = false
			params["distributed_at"] = ""
			params["created_at"] = toDBTime(now)
			if _, err := db.Insert(colDistributions, params).WithContext(ctx).Execute(); err != nil {
				return fmt.Errorf("insert distribution for %s: %w", d.EventID, err)
			}
		case err != nil:
			return err
		default:
			n, err := rowsAffected(db.Update(colDistributions, params, dbx.And(
				dbx.HashExp{"id": existing.ID, "is_distributed": false},
				dbx.Or(
					dbx.HashExp{"claim_token": ""},
					dbx.HashExp{"claim_token": token},
					dbx.NewExp("[[claim_expires_at]] <= {:now}", dbx.Params{"now": toDBTime(now)}),
				),
			)).WithContext(ctx).Execute())
			if err != nil {
				return fmt.Errorf("claim distribution %s: %w", existing.ID, err)
			}
			if n == 0 {
				if existing.IsDistributed {
					return status.ErrAlreadyDistributed
				}
				return status.ErrDistributionInProgress
			}
		}

		claimed, err = findDistribution(ctx, db, d.EventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// MarkDistributed completes the record for the current lease holder only.
func (s *Store) MarkDistributed(ctx context.Context, eventID, token string, at time.Time) (*models.RevenueDistribution, error) {
	var done *models.RevenueDistribution
	err := s.app.RunInTransaction(func(tx core.App) error {
		db := tx.DB()

		n, err := rowsAffected(db.Update(colDistributions,
			dbx.Params{
				"is_distributed":   true,
				"distributed_at":   toDBTime(at),
				"claim_token":      "",
				"claim_expires_at": "",
				"updated_at":       toDBTime(at),
			},
			dbx.HashExp{"event": eventID, "is_distributed": false, "claim_token": token},
		).WithContext(ctx).Execute())
		if err != nil {
			return fmt.Errorf("mark distribution for %s: %w", eventID, err)
		}
		if n == 0 {
			current, err := findDistribution(ctx, db, eventID)
			if err != nil {
				return err
			}
			if current.IsDistributed {
				return status.ErrAlreadyDistributed
			}
			return fmt.Errorf("claim on %s lost: %w", eventID, status.ErrConflict)
		}

		done, err = findDistribution(ctx, db, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return done, nil
}

func (s *Store) ReleaseClaim(ctx context.Context, eventID, token string) error {
	_, err := s.app.DB().Update(colDistributions,
		dbx.Params{"claim_token": "", "claim_expires_at": ""},
		dbx.HashExp{"event": eventID, "is_distributed": false, "claim_token": token},
	).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("release claim on %s: %w", eventID, err)
	}
	return nil
}

func (s *Store) ListCompleted(ctx context.Context) ([]models.RevenueDistribution, error) {
	var rows []distributionRow
	err := s.app.DB().Select(distributionColumns...).
		From(colDistributions).
		Where(dbx.HashExp{"is_distributed": true}).
		OrderBy("distributed_at ASC").
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, fmt.Errorf("list completed distributions: %w", err)
	}

	out := make([]models.RevenueDistribution, 0, len(rows))
	for _, r := range rows {
		d, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}
