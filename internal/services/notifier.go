package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"event-marketplace/config"
	"event-marketplace/models"
	"event-marketplace/utils"

	pubnub "github.com/pubnub/go/v7"
)

// PublishFunc sends one message to one channel.
type PublishFunc func(ctx context.Context, channel string, message map[string]any) error

func NewPubNub(cfg *config.Config) *pubnub.PubNub {
	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PubNubUserID))
	pnCfg.PublishKey = cfg.PubNubPublishKey
	pnCfg.SubscribeKey = cfg.PubNubSubscribeKey
	pnCfg.SecretKey = cfg.PubNubSecretKey
	return pubnub.NewPubNub(pnCfg)
}

func PubNubPublisher(pn *pubnub.PubNub) PublishFunc {
	return func(ctx context.Context, channel string, message map[string]any) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, _, err := pn.Publish().
			Channel(channel).
			Message(message).
			Execute()
		return err
	}
}

// PubNubNotifier pushes wallet events to the user's personal channel. Publishing
// goes through a circuit breaker so a PubNub outage does not slow payouts down.
type PubNubNotifier struct {
	publish PublishFunc
	breaker *utils.CircuitBreaker
	logger  *slog.Logger
	now     func() time.Time
}

func NewPubNubNotifier(publish PublishFunc, breaker *utils.CircuitBreaker, logger *slog.Logger) *PubNubNotifier {
	return &PubNubNotifier{
		publish: publish,
		breaker: breaker,
		logger:  logger,
		now:     time.Now,
	}
}

func userChannel(userID string) string {
	return "user-" + userID
}

func (n *PubNubNotifier) NotifyPayout(ctx context.Context, organizerID string, d *models.RevenueDistribution, txn *models.Transaction) error {
	return n.send(ctx, userChannel(organizerID), map[string]any{
		"type":            "revenue_distributed",
		"event_id":        d.EventID,
		"distribution_id": d.ID,
		"amount":          txn.Amount.String(),
		"balance":         txn.Balance.String(),
		"transaction_id":  txn.TransactionID,
		"timestamp":       n.now().Unix(),
	})
}

func (n *PubNubNotifier) NotifyRefund(ctx context.Context, userID string, booking *models.Booking, ticket *models.Ticket, txn *models.Transaction) error {
	return n.send(ctx, userChannel(userID), map[string]any{
		"type":           "ticket_refunded",
		"booking_id":     booking.ID,
		"event_id":       booking.EventID,
		"ticket_id":      ticket.UniqueID,
		"ticket_type":    ticket.Type,
		"quantity":       ticket.Quantity,
		"amount":         txn.Amount.String(),
		"balance":        txn.Balance.String(),
		"transaction_id": txn.TransactionID,
		"timestamp":      n.now().Unix(),
	})
}

func (n *PubNubNotifier) send(ctx context.Context, channel string, message map[string]any) error {
	publish := func(ctx context.Context) error {
		return n.publish(ctx, channel, message)
	}

	var err error
	if n.breaker != nil {
		err = n.breaker.Execute(ctx, publish)
	} else {
		err = publish(ctx)
	}
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", message["type"], channel, err)
	}

	n.logger.Debug("notification published", "channel", channel, "type", message["type"])
	return nil
}

// NopNotifier drops every notification. Used when PubNub is not configured.
type NopNotifier struct{}

func (NopNotifier) NotifyPayout(context.Context, string, *models.RevenueDistribution, *models.Transaction) error {
	return nil
}

func (NopNotifier) NotifyRefund(context.Context, string, *models.Booking, *models.Ticket, *models.Transaction) error {
	return nil
}
