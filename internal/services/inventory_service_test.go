package services

import (
	"context"
	"testing"

	"event-marketplace/internal/status"
	"event-marketplace/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryService_ConsumeAndRestore(t *testing.T) {
	h := newHarness(t)
	seedEvent(h, "ev-1", "org-1",
		models.TicketType{Type: "VIP", Price: dec("500"), Quantity: 5},
		models.TicketType{Type: "GA", Price: dec("100"), Quantity: 50},
	)
	ctx := context.Background()

	event, err := h.inventory.Consume(ctx, "ev-1", map[string]int{"VIP": 2, "GA": 10})
	require.NoError(t, err)
	vip, _ := event.TicketType("VIP")
	ga, _ := event.TicketType("GA")
	assert.Equal(t, 3, vip.Quantity)
	assert.Equal(t, 40, ga.Quantity)

	event, err = h.inventory.Restore(ctx, "ev-1", "VIP", 2)
	require.NoError(t, err)
	vip, _ = event.TicketType("VIP")
	assert.Equal(t, 5, vip.Quantity)

	_, err = h.inventory.Consume(ctx, "ev-1", map[string]int{"VIP": 6})
	assert.ErrorIs(t, err, status.ErrInsufficientInventory)
}

func TestInventoryService_Rejections(t *testing.T) {
	h := newHarness(t)
	seedEvent(h, "ev-1", "org-1", models.TicketType{Type: "GA", Price: dec("100"), Quantity: 1})
	ctx := context.Background()

	_, err := h.inventory.Restore(ctx, "ev-1", "GA", 0)
	assert.Error(t, err)

	_, err = h.inventory.Consume(ctx, "ev-1", map[string]int{"GA": -1})
	assert.Error(t, err)

	_, err = h.inventory.Consume(ctx, "ev-1", map[string]int{})
	assert.Error(t, err)

	_, err = h.inventory.Restore(ctx, "ev-404", "GA", 1)
	assert.ErrorIs(t, err, status.ErrNotFound)

	_, err = h.inventory.Restore(ctx, "ev-1", "Balcony", 1)
	assert.ErrorIs(t, err, status.ErrNotFound)
}
