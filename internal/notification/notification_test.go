package notification

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/zapmenu/zapmenu/internal/domain/order"
)

func TestShortID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a1b2c3d4", ShortID("a1b2c3d4-e5f6-7890-abcd-ef1234567890"))
	assert.Equal(t, "ord-1", ShortID("ord-1"))
}

func TestRender(t *testing.T) {
	t.Parallel()

	total := decimal.RequireFromString("74")

	got := Render(order.StatusReady, "Cantina Demo", "a1b2c3d4-e5f6", "João", total)
	assert.Equal(t, "Cantina Demo: o pedido #a1b2c3d4 de João está pronto! Total: R$ 74.00", got)

	got = Render(order.Status("weird"), "Cantina Demo", "ord-1", "João", total)
	assert.Equal(t, "Cantina Demo: o pedido #ord-1 de João foi atualizado. Total: R$ 74.00", got)
}

func TestRender_AllStatusesHaveTemplates(t *testing.T) {
	t.Parallel()

	statuses := []order.Status{
		order.StatusPending, order.StatusConfirmed, order.StatusPreparing,
		order.StatusReady, order.StatusOutForDelivery, order.StatusCompleted,
		order.StatusCancelled,
	}
	for _, s := range statuses {
		_, ok := statusTemplates[s]
		assert.True(t, ok, "missing template for %s", s)
	}
}
