// Package notification renders and delivers order status-change messages
// to customers over WhatsApp.
package notification

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/zapmenu/zapmenu/internal/domain/order"
)

// statusTemplates maps each order status to its customer-facing message.
// Placeholders, in order: restaurant name, short order id, customer name.
var statusTemplates = map[order.Status]string{
	order.StatusPending:        "%s: recebemos o pedido #%s de %s e ele aguarda confirmação.",
	order.StatusConfirmed:      "%s: o pedido #%s de %s foi confirmado! Já estamos cuidando dele.",
	order.StatusPreparing:      "%s: o pedido #%s de %s está sendo preparado.",
	order.StatusReady:          "%s: o pedido #%s de %s está pronto!",
	order.StatusOutForDelivery: "%s: o pedido #%s de %s saiu para entrega.",
	order.StatusCompleted:      "%s: o pedido #%s de %s foi concluído. Obrigado pela preferência!",
	order.StatusCancelled:      "%s: o pedido #%s de %s foi cancelado.",
}

// ShortID returns the first 8 characters of an order id, the form shown to
// customers and staff.
func ShortID(orderID string) string {
	if len(orderID) > 8 {
		return orderID[:8]
	}
	return orderID
}

// Render produces the status-change message for one order. Unknown statuses
// render a generic update line so a new status never breaks notifications.
func Render(status order.Status, restaurantName, orderID, customerName string, total decimal.Decimal) string {
	tmpl, ok := statusTemplates[status]
	if !ok {
		tmpl = "%s: o pedido #%s de %s foi atualizado."
	}
	msg := fmt.Sprintf(tmpl, restaurantName, ShortID(orderID), customerName)
	return msg + fmt.Sprintf(" Total: R$ %s", total.StringFixed(2))
}
