package order

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MessageOptions carries the non-item inputs of the composed order text.
type MessageOptions struct {
	Observations    string
	Discount        decimal.Decimal
	DeliveryFee     decimal.Decimal
	Fulfillment     Fulfillment
	DeliveryAddress string
}

const (
	pickupNotice  = "Retirada no balcão"
	signatureLine = "_Pedido enviado pelo cardápio digital_"
)

// ComposeMessage builds the order summary relayed to the restaurant over
// WhatsApp. It is a pure function: identical inputs yield byte-identical
// output, because the same text is shown to the customer for confirmation
// and transmitted verbatim to staff.
//
// Section order is fixed: header, one block per item in input order, totals
// (discount and delivery-fee lines only when positive), fulfillment info,
// observations (only when non-empty), signature. The total matches the
// persisted order: subtotal minus discount plus delivery fee.
func ComposeMessage(items []OrderItem, customerName, tableNumber string, opts MessageOptions) string {
	var b strings.Builder

	b.WriteString("*Pedido de ")
	b.WriteString(customerName)
	b.WriteString("*")
	if tableNumber != "" {
		b.WriteString(" (Mesa ")
		b.WriteString(tableNumber)
		b.WriteString(")")
	}
	b.WriteString("\n\n")

	subtotal := decimal.Zero
	for _, item := range items {
		writeItemBlock(&b, item)
		subtotal = subtotal.Add(item.Subtotal())
	}

	total := subtotal.Sub(opts.Discount).Add(opts.DeliveryFee)

	b.WriteString("Subtotal: ")
	b.WriteString(money(subtotal))
	b.WriteString("\n")
	if opts.Discount.IsPositive() {
		b.WriteString("Desconto: -")
		b.WriteString(money(opts.Discount))
		b.WriteString("\n")
	}
	if opts.DeliveryFee.IsPositive() {
		b.WriteString("Taxa de entrega: ")
		b.WriteString(money(opts.DeliveryFee))
		b.WriteString("\n")
	}
	b.WriteString("*Total: ")
	b.WriteString(money(total))
	b.WriteString("*\n\n")

	if opts.Fulfillment == FulfillmentDelivery {
		b.WriteString("Endereço de entrega:\n")
		b.WriteString(opts.DeliveryAddress)
		b.WriteString("\n")
	} else {
		b.WriteString(pickupNotice)
		b.WriteString("\n")
	}

	if opts.Observations != "" {
		b.WriteString("\nObservações:\n")
		b.WriteString(opts.Observations)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(signatureLine)

	return b.String()
}

// writeItemBlock renders one cart line: quantity and name, unit price, the
// selected option groups (price suffix only when the option costs something),
// the optional observation, and the line subtotal.
func writeItemBlock(b *strings.Builder, item OrderItem) {
	b.WriteString("*")
	b.WriteString(strconv.Itoa(item.Quantity))
	b.WriteString("x ")
	b.WriteString(item.Name)
	b.WriteString("* - ")
	b.WriteString(money(item.Price))
	b.WriteString("\n")

	for _, group := range item.Options {
		b.WriteString("  ")
		b.WriteString(group.GroupName)
		b.WriteString(": ")
		for i, opt := range group.Items {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(opt.Name)
			if opt.Price.IsPositive() {
				b.WriteString(" +")
				b.WriteString(money(opt.Price))
			}
		}
		b.WriteString("\n")
	}

	if item.Observation != "" {
		b.WriteString("  Obs: ")
		b.WriteString(item.Observation)
		b.WriteString("\n")
	}

	b.WriteString("  Subtotal: ")
	b.WriteString(money(item.Subtotal()))
	b.WriteString("\n\n")
}

func money(d decimal.Decimal) string {
	return "R$ " + d.StringFixed(2)
}
