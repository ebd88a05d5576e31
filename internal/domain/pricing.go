package domain

import "errors"

// ErrNegativeTotal is returned when a pricing computation would produce a
// negative order total.
var ErrNegativeTotal = errors.New("order total cannot be negative")

// Pricing is the monetary breakdown of an order at creation time. The
// invariant total == subtotal + shipping - discount holds exactly and is
// never re-derived after creation.
type Pricing struct {
	Subtotal      int64 `json:"subtotal"`
	ShippingPrice int64 `json:"shipping_price"`
	Discount      int64 `json:"discount"`
	Total         int64 `json:"total"`
}

// Subtotal sums the snapshot line totals of the given items.
func Subtotal(items []OrderItem) int64 {
	var sum int64
	for _, item := range items {
		sum += item.LineTotal()
	}
	return sum
}

// NewPricing derives the order total from its parts, rejecting negative
// results rather than silently allowing a negative charge.
func NewPricing(subtotal, shippingPrice, discount int64) (Pricing, error) {
	total := subtotal + shippingPrice - discount
	if total < 0 {
		return Pricing{}, ErrNegativeTotal
	}
	return Pricing{
		Subtotal:      subtotal,
		ShippingPrice: shippingPrice,
		Discount:      discount,
		Total:         total,
	}, nil
}
