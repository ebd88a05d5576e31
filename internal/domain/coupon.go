package domain

import (
	"strings"
	"time"
)

// Discount type constants.
const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

// Coupon is a discount code with a validity window and an optional usage
// budget. UsedCount is incremented once per order that applies the coupon and
// is never decremented, even when the order is later cancelled.
type Coupon struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	DiscountType  string    `json:"discount_type"`
	DiscountValue int64     `json:"discount_value"`
	MinPurchase   int64     `json:"min_purchase"`
	MaxDiscount   *int64    `json:"max_discount,omitempty"`
	UsageLimit    *int      `json:"usage_limit,omitempty"`
	UsedCount     int       `json:"used_count"`
	ValidFrom     time.Time `json:"valid_from"`
	ValidUntil    time.Time `json:"valid_until"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NormalizeCouponCode uppercases and trims a coupon code for case-insensitive
// lookup.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValid reports whether the coupon can currently be applied: it must be
// active, within its validity window, and under its usage limit.
func (c *Coupon) IsValid(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return false
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return false
	}
	return true
}

// Shortfall returns how much the subtotal falls short of the coupon's minimum
// purchase requirement, or zero when the requirement is met.
func (c *Coupon) Shortfall(subtotal int64) int64 {
	if subtotal < c.MinPurchase {
		return c.MinPurchase - subtotal
	}
	return 0
}

// Discount computes the discount amount for the given subtotal. Percentage
// discounts are clamped to MaxDiscount when set; the final value never
// exceeds the subtotal, so a coupon cannot make an order negative.
func (c *Coupon) Discount(subtotal int64) int64 {
	var d int64
	switch c.DiscountType {
	case DiscountTypePercentage:
		d = subtotal * c.DiscountValue / 100
		if c.MaxDiscount != nil && d > *c.MaxDiscount {
			d = *c.MaxDiscount
		}
	case DiscountTypeFixed:
		d = c.DiscountValue
	}
	if d > subtotal {
		d = subtotal
	}
	if d < 0 {
		d = 0
	}
	return d
}
