package domain

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// Order status constants. The list is ordered by the normal fulfilment
// progression; cancelled is reachable from any non-terminal state.
const (
	OrderStatusPending        = "pending"
	OrderStatusConfirmed      = "confirmed"
	OrderStatusProcessing     = "processing"
	OrderStatusShipped        = "shipped"
	OrderStatusOutForDelivery = "out_for_delivery"
	OrderStatusDelivered      = "delivered"
	OrderStatusCancelled      = "cancelled"
)

// Payment method constants.
const (
	PaymentMethodCashOnDelivery = "cash_on_delivery"
	PaymentMethodInstapay       = "instapay"
	PaymentMethodVodafone       = "vodafone"
)

// Payment status constants.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// statusAliases maps legacy admin input values to their stored status.
var statusAliases = map[string]string{
	OrderStatusProcessing: OrderStatusConfirmed,
}

// Order represents a customer order. Item names, prices, and images are
// snapshotted at creation time and never recomputed from the live catalog.
type Order struct {
	ID                    string      `json:"id"`
	OrderNumber           string      `json:"order_number"`
	UserID                string      `json:"user_id"`
	Status                string      `json:"status"`
	Items                 []OrderItem `json:"items"`
	Subtotal              int64       `json:"subtotal"`
	ShippingPrice         int64       `json:"shipping_price"`
	Discount              int64       `json:"discount"`
	Total                 int64       `json:"total"`
	CouponID              *string     `json:"coupon_id,omitempty"`
	PaymentMethod         string      `json:"payment_method"`
	ShippingPaymentMethod string      `json:"shipping_payment_method,omitempty"`
	PaymentStatus         string      `json:"payment_status"`
	ShippingAddress       Address     `json:"shipping_address"`
	BillingAddress        *Address    `json:"billing_address,omitempty"`
	Notes                 string      `json:"notes,omitempty"`
	TrackingNumber        string      `json:"tracking_number,omitempty"`
	CancelledReason       string      `json:"cancelled_reason,omitempty"`
	ConfirmedAt           *time.Time  `json:"confirmed_at,omitempty"`
	ShippedAt             *time.Time  `json:"shipped_at,omitempty"`
	OutForDeliveryAt      *time.Time  `json:"out_for_delivery_at,omitempty"`
	DeliveredAt           *time.Time  `json:"delivered_at,omitempty"`
	CancelledAt           *time.Time  `json:"cancelled_at,omitempty"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// OrderItem is one line item within an order. Name, Price, and Image are
// snapshots taken from the product at order-creation time.
type OrderItem struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	Image     string `json:"image,omitempty"`
}

// LineTotal returns the extended price for this line item.
func (i OrderItem) LineTotal() int64 {
	return i.Price * int64(i.Quantity)
}

// Address is a denormalized shipping or billing address snapshot.
type Address struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// ValidStatuses returns all valid order statuses.
func ValidStatuses() []string {
	return []string{
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusOutForDelivery,
		OrderStatusDelivered,
		OrderStatusCancelled,
	}
}

// IsValidStatus checks if a status string is valid.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// NormalizeStatus lowercases and trims an input status value and maps legacy
// aliases onto the stored status ("processing" input means "order accepted",
// which is stored as confirmed).
func NormalizeStatus(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	if alias, ok := statusAliases[s]; ok {
		return alias
	}
	return s
}

// IsTerminalStatus reports whether the status permits no further transitions.
func IsTerminalStatus(status string) bool {
	return status == OrderStatusDelivered || status == OrderStatusCancelled
}

// CanTransitionTo checks whether the order may move to the target status.
// Terminal orders never transition; non-terminal orders accept any recognized
// status, including cancelled.
func (o *Order) CanTransitionTo(target string) bool {
	if IsTerminalStatus(o.Status) {
		return false
	}
	return IsValidStatus(target)
}

// ValidPaymentMethods returns all accepted payment methods.
func ValidPaymentMethods() []string {
	return []string{PaymentMethodCashOnDelivery, PaymentMethodInstapay, PaymentMethodVodafone}
}

// IsValidPaymentMethod checks if a payment method string is valid.
func IsValidPaymentMethod(method string) bool {
	for _, m := range ValidPaymentMethods() {
		if m == method {
			return true
		}
	}
	return false
}

// ValidPaymentStatuses returns all valid payment statuses.
func ValidPaymentStatuses() []string {
	return []string{PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded}
}

// IsValidPaymentStatus checks if a payment status string is valid.
func IsValidPaymentStatus(status string) bool {
	for _, s := range ValidPaymentStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// NewOrderNumber generates a human-facing order number of the form
// ORD-<unix-millis>-<4-digit-random>.
func NewOrderNumber() string {
	return fmt.Sprintf("ORD-%d-%04d", time.Now().UnixMilli(), rand.IntN(10000)) // #nosec G404 -- order numbers are not security tokens
}

// TimelineEntry is one realized step in an order's status history.
type TimelineEntry struct {
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

// Timeline derives the order's status history from its recorded timestamps,
// in chronological order. Only reached states appear. The legacy processing
// stage has no timestamp column and is absent here: admin input "processing"
// normalizes to confirmed, so orders never actually enter it.
func (o *Order) Timeline() []TimelineEntry {
	entries := []TimelineEntry{{Status: OrderStatusPending, At: o.CreatedAt}}
	steps := []struct {
		status string
		at     *time.Time
	}{
		{OrderStatusConfirmed, o.ConfirmedAt},
		{OrderStatusShipped, o.ShippedAt},
		{OrderStatusOutForDelivery, o.OutForDeliveryAt},
		{OrderStatusDelivered, o.DeliveredAt},
		{OrderStatusCancelled, o.CancelledAt},
	}
	for _, step := range steps {
		if step.at != nil {
			entries = append(entries, TimelineEntry{Status: step.status, At: *step.at})
		}
	}
	return entries
}
