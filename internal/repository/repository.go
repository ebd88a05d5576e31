package repository

import (
	"context"

	"github.com/hanoutlabs/storefront/internal/domain"
	"github.com/hanoutlabs/storefront/pkg/database"
)

// OrderFilter defines filter criteria for listing orders.
type OrderFilter struct {
	UserID        *string
	Status        *string
	PaymentStatus *string
	Page          int
	PerPage       int
}

// OrderRepository defines the interface for order persistence operations.
// Create runs against the caller-supplied querier so the order insert can
// share a transaction with the stock decrements and coupon usage update.
type OrderRepository interface {
	// Create inserts a new order and its items using the given querier.
	Create(ctx context.Context, q database.Querier, order *domain.Order) error

	// GetByID retrieves an order by its unique identifier, including items.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetByNumber retrieves an order by its human-facing order number.
	GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)

	// List returns orders matching the given filter along with the total count.
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)

	// UpdateStatus changes the order status, stamping the per-status timestamp
	// column and recording the cancellation reason on cancel.
	UpdateStatus(ctx context.Context, id, status, reason string) error

	// SetTracking sets the tracking number independently of status.
	SetTracking(ctx context.Context, id, trackingNumber string) error

	// UpdatePaymentStatus changes the payment status.
	UpdatePaymentStatus(ctx context.Context, id, paymentStatus string) error
}

// ProductRepository defines catalog reads and stock mutations. The guarded
// decrement methods report whether the guard matched; a false return means
// concurrent demand consumed the stock between validation and commit.
type ProductRepository interface {
	// GetByID retrieves a product with all of its variant rows.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// DecrementBaseStock conditionally decrements the base stock bucket.
	DecrementBaseStock(ctx context.Context, q database.Querier, productID string, qty int) (bool, error)

	// DecrementVariantStock conditionally decrements one variant row.
	DecrementVariantStock(ctx context.Context, q database.Querier, variantID string, qty int) (bool, error)

	// IncrementBaseStock replenishes the base stock bucket.
	IncrementBaseStock(ctx context.Context, productID string, qty int) error

	// IncrementVariantStock replenishes one variant row.
	IncrementVariantStock(ctx context.Context, variantID string, qty int) error

	// BaseStock reads the current base stock through the given querier.
	BaseStock(ctx context.Context, q database.Querier, productID string) (int, error)

	// VariantStock reads the current stock of one variant row.
	VariantStock(ctx context.Context, q database.Querier, variantID string) (int, error)
}

// CouponRepository defines coupon lookup and the guarded usage increment.
type CouponRepository interface {
	// GetByCode retrieves a coupon by its uppercase-normalized code.
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)

	// IncrementUsage increments used_count if the usage limit permits,
	// reporting whether the increment was applied.
	IncrementUsage(ctx context.Context, q database.Querier, id string) (bool, error)
}
