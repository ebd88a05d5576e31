package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hanoutlabs/storefront/internal/domain"
	"github.com/hanoutlabs/storefront/internal/repository"
	"github.com/hanoutlabs/storefront/pkg/database"
	apperrors "github.com/hanoutlabs/storefront/pkg/errors"
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts a new order and its items through the given querier. The
// caller owns the transaction so the insert commits atomically with the
// stock decrements.
func (r *OrderRepository) Create(ctx context.Context, q database.Querier, o *domain.Order) error {
	shippingJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	var billingJSON []byte
	if o.BillingAddress != nil {
		billingJSON, err = json.Marshal(o.BillingAddress)
		if err != nil {
			return fmt.Errorf("marshal billing address: %w", err)
		}
	}

	orderQuery := `
		INSERT INTO orders (id, order_number, user_id, status, subtotal, shipping_price, discount, total, coupon_id, payment_method, shipping_payment_method, payment_status, shipping_address, billing_address, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err = q.Exec(ctx, orderQuery,
		o.ID,
		o.OrderNumber,
		o.UserID,
		o.Status,
		o.Subtotal,
		o.ShippingPrice,
		o.Discount,
		o.Total,
		o.CouponID,
		o.PaymentMethod,
		o.ShippingPaymentMethod,
		o.PaymentStatus,
		shippingJSON,
		billingJSON,
		o.Notes,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, name, price, quantity, size, color, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for _, item := range o.Items {
		_, err = q.Exec(ctx, itemQuery,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.Name,
			item.Price,
			item.Quantity,
			item.Size,
			item.Color,
			item.Image,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return nil
}

// orderColumns is the shared select list for single-order queries, with items
// aggregated in one round trip via LEFT JOIN + JSONB_AGG.
const orderColumns = `
	o.id, o.order_number, o.user_id, o.status, o.subtotal, o.shipping_price,
	o.discount, o.total, o.coupon_id, o.payment_method, o.shipping_payment_method,
	o.payment_status, o.shipping_address, o.billing_address, o.notes,
	o.tracking_number, o.cancelled_reason, o.confirmed_at, o.shipped_at,
	o.out_for_delivery_at, o.delivered_at, o.cancelled_at, o.created_at, o.updated_at,
	COALESCE(
		JSONB_AGG(
			JSONB_BUILD_OBJECT(
				'id', oi.id,
				'order_id', oi.order_id,
				'product_id', oi.product_id,
				'name', oi.name,
				'price', oi.price,
				'quantity', oi.quantity,
				'size', oi.size,
				'color', oi.color,
				'image', oi.image
			) ORDER BY oi.id
		) FILTER (WHERE oi.id IS NOT NULL),
		'[]'::jsonb
	) AS items`

const orderGroupBy = `
	GROUP BY o.id, o.order_number, o.user_id, o.status, o.subtotal, o.shipping_price,
		o.discount, o.total, o.coupon_id, o.payment_method, o.shipping_payment_method,
		o.payment_status, o.shipping_address, o.billing_address, o.notes,
		o.tracking_number, o.cancelled_reason, o.confirmed_at, o.shipped_at,
		o.out_for_delivery_at, o.delivered_at, o.cancelled_at, o.created_at, o.updated_at`

// GetByID retrieves an order by its ID, eagerly loading its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := "SELECT " + orderColumns + `
		FROM orders o
		LEFT JOIN order_items oi ON o.id = oi.order_id
		WHERE o.id = $1` + orderGroupBy

	return r.getOne(ctx, query, id)
}

// GetByNumber retrieves an order by its human-facing order number.
func (r *OrderRepository) GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	query := "SELECT " + orderColumns + `
		FROM orders o
		LEFT JOIN order_items oi ON o.id = oi.order_id
		WHERE o.order_number = $1` + orderGroupBy

	return r.getOne(ctx, query, orderNumber)
}

func (r *OrderRepository) getOne(ctx context.Context, query string, arg any) (*domain.Order, error) {
	var (
		o            domain.Order
		shippingJSON []byte
		billingJSON  []byte
		itemsJSON    []byte
	)

	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&o.Status,
		&o.Subtotal,
		&o.ShippingPrice,
		&o.Discount,
		&o.Total,
		&o.CouponID,
		&o.PaymentMethod,
		&o.ShippingPaymentMethod,
		&o.PaymentStatus,
		&shippingJSON,
		&billingJSON,
		&o.Notes,
		&o.TrackingNumber,
		&o.CancelledReason,
		&o.ConfirmedAt,
		&o.ShippedAt,
		&o.OutForDeliveryAt,
		&o.DeliveredAt,
		&o.CancelledAt,
		&o.CreatedAt,
		&o.UpdatedAt,
		&itemsJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if len(shippingJSON) > 0 && string(shippingJSON) != "null" {
		if err := json.Unmarshal(shippingJSON, &o.ShippingAddress); err != nil {
			return nil, fmt.Errorf("unmarshal shipping address: %w", err)
		}
	}

	if len(billingJSON) > 0 && string(billingJSON) != "null" {
		var addr domain.Address
		if err := json.Unmarshal(billingJSON, &addr); err != nil {
			return nil, fmt.Errorf("unmarshal billing address: %w", err)
		}
		o.BillingAddress = &addr
	}

	if len(itemsJSON) > 0 && string(itemsJSON) != "null" && string(itemsJSON) != "[]" {
		if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
			return nil, fmt.Errorf("unmarshal order items: %w", err)
		}
	} else {
		o.Items = []domain.OrderItem{}
	}

	return &o, nil
}

// List returns orders matching the given filter with the total count.
func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIndex))
		args = append(args, *filter.UserID)
		argIndex++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.PaymentStatus != nil {
		conditions = append(conditions, fmt.Sprintf("payment_status = $%d", argIndex))
		args = append(args, *filter.PaymentStatus)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// count(*) OVER() yields the total count in the same query.
	query := fmt.Sprintf(`
		SELECT id, order_number, user_id, status, subtotal, shipping_price, discount, total,
			coupon_id, payment_method, shipping_payment_method, payment_status,
			shipping_address, billing_address, notes, tracking_number, cancelled_reason,
			confirmed_at, shipped_at, out_for_delivery_at, delivered_at, cancelled_at,
			created_at, updated_at,
			count(*) OVER() AS total_count
		FROM orders
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var totalCount int
	orders := make([]domain.Order, 0)

	for rows.Next() {
		var (
			o            domain.Order
			shippingJSON []byte
			billingJSON  []byte
		)

		if err := rows.Scan(
			&o.ID,
			&o.OrderNumber,
			&o.UserID,
			&o.Status,
			&o.Subtotal,
			&o.ShippingPrice,
			&o.Discount,
			&o.Total,
			&o.CouponID,
			&o.PaymentMethod,
			&o.ShippingPaymentMethod,
			&o.PaymentStatus,
			&shippingJSON,
			&billingJSON,
			&o.Notes,
			&o.TrackingNumber,
			&o.CancelledReason,
			&o.ConfirmedAt,
			&o.ShippedAt,
			&o.OutForDeliveryAt,
			&o.DeliveredAt,
			&o.CancelledAt,
			&o.CreatedAt,
			&o.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}

		if len(shippingJSON) > 0 && string(shippingJSON) != "null" {
			if err := json.Unmarshal(shippingJSON, &o.ShippingAddress); err != nil {
				return nil, 0, fmt.Errorf("unmarshal shipping address: %w", err)
			}
		}

		if len(billingJSON) > 0 && string(billingJSON) != "null" {
			var addr domain.Address
			if err := json.Unmarshal(billingJSON, &addr); err != nil {
				return nil, 0, fmt.Errorf("unmarshal billing address: %w", err)
			}
			o.BillingAddress = &addr
		}

		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	// Batch-load items for all orders in one query to avoid N+1.
	if len(orders) > 0 {
		orderIDs := make([]string, len(orders))
		for i := range orders {
			orderIDs[i] = orders[i].ID
		}

		itemsQuery := `
			SELECT id, order_id, product_id, name, price, quantity, size, color, image
			FROM order_items
			WHERE order_id = ANY($1)
			ORDER BY id`

		itemRows, err := r.pool.Query(ctx, itemsQuery, orderIDs)
		if err != nil {
			return nil, 0, fmt.Errorf("batch load order items: %w", err)
		}
		defer itemRows.Close()

		itemsByOrderID := make(map[string][]domain.OrderItem, len(orders))
		for itemRows.Next() {
			var item domain.OrderItem
			if err := itemRows.Scan(
				&item.ID,
				&item.OrderID,
				&item.ProductID,
				&item.Name,
				&item.Price,
				&item.Quantity,
				&item.Size,
				&item.Color,
				&item.Image,
			); err != nil {
				return nil, 0, fmt.Errorf("scan order item: %w", err)
			}
			itemsByOrderID[item.OrderID] = append(itemsByOrderID[item.OrderID], item)
		}
		if err := itemRows.Err(); err != nil {
			return nil, 0, fmt.Errorf("iterate batch order item rows: %w", err)
		}

		for i := range orders {
			if items, ok := itemsByOrderID[orders[i].ID]; ok {
				orders[i].Items = items
			} else {
				orders[i].Items = []domain.OrderItem{}
			}
		}
	}

	return orders, totalCount, nil
}

// UpdateStatus changes the order status. The per-status timestamp column is
// stamped on first entry into that status; the cancellation reason is only
// recorded when transitioning into cancelled.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id, status, reason string) error {
	now := time.Now().UTC()
	query := `
		UPDATE orders
		SET status = $1,
			cancelled_reason    = CASE WHEN $1 = 'cancelled' THEN $2 ELSE cancelled_reason END,
			cancelled_at        = CASE WHEN $1 = 'cancelled' AND cancelled_at IS NULL THEN $3 ELSE cancelled_at END,
			confirmed_at        = CASE WHEN $1 = 'confirmed' AND confirmed_at IS NULL THEN $3 ELSE confirmed_at END,
			shipped_at          = CASE WHEN $1 = 'shipped' AND shipped_at IS NULL THEN $3 ELSE shipped_at END,
			out_for_delivery_at = CASE WHEN $1 = 'out_for_delivery' AND out_for_delivery_at IS NULL THEN $3 ELSE out_for_delivery_at END,
			delivered_at        = CASE WHEN $1 = 'delivered' AND delivered_at IS NULL THEN $3 ELSE delivered_at END,
			updated_at = $3
		WHERE id = $4`

	ct, err := r.pool.Exec(ctx, query, status, reason, now, id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}

	return nil
}

// SetTracking sets the tracking number on an order.
func (r *OrderRepository) SetTracking(ctx context.Context, id, trackingNumber string) error {
	query := `
		UPDATE orders
		SET tracking_number = $1, updated_at = $2
		WHERE id = $3`

	ct, err := r.pool.Exec(ctx, query, trackingNumber, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set tracking number: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}

	return nil
}

// UpdatePaymentStatus changes the payment status of an order.
func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, id, paymentStatus string) error {
	query := `
		UPDATE orders
		SET payment_status = $1, updated_at = $2
		WHERE id = $3`

	ct, err := r.pool.Exec(ctx, query, paymentStatus, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}

	return nil
}
