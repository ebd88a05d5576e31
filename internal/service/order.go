package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hanoutlabs/storefront/internal/domain"
	"github.com/hanoutlabs/storefront/internal/event"
	"github.com/hanoutlabs/storefront/internal/repository"
	"github.com/hanoutlabs/storefront/pkg/database"
	apperrors "github.com/hanoutlabs/storefront/pkg/errors"
)

// CreateOrderItem is one requested line of a new order.
type CreateOrderItem struct {
	ProductID string
	Quantity  int
	Size      string
	Color     string
}

// CreateOrderInput carries everything needed to place an order.
type CreateOrderInput struct {
	UserID                string
	Items                 []CreateOrderItem
	ShippingAddress       domain.Address
	BillingAddress        *domain.Address
	PaymentMethod         string
	ShippingPaymentMethod string
	ShippingPrice         int64
	CouponCode            string
	Notes                 string
}

// OrderService orchestrates order creation and lifecycle transitions. It owns
// the transaction that makes stock reservation, coupon consumption, and order
// persistence atomic; events are published only after commit.
type OrderService struct {
	db        database.DBTX
	orders    repository.OrderRepository
	products  repository.ProductRepository
	inventory *InventoryService
	pricing   *PricingService
	events    *event.Producer
	logger    *slog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	db database.DBTX,
	orders repository.OrderRepository,
	products repository.ProductRepository,
	inventory *InventoryService,
	pricing *PricingService,
	events *event.Producer,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		db:        db,
		orders:    orders,
		products:  products,
		inventory: inventory,
		pricing:   pricing,
		events:    events,
		logger:    logger,
	}
}

// CreateOrder places a new order: it snapshots product names and prices,
// prices the cart, reserves stock, consumes the coupon, and persists the
// order, all in one transaction. A failure on any line item leaves no partial
// state. The order-created and low-stock events fire after commit and never
// fail the call.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	if err := validateCreateOrderInput(input); err != nil {
		return nil, err
	}

	orderID := uuid.New().String()

	items, err := s.snapshotItems(ctx, orderID, input.Items)
	if err != nil {
		return nil, err
	}

	quote, err := s.pricing.Quote(ctx, items, input.ShippingPrice, input.CouponCode)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:                    orderID,
		OrderNumber:           domain.NewOrderNumber(),
		UserID:                input.UserID,
		Status:                domain.OrderStatusPending,
		Items:                 items,
		Subtotal:              quote.Subtotal,
		ShippingPrice:         quote.ShippingPrice,
		Discount:              quote.Discount,
		Total:                 quote.Total,
		PaymentMethod:         input.PaymentMethod,
		ShippingPaymentMethod: input.ShippingPaymentMethod,
		PaymentStatus:         domain.PaymentStatusPending,
		ShippingAddress:       input.ShippingAddress,
		BillingAddress:        input.BillingAddress,
		Notes:                 input.Notes,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if quote.Coupon != nil {
		couponID := quote.Coupon.ID
		order.CouponID = &couponID
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin order transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	alerts, err := s.inventory.Reserve(ctx, tx, items)
	if err != nil {
		return nil, err
	}

	if quote.Coupon != nil {
		applied, err := s.pricing.ConsumeCoupon(ctx, tx, quote.Coupon.ID)
		if err != nil {
			return nil, err
		}
		if !applied {
			// Usage budget consumed by a concurrent order after validation.
			// The coupon is dropped rather than failing the whole order.
			s.logger.WarnContext(ctx, "coupon usage limit reached during checkout, dropping discount",
				slog.String("coupon_code", quote.Coupon.Code),
				slog.String("order_number", order.OrderNumber),
			)
			order.CouponID = nil
			order.Discount = 0
			order.Total = order.Subtotal + order.ShippingPrice
		}
	}

	if err := s.orders.Create(ctx, tx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit order transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
		slog.String("user_id", order.UserID),
		slog.Int64("total", order.Total),
	)

	if err := s.events.PublishOrderCreated(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.created event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	for _, alert := range alerts {
		if err := s.events.PublishLowStock(ctx, alert.ProductID, alert.ProductName, alert.Remaining, LowStockThreshold); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish inventory.low_stock event",
				slog.String("product_id", alert.ProductID),
				slog.String("error", err.Error()),
			)
		}
	}

	return order, nil
}

func validateCreateOrderInput(input CreateOrderInput) error {
	if input.UserID == "" {
		return apperrors.InvalidInput("user id is required")
	}
	if len(input.Items) == 0 {
		return apperrors.InvalidInput("order must contain at least one item")
	}
	for i, item := range input.Items {
		if item.ProductID == "" {
			return apperrors.InvalidInput(fmt.Sprintf("item %d: product id is required", i))
		}
		if item.Quantity < 1 {
			return apperrors.InvalidInput(fmt.Sprintf("item %d: quantity must be at least 1", i))
		}
	}
	if !domain.IsValidPaymentMethod(input.PaymentMethod) {
		return apperrors.InvalidInput(fmt.Sprintf("invalid payment method %q, valid values: %s",
			input.PaymentMethod, strings.Join(domain.ValidPaymentMethods(), ", ")))
	}
	if input.ShippingPaymentMethod != "" && !domain.IsValidPaymentMethod(input.ShippingPaymentMethod) {
		return apperrors.InvalidInput(fmt.Sprintf("invalid shipping payment method %q", input.ShippingPaymentMethod))
	}
	if input.ShippingPrice < 0 {
		return apperrors.InvalidInput("shipping price cannot be negative")
	}
	addr := input.ShippingAddress
	if addr.Name == "" || addr.Phone == "" || addr.Address == "" {
		return apperrors.InvalidInput("shipping address requires name, phone, and address")
	}
	return nil
}

// snapshotItems resolves each requested line against the live catalog,
// freezing the product name, image, and unit price (sale price when set) so
// the order stays immutable under later catalog changes.
func (s *OrderService) snapshotItems(ctx context.Context, orderID string, requested []CreateOrderItem) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, len(requested))
	for _, req := range requested {
		product, err := s.products.GetByID(ctx, req.ProductID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.NotFound("product", req.ProductID)
			}
			return nil, fmt.Errorf("load product %s: %w", req.ProductID, err)
		}

		items = append(items, domain.OrderItem{
			ID:        uuid.New().String(),
			OrderID:   orderID,
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.UnitPrice(),
			Quantity:  req.Quantity,
			Size:      req.Size,
			Color:     req.Color,
			Image:     product.Image,
		})
	}
	return items, nil
}

// UpdateOrderStatus transitions an order to a new status. The input is
// normalized (case-insensitive; the legacy "processing" alias maps to
// confirmed). Setting the current status again is an idempotent no-op, so
// cancellation side effects run at most once. Transitioning into cancelled
// replenishes stock best-effort before the transition is recorded.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID, newStatus, trackingNumber, reason string) (*domain.Order, error) {
	normalized := domain.NormalizeStatus(newStatus)
	if !domain.IsValidStatus(normalized) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid status %q, valid values: %s",
			newStatus, strings.Join(domain.ValidStatuses(), ", ")))
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("order", orderID)
		}
		return nil, fmt.Errorf("load order: %w", err)
	}

	// Reject invalid transitions before any write so a failed update leaves
	// the order untouched, tracking number included.
	sameStatus := order.Status == normalized
	if !sameStatus && !order.CanTransitionTo(normalized) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("order in terminal status %q cannot transition to %q",
			order.Status, normalized))
	}

	if trackingNumber != "" && trackingNumber != order.TrackingNumber {
		if err := s.orders.SetTracking(ctx, orderID, trackingNumber); err != nil {
			return nil, fmt.Errorf("set tracking number: %w", err)
		}
		order.TrackingNumber = trackingNumber
	}

	if sameStatus {
		return order, nil
	}

	return s.transition(ctx, order, normalized, reason)
}

// SetTracking records a shipment tracking number without touching the order
// status, so a carrier can be assigned while the order is still confirmed.
// Advancing to shipped stays a separate, explicit status update.
func (s *OrderService) SetTracking(ctx context.Context, orderID, trackingNumber string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("order", orderID)
		}
		return nil, fmt.Errorf("load order: %w", err)
	}

	if order.TrackingNumber == trackingNumber {
		return order, nil
	}

	if err := s.orders.SetTracking(ctx, orderID, trackingNumber); err != nil {
		return nil, fmt.Errorf("set tracking number: %w", err)
	}
	order.TrackingNumber = trackingNumber

	s.logger.InfoContext(ctx, "tracking number set",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
		slog.String("tracking_number", trackingNumber),
	)

	return order, nil
}

// CancelOrder is the customer-facing cancellation path. Only the order's
// owner may cancel, and only while the order is still pending or confirmed;
// later stages require support intervention.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, userID, reason string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("order", orderID)
		}
		return nil, fmt.Errorf("load order: %w", err)
	}

	if order.UserID != userID {
		return nil, apperrors.Forbidden("order belongs to another user")
	}

	if order.Status == domain.OrderStatusCancelled {
		return order, nil
	}

	if order.Status != domain.OrderStatusPending && order.Status != domain.OrderStatusConfirmed {
		return nil, apperrors.InvalidInput(fmt.Sprintf("order in status %q can no longer be cancelled", order.Status))
	}

	return s.transition(ctx, order, domain.OrderStatusCancelled, reason)
}

// transition applies a validated status change, running the cancellation
// stock reversal first and publishing the status-changed event after the
// store accepts the update.
func (s *OrderService) transition(ctx context.Context, order *domain.Order, newStatus, reason string) (*domain.Order, error) {
	oldStatus := order.Status

	if newStatus == domain.OrderStatusCancelled {
		s.inventory.Replenish(ctx, order.Items)
	}

	if err := s.orders.UpdateStatus(ctx, order.ID, newStatus, reason); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	now := time.Now().UTC()
	order.Status = newStatus
	order.UpdatedAt = now
	switch newStatus {
	case domain.OrderStatusConfirmed:
		order.ConfirmedAt = &now
	case domain.OrderStatusShipped:
		order.ShippedAt = &now
	case domain.OrderStatusOutForDelivery:
		order.OutForDeliveryAt = &now
	case domain.OrderStatusDelivered:
		order.DeliveredAt = &now
	case domain.OrderStatusCancelled:
		order.CancelledAt = &now
		order.CancelledReason = reason
	}

	s.logger.InfoContext(ctx, "order status changed",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
		slog.String("old_status", oldStatus),
		slog.String("new_status", newStatus),
	)

	if err := s.events.PublishOrderStatusChanged(ctx, order, oldStatus, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.status_changed event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	return order, nil
}

// UpdatePaymentStatus changes the payment status of an order.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, orderID, paymentStatus string) (*domain.Order, error) {
	if !domain.IsValidPaymentStatus(paymentStatus) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid payment status %q, valid values: %s",
			paymentStatus, strings.Join(domain.ValidPaymentStatuses(), ", ")))
	}

	if err := s.orders.UpdatePaymentStatus(ctx, orderID, paymentStatus); err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}
	return order, nil
}

// GetOrder retrieves an order by ID.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("order", orderID)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// GetOrderByNumber retrieves an order by its human-facing order number.
func (s *OrderService) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	order, err := s.orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("order", orderNumber)
		}
		return nil, fmt.Errorf("get order by number: %w", err)
	}
	return order, nil
}

// TrackOrder returns an order's status timeline by order number.
func (s *OrderService) TrackOrder(ctx context.Context, orderNumber string) (*domain.Order, []domain.TimelineEntry, error) {
	order, err := s.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, nil, err
	}
	return order, order.Timeline(), nil
}

// ListOrders returns orders matching the filter with pagination clamped to
// sane bounds.
func (s *OrderService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}

	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}
