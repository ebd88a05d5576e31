package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hanoutlabs/storefront/internal/domain"
	pkgkafka "github.com/hanoutlabs/storefront/pkg/kafka"
)

// Kafka topic constants for storefront domain events.
const (
	TopicOrderCreated       = "storefront.order.created"
	TopicOrderStatusChanged = "storefront.order.status_changed"
	TopicLowStock           = "storefront.inventory.low_stock"
)

// Aggregate type constants.
const (
	AggregateTypeOrder   = "order"
	AggregateTypeProduct = "product"
)

// Source identifier for events originating from this service.
const SourceStorefront = "storefront"

// OrderCreatedData is the payload for an order.created event (full order snapshot).
type OrderCreatedData struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"order_number"`
	UserID          string          `json:"user_id"`
	Status          string          `json:"status"`
	Items           []OrderItemData `json:"items"`
	Subtotal        int64           `json:"subtotal"`
	ShippingPrice   int64           `json:"shipping_price"`
	Discount        int64           `json:"discount"`
	Total           int64           `json:"total"`
	CouponID        *string         `json:"coupon_id,omitempty"`
	PaymentMethod   string          `json:"payment_method"`
	ShippingAddress domain.Address  `json:"shipping_address"`
	BillingAddress  *domain.Address `json:"billing_address,omitempty"`
	Notes           string          `json:"notes,omitempty"`
}

// OrderItemData is the event payload for an order item.
type OrderItemData struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

// OrderStatusChangedData is the payload for an order.status_changed event.
type OrderStatusChangedData struct {
	OrderID        string `json:"order_id"`
	OrderNumber    string `json:"order_number"`
	OldStatus      string `json:"old_status"`
	NewStatus      string `json:"new_status"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// LowStockData is the payload for an inventory.low_stock event.
type LowStockData struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Remaining   int    `json:"remaining"`
	Threshold   int    `json:"threshold"`
}

// Producer publishes storefront domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishOrderCreated publishes an order.created event with the full order snapshot.
func (p *Producer) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	items := make([]OrderItemData, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemData{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Size:      item.Size,
			Color:     item.Color,
		}
	}

	data := OrderCreatedData{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		Status:          order.Status,
		Items:           items,
		Subtotal:        order.Subtotal,
		ShippingPrice:   order.ShippingPrice,
		Discount:        order.Discount,
		Total:           order.Total,
		CouponID:        order.CouponID,
		PaymentMethod:   order.PaymentMethod,
		ShippingAddress: order.ShippingAddress,
		BillingAddress:  order.BillingAddress,
		Notes:           order.Notes,
	}

	event, err := pkgkafka.NewEvent(TopicOrderCreated, order.ID, AggregateTypeOrder, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create order.created event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderCreated, event); err != nil {
		return fmt.Errorf("publish order.created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.created event",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
	)

	return nil
}

// PublishOrderStatusChanged publishes an order.status_changed event.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, order *domain.Order, oldStatus, reason string) error {
	data := OrderStatusChangedData{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		OldStatus:      oldStatus,
		NewStatus:      order.Status,
		TrackingNumber: order.TrackingNumber,
		Reason:         reason,
	}

	event, err := pkgkafka.NewEvent(TopicOrderStatusChanged, order.ID, AggregateTypeOrder, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create order.status_changed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderStatusChanged, event); err != nil {
		return fmt.Errorf("publish order.status_changed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.status_changed event",
		slog.String("order_id", order.ID),
		slog.String("old_status", oldStatus),
		slog.String("new_status", order.Status),
	)

	return nil
}

// PublishLowStock publishes an inventory.low_stock event for a product whose
// base stock dropped to or below the threshold after a reservation.
func (p *Producer) PublishLowStock(ctx context.Context, productID, productName string, remaining, threshold int) error {
	data := LowStockData{
		ProductID:   productID,
		ProductName: productName,
		Remaining:   remaining,
		Threshold:   threshold,
	}

	event, err := pkgkafka.NewEvent(TopicLowStock, productID, AggregateTypeProduct, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create inventory.low_stock event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicLowStock, event); err != nil {
		return fmt.Errorf("publish inventory.low_stock event: %w", err)
	}

	p.logger.DebugContext(ctx, "published inventory.low_stock event",
		slog.String("product_id", productID),
		slog.Int("remaining", remaining),
	)

	return nil
}
