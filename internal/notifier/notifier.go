// Package notifier consumes storefront domain events and turns them into
// customer and operator notifications, honoring the runtime toggles in the
// settings store.
package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hanoutlabs/storefront/internal/event"
	"github.com/hanoutlabs/storefront/internal/settings"
	pkgkafka "github.com/hanoutlabs/storefront/pkg/kafka"
)

// SettingsSource yields the current notification toggles.
type SettingsSource interface {
	Load(ctx context.Context) settings.Snapshot
}

// Notifier translates domain events into notifications. Handler errors are
// returned to the consumer so delivery is retried (and eventually dead
// lettered); a muted toggle is a successful no-op.
type Notifier struct {
	settings SettingsSource
	sender   Sender
	logger   *slog.Logger
}

// New creates a notifier.
func New(settings SettingsSource, sender Sender, logger *slog.Logger) *Notifier {
	return &Notifier{
		settings: settings,
		sender:   sender,
		logger:   logger,
	}
}

// HandleOrderCreated sends the order confirmation notification.
func (n *Notifier) HandleOrderCreated(ctx context.Context, evt *pkgkafka.Event) error {
	if !n.settings.Load(ctx).OrderCreated {
		n.logger.DebugContext(ctx, "order-created notifications muted, skipping",
			slog.String("event_id", evt.EventID),
		)
		return nil
	}

	var data event.OrderCreatedData
	if err := evt.UnmarshalData(&data); err != nil {
		return fmt.Errorf("decode order.created payload: %w", err)
	}

	return n.sender.Send(ctx, Notification{
		Type:    "order_created",
		Subject: fmt.Sprintf("Order %s confirmed", data.OrderNumber),
		Data: map[string]any{
			"order_id":     data.ID,
			"order_number": data.OrderNumber,
			"user_id":      data.UserID,
			"total":        data.Total,
			"item_count":   len(data.Items),
		},
	})
}

// HandleStatusChanged sends the status update notification.
func (n *Notifier) HandleStatusChanged(ctx context.Context, evt *pkgkafka.Event) error {
	if !n.settings.Load(ctx).StatusChanged {
		n.logger.DebugContext(ctx, "status-changed notifications muted, skipping",
			slog.String("event_id", evt.EventID),
		)
		return nil
	}

	var data event.OrderStatusChangedData
	if err := evt.UnmarshalData(&data); err != nil {
		return fmt.Errorf("decode order.status_changed payload: %w", err)
	}

	notif := Notification{
		Type:    "order_status_changed",
		Subject: fmt.Sprintf("Order %s is now %s", data.OrderNumber, data.NewStatus),
		Data: map[string]any{
			"order_id":     data.OrderID,
			"order_number": data.OrderNumber,
			"old_status":   data.OldStatus,
			"new_status":   data.NewStatus,
		},
	}
	if data.TrackingNumber != "" {
		notif.Data["tracking_number"] = data.TrackingNumber
	}

	return n.sender.Send(ctx, notif)
}

// HandleLowStock alerts operators that a product is nearly out of stock.
func (n *Notifier) HandleLowStock(ctx context.Context, evt *pkgkafka.Event) error {
	if !n.settings.Load(ctx).LowStock {
		n.logger.DebugContext(ctx, "low-stock notifications muted, skipping",
			slog.String("event_id", evt.EventID),
		)
		return nil
	}

	var data event.LowStockData
	if err := evt.UnmarshalData(&data); err != nil {
		return fmt.Errorf("decode inventory.low_stock payload: %w", err)
	}

	return n.sender.Send(ctx, Notification{
		Type:    "low_stock",
		Subject: fmt.Sprintf("Low stock: %s (%d left)", data.ProductName, data.Remaining),
		Data: map[string]any{
			"product_id":   data.ProductID,
			"product_name": data.ProductName,
			"remaining":    data.Remaining,
			"threshold":    data.Threshold,
		},
	})
}
