package notifier

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanoutlabs/storefront/internal/event"
	"github.com/hanoutlabs/storefront/internal/settings"
	pkgkafka "github.com/hanoutlabs/storefront/pkg/kafka"
)

type stubSettings struct {
	snap settings.Snapshot
}

func (s stubSettings) Load(context.Context) settings.Snapshot { return s.snap }

type stubSender struct {
	sent []Notification
	err  error
}

func (s *stubSender) Send(_ context.Context, n Notification) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, n)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func allEnabled() stubSettings {
	return stubSettings{snap: settings.Snapshot{OrderCreated: true, StatusChanged: true, LowStock: true}}
}

func mustEvent(t *testing.T, eventType string, data any) *pkgkafka.Event {
	t.Helper()
	evt, err := pkgkafka.NewEvent(eventType, "agg-1", "order", "storefront", data)
	require.NoError(t, err)
	return evt
}

func TestHandleOrderCreated_Sends(t *testing.T) {
	sender := &stubSender{}
	n := New(allEnabled(), sender, testLogger())

	evt := mustEvent(t, event.TopicOrderCreated, event.OrderCreatedData{
		ID:          "order-001",
		OrderNumber: "ORD-1700000000000-0042",
		UserID:      "user-123",
		Total:       11000,
	})

	require.NoError(t, n.HandleOrderCreated(context.Background(), evt))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "order_created", sender.sent[0].Type)
	assert.Contains(t, sender.sent[0].Subject, "ORD-1700000000000-0042")
}

func TestHandleOrderCreated_Muted(t *testing.T) {
	sender := &stubSender{}
	muted := stubSettings{snap: settings.Snapshot{StatusChanged: true, LowStock: true}}
	n := New(muted, sender, testLogger())

	evt := mustEvent(t, event.TopicOrderCreated, event.OrderCreatedData{ID: "order-001"})

	require.NoError(t, n.HandleOrderCreated(context.Background(), evt), "muted toggle is a successful no-op")
	assert.Empty(t, sender.sent)
}

func TestHandleStatusChanged_IncludesTracking(t *testing.T) {
	sender := &stubSender{}
	n := New(allEnabled(), sender, testLogger())

	evt := mustEvent(t, event.TopicOrderStatusChanged, event.OrderStatusChangedData{
		OrderID:        "order-001",
		OrderNumber:    "ORD-1700000000000-0042",
		OldStatus:      "confirmed",
		NewStatus:      "shipped",
		TrackingNumber: "TRK-99",
	})

	require.NoError(t, n.HandleStatusChanged(context.Background(), evt))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "TRK-99", sender.sent[0].Data["tracking_number"])
	assert.Contains(t, sender.sent[0].Subject, "shipped")
}

func TestHandleLowStock_Sends(t *testing.T) {
	sender := &stubSender{}
	n := New(allEnabled(), sender, testLogger())

	evt := mustEvent(t, event.TopicLowStock, event.LowStockData{
		ProductID:   "prod-1",
		ProductName: "Cotton Shirt",
		Remaining:   4,
		Threshold:   5,
	})

	require.NoError(t, n.HandleLowStock(context.Background(), evt))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "low_stock", sender.sent[0].Type)
	assert.Equal(t, 4, sender.sent[0].Data["remaining"])
}

func TestHandle_SenderFailurePropagatesForRetry(t *testing.T) {
	sender := &stubSender{err: errors.New("gateway down")}
	n := New(allEnabled(), sender, testLogger())

	evt := mustEvent(t, event.TopicLowStock, event.LowStockData{ProductID: "prod-1"})

	err := n.HandleLowStock(context.Background(), evt)
	assert.Error(t, err, "delivery failures must surface so the consumer retries")
}

func TestHandle_MalformedPayload(t *testing.T) {
	sender := &stubSender{}
	n := New(allEnabled(), sender, testLogger())

	evt := mustEvent(t, event.TopicOrderCreated, "not-an-object")

	err := n.HandleOrderCreated(context.Background(), evt)
	assert.Error(t, err)
	assert.Empty(t, sender.sent)
}
