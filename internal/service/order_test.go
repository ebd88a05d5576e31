package service

import (
	"context"
	"strings"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hanoutlabs/storefront/internal/domain"
	"github.com/hanoutlabs/storefront/internal/repository"
	"github.com/hanoutlabs/storefront/pkg/database"
	apperrors "github.com/hanoutlabs/storefront/pkg/errors"
)

type orderServiceFixture struct {
	svc      *OrderService
	db       pgxmock.PgxPoolIface
	orders   *mockOrderRepository
	products *mockProductRepository
	coupons  *mockCouponRepository
}

func newTestOrderService(t *testing.T) *orderServiceFixture {
	t.Helper()

	db, err := database.NewMockPool()
	require.NoError(t, err)

	orders := new(mockOrderRepository)
	products := new(mockProductRepository)
	coupons := new(mockCouponRepository)

	logger := newTestLogger()
	inventory := NewInventoryService(products, logger)
	pricing := NewPricingService(coupons, logger)
	events := newTestEventProducer(logger)

	return &orderServiceFixture{
		svc:      NewOrderService(db, orders, products, inventory, pricing, events, logger),
		db:       db,
		orders:   orders,
		products: products,
		coupons:  coupons,
	}
}

func validInput() CreateOrderInput {
	return CreateOrderInput{
		UserID: "user-123",
		Items: []CreateOrderItem{
			{ProductID: "prod-1", Quantity: 2},
		},
		ShippingAddress: domain.Address{
			Name:    "Sara Ahmed",
			Phone:   "+201001234567",
			Address: "12 Tahrir Square",
			City:    "Cairo",
		},
		PaymentMethod: domain.PaymentMethodCashOnDelivery,
		ShippingPrice: 1000,
	}
}

// --- CreateOrder ---

func TestCreateOrder_Success(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	f.products.On("GetByID", ctx, "prod-1").Return(baseProduct("prod-1", 10), nil)
	f.products.On("DecrementBaseStock", ctx, mock.Anything, "prod-1", 2).Return(true, nil)
	f.products.On("BaseStock", ctx, mock.Anything, "prod-1").Return(8, nil)
	f.orders.On("Create", ctx, mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil)

	f.db.ExpectBegin()
	f.db.ExpectCommit()

	order, err := f.svc.CreateOrder(ctx, validInput())

	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"))
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, int64(10000), order.Subtotal) // 5000 * 2
	assert.Equal(t, int64(11000), order.Total)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Cotton Shirt", order.Items[0].Name)
	assert.Equal(t, order.ID, order.Items[0].OrderID)

	f.orders.AssertExpectations(t)
	assert.NoError(t, f.db.ExpectationsWereMet())
}

func TestCreateOrder_SalePriceSnapshotted(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	p := baseProduct("prod-1", 10)
	p.SalePrice = int64Ptr(4000)
	f.products.On("GetByID", ctx, "prod-1").Return(p, nil)
	f.products.On("DecrementBaseStock", ctx, mock.Anything, "prod-1", 2).Return(true, nil)
	f.products.On("BaseStock", ctx, mock.Anything, "prod-1").Return(8, nil)
	f.orders.On("Create", ctx, mock.Anything, mock.Anything).Return(nil)

	f.db.ExpectBegin()
	f.db.ExpectCommit()

	order, err := f.svc.CreateOrder(ctx, validInput())
	require.NoError(t, err)

	assert.Equal(t, int64(4000), order.Items[0].Price, "sale price wins over regular price")
	assert.Equal(t, int64(8000), order.Subtotal)
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	f := newTestOrderService(t)

	input := validInput()
	input.Items = nil

	_, err := f.svc.CreateOrder(context.Background(), input)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCreateOrder_InvalidShippingAddress(t *testing.T) {
	f := newTestOrderService(t)

	input := validInput()
	input.ShippingAddress.Phone = ""

	_, err := f.svc.CreateOrder(context.Background(), input)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCreateOrder_InvalidPaymentMethod(t *testing.T) {
	f := newTestOrderService(t)

	input := validInput()
	input.PaymentMethod = "credit_card"

	_, err := f.svc.CreateOrder(context.Background(), input)
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), domain.PaymentMethodCashOnDelivery)
}

func TestCreateOrder_ZeroQuantity(t *testing.T) {
	f := newTestOrderService(t)

	input := validInput()
	input.Items[0].Quantity = 0

	_, err := f.svc.CreateOrder(context.Background(), input)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCreateOrder_ProductNotFound(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	f.products.On("GetByID", ctx, "prod-1").Return(nil, apperrors.ErrNotFound)

	_, err := f.svc.CreateOrder(ctx, validInput())
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateOrder_InsufficientStock_RollsBack(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	f.products.On("GetByID", ctx, "prod-1").Return(baseProduct("prod-1", 1), nil)

	f.db.ExpectBegin()
	f.db.ExpectRollback()

	_, err := f.svc.CreateOrder(ctx, validInput())

	require.ErrorIs(t, err, apperrors.ErrInsufficientStock)
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	assert.NoError(t, f.db.ExpectationsWereMet())
}

func TestCreateOrder_WithCoupon(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	f.products.On("GetByID", ctx, "prod-1").Return(baseProduct("prod-1", 10), nil)
	f.products.On("DecrementBaseStock", ctx, mock.Anything, "prod-1", 2).Return(true, nil)
	f.products.On("BaseStock", ctx, mock.Anything, "prod-1").Return(8, nil)
	f.coupons.On("GetByCode", ctx, "SAVE10").Return(validCoupon(), nil)
	f.coupons.On("IncrementUsage", ctx, mock.Anything, "coupon-001").Return(true, nil)
	f.orders.On("Create", ctx, mock.Anything, mock.Anything).Return(nil)

	f.db.ExpectBegin()
	f.db.ExpectCommit()

	input := validInput()
	input.CouponCode = "SAVE10"

	order, err := f.svc.CreateOrder(ctx, input)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), order.Discount, "10% of 10000")
	assert.Equal(t, int64(10000), order.Total)
	require.NotNil(t, order.CouponID)
	assert.Equal(t, "coupon-001", *order.CouponID)
	f.coupons.AssertExpectations(t)
}

func TestCreateOrder_CouponBudgetRace_DropsDiscount(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	f.products.On("GetByID", ctx, "prod-1").Return(baseProduct("prod-1", 10), nil)
	f.products.On("DecrementBaseStock", ctx, mock.Anything, "prod-1", 2).Return(true, nil)
	f.products.On("BaseStock", ctx, mock.Anything, "prod-1").Return(8, nil)
	f.coupons.On("GetByCode", ctx, "SAVE10").Return(validCoupon(), nil)
	// A concurrent order exhausted the usage budget after validation.
	f.coupons.On("IncrementUsage", ctx, mock.Anything, "coupon-001").Return(false, nil)
	f.orders.On("Create", ctx, mock.Anything, mock.Anything).Return(nil)

	f.db.ExpectBegin()
	f.db.ExpectCommit()

	input := validInput()
	input.CouponCode = "SAVE10"

	order, err := f.svc.CreateOrder(ctx, input)
	require.NoError(t, err, "the order still goes through without the coupon")

	assert.Zero(t, order.Discount)
	assert.Nil(t, order.CouponID)
	assert.Equal(t, int64(11000), order.Total)
}

func TestCreateOrder_UnknownCoupon_StillSucceeds(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	f.products.On("GetByID", ctx, "prod-1").Return(baseProduct("prod-1", 10), nil)
	f.products.On("DecrementBaseStock", ctx, mock.Anything, "prod-1", 2).Return(true, nil)
	f.products.On("BaseStock", ctx, mock.Anything, "prod-1").Return(8, nil)
	f.coupons.On("GetByCode", ctx, "NOPE").Return(nil, apperrors.ErrNotFound)
	f.orders.On("Create", ctx, mock.Anything, mock.Anything).Return(nil)

	f.db.ExpectBegin()
	f.db.ExpectCommit()

	input := validInput()
	input.CouponCode = "NOPE"

	order, err := f.svc.CreateOrder(ctx, input)
	require.NoError(t, err)
	assert.Zero(t, order.Discount)
	f.coupons.AssertNotCalled(t, "IncrementUsage", mock.Anything, mock.Anything, mock.Anything)
}

// --- UpdateOrderStatus ---

func pendingOrder() *domain.Order {
	now := time.Now().UTC()
	return &domain.Order{
		ID:          "order-001",
		OrderNumber: "ORD-1700000000000-0042",
		UserID:      "user-123",
		Status:      domain.OrderStatusPending,
		Items: []domain.OrderItem{
			{ID: "item-001", OrderID: "order-001", ProductID: "prod-1", Name: "Cotton Shirt", Price: 5000, Quantity: 2},
		},
		Subtotal:      10000,
		ShippingPrice: 1000,
		Total:         11000,
		PaymentMethod: domain.PaymentMethodCashOnDelivery,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestUpdateOrderStatus_InvalidStatus(t *testing.T) {
	f := newTestOrderService(t)

	_, err := f.svc.UpdateOrderStatus(context.Background(), "order-001", "teleported", "", "")

	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), domain.OrderStatusShipped, "error lists the valid statuses")
}

func TestUpdateOrderStatus_NotFound(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	f.orders.On("GetByID", ctx, "missing").Return(nil, apperrors.ErrNotFound)

	_, err := f.svc.UpdateOrderStatus(ctx, "missing", domain.OrderStatusShipped, "", "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateOrderStatus_SameStatus_NoOp(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	f.orders.On("GetByID", ctx, "order-001").Return(pendingOrder(), nil)

	order, err := f.svc.UpdateOrderStatus(ctx, "order-001", "PENDING", "", "")

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	f.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateOrderStatus_ProcessingAliasMapsToConfirmed(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	f.orders.On("GetByID", ctx, "order-001").Return(pendingOrder(), nil)
	f.orders.On("UpdateStatus", ctx, "order-001", domain.OrderStatusConfirmed, "").Return(nil)

	order, err := f.svc.UpdateOrderStatus(ctx, "order-001", "processing", "", "")

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, order.Status)
	assert.NotNil(t, order.ConfirmedAt)
}

func TestUpdateOrderStatus_ShippedWithTracking(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	f.orders.On("GetByID", ctx, "order-001").Return(pendingOrder(), nil)
	f.orders.On("SetTracking", ctx, "order-001", "TRK-99").Return(nil)
	f.orders.On("UpdateStatus", ctx, "order-001", domain.OrderStatusShipped, "").Return(nil)

	order, err := f.svc.UpdateOrderStatus(ctx, "order-001", domain.OrderStatusShipped, "TRK-99", "")

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, order.Status)
	assert.Equal(t, "TRK-99", order.TrackingNumber)
	f.orders.AssertExpectations(t)
}

func TestUpdateOrderStatus_CancelReplenishesStock(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	f.orders.On("GetByID", ctx, "order-001").Return(pendingOrder(), nil)
	f.orders.On("UpdateStatus", ctx, "order-001", domain.OrderStatusCancelled, "changed my mind").Return(nil)
	f.products.On("GetByID", ctx, "prod-1").Return(baseProduct("prod-1", 8), nil)
	f.products.On("IncrementBaseStock", ctx, "prod-1", 2).Return(nil)

	order, err := f.svc.UpdateOrderStatus(ctx, "order-001", domain.OrderStatusCancelled, "", "changed my mind")

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
	assert.Equal(t, "changed my mind", order.CancelledReason)
	assert.NotNil(t, order.CancelledAt)
	f.products.AssertExpectations(t)
}

func TestUpdateOrderStatus_SecondCancel_NoSecondReplenish(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	cancelled := pendingOrder()
	cancelled.Status = domain.OrderStatusCancelled
	f.orders.On("GetByID", ctx, "order-001").Return(cancelled, nil)

	order, err := f.svc.UpdateOrderStatus(ctx, "order-001", domain.OrderStatusCancelled, "", "again")

	require.NoError(t, err, "repeating the current status is an idempotent no-op")
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
	f.products.AssertNotCalled(t, "IncrementBaseStock", mock.Anything, mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateOrderStatus_TerminalStatusRejected(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	delivered := pendingOrder()
	delivered.Status = domain.OrderStatusDelivered
	f.orders.On("GetByID", ctx, "order-001").Return(delivered, nil)

	_, err := f.svc.UpdateOrderStatus(ctx, "order-001", domain.OrderStatusCancelled, "", "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestUpdateOrderStatus_TerminalRejectedBeforeTrackingWrite(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	delivered := pendingOrder()
	delivered.Status = domain.OrderStatusDelivered
	f.orders.On("GetByID", ctx, "order-001").Return(delivered, nil)

	_, err := f.svc.UpdateOrderStatus(ctx, "order-001", domain.OrderStatusCancelled, "TRK-X", "")

	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	f.orders.AssertNotCalled(t, "SetTracking", mock.Anything, mock.Anything, mock.Anything)
}

func TestSetTracking_KeepsStatus(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	confirmed := pendingOrder()
	confirmed.Status = domain.OrderStatusConfirmed
	f.orders.On("GetByID", ctx, "order-001").Return(confirmed, nil)
	f.orders.On("SetTracking", ctx, "order-001", "TRK-1").Return(nil)

	order, err := f.svc.SetTracking(ctx, "order-001", "TRK-1")

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, order.Status, "tracking assignment must not advance the order")
	assert.Equal(t, "TRK-1", order.TrackingNumber)
	f.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.orders.AssertExpectations(t)
}

func TestSetTracking_SameNumber_NoWrite(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	tracked := pendingOrder()
	tracked.Status = domain.OrderStatusConfirmed
	tracked.TrackingNumber = "TRK-1"
	f.orders.On("GetByID", ctx, "order-001").Return(tracked, nil)

	order, err := f.svc.SetTracking(ctx, "order-001", "TRK-1")

	require.NoError(t, err)
	assert.Equal(t, "TRK-1", order.TrackingNumber)
	f.orders.AssertNotCalled(t, "SetTracking", mock.Anything, mock.Anything, mock.Anything)
}

func TestSetTracking_NotFound(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	f.orders.On("GetByID", ctx, "order-404").Return(nil, apperrors.ErrNotFound)

	_, err := f.svc.SetTracking(ctx, "order-404", "TRK-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateOrderStatus_ReplenishFailureDoesNotBlockCancel(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	f.orders.On("GetByID", ctx, "order-001").Return(pendingOrder(), nil)
	f.orders.On("UpdateStatus", ctx, "order-001", domain.OrderStatusCancelled, "").Return(nil)
	// Product deleted since the order was placed.
	f.products.On("GetByID", ctx, "prod-1").Return(nil, apperrors.ErrNotFound)

	order, err := f.svc.UpdateOrderStatus(ctx, "order-001", domain.OrderStatusCancelled, "", "")

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
}

// --- CancelOrder ---

func TestCancelOrder_WrongUser(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	f.orders.On("GetByID", ctx, "order-001").Return(pendingOrder(), nil)

	_, err := f.svc.CancelOrder(ctx, "order-001", "someone-else", "")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestCancelOrder_TooLate(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	shipped := pendingOrder()
	shipped.Status = domain.OrderStatusShipped
	f.orders.On("GetByID", ctx, "order-001").Return(shipped, nil)

	_, err := f.svc.CancelOrder(ctx, "order-001", "user-123", "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCancelOrder_Pending_Succeeds(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	f.orders.On("GetByID", ctx, "order-001").Return(pendingOrder(), nil)
	f.orders.On("UpdateStatus", ctx, "order-001", domain.OrderStatusCancelled, "ordered by mistake").Return(nil)
	f.products.On("GetByID", ctx, "prod-1").Return(baseProduct("prod-1", 8), nil)
	f.products.On("IncrementBaseStock", ctx, "prod-1", 2).Return(nil)

	order, err := f.svc.CancelOrder(ctx, "order-001", "user-123", "ordered by mistake")

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
}

func TestCancelOrder_AlreadyCancelled_NoOp(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	cancelled := pendingOrder()
	cancelled.Status = domain.OrderStatusCancelled
	f.orders.On("GetByID", ctx, "order-001").Return(cancelled, nil)

	order, err := f.svc.CancelOrder(ctx, "order-001", "user-123", "")

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
	f.products.AssertNotCalled(t, "IncrementBaseStock", mock.Anything, mock.Anything, mock.Anything)
}

// --- Other operations ---

func TestUpdatePaymentStatus_Invalid(t *testing.T) {
	f := newTestOrderService(t)

	_, err := f.svc.UpdatePaymentStatus(context.Background(), "order-001", "maybe")
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), domain.PaymentStatusRefunded)
}

func TestUpdatePaymentStatus_Success(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	paid := pendingOrder()
	paid.PaymentStatus = domain.PaymentStatusPaid
	f.orders.On("UpdatePaymentStatus", ctx, "order-001", domain.PaymentStatusPaid).Return(nil)
	f.orders.On("GetByID", ctx, "order-001").Return(paid, nil)

	order, err := f.svc.UpdatePaymentStatus(ctx, "order-001", domain.PaymentStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)
}

func TestTrackOrder_ReturnsTimeline(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	now := time.Now().UTC()
	o := pendingOrder()
	o.Status = domain.OrderStatusConfirmed
	o.ConfirmedAt = &now
	f.orders.On("GetByNumber", ctx, o.OrderNumber).Return(o, nil)

	order, timeline, err := f.svc.TrackOrder(ctx, o.OrderNumber)

	require.NoError(t, err)
	assert.Equal(t, o.ID, order.ID)
	require.NotEmpty(t, timeline)
	assert.Equal(t, domain.OrderStatusPending, timeline[0].Status)
}

func TestListOrders_ClampsPagination(t *testing.T) {
	f := newTestOrderService(t)
	ctx := context.Background()

	f.orders.On("List", ctx, repository.OrderFilter{Page: 1, PerPage: 100}).
		Return([]domain.Order{}, 0, nil)

	_, _, err := f.svc.ListOrders(ctx, repository.OrderFilter{Page: 0, PerPage: 5000})
	require.NoError(t, err)
	f.orders.AssertExpectations(t)
}
