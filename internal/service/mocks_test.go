package service

import (
	"context"
	"log/slog"
	"os"

	"github.com/stretchr/testify/mock"

	"github.com/hanoutlabs/storefront/internal/domain"
	"github.com/hanoutlabs/storefront/internal/event"
	"github.com/hanoutlabs/storefront/internal/repository"
	"github.com/hanoutlabs/storefront/pkg/database"
	pkgkafka "github.com/hanoutlabs/storefront/pkg/kafka"
)

// --- Mock Repositories ---

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, q database.Querier, order *domain.Order) error {
	args := m.Called(ctx, q, order)
	return args.Error(0)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	args := m.Called(ctx, orderNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id, status, reason string) error {
	args := m.Called(ctx, id, status, reason)
	return args.Error(0)
}

func (m *mockOrderRepository) SetTracking(ctx context.Context, id, trackingNumber string) error {
	args := m.Called(ctx, id, trackingNumber)
	return args.Error(0)
}

func (m *mockOrderRepository) UpdatePaymentStatus(ctx context.Context, id, paymentStatus string) error {
	args := m.Called(ctx, id, paymentStatus)
	return args.Error(0)
}

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) DecrementBaseStock(ctx context.Context, q database.Querier, productID string, qty int) (bool, error) {
	args := m.Called(ctx, q, productID, qty)
	return args.Bool(0), args.Error(1)
}

func (m *mockProductRepository) DecrementVariantStock(ctx context.Context, q database.Querier, variantID string, qty int) (bool, error) {
	args := m.Called(ctx, q, variantID, qty)
	return args.Bool(0), args.Error(1)
}

func (m *mockProductRepository) IncrementBaseStock(ctx context.Context, productID string, qty int) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}

func (m *mockProductRepository) IncrementVariantStock(ctx context.Context, variantID string, qty int) error {
	args := m.Called(ctx, variantID, qty)
	return args.Error(0)
}

func (m *mockProductRepository) BaseStock(ctx context.Context, q database.Querier, productID string) (int, error) {
	args := m.Called(ctx, q, productID)
	return args.Int(0), args.Error(1)
}

func (m *mockProductRepository) VariantStock(ctx context.Context, q database.Querier, variantID string) (int, error) {
	args := m.Called(ctx, q, variantID)
	return args.Int(0), args.Error(1)
}

type mockCouponRepository struct {
	mock.Mock
}

func (m *mockCouponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Coupon), args.Error(1)
}

func (m *mockCouponRepository) IncrementUsage(ctx context.Context, q database.Querier, id string) (bool, error) {
	args := m.Called(ctx, q, id)
	return args.Bool(0), args.Error(1)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestEventProducer builds a producer whose publishes fail silently in
// tests (no real broker behind it).
func newTestEventProducer(logger *slog.Logger) *event.Producer {
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	return event.NewProducer(pkgkafka.NewProducer(kafkaCfg, logger), logger)
}
