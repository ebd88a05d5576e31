package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hanoutlabs/storefront/internal/domain"
	"github.com/hanoutlabs/storefront/internal/repository"
	"github.com/hanoutlabs/storefront/pkg/database"
	apperrors "github.com/hanoutlabs/storefront/pkg/errors"
)

// LowStockThreshold is the base-stock level at or below which a low-stock
// alert is raised after a reservation.
const LowStockThreshold = 5

// LowStockAlert reports a product whose base stock dropped to or below the
// threshold during a reservation.
type LowStockAlert struct {
	ProductID   string
	ProductName string
	Remaining   int
}

// InventoryService reserves and replenishes stock. Reservations run through a
// caller-owned transaction so a failure on any line item rolls back the
// decrements already applied for earlier items.
type InventoryService struct {
	products repository.ProductRepository
	logger   *slog.Logger
}

// NewInventoryService creates a new inventory service.
func NewInventoryService(products repository.ProductRepository, logger *slog.Logger) *InventoryService {
	return &InventoryService{
		products: products,
		logger:   logger,
	}
}

// Reserve decrements stock for every line item through the given querier,
// which must be an open transaction. Each item's (size, color) request is
// resolved onto a stock bucket; the decrement is guarded so concurrent
// checkouts cannot oversell. The first item that cannot be satisfied aborts
// the whole reservation with an insufficient-stock error naming it.
//
// The returned alerts list the products whose post-decrement base stock is at
// or below LowStockThreshold; the caller publishes them after commit.
func (s *InventoryService) Reserve(ctx context.Context, q database.Querier, items []domain.OrderItem) ([]LowStockAlert, error) {
	var alerts []LowStockAlert
	alerted := make(map[string]bool)

	for _, item := range items {
		product, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.NotFound("product", item.ProductID)
			}
			return nil, fmt.Errorf("load product %s: %w", item.ProductID, err)
		}

		bucket, err := product.ResolveBucket(item.Size, item.Color)
		if err != nil {
			// Fail closed: an unknown size/color is never served from base stock.
			return nil, apperrors.InsufficientStock(product.Name, variantLabel(item.Size, item.Color), item.Quantity, 0)
		}

		if bucket.Available < item.Quantity {
			return nil, apperrors.InsufficientStock(product.Name, variantLabel(item.Size, item.Color), item.Quantity, bucket.Available)
		}

		if err := s.decrementBucket(ctx, q, product, bucket, item); err != nil {
			return nil, err
		}

		remaining, err := s.products.BaseStock(ctx, q, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("read post-decrement stock for %s: %w", item.ProductID, err)
		}
		if remaining <= LowStockThreshold && !alerted[item.ProductID] {
			alerted[item.ProductID] = true
			alerts = append(alerts, LowStockAlert{
				ProductID:   item.ProductID,
				ProductName: product.Name,
				Remaining:   remaining,
			})
		}
	}

	return alerts, nil
}

func (s *InventoryService) decrementBucket(ctx context.Context, q database.Querier, product *domain.Product, bucket domain.Bucket, item domain.OrderItem) error {
	switch bucket.Kind {
	case domain.BucketBase:
		ok, err := s.products.DecrementBaseStock(ctx, q, product.ID, item.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			available, readErr := s.products.BaseStock(ctx, q, product.ID)
			if readErr != nil {
				available = 0
			}
			return apperrors.InsufficientStock(product.Name, "", item.Quantity, available)
		}

	default:
		// Combination buckets carry one row; axis buckets one per constrained
		// axis. All rows must be decremented for the reservation to hold.
		for _, v := range bucket.Variants {
			ok, err := s.products.DecrementVariantStock(ctx, q, v.ID, item.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				available, readErr := s.products.VariantStock(ctx, q, v.ID)
				if readErr != nil {
					available = 0
				}
				return apperrors.InsufficientStock(product.Name, variantLabel(item.Size, item.Color), item.Quantity, available)
			}
		}
	}

	return nil
}

// Replenish reverses a reservation after a cancellation, incrementing each
// line item's resolved bucket by the original quantity. Replenishment is
// best-effort per item: a product deleted since the order was placed is
// logged and skipped, never blocking the rest of the reversal.
func (s *InventoryService) Replenish(ctx context.Context, items []domain.OrderItem) {
	for _, item := range items {
		if err := s.replenishItem(ctx, item); err != nil {
			s.logger.ErrorContext(ctx, "stock replenishment failed",
				slog.String("product_id", item.ProductID),
				slog.Int("quantity", item.Quantity),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *InventoryService) replenishItem(ctx context.Context, item domain.OrderItem) error {
	product, err := s.products.GetByID(ctx, item.ProductID)
	if err != nil {
		return fmt.Errorf("load product: %w", err)
	}

	bucket, err := product.ResolveBucket(item.Size, item.Color)
	if err != nil {
		return fmt.Errorf("resolve bucket: %w", err)
	}

	switch bucket.Kind {
	case domain.BucketBase:
		return s.products.IncrementBaseStock(ctx, product.ID, item.Quantity)
	default:
		for _, v := range bucket.Variants {
			if err := s.products.IncrementVariantStock(ctx, v.ID, item.Quantity); err != nil {
				return err
			}
		}
		return nil
	}
}

// CheckAvailability performs a read-only availability check against current
// stock, without reserving anything. It reports per-item availability and
// whether every requested item is satisfiable.
func (s *InventoryService) CheckAvailability(ctx context.Context, items []domain.StockCheckItem) ([]domain.StockCheckResult, bool, error) {
	results := make([]domain.StockCheckResult, 0, len(items))
	allInStock := true

	for _, item := range items {
		result := domain.StockCheckResult{
			ProductID: item.ProductID,
			Size:      item.Size,
			Color:     item.Color,
			Requested: item.Quantity,
		}

		product, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				allInStock = false
				results = append(results, result)
				continue
			}
			return nil, false, fmt.Errorf("load product %s: %w", item.ProductID, err)
		}

		bucket, err := product.ResolveBucket(item.Size, item.Color)
		if err != nil {
			allInStock = false
			results = append(results, result)
			continue
		}

		result.Available = bucket.Available
		result.InStock = bucket.Available >= item.Quantity
		if !result.InStock {
			allInStock = false
		}
		results = append(results, result)
	}

	return results, allInStock, nil
}

func variantLabel(size, color string) string {
	switch {
	case size != "" && color != "":
		return size + "/" + color
	case size != "":
		return size
	case color != "":
		return color
	default:
		return ""
	}
}
