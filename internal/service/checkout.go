package service

import (
	"context"

	"github.com/hanoutlabs/storefront/internal/domain"
	apperrors "github.com/hanoutlabs/storefront/pkg/errors"
)

// CheckoutService exposes the read-only pre-checkout checks: coupon
// validation and stock availability. Neither consumes coupon usage nor
// reserves stock.
type CheckoutService struct {
	pricing   *PricingService
	inventory *InventoryService
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(pricing *PricingService, inventory *InventoryService) *CheckoutService {
	return &CheckoutService{
		pricing:   pricing,
		inventory: inventory,
	}
}

// ValidateCoupon checks a coupon against an order amount without side effects.
func (s *CheckoutService) ValidateCoupon(ctx context.Context, code string, orderAmount int64) (*CouponValidation, error) {
	return s.pricing.ValidateCoupon(ctx, code, orderAmount)
}

// StockValidation is the aggregate result of a pre-flight stock check.
type StockValidation struct {
	Valid   bool                      `json:"valid"`
	Results []domain.StockCheckResult `json:"results"`
}

// ValidateStock runs a read-only availability check over the requested items.
func (s *CheckoutService) ValidateStock(ctx context.Context, items []domain.StockCheckItem) (*StockValidation, error) {
	if len(items) == 0 {
		return nil, apperrors.InvalidInput("at least one item is required")
	}
	for i, item := range items {
		if item.ProductID == "" {
			return nil, apperrors.InvalidInput("item is missing a product id")
		}
		if item.Quantity < 1 {
			items[i].Quantity = 1
		}
	}

	results, allInStock, err := s.inventory.CheckAvailability(ctx, items)
	if err != nil {
		return nil, err
	}

	return &StockValidation{Valid: allInStock, Results: results}, nil
}
