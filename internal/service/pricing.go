package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hanoutlabs/storefront/internal/domain"
	"github.com/hanoutlabs/storefront/internal/repository"
	"github.com/hanoutlabs/storefront/pkg/database"
	apperrors "github.com/hanoutlabs/storefront/pkg/errors"
)

// Quote is the priced result of a checkout computation. Coupon is non-nil
// only when a coupon was supplied, valid, and actually applied.
type Quote struct {
	domain.Pricing
	Coupon *domain.Coupon
}

// CouponValidation is the read-only result of a coupon check against an
// order amount. Reason is populated when Valid is false.
type CouponValidation struct {
	Valid          bool   `json:"valid"`
	Code           string `json:"code"`
	DiscountAmount int64  `json:"discount_amount"`
	FinalAmount    int64  `json:"final_amount"`
	Reason         string `json:"reason,omitempty"`
}

// PricingService computes order totals and resolves coupons. Discounts are
// always recomputed server-side from the coupon definition; a client-supplied
// discount value is never trusted.
type PricingService struct {
	coupons repository.CouponRepository
	logger  *slog.Logger
}

// NewPricingService creates a new pricing service.
func NewPricingService(coupons repository.CouponRepository, logger *slog.Logger) *PricingService {
	return &PricingService{
		coupons: coupons,
		logger:  logger,
	}
}

// Quote prices a set of line items with optional coupon and shipping. Coupon
// problems (unknown code, expired, below minimum purchase) degrade to a zero
// discount with a warning log instead of failing the order; storage errors
// still propagate. A negative total is rejected as invalid input.
func (s *PricingService) Quote(ctx context.Context, items []domain.OrderItem, shippingPrice int64, couponCode string) (*Quote, error) {
	subtotal := domain.Subtotal(items)

	var (
		discount int64
		applied  *domain.Coupon
	)

	if couponCode != "" {
		coupon, err := s.coupons.GetByCode(ctx, couponCode)
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			s.logger.WarnContext(ctx, "coupon not found, proceeding without discount",
				slog.String("code", domain.NormalizeCouponCode(couponCode)),
			)
		case err != nil:
			return nil, fmt.Errorf("resolve coupon: %w", err)
		case !coupon.IsValid(time.Now().UTC()):
			s.logger.WarnContext(ctx, "coupon not valid, proceeding without discount",
				slog.String("code", coupon.Code),
			)
		case coupon.Shortfall(subtotal) > 0:
			s.logger.WarnContext(ctx, "subtotal below coupon minimum purchase, proceeding without discount",
				slog.String("code", coupon.Code),
				slog.Int64("shortfall", coupon.Shortfall(subtotal)),
			)
		default:
			discount = coupon.Discount(subtotal)
			applied = coupon
		}
	}

	pricing, err := domain.NewPricing(subtotal, shippingPrice, discount)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	return &Quote{Pricing: pricing, Coupon: applied}, nil
}

// ValidateCoupon checks a coupon against an order amount without consuming
// usage. Unlike Quote, an unusable coupon here is not an error: the result
// carries Valid=false and a human-readable reason.
func (s *PricingService) ValidateCoupon(ctx context.Context, code string, orderAmount int64) (*CouponValidation, error) {
	normalized := domain.NormalizeCouponCode(code)
	if normalized == "" {
		return nil, apperrors.InvalidInput("coupon code is required")
	}

	result := &CouponValidation{Code: normalized, FinalAmount: orderAmount}

	coupon, err := s.coupons.GetByCode(ctx, code)
	if errors.Is(err, apperrors.ErrNotFound) {
		result.Reason = "coupon not found"
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve coupon: %w", err)
	}

	if !coupon.IsValid(time.Now().UTC()) {
		result.Reason = "coupon is expired or no longer active"
		return result, nil
	}

	if shortfall := coupon.Shortfall(orderAmount); shortfall > 0 {
		result.Reason = fmt.Sprintf("order amount is %d below the minimum purchase of %d", shortfall, coupon.MinPurchase)
		return result, nil
	}

	discount := coupon.Discount(orderAmount)
	result.Valid = true
	result.DiscountAmount = discount
	result.FinalAmount = orderAmount - discount

	return result, nil
}

// ConsumeCoupon increments the coupon's usage counter inside the caller's
// transaction. A false return means the usage budget was exhausted by a
// concurrent order after validation.
func (s *PricingService) ConsumeCoupon(ctx context.Context, q database.Querier, couponID string) (bool, error) {
	return s.coupons.IncrementUsage(ctx, q, couponID)
}
