package http

import (
	"log/slog"
	"net/http"

	"github.com/hanoutlabs/storefront/internal/domain"
	"github.com/hanoutlabs/storefront/internal/service"
	"github.com/hanoutlabs/storefront/pkg/httputil"
	"github.com/hanoutlabs/storefront/pkg/validator"
)

// CheckoutHandler handles the read-only pre-checkout endpoints.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// ValidateCouponRequest is the JSON request body for coupon validation.
type ValidateCouponRequest struct {
	Code        string `json:"code" validate:"required"`
	OrderAmount int64  `json:"order_amount" validate:"gte=0"`
}

// ValidateStockRequest is the JSON request body for a stock pre-flight check.
type ValidateStockRequest struct {
	Items []domain.StockCheckItem `json:"items" validate:"required,min=1,dive"`
}

// ValidateCoupon handles POST /api/v1/checkout/validate-coupon
func (h *CheckoutHandler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req ValidateCouponRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.ValidateCoupon(r.Context(), req.Code, req.OrderAmount)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// ValidateStock handles POST /api/v1/checkout/validate-stock
func (h *CheckoutHandler) ValidateStock(w http.ResponseWriter, r *http.Request) {
	var req ValidateStockRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.ValidateStock(r.Context(), req.Items)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}
