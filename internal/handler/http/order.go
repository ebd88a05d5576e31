package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hanoutlabs/storefront/internal/domain"
	"github.com/hanoutlabs/storefront/internal/repository"
	"github.com/hanoutlabs/storefront/internal/service"
	apperrors "github.com/hanoutlabs/storefront/pkg/errors"
	"github.com/hanoutlabs/storefront/pkg/httputil"
	"github.com/hanoutlabs/storefront/pkg/middleware"
	"github.com/hanoutlabs/storefront/pkg/pagination"
	"github.com/hanoutlabs/storefront/pkg/validator"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	service *service.OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateOrderItemRequest is the JSON request body for an order line item.
// Only the product reference and quantity are trusted from the client; names
// and prices are snapshotted server-side.
type CreateOrderItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

// AddressRequest is the JSON shape of a shipping or billing address.
type AddressRequest struct {
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	Address    string `json:"address" validate:"required"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
}

func (a AddressRequest) toDomain() domain.Address {
	return domain.Address{
		Name:       a.Name,
		Phone:      a.Phone,
		Address:    a.Address,
		City:       a.City,
		PostalCode: a.PostalCode,
	}
}

// CreateOrderRequest is the JSON request body for creating an order.
type CreateOrderRequest struct {
	Items                 []CreateOrderItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingAddress       AddressRequest           `json:"shipping_address" validate:"required"`
	BillingAddress        *AddressRequest          `json:"billing_address"`
	PaymentMethod         string                   `json:"payment_method" validate:"required,oneof=cash_on_delivery instapay vodafone"`
	ShippingPaymentMethod string                   `json:"shipping_payment_method" validate:"omitempty,oneof=cash_on_delivery instapay vodafone"`
	ShippingPrice         int64                    `json:"shipping_price" validate:"gte=0"`
	CouponCode            string                   `json:"coupon_code"`
	Notes                 string                   `json:"notes"`
}

// UpdateStatusRequest is the JSON request body for updating order status.
type UpdateStatusRequest struct {
	Status         string `json:"status" validate:"required"`
	TrackingNumber string `json:"tracking_number"`
	Reason         string `json:"reason"`
}

// UpdatePaymentStatusRequest is the JSON request body for updating payment status.
type UpdatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required,oneof=pending paid failed refunded"`
}

// SetTrackingRequest is the JSON request body for setting a tracking number.
type SetTrackingRequest struct {
	TrackingNumber string `json:"tracking_number" validate:"required"`
}

// CancelOrderRequest is the JSON request body for cancelling an order.
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// --- Handlers ---

// CreateOrder handles POST /api/v1/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	items := make([]service.CreateOrderItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.CreateOrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Size:      item.Size,
			Color:     item.Color,
		}
	}

	input := service.CreateOrderInput{
		UserID:                middleware.UserIDFromContext(r.Context()),
		Items:                 items,
		ShippingAddress:       req.ShippingAddress.toDomain(),
		PaymentMethod:         req.PaymentMethod,
		ShippingPaymentMethod: req.ShippingPaymentMethod,
		ShippingPrice:         req.ShippingPrice,
		CouponCode:            req.CouponCode,
		Notes:                 req.Notes,
	}
	if req.BillingAddress != nil {
		billing := req.BillingAddress.toDomain()
		input.BillingAddress = &billing
	}

	order, err := h.service.CreateOrder(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: order})
}

// ListOrders handles GET /api/v1/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	filter := repository.OrderFilter{
		Page:    params.Page,
		PerPage: params.PerPage,
	}

	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = &v
	}
	if v := r.URL.Query().Get("payment_status"); v != "" {
		filter.PaymentStatus = &v
	}

	// Non-admin callers only ever see their own orders.
	if middleware.RoleFromContext(r.Context()) == "admin" {
		if v := r.URL.Query().Get("user_id"); v != "" {
			filter.UserID = &v
		}
	} else {
		userID := middleware.UserIDFromContext(r.Context())
		filter.UserID = &userID
	}

	orders, total, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(orders, total, filter.Page, filter.PerPage))
}

// GetOrder handles GET /api/v1/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	// Customers only ever see their own orders; admins see any.
	if middleware.RoleFromContext(r.Context()) != "admin" && order.UserID != middleware.UserIDFromContext(r.Context()) {
		httputil.WriteError(w, r, apperrors.Forbidden("order belongs to another user"), h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// TrackOrder handles GET /api/v1/orders/number/{orderNumber}
func (h *OrderHandler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")

	order, timeline, err := h.service.TrackOrder(r.Context(), orderNumber)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"order":    order,
		"timeline": timeline,
	}})
}

// UpdateOrderStatus handles PUT /api/v1/orders/{id}/status
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order, err := h.service.UpdateOrderStatus(r.Context(), id.String(), req.Status, req.TrackingNumber, req.Reason)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// UpdatePaymentStatus handles PUT /api/v1/orders/{id}/payment-status
func (h *OrderHandler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdatePaymentStatusRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order, err := h.service.UpdatePaymentStatus(r.Context(), id.String(), req.PaymentStatus)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// SetTracking handles PUT /api/v1/orders/{id}/tracking
func (h *OrderHandler) SetTracking(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req SetTrackingRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order, err := h.service.SetTracking(r.Context(), id.String(), req.TrackingNumber)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// CancelOrder handles POST /api/v1/orders/{id}/cancel
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req CancelOrderRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		// Cancellation reason is optional; an empty body is fine.
		req = CancelOrderRequest{}
	}

	order, err := h.service.CancelOrder(r.Context(), id.String(), middleware.UserIDFromContext(r.Context()), req.Reason)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}
