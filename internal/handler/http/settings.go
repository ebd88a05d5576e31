package http

import (
	"log/slog"
	"net/http"

	"github.com/hanoutlabs/storefront/internal/settings"
	"github.com/hanoutlabs/storefront/pkg/httputil"
	"github.com/hanoutlabs/storefront/pkg/validator"
)

// SettingsHandler exposes the notification toggles to admins.
type SettingsHandler struct {
	store  *settings.Store
	logger *slog.Logger
}

// NewSettingsHandler creates a new settings HTTP handler.
func NewSettingsHandler(store *settings.Store, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		store:  store,
		logger: logger,
	}
}

// UpdateNotificationsRequest is the JSON request body for toggling
// notification classes. Omitted fields are left untouched.
type UpdateNotificationsRequest struct {
	OrderCreated  *bool `json:"order_created"`
	StatusChanged *bool `json:"status_changed"`
	LowStock      *bool `json:"low_stock"`
}

// GetNotifications handles GET /api/v1/admin/notifications
func (h *SettingsHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Load(r.Context())
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]bool{
		"order_created":  snap.OrderCreated,
		"status_changed": snap.StatusChanged,
		"low_stock":      snap.LowStock,
	}})
}

// UpdateNotifications handles PUT /api/v1/admin/notifications
func (h *SettingsHandler) UpdateNotifications(w http.ResponseWriter, r *http.Request) {
	var req UpdateNotificationsRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	toggles := map[string]*bool{
		settings.KeyOrderCreated:  req.OrderCreated,
		settings.KeyStatusChanged: req.StatusChanged,
		settings.KeyLowStock:      req.LowStock,
	}
	for key, val := range toggles {
		if val == nil {
			continue
		}
		if err := h.store.SetToggle(r.Context(), key, *val); err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
	}

	h.GetNotifications(w, r)
}
