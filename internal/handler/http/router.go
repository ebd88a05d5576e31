package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hanoutlabs/storefront/internal/service"
	"github.com/hanoutlabs/storefront/internal/settings"
	"github.com/hanoutlabs/storefront/pkg/health"
	"github.com/hanoutlabs/storefront/pkg/middleware"
)

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(
	orderService *service.OrderService,
	checkoutService *service.CheckoutService,
	settingsStore *settings.Store,
	healthHandler *health.Handler,
	logger *slog.Logger,
	pprofCIDRs []string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("storefront"))
	r.Use(middleware.Tracing("storefront"))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Identity())

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, pprofCIDRs, logger)

	orderHandler := NewOrderHandler(orderService, logger)
	checkoutHandler := NewCheckoutHandler(checkoutService, logger)
	settingsHandler := NewSettingsHandler(settingsStore, logger)

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", orderHandler.CreateOrder)
		r.Get("/", orderHandler.ListOrders)
		r.Get("/{id}", orderHandler.GetOrder)
		r.Get("/number/{orderNumber}", orderHandler.TrackOrder)
		r.Post("/{id}/cancel", orderHandler.CancelOrder)

		// Admin-only lifecycle operations.
		r.With(middleware.RequireRole("admin")).Put("/{id}/status", orderHandler.UpdateOrderStatus)
		r.With(middleware.RequireRole("admin")).Put("/{id}/payment-status", orderHandler.UpdatePaymentStatus)
		r.With(middleware.RequireRole("admin")).Put("/{id}/tracking", orderHandler.SetTracking)
	})

	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/validate-coupon", checkoutHandler.ValidateCoupon)
		r.Post("/validate-stock", checkoutHandler.ValidateStock)
	})

	r.Route("/api/v1/admin/notifications", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.RequireRole("admin"))

		r.Get("/", settingsHandler.GetNotifications)
		r.Put("/", settingsHandler.UpdateNotifications)
	})

	return r
}
