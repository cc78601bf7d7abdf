package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agencyCheckoutAPI/handlers"
	"agencyCheckoutAPI/middleware"
)

// Handlers holds everything the router mounts. Webhooks, Prices and
// Dashboard are optional; nil leaves their routes unregistered.
type Handlers struct {
	Checkout  *handlers.CheckoutHandler
	Prices    *handlers.PriceHandler
	Webhooks  *handlers.WebhookHandler
	Dashboard *handlers.DashboardHandler
	Health    http.HandlerFunc
}

type Options struct {
	RateLimiter *middleware.RateLimiter
	MetricsUser string
	MetricsPass string
	// Metrics defaults to promhttp.Handler().
	Metrics http.Handler
}

// NewRouter builds the full HTTP surface. CORS sits outside the mux so
// preflight requests are answered before routing or rate limiting. Panics
// are answered with a JSON 500.
func NewRouter(h Handlers, opts Options) http.Handler {
	r := mux.NewRouter()

	standardRouter := r.PathPrefix("/").Subrouter()
	if opts.RateLimiter != nil {
		standardRouter.Use(opts.RateLimiter.Middleware)
	}
	standardRouter.Use(middleware.MonitorMiddleware)

	metrics := opts.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	standardRouter.Handle("/metrics", middleware.BasicAuth(opts.MetricsUser, opts.MetricsPass)(metrics)).Methods("GET")

	if h.Health != nil {
		standardRouter.HandleFunc("/health", h.Health).Methods("GET")
	}

	standardRouter.HandleFunc("/create-checkout", h.Checkout.CreateCheckoutSession).Methods("POST")

	if h.Webhooks != nil {
		standardRouter.HandleFunc("/webhooks/stripe", h.Webhooks.HandleStripeWebhook).Methods("POST")
		standardRouter.HandleFunc("/webhooks/paddle", h.Webhooks.HandlePaddleWebhook).Methods("POST")
	}

	api := standardRouter.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/create-checkout", h.Checkout.CreateCheckoutSession).Methods("POST")
	if h.Prices != nil {
		api.HandleFunc("/prices", h.Prices.GetPrices).Methods("GET")
	}

	if h.Dashboard != nil {
		protected := api.PathPrefix("/dashboard").Subrouter()
		protected.Use(middleware.ClerkAuthMiddleware)
		protected.HandleFunc("/referrals", h.Dashboard.GetReferralDashboard).Methods("GET")
	}

	return middleware.Recover(middleware.CORS(r))
}
