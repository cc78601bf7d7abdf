package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"agencyCheckoutAPI/handlers"
	"agencyCheckoutAPI/internal/config"
	"agencyCheckoutAPI/middleware"
	"agencyCheckoutAPI/routes"
	"agencyCheckoutAPI/services"
)

// checkoutProvider is what main needs from whichever payment backend is
// configured.
type checkoutProvider interface {
	services.PaymentProvider
	handlers.PriceCatalog
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	dbPool, err := connectDB(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()
	log.Println("Successfully connected to database")

	if cfg.RunMigrations {
		if err := services.RunMigrations(dbPool, cfg.MigrationsDir); err != nil {
			log.Fatal("Failed to run migrations: ", err)
		}
		log.Printf("Migrations from %s applied", cfg.MigrationsDir)
	}

	registry := services.NewPartnerRegistryService(dbPool)

	var (
		provider     checkoutProvider
		stripeEvents handlers.StripeEventVerifier
		paddleEvents handlers.PaddleWebhookVerifier
	)
	switch cfg.PaymentProvider {
	case config.ProviderPaddle:
		paddleClient, err := services.NewPaddleClient(cfg.PaddleAPIKey, cfg.PaddleSandbox)
		if err != nil {
			log.Fatal("Failed to create Paddle client: ", err)
		}
		paddleService := services.NewPaddleService(paddleClient, cfg.PaddleCheckoutURL, cfg.PaddleWebhookSecret)
		provider = paddleService
		if cfg.PaddleWebhookSecret != "" {
			paddleEvents = paddleService
		}
	default:
		stripeService := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, nil)
		provider = stripeService
		if cfg.StripeWebhookSecret != "" {
			stripeEvents = stripeService
		}
	}
	log.Printf("Payment provider: %s", provider.Name())

	middleware.InitPrometheus(prometheus.DefaultRegisterer)

	h := routes.Handlers{
		Checkout: handlers.NewCheckoutHandler(services.NewCheckoutService(registry, provider), cfg.PublicSiteURL, cfg.CheckoutTimeout),
		Prices:   handlers.NewPriceHandler(provider),
		Health:   healthHandler(dbPool),
	}
	if stripeEvents != nil || paddleEvents != nil {
		h.Webhooks = handlers.NewWebhookHandler(registry, stripeEvents, paddleEvents)
	}
	if cfg.DashboardEnabled() {
		clerk.SetKey(cfg.ClerkSecretKey)
		h.Dashboard = handlers.NewDashboardHandler(registry)
		log.Println("Clerk initialized, referral dashboard enabled")
	}

	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go rateLimiter.Cleanup(appCtx)

	router := routes.NewRouter(h, routes.Options{
		RateLimiter: rateLimiter,
		MetricsUser: cfg.MetricsUser,
		MetricsPass: cfg.MetricsPass,
	})

	port := ":" + cfg.Port
	server := http.Server{
		Addr:         port,
		Handler:      gorillaHandlers.CombinedLoggingHandler(os.Stdout, gorillaHandlers.ProxyHeaders(router)),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.CheckoutTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	<-appCtx.Done()
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func connectDB(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func healthHandler(dbPool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := dbPool.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "agency-checkout-api"}`))
	}
}
