package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderStripe = "stripe"
	ProviderPaddle = "paddle"
)

// Config is built once at startup and handed to every component that needs it.
type Config struct {
	Port        string
	DatabaseURL string

	PaymentProvider     string
	StripeSecretKey     string
	StripeWebhookSecret string
	PaddleAPIKey        string
	PaddleWebhookSecret string
	PaddleSandbox       bool
	PaddleCheckoutURL   string

	ClerkSecretKey string

	PublicSiteURL   string
	CheckoutTimeout time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	MetricsUser string
	MetricsPass string

	RunMigrations bool
	MigrationsDir string
}

type configFile struct {
	Server struct {
		Port            string `yaml:"port"`
		PublicSiteURL   string `yaml:"public_site_url"`
		CheckoutTimeout string `yaml:"checkout_timeout"`
	} `yaml:"server"`
	Payments struct {
		Provider          string `yaml:"provider"`
		PaddleSandbox     *bool  `yaml:"paddle_sandbox"`
		PaddleCheckoutURL string `yaml:"paddle_checkout_url"`
	} `yaml:"payments"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	Database struct {
		RunMigrations *bool  `yaml:"run_migrations"`
		MigrationsDir string `yaml:"migrations_dir"`
	} `yaml:"database"`
}

func defaults() *Config {
	return &Config{
		Port:              "3333",
		PaymentProvider:   ProviderStripe,
		PaddleSandbox:     true,
		PaddleCheckoutURL: "https://sandbox-checkout.paddle.com/checkout/custom",
		PublicSiteURL:     "http://localhost:3000",
		CheckoutTimeout:   30 * time.Second,
		RateLimitRPS:      5,
		RateLimitBurst:    30,
		MigrationsDir:     "./migrations",
	}
}

// Load reads .env (if present), then the optional YAML file named by
// CONFIG_FILE, then the process environment. Later sources win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if f.Server.Port != "" {
		c.Port = f.Server.Port
	}
	if f.Server.PublicSiteURL != "" {
		c.PublicSiteURL = f.Server.PublicSiteURL
	}
	if f.Server.CheckoutTimeout != "" {
		d, err := time.ParseDuration(f.Server.CheckoutTimeout)
		if err != nil {
			return fmt.Errorf("parse checkout_timeout: %w", err)
		}
		c.CheckoutTimeout = d
	}
	if f.Payments.Provider != "" {
		c.PaymentProvider = f.Payments.Provider
	}
	if f.Payments.PaddleSandbox != nil {
		c.PaddleSandbox = *f.Payments.PaddleSandbox
	}
	if f.Payments.PaddleCheckoutURL != "" {
		c.PaddleCheckoutURL = f.Payments.PaddleCheckoutURL
	}
	if f.RateLimit.RPS > 0 {
		c.RateLimitRPS = f.RateLimit.RPS
	}
	if f.RateLimit.Burst > 0 {
		c.RateLimitBurst = f.RateLimit.Burst
	}
	if f.Database.RunMigrations != nil {
		c.RunMigrations = *f.Database.RunMigrations
	}
	if f.Database.MigrationsDir != "" {
		c.MigrationsDir = f.Database.MigrationsDir
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = envString("PORT", c.Port)
	c.DatabaseURL = envString("DATABASE_URL", c.DatabaseURL)

	c.PaymentProvider = strings.ToLower(envString("PAYMENT_PROVIDER", c.PaymentProvider))
	c.StripeSecretKey = envString("STRIPE_SECRET_KEY", c.StripeSecretKey)
	c.StripeWebhookSecret = envString("STRIPE_WEBHOOK_SECRET", c.StripeWebhookSecret)
	c.PaddleAPIKey = envString("PADDLE_API_KEY", c.PaddleAPIKey)
	c.PaddleWebhookSecret = envString("PADDLE_WEBHOOK_SECRET", c.PaddleWebhookSecret)
	c.PaddleSandbox = envBool("PADDLE_SANDBOX", c.PaddleSandbox)
	c.PaddleCheckoutURL = envString("PADDLE_CHECKOUT_URL", c.PaddleCheckoutURL)

	c.ClerkSecretKey = envString("CLERK_SECRET_KEY", c.ClerkSecretKey)

	c.PublicSiteURL = strings.TrimRight(envString("PUBLIC_SITE_URL", c.PublicSiteURL), "/")
	c.CheckoutTimeout = envDuration("CHECKOUT_TIMEOUT", c.CheckoutTimeout)

	c.RateLimitRPS = envFloat("RATE_LIMIT_RPS", c.RateLimitRPS)
	c.RateLimitBurst = envInt("RATE_LIMIT_BURST", c.RateLimitBurst)

	c.MetricsUser = envString("METRICS_USER", c.MetricsUser)
	c.MetricsPass = envString("METRICS_PASS", c.MetricsPass)

	c.RunMigrations = envBool("RUN_MIGRATIONS", c.RunMigrations)
	c.MigrationsDir = envString("MIGRATIONS_DIR", c.MigrationsDir)
}

// Validate reports the first missing or contradictory setting.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL environment variable is not set")
	}

	switch c.PaymentProvider {
	case ProviderStripe:
		if c.StripeSecretKey == "" {
			return errors.New("STRIPE_SECRET_KEY environment variable is not set")
		}
	case ProviderPaddle:
		if c.PaddleAPIKey == "" {
			return errors.New("PADDLE_API_KEY environment variable is not set")
		}
	default:
		return fmt.Errorf("unknown PAYMENT_PROVIDER %q", c.PaymentProvider)
	}

	if c.CheckoutTimeout <= 0 {
		return errors.New("CHECKOUT_TIMEOUT must be positive")
	}
	return nil
}

// DashboardEnabled is true when an auth provider key is configured.
func (c *Config) DashboardEnabled() bool {
	return c.ClerkSecretKey != ""
}

func envString(name, fallback string) string {
	if raw := os.Getenv(name); raw != "" {
		return raw
	}
	return fallback
}

func envInt(name string, fallback int) int {
	if raw := os.Getenv(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
		log.Printf("Ignoring invalid %s=%q", name, raw)
	}
	return fallback
}

func envFloat(name string, fallback float64) float64 {
	if raw := os.Getenv(name); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
		log.Printf("Ignoring invalid %s=%q", name, raw)
	}
	return fallback
}

func envBool(name string, fallback bool) bool {
	if raw := os.Getenv(name); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
		log.Printf("Ignoring invalid %s=%q", name, raw)
	}
	return fallback
}

func envDuration(name string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(name); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil {
			return v
		}
		log.Printf("Ignoring invalid %s=%q", name, raw)
	}
	return fallback
}
