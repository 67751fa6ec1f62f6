package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration, loadable from
// environment variables (STORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL; empty runs on the in-memory store" flag:"database-url"`
	RedisURL    string `usage:"Redis connection URL for the response cache; empty disables caching" flag:"redis-url"`
	Currency    string `default:"USD" usage:"Default currency for carts and catalog amounts"`
	Pricing     PricingConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// PricingConfig holds the placeholder tax and shipping policy parameters.
type PricingConfig struct {
	TaxRate          string `default:"0.10" usage:"Flat tax rate applied to the order subtotal" flag:"tax-rate"`
	ShippingFee      string `default:"10"   usage:"Flat shipping fee" flag:"shipping-fee"`
	FreeShippingOver string `default:"50"   usage:"Subtotal that must be strictly exceeded for free shipping" flag:"free-shipping-over"`
}

// TaxRateDecimal parses the configured tax rate.
func (p PricingConfig) TaxRateDecimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(p.TaxRate)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "tax rate")
	}
	return d, nil
}

// ShippingDecimals parses the configured shipping fee and threshold.
func (p PricingConfig) ShippingDecimals() (fee, freeOver decimal.Decimal, _ error) {
	fee, err := decimal.NewFromString(p.ShippingFee)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, errors.Wrap(err, "shipping fee")
	}
	freeOver, err = decimal.NewFromString(p.FreeShippingOver)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, errors.Wrap(err, "free shipping threshold")
	}
	return fee, freeOver, nil
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STORE",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and
// PORT to the application's STORE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.RedisURL == "" {
		if v := os.Getenv("REDIS_URL"); v != "" {
			c.RedisURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
