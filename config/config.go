package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"puzzle-bar/utils"
)

const (
	ImageStoreR2         = "r2"
	ImageStoreCloudinary = "cloudinary"
)

type Config struct {
	Port           string
	DatabaseURL    string
	AllowedOrigins []string
	GatewayToken   string
	JWTSecret      string
	Debug          bool

	StripeSecretKey    string
	CheckoutSuccessURL string
	CheckoutCancelURL  string
	Currency           string
	DiscountPerPuzzle  decimal.Decimal
	PaymentTimeout     time.Duration
	PaymentRetryDelay  time.Duration
	PendingOrderTTL    time.Duration
	SweepInterval      time.Duration
	RosterAuditEvery   time.Duration
	StreamKeepAlive    time.Duration
	StreamBuffer       int

	ImageStore string
	R2         R2Config
	Cloudinary CloudinaryConfig
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		utils.LogWarn("⚠️  No .env file found, reading environment variables directly")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "5200"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		GatewayToken:       os.Getenv("GATEWAY_TOKEN"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		Debug:              getBool("DEBUG", false),
		StripeSecretKey:    os.Getenv("STRIPE_SECRET_KEY"),
		CheckoutSuccessURL: getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/checkout/success"),
		CheckoutCancelURL:  getEnv("CHECKOUT_CANCEL_URL", "http://localhost:3000/checkout/cancel"),
		Currency:           strings.ToUpper(getEnv("CURRENCY", "EUR")),
		ImageStore:         strings.ToLower(getEnv("IMAGE_STORE", ImageStoreR2)),
		R2: R2Config{
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("R2_BUCKET_NAME"),
			CDNBaseURL:      os.Getenv("CDN_BASE_URL"),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
			APIKey:    os.Getenv("CLOUDINARY_API_KEY"),
			APISecret: os.Getenv("CLOUDINARY_API_SECRET"),
			Folder:    getEnv("CLOUDINARY_FOLDER", "puzzle-bar"),
		},
	}

	for _, origin := range strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	var err error
	if cfg.DiscountPerPuzzle, err = decimal.NewFromString(getEnv("DISCOUNT_PER_PUZZLE", "0.50")); err != nil {
		return nil, fmt.Errorf("DISCOUNT_PER_PUZZLE: %w", err)
	}
	if cfg.DiscountPerPuzzle.IsNegative() {
		return nil, fmt.Errorf("DISCOUNT_PER_PUZZLE must not be negative")
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"PAYMENT_TIMEOUT", "15s", &cfg.PaymentTimeout},
		{"PAYMENT_RETRY_DELAY", "500ms", &cfg.PaymentRetryDelay},
		{"PENDING_ORDER_TTL", "30m", &cfg.PendingOrderTTL},
		{"SWEEP_INTERVAL", "1m", &cfg.SweepInterval},
		{"ROSTER_AUDIT_INTERVAL", "10m", &cfg.RosterAuditEvery},
		{"STREAM_KEEPALIVE", "15s", &cfg.StreamKeepAlive},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}

	if cfg.StreamBuffer, err = strconv.Atoi(getEnv("STREAM_BUFFER", "32")); err != nil {
		return nil, fmt.Errorf("STREAM_BUFFER: %w", err)
	}

	return cfg, nil
}

// Validate reports the first missing setting the server cannot start without.
func (c *Config) Validate() error {
	required := map[string]string{
		"DATABASE_URL":      c.DatabaseURL,
		"GATEWAY_TOKEN":     c.GatewayToken,
		"JWT_SECRET":        c.JWTSecret,
		"STRIPE_SECRET_KEY": c.StripeSecretKey,
	}
	for _, key := range []string{"DATABASE_URL", "GATEWAY_TOKEN", "JWT_SECRET", "STRIPE_SECRET_KEY"} {
		if required[key] == "" {
			return fmt.Errorf("%s environment variable not set", key)
		}
	}
	switch c.ImageStore {
	case ImageStoreR2:
		if c.R2.Bucket == "" || c.R2.AccountID == "" {
			return fmt.Errorf("R2_BUCKET_NAME and CLOUDFLARE_ACCOUNT_ID are required when IMAGE_STORE=r2")
		}
	case ImageStoreCloudinary:
		if c.Cloudinary.CloudName == "" || c.Cloudinary.APIKey == "" || c.Cloudinary.APISecret == "" {
			return fmt.Errorf("cloudinary configuration is missing")
		}
	default:
		return fmt.Errorf("unknown IMAGE_STORE %q", c.ImageStore)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
