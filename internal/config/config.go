// Package config loads service settings from defaults, an optional YAML file
// named by CARTON_CONFIG, and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoreMemory  = "memory"
	StoreSession = "session"
	StoreDB      = "db"

	PricingUnit   = "unit"
	PricingVolume = "volume"

	minSessionSecret = 32
)

var (
	ErrUnknownStore   = errors.New("unknown cart store")
	ErrUnknownPricing = errors.New("unknown pricing policy")
	ErrMissingDSN     = errors.New("DATABASE_URL is required for the db store")
	ErrWeakSecret     = errors.New("SESSION_SECRET must be at least 32 chars")
)

type Config struct {
	Port         string `yaml:"port"`
	LogLevel     string `yaml:"log_level"`
	CatalogURL   string `yaml:"catalog_url"`
	Store        string `yaml:"store"`
	RedisAddr    string `yaml:"redis_addr"`
	DatabaseURL  string `yaml:"database_url"`
	JWTSecret    string `yaml:"jwt_secret"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	Session Session `yaml:"session"`
	Cart    Cart    `yaml:"cart"`
	Metrics Metrics `yaml:"metrics"`
}

type Session struct {
	Cookie string        `yaml:"cookie"`
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

type Cart struct {
	SessionKey       string `yaml:"session_key"`
	RemoveStaleItems bool   `yaml:"remove_stale_items"`
	Pricing          string `yaml:"pricing"`
	DiscountRate     string `yaml:"discount_rate"`
	MinProductPrice  string `yaml:"min_product_price"`
	MutationsPerMin  int    `yaml:"mutations_per_min"`
}

type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// Defaults returns the settings a service starts from before the file and
// environment are applied.
func Defaults(port string) Config {
	return Config{
		Port:       port,
		LogLevel:   "info",
		CatalogURL: "http://localhost:8082",
		Store:      StoreSession,
		Session: Session{
			Cookie: "sessionid",
			TTL:    14 * 24 * time.Hour,
		},
		Cart: Cart{
			SessionKey:       "CART",
			RemoveStaleItems: true,
			Pricing:          PricingUnit,
			DiscountRate:     "0",
			MutationsPerMin:  120,
		},
	}
}

func Load(defaultPort string) (Config, error) {
	cfg := Defaults(defaultPort)

	if path := os.Getenv("CARTON_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.CatalogURL, "CATALOG_URL")
	setString(&cfg.Store, "CART_STORE")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")

	setString(&cfg.Session.Cookie, "SESSION_COOKIE")
	setString(&cfg.Session.Secret, "SESSION_SECRET")
	setDuration(&cfg.Session.TTL, "SESSION_TTL")

	setString(&cfg.Cart.SessionKey, "CART_SESSION_KEY")
	setBool(&cfg.Cart.RemoveStaleItems, "CART_REMOVE_STALE_ITEMS")
	setString(&cfg.Cart.Pricing, "CART_PRICING")
	setString(&cfg.Cart.DiscountRate, "CART_DISCOUNT_RATE")
	setString(&cfg.Cart.MinProductPrice, "CART_PRODUCT_MIN_PRICE")
	setInt(&cfg.Cart.MutationsPerMin, "CART_MUTATIONS_PER_MIN")

	setBool(&cfg.Metrics.Enabled, "METRICS_ENABLED")
	setString(&cfg.Metrics.Token, "METRICS_TOKEN")
}

// Validate checks the settings the cart service cannot run without.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreSession:
	case StoreDB:
		if c.DatabaseURL == "" {
			return ErrMissingDSN
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStore, c.Store)
	}

	switch c.Cart.Pricing {
	case PricingUnit, PricingVolume:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPricing, c.Cart.Pricing)
	}

	if len(c.Session.Secret) < minSessionSecret {
		return ErrWeakSecret
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if b, err := strconv.ParseBool(v); err == nil {
		*dst = b
	}
}

func setInt(dst *int, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if i, err := strconv.Atoi(v); err == nil {
		*dst = i
	}
}

func setDuration(dst *time.Duration, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	}
}
