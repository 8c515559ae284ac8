package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"Carton/internal/auth"
	"Carton/internal/cart"
	"Carton/internal/config"
	"Carton/internal/session"
	"Carton/pkg/kit"
)

const (
	service     = "cart"
	startupWait = 10 * time.Second
)

func main() {
	cfg, err := config.Load("8083")
	if err != nil {
		panic(err)
	}

	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupWait)
	defer cancel()

	shutdownTracing, err := kit.InitTracing(ctx, service, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal("tracing init failed", zap.Error(err))
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("cart store init failed", zap.Error(err), zap.String("store", cfg.Store))
	}

	pricing, err := pricingPolicy(cfg.Cart)
	if err != nil {
		log.Fatal("invalid pricing", zap.Error(err))
	}

	minPrice, err := minProductPrice(cfg.Cart.MinProductPrice)
	if err != nil {
		log.Fatal("invalid min product price", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	catalog := cart.NewCatalogClient(cfg.CatalogURL)
	s := &cart.Server{
		Manager: &cart.Manager{
			Store:   store,
			Catalog: catalog,
			Config: cart.Config{
				SessionKey:       cfg.Cart.SessionKey,
				RemoveStaleItems: cfg.Cart.RemoveStaleItems,
				Pricing:          pricing,
			},
			Log:     log,
			Metrics: cart.NewMetrics(reg),
		},
		Products:        catalog,
		Log:             log,
		MinProductPrice: minPrice,
	}

	var tokens *auth.TokenMaker
	if cfg.JWTSecret != "" {
		tokens = auth.NewTokenMaker(cfg.JWTSecret)
	} else {
		log.Info("JWT_SECRET not set; all carts are anonymous")
	}

	h := cart.NewHandler(s, cart.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsToken:   cfg.Metrics.Token,
		Tokens:         tokens,
		Signer:         session.NewSigner(cfg.Session.Secret),
		Cookie: session.CookieOptions{
			Name: cfg.Session.Cookie,
			TTL:  cfg.Session.TTL,
		},
		Limiter: kit.NewIPRateLimiter(cfg.Cart.MutationsPerMin, time.Minute),
	})

	log.Info("cart configured",
		zap.String("store", cfg.Store),
		zap.String("pricing", cfg.Cart.Pricing),
		zap.Bool("remove_stale_items", cfg.Cart.RemoveStaleItems),
		zap.String("catalog_url", cfg.CatalogURL),
	)

	if err := kit.RunHTTPServer(":"+cfg.Port, h, log, closeStore, shutdownTracing); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (cart.Store, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.Store {
	case config.StoreMemory:
		return cart.NewMemStore(), noop, nil

	case config.StoreSession:
		if cfg.RedisAddr == "" {
			log.Warn("REDIS_ADDR not set; sessions are kept in memory")
			return cart.NewSessionStore(session.NewMemStore(cfg.Session.TTL), cfg.Cart.SessionKey), noop, nil
		}
		sessions, err := session.NewRedisStore(ctx, cfg.RedisAddr, cfg.Session.TTL)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func(context.Context) error { return sessions.Close() }
		return cart.NewSessionStore(sessions, cfg.Cart.SessionKey), closeFn, nil

	case config.StoreDB:
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
			TranslateError: true,
			Logger:         logger.Default.LogMode(logger.Warn),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open db: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)

		st := cart.NewGormStore(db)
		if err := st.Migrate(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		closeFn := func(context.Context) error { return sqlDB.Close() }
		return st, closeFn, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownStore, cfg.Store)
	}
}

func pricingPolicy(c config.Cart) (cart.PricingPolicy, error) {
	if c.Pricing != config.PricingVolume {
		return cart.UnitPricing{}, nil
	}

	rate, err := decimal.NewFromString(c.DiscountRate)
	if err != nil {
		return nil, fmt.Errorf("discount rate %q: %w", c.DiscountRate, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("discount rate %s must be within [0, 1]", rate)
	}
	return cart.VolumeDiscount{Rate: rate}, nil
}

func minProductPrice(raw string) (decimal.NullDecimal, error) {
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
