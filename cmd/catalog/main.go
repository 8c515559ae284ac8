package main

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"Carton/internal/catalog"
	"Carton/internal/config"
	"Carton/pkg/kit"
)

const service = "catalog"

func main() {
	cfg, err := config.Load("8082")
	if err != nil {
		panic(err)
	}

	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownTracing, err := kit.InitTracing(ctx, service, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal("tracing init failed", zap.Error(err))
	}

	var (
		store   catalog.Store = catalog.NewMemStore()
		closeDB               = func(context.Context) error { return nil }
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Fatal("db open failed", zap.Error(err))
		}
		pg := catalog.NewPostgresStore(db)
		if err := pg.Migrate(ctx); err != nil {
			log.Fatal("db migrate failed", zap.Error(err))
		}
		store = pg
		closeDB = func(context.Context) error { return db.Close() }
	} else {
		log.Info("DATABASE_URL not set; serving demo products from memory")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &catalog.Server{Store: store, Log: log}
	h := catalog.NewHandler(s, catalog.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsToken:   cfg.Metrics.Token,
	})

	if err := kit.RunHTTPServer(":"+cfg.Port, h, log, closeDB, shutdownTracing); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}
