package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sitecms/api/internal/app"
	"sitecms/api/internal/assets"
	"sitecms/api/internal/config"
	"sitecms/api/internal/events"
	"sitecms/api/internal/lease"
	"sitecms/api/internal/logging"
	"sitecms/api/internal/search"
	"sitecms/api/internal/store"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL, 0)
	if err != nil {
		logger.Fatal("database connection failed", "err", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, store.Migrations(cfg.MigrationsDir)); err != nil {
		logger.Fatal("migrations failed", "err", err)
	}

	dataStore := store.NewPostgresStore(db)
	deps := app.Deps{Logger: logger}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		moveLease, err := lease.NewRedisLease(cfg.RedisURL, "", lease.TTLFor(cfg.LeaseTTL, cfg.ReorderTimeout), logger)
		if err != nil {
			logger.Fatal("redis connection failed", "err", err)
		}
		defer moveLease.Close()
		deps.Lease = moveLease
		logger.Info("using redis lease for timeline moves")
	}

	pgfts := search.NewPgFTS(db)
	var primary search.Index
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
		primary = meiliClient
	}
	searchService := search.NewService(primary, pgfts, pgfts, logger)
	deps.Search = searchService

	publisher := events.New(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	defer publisher.Close()
	deps.Events = publisher

	uploader, err := assets.New(ctx, assets.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
		PublicURL: cfg.MinioPublicURL,
	}, logger)
	switch {
	case err == nil:
		deps.Assets = uploader
	case errors.Is(err, assets.ErrNotConfigured):
		logger.Info("asset uploads disabled, MINIO_ENDPOINT not set")
	default:
		logger.Warn("asset storage unavailable, uploads disabled", "err", err)
	}

	service := app.New(cfg, dataStore, deps)
	if err := service.Bootstrap(ctx); err != nil {
		logger.Warn("bootstrap error, the refresher will retry", "err", err)
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go service.RunRefresher(runCtx, cfg.RefreshInterval)
	go searchService.ReindexAll(runCtx)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("sitecms api listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "err", err)
	}
}
