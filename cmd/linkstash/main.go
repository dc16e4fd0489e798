// Package main wires together the linkstash service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	gcpubsub "cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"linkstash/internal/api"
	"linkstash/internal/browser"
	"linkstash/internal/clock/system"
	"linkstash/internal/color"
	"linkstash/internal/config"
	"linkstash/internal/favicon"
	"linkstash/internal/fetcher/headless"
	"linkstash/internal/hash/sha256"
	"linkstash/internal/ingest"
	"linkstash/internal/links"
	"linkstash/internal/logging"
	"linkstash/internal/metrics"
	memorypublisher "linkstash/internal/publisher/memory"
	pubsubpublisher "linkstash/internal/publisher/pubsub"
	"linkstash/internal/recycle"
	gcsstorage "linkstash/internal/storage/gcs"
	localstorage "linkstash/internal/storage/local"
	memorystorage "linkstash/internal/storage/memory"
	"linkstash/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	store, err := postgres.NewLinkStore(ctx, postgres.Config{
		DSN:             cfg.DB.DSN,
		Table:           cfg.DB.Table,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: cfg.MaxConnLifetime(),
	})
	if err != nil {
		logger.Fatal("link store init failed", zap.Error(err))
	}
	defer store.Close()

	cache, err := buildCache(ctx, cfg.Cache)
	if err != nil {
		logger.Fatal("favicon cache init failed", zap.Error(err))
	}
	publisher, err := buildPublisher(ctx, cfg.Events)
	if err != nil {
		logger.Fatal("event publisher init failed", zap.Error(err))
	}

	matcher, err := color.NewMatcher()
	if err != nil {
		logger.Fatal("color matcher init failed", zap.Error(err))
	}

	pool := browser.NewPool(browser.Config{
		MaxPages:       cfg.Browser.MaxPages,
		AcquireTimeout: cfg.AcquireTimeout(),
		IdleTimeout:    cfg.IdleTimeout(),
		UserAgent:      cfg.Browser.UserAgent,
	}, logger.Named("browser"))
	metrics.RegisterPoolGauge(func() float64 { return float64(pool.InUse()) })

	fetcher := headless.New(pool, headless.Config{
		FetchTimeout: cfg.FetchTimeout(),
		SettleDelay:  cfg.SettleDelay(),
	}, logger.Named("fetcher"))

	resolver := favicon.New(matcher, cache, sha256.New(), favicon.Config{
		FetchTimeout: cfg.FaviconTimeout(),
		MaxBytes:     cfg.Favicon.MaxBytes,
		CachePrefix:  cfg.Favicon.CachePrefix,
	}, logger.Named("favicon"))

	clock := system.New()
	ingestor := ingest.NewService(fetcher, resolver, store, publisher, clock, cfg.Events.Topic, logger.Named("ingest"))
	bin := recycle.New(store, clock, publisher, cfg.Events.Topic, cfg.Links.RecycleBinKeep, logger.Named("recycle"))

	queue := ingest.NewQueue(cfg.Ingest.QueueDepth)
	var workerWG sync.WaitGroup
	for i := 0; i < cfg.Ingest.Workers; i++ {
		w := ingest.NewWorker(queue, ingestor, cfg.TaskTimeout(), logger.Named("worker"))
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			w.Run(ctx)
		}()
	}

	server := api.NewServer(ingestor, queue, bin, store, clock, cfg, logger.Named("api"))
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("http server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}

	// Stop accepting tasks, let the workers drain in-flight fetches,
	// then tear down the page pool.
	queue.Close()
	workerWG.Wait()
	if err := pool.DrainAndClose(shutdownCtx); err != nil {
		logger.Warn("page pool drain failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func buildCache(ctx context.Context, cfg config.CacheConfig) (links.BlobStore, error) {
	switch cfg.Backend {
	case config.BackendNone, "":
		return nil, nil
	case config.BackendMemory:
		return memorystorage.NewBlobStore(), nil
	case config.BackendLocal:
		return localstorage.New(localstorage.Config{BaseDir: cfg.LocalDir})
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		return gcsstorage.New(client, gcsstorage.Config{Bucket: cfg.GCSBucket})
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

func buildPublisher(ctx context.Context, cfg config.EventsConfig) (links.Publisher, error) {
	switch cfg.Backend {
	case config.BackendNone, "", config.BackendMemory:
		return memorypublisher.New(), nil
	case config.BackendPubSub:
		client, err := gcpubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("create pubsub client: %w", err)
		}
		return pubsubpublisher.New(client)
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}
