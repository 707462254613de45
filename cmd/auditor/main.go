// Package main wires together the audit service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/seolytics/aeo-audit/internal/api"
	"github.com/seolytics/aeo-audit/internal/audit"
	"github.com/seolytics/aeo-audit/internal/clock/system"
	"github.com/seolytics/aeo-audit/internal/config"
	"github.com/seolytics/aeo-audit/internal/diagnostics"
	"github.com/seolytics/aeo-audit/internal/hash/sha256"
	"github.com/seolytics/aeo-audit/internal/id/uuid"
	"github.com/seolytics/aeo-audit/internal/logging"
	"github.com/seolytics/aeo-audit/internal/orchestrator"
	"github.com/seolytics/aeo-audit/internal/provider/firecrawl"
	localprovider "github.com/seolytics/aeo-audit/internal/provider/local"
	"github.com/seolytics/aeo-audit/internal/provider/providertest"
	memorypublisher "github.com/seolytics/aeo-audit/internal/publisher/memory"
	pubsubpublisher "github.com/seolytics/aeo-audit/internal/publisher/pubsub"
	"github.com/seolytics/aeo-audit/internal/rendering"
	gcsstorage "github.com/seolytics/aeo-audit/internal/storage/gcs"
	localstorage "github.com/seolytics/aeo-audit/internal/storage/local"
	memorystorage "github.com/seolytics/aeo-audit/internal/storage/memory"
	storememory "github.com/seolytics/aeo-audit/internal/store/memory"
	storepostgres "github.com/seolytics/aeo-audit/internal/store/postgres"
	"github.com/seolytics/aeo-audit/internal/tracing"
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

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("auditor exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	traceShutdown, err := tracing.Setup(ctx, "aeo-audit")
	if err != nil {
		return fmt.Errorf("tracing init: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := traceShutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	clock := system.New()
	idGen := uuid.New()
	hasher := sha256.New()

	store, closeStore, err := buildStore(ctx, cfg, clock)
	if err != nil {
		return fmt.Errorf("build store: %w", err)
	}
	defer closeStore()

	blobs, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build blob store: %w", err)
	}

	publisher, closePublisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build publisher: %w", err)
	}
	defer closePublisher()

	provider, err := buildProvider(cfg, idGen, logger)
	if err != nil {
		return fmt.Errorf("build provider: %w", err)
	}

	orch := orchestrator.New(orchestrator.Options{
		Provider:   provider,
		Store:      store,
		Classifier: rendering.New(),
		Annotator:  buildAnnotator(cfg, logger),
		Blobs:      blobs,
		Publisher:  publisher,
		Hasher:     hasher,
		IDs:        idGen,
		Clock:      clock,
		Logger:     logger.Named("orchestrator"),
		Thresholds: orchestrator.ProgressThresholds{
			RampSeconds:       cfg.Progress.RampSeconds,
			RampCeiling:       cfg.Progress.RampCeiling,
			MidpointSeconds:   cfg.Progress.MidpointSeconds,
			MidpointFloor:     cfg.Progress.MidpointFloor,
			ForceFlushSeconds: cfg.Progress.ForceFlushSeconds,
		},
		Defaults: orchestrator.CrawlDefaults{
			MaxPages:            cfg.Crawl.MaxPagesDefault,
			Depth:               cfg.Crawl.DepthDefault,
			FollowInternalLinks: cfg.Crawl.FollowInternalLinks,
		},
		PageConcurrency: cfg.Crawl.PageConcurrency,
		EventTopic:      cfg.Events.Topic,
	})

	apiServer := api.NewServer(orch, idGen, logger.Named("api"), cfg)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	// Let in-flight page processing land before the stores close.
	orch.Wait()
	logger.Info("shutdown complete")
	return nil
}

func buildStore(ctx context.Context, cfg config.Config, clock audit.Clock) (audit.ResultStore, func(), error) {
	switch cfg.DB.Provider {
	case "postgres":
		store, err := storepostgres.New(ctx, storepostgres.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		}, uuid.New(), clock)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "memory":
		return storememory.New(uuid.New(), clock), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown db.provider %q", cfg.DB.Provider)
	}
}

func buildBlobStore(ctx context.Context, cfg config.Config) (audit.BlobStore, error) {
	switch cfg.Storage.Provider {
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		return gcsstorage.New(client, gcsstorage.Config{Bucket: cfg.Storage.GCSBucket})
	case "local":
		return localstorage.New(localstorage.Config{BaseDir: cfg.Storage.BaseDir})
	case "memory":
		return memorystorage.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage.provider %q", cfg.Storage.Provider)
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (audit.Publisher, func(), error) {
	switch cfg.Events.Provider {
	case "pubsub":
		client, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("pubsub client: %w", err)
		}
		return pubsubpublisher.New(client), func() { _ = client.Close() }, nil
	case "memory":
		return memorypublisher.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown events.provider %q", cfg.Events.Provider)
	}
}

func buildProvider(cfg config.Config, ids audit.IDGenerator, logger *zap.Logger) (audit.CrawlProvider, error) {
	switch cfg.Provider.Kind {
	case "firecrawl":
		return firecrawl.New(firecrawl.Config{
			APIKey:  cfg.Provider.APIKey,
			BaseURL: cfg.Provider.BaseURL,
			Timeout: cfg.ProviderTimeout(),
		}), nil
	case "local":
		return localprovider.New(localprovider.Config{
			UserAgent: cfg.Crawl.UserAgent,
			Timeout:   cfg.ProviderTimeout(),
		}, ids, logger.Named("crawler")), nil
	case "mock":
		// Dev-only wiring check: the crawl succeeds immediately with no pages.
		return &providertest.Provider{
			Statuses: []audit.CrawlStatus{{State: audit.CrawlSucceeded, Percent: 100}},
		}, nil
	default:
		return nil, fmt.Errorf("unknown provider.kind %q", cfg.Provider.Kind)
	}
}

func buildAnnotator(cfg config.Config, logger *zap.Logger) *diagnostics.Annotator {
	if cfg.Diagnostics.APIKey == "" {
		return nil
	}
	gen := diagnostics.NewAnthropicGenerator(
		cfg.Diagnostics.APIKey,
		cfg.Diagnostics.Model,
		cfg.Diagnostics.MaxWords,
	)
	return diagnostics.NewAnnotator(gen, logger.Named("diagnostics"), diagnostics.AnnotatorOptions{
		Timeout:        cfg.DiagnosticTimeout(),
		RequestsPerSec: cfg.Diagnostics.RequestsPerSec,
		Burst:          cfg.Diagnostics.Burst,
		MaxConcurrent:  cfg.Diagnostics.MaxConcurrent,
	})
}
