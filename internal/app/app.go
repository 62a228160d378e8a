// Package app initializes and holds the long-lived services for the
// discovery server, acting as a dependency injection container. Providers
// are chosen from configuration: Postgres or in-memory stores, GCS or local
// blob storage, Pub/Sub or an in-memory publisher.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/canonical"
	"github.com/ddoubleg123/carrot-discovery/internal/clock/system"
	"github.com/ddoubleg123/carrot-discovery/internal/config"
	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
	"github.com/ddoubleg123/carrot-discovery/internal/fetch"
	"github.com/ddoubleg123/carrot-discovery/internal/frontier"
	"github.com/ddoubleg123/carrot-discovery/internal/hash/sha256"
	"github.com/ddoubleg123/carrot-discovery/internal/id/uuid"
	"github.com/ddoubleg123/carrot-discovery/internal/llm"
	"github.com/ddoubleg123/carrot-discovery/internal/pipeline"
	"github.com/ddoubleg123/carrot-discovery/internal/policy"
	"github.com/ddoubleg123/carrot-discovery/internal/progress"
	pubmem "github.com/ddoubleg123/carrot-discovery/internal/publisher/memory"
	"github.com/ddoubleg123/carrot-discovery/internal/publisher/pubsub"
	"github.com/ddoubleg123/carrot-discovery/internal/seen"
	"github.com/ddoubleg123/carrot-discovery/internal/storage/gcs"
	"github.com/ddoubleg123/carrot-discovery/internal/storage/local"
	"github.com/ddoubleg123/carrot-discovery/internal/storage/memory"
	"github.com/ddoubleg123/carrot-discovery/internal/storage/postgres"
	"github.com/ddoubleg123/carrot-discovery/internal/vetting"
)

// App holds all shared, long-lived services. It is initialized once at
// startup and handed to whichever entry point (server or one-shot command)
// is running.
type App struct {
	Config config.Config
	Logger *zap.Logger
	Runner *Runner

	closers []func() error
}

// stores groups the persistence interfaces so provider selection stays in
// one place.
type stores struct {
	pages     discovery.PageStore
	citations discovery.CitationStore
	contents  discovery.ContentStore
	seen      discovery.SeenStore
	summaries discovery.SummaryStore
}

// New builds the full service graph from configuration. It fails fast: any
// provider that cannot be initialized aborts startup.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	st, err := a.buildStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	blobs, err := a.buildBlobs(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	publisher, err := a.buildPublisher(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	clk := system.New()
	idGen := uuid.NewUUIDGenerator()
	hasher := sha256.New()

	chat := llm.NewClient(llm.Config{
		APIKey:  cfg.Oracle.APIKey,
		BaseURL: cfg.Oracle.BaseURL,
		Model:   cfg.Oracle.Model,
	})
	planner := frontier.NewLLMPlanner(chat, logger.Named("planner"))
	seeder := frontier.NewSeeder(planner, idGen, clk, logger.Named("seeder"))
	oracle := vetting.NewLLMOracle(chat, logger.Named("oracle"))
	vetter := vetting.New(oracle, vetting.NewGuard(), vetting.Config{
		ScoreThreshold: cfg.Vetting.ScoreThreshold,
		MinTextLength:  cfg.Vetting.MinTextLength,
	}, logger.Named("vetter"))

	httpClient := &http.Client{Timeout: cfg.FetchTimeout()}
	scanner := fetch.NewScanner(fetch.ScannerConfig{
		UserAgent:     cfg.Fetch.UserAgent,
		Timeout:       cfg.FetchTimeout(),
		MaxCandidates: cfg.Fetch.MaxScanCandidates,
	}, logger.Named("scanner"))
	verifier := fetch.NewVerifier(httpClient, cfg.VerifyTimeout(), logger.Named("verifier"))
	fetcher := fetch.NewFetcher(httpClient, a.buildRenderer(cfg, logger), fetch.FetcherConfig{
		Timeout: cfg.FetchTimeout(),
	}, logger.Named("fetcher"))
	resolver := canonical.NewResolver(
		&http.Client{Timeout: cfg.VerifyTimeout()},
		cfg.Discovery.MaxRedirects,
		logger.Named("resolver"),
	)

	tracker := progress.NewTracker(cfg.Discovery.EventBufferSize, clk, logger.Named("progress"))
	seenTracker := seen.NewTracker(st.seen, hasher, clk, cfg.SeenTTL(), logger.Named("seen"))

	pipe := pipeline.New(pipeline.Deps{
		Pages:     st.pages,
		Citations: st.citations,
		Contents:  st.contents,
		Seen:      seenTracker,
		Seeder:    seeder,
		Scanner:   scanner,
		Verifier:  verifier,
		Fetcher:   fetcher,
		Vetter:    vetter,
		Denylist:  fetch.NewDenylist(nil),
		Resolver:  resolver,
		Limiter:   policy.NewDomainLimiter(float64(cfg.Discovery.RatePerSecond), cfg.Discovery.RateBurst),
		Guard:     policy.NewGuard(),
		Tracker:   tracker,
		Blobs:     blobs,
		Publisher: publisher,
		Saver:     newLogSaver(logger.Named("saver")),
		IDGen:     idGen,
		Clock:     clk,
	}, pipeline.Config{
		MaxPagesPerRun:     cfg.Discovery.MaxPagesPerRun,
		MaxCitationsPerRun: cfg.Discovery.MaxCitationsPerRun,
		MinTextLength:      cfg.Vetting.MinTextLength,
		SweepThreshold:     cfg.Vetting.ScoreThreshold,
	}, logger.Named("pipeline"))

	a.Runner = NewRunner(pipe, tracker, st.summaries, idGen, logger.Named("runner"))

	logger.Info("application services initialized")
	return a, nil
}

func (a *App) buildStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (stores, error) {
	if cfg.DB.DSN == "" {
		logger.Info("using in-memory stores; records are lost on restart")
		return stores{
			pages:     memory.NewPageStore(),
			citations: memory.NewCitationStore(),
			contents:  memory.NewContentStore(),
			seen:      memory.NewSeenStore(),
			summaries: memory.NewSummaryStore(),
		}, nil
	}

	logger.Info("connecting to postgres")
	pool, err := postgres.Connect(ctx, postgres.PoolConfig{
		DSN:      cfg.DB.DSN,
		MaxConns: int32(cfg.DB.MaxOpenConns),
		MinConns: int32(cfg.DB.MaxIdleConns),
	})
	if err != nil {
		return stores{}, fmt.Errorf("initialize database: %w", err)
	}
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})
	return stores{
		pages:     postgres.NewPageStore(pool),
		citations: postgres.NewCitationStore(pool),
		contents:  postgres.NewContentStore(pool),
		seen:      postgres.NewSeenStore(pool),
		summaries: postgres.NewSummaryStore(pool),
	}, nil
}

func (a *App) buildBlobs(ctx context.Context, cfg config.Config, logger *zap.Logger) (discovery.BlobStore, error) {
	if cfg.Storage.GCSBucket != "" {
		logger.Info("using GCS blob storage", zap.String("bucket", cfg.Storage.GCSBucket))
		store, err := gcs.New(ctx, gcs.Config{
			Bucket: cfg.Storage.GCSBucket,
			Prefix: cfg.Storage.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize gcs storage: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	}

	dir := cfg.Storage.LocalDir
	if dir == "" {
		dir = "data/audits"
	}
	logger.Info("using local blob storage", zap.String("dir", dir))
	store, err := local.NewBlobStore(dir)
	if err != nil {
		return nil, fmt.Errorf("initialize local storage: %w", err)
	}
	return store, nil
}

func (a *App) buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (discovery.Publisher, error) {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		logger.Info("using in-memory publisher; saved-content events stay local")
		return pubmem.NewPublisher(), nil
	}

	logger.Info("connecting to pub/sub", zap.String("topic", cfg.PubSub.TopicName))
	pub, err := pubsub.New(ctx, pubsub.Config{
		ProjectID: cfg.PubSub.ProjectID,
		TopicName: cfg.PubSub.TopicName,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize pub/sub: %w", err)
	}
	a.closers = append(a.closers, pub.Close)
	return pub, nil
}

func (a *App) buildRenderer(cfg config.Config, logger *zap.Logger) fetch.Renderer {
	if !cfg.Headless.Enabled {
		return nil
	}
	renderer, err := fetch.NewChromedpRenderer(fetch.HeadlessConfig{
		Enabled:     true,
		MaxParallel: cfg.Headless.MaxParallel,
		NavTimeout:  time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		UserAgent:   cfg.Headless.UserAgent,
	}, logger.Named("renderer"))
	switch {
	case err == nil:
		a.closers = append(a.closers, func() error {
			renderer.Close()
			return nil
		})
		return renderer
	case errors.Is(err, fetch.ErrRendererDisabled):
		return nil
	default:
		// A broken browser install should not take down the whole service;
		// fetches fall back to the static body.
		logger.Warn("headless renderer init failed", zap.Error(err))
		return nil
	}
}

// Close shuts down every service the App owns, newest first, and flushes
// the logger. It is safe to call once at process exit.
func (a *App) Close() {
	a.Logger.Info("shutting down application services")
	if a.Runner != nil {
		a.Runner.Shutdown()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("service shutdown error", zap.Error(err))
		}
	}
	// Best effort; stderr may be a pipe that rejects Sync.
	_ = a.Logger.Sync()
}
