// Package app wires configuration into the concrete service graph: database
// pool, token pool, API client, location resolver, enrichment pipeline,
// runner, and HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gcsclient "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/gitscout/gitscout/internal/api"
	"github.com/gitscout/gitscout/internal/clock/system"
	"github.com/gitscout/gitscout/internal/config"
	"github.com/gitscout/gitscout/internal/crawler"
	"github.com/gitscout/gitscout/internal/enrich"
	"github.com/gitscout/gitscout/internal/geo"
	"github.com/gitscout/gitscout/internal/gh"
	"github.com/gitscout/gitscout/internal/mailer"
	"github.com/gitscout/gitscout/internal/metrics"
	"github.com/gitscout/gitscout/internal/queue"
	queuememory "github.com/gitscout/gitscout/internal/queue/memory"
	queuepubsub "github.com/gitscout/gitscout/internal/queue/pubsub"
	"github.com/gitscout/gitscout/internal/storage"
	storagegcs "github.com/gitscout/gitscout/internal/storage/gcs"
	storagelocal "github.com/gitscout/gitscout/internal/storage/local"
	storagememory "github.com/gitscout/gitscout/internal/storage/memory"
	"github.com/gitscout/gitscout/internal/store"
)

// App holds the assembled service graph.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	pool      *pgxpool.Pool
	gcs       *gcsclient.Client
	events    queue.Publisher
	mail      mailer.Mailer
	gmail     *mailer.Gmail
	store     *store.Store
	runner    *crawler.Runner
	apiServer *api.Server
}

// New assembles the application from configuration. Callers must Close it.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.Init()

	a := &App{cfg: cfg, logger: logger}

	poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse db dsn: %w", err)
	}
	if cfg.DB.MaxConns > 0 {
		poolCfg.MaxConns = cfg.DB.MaxConns
	}
	if cfg.DB.MinConns > 0 {
		poolCfg.MinConns = cfg.DB.MinConns
	}
	a.pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}

	a.store = store.New(a.pool, logger.Named("store"))
	if err := a.store.EnsureSchema(ctx); err != nil {
		a.Close()
		return nil, err
	}

	tokens, err := gh.NewTokenPool(cfg.GitHub.Tokens, system.New(), logger.Named("tokens"))
	if err != nil {
		a.Close()
		return nil, err
	}
	client := gh.NewClient(gh.ClientConfig{
		BaseURL:         cfg.GitHub.BaseURL,
		Timeout:         cfg.HTTPTimeout(),
		MaxAttempts:     cfg.GitHub.MaxAttempts,
		RateLimitPause:  cfg.RateLimitPause(),
		PerPage:         cfg.Crawl.PageSize,
		RepoScanLimit:   cfg.GitHub.RepoScanLimit,
		CommitScanLimit: cfg.GitHub.CommitScanLimit,
	}, tokens, logger.Named("github"))

	locator, err := geo.New(ctx, geo.Config{
		Provider:     cfg.Location.Provider,
		RegionCode:   cfg.Location.RegionCode,
		Retries:      cfg.Location.Retries,
		UserAgent:    cfg.Location.UserAgent,
		OpenCageKey:  cfg.Location.OpenCageKey,
		GoogleKey:    cfg.Location.GoogleKey,
		AnthropicKey: cfg.Location.AnthropicKey,
		ClaudeModel:  cfg.Location.ClaudeModel,
		GeminiKey:    cfg.Location.GeminiKey,
		GeminiModel:  cfg.Location.GeminiModel,
	}, logger.Named("geo"))
	if err != nil {
		a.Close()
		return nil, err
	}

	archive, err := a.buildArchive(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildEvents(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildMailer(); err != nil {
		a.Close()
		return nil, err
	}

	pipeline := enrich.NewPipeline(client, locator, archive, logger.Named("enrich"))
	a.runner = crawler.NewRunner(client, pipeline, a.store, a.events, cfg.Crawl.Concurrency, logger.Named("crawler"))
	a.apiServer = api.NewServer(a.runner, a.store, a.mail, logger.Named("api"))

	return a, nil
}

func (a *App) buildArchive(ctx context.Context) (storage.Provider, error) {
	switch a.cfg.Archive.Provider {
	case "noop", "":
		return &storage.NoOpProvider{}, nil
	case "memory":
		return storagememory.New(), nil
	case "local":
		return storagelocal.New(storagelocal.Config{BaseDir: a.cfg.Archive.BaseDir})
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.gcs = client
		return storagegcs.New(client, storagegcs.Config{Bucket: a.cfg.Archive.GCSBucket})
	default:
		return nil, fmt.Errorf("unknown archive provider %q", a.cfg.Archive.Provider)
	}
}

func (a *App) buildEvents(ctx context.Context) error {
	switch a.cfg.Queue.Provider {
	case "noop", "":
		a.events = queue.NoOpPublisher{}
	case "memory":
		a.events = queuememory.New()
	case "pubsub":
		pub, err := queuepubsub.New(ctx, queuepubsub.Config{
			ProjectID: a.cfg.Queue.ProjectID,
			TopicID:   a.cfg.Queue.TopicID,
		})
		if err != nil {
			return err
		}
		a.events = pub
	default:
		return fmt.Errorf("unknown queue provider %q", a.cfg.Queue.Provider)
	}
	return nil
}

func (a *App) buildMailer() error {
	switch a.cfg.Mailer.Provider {
	case "noop", "":
		a.mail = mailer.NoOpMailer{}
	case "chromedp":
		g, err := mailer.NewGmail(mailer.GmailConfig{
			ProfileDir:  a.cfg.Mailer.ChromeProfile,
			SendTimeout: time.Duration(a.cfg.Mailer.NavTimeoutSec) * time.Second,
		}, a.logger.Named("mailer"))
		if err != nil {
			return err
		}
		a.gmail = g
		a.mail = g
	default:
		return fmt.Errorf("unknown mailer provider %q", a.cfg.Mailer.Provider)
	}
	return nil
}

// RunCrawl executes a single crawl run and returns its statistics.
func (a *App) RunCrawl(ctx context.Context) (crawler.Stats, error) {
	return a.runner.Run(ctx)
}

// Serve starts the HTTP server (and the crawl schedule, when configured) and
// blocks until the context is canceled or a signal arrives.
func (a *App) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sched *cron.Cron
	if a.cfg.Crawl.Schedule != "" {
		sched = cron.New()
		if _, err := sched.AddFunc(a.cfg.Crawl.Schedule, func() {
			if _, err := a.runner.Run(ctx); err != nil && !errors.Is(err, crawler.ErrRunActive) {
				a.logger.Error("scheduled crawl failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("parse crawl schedule: %w", err)
		}
		sched.Start()
		a.logger.Info("crawl schedule active", zap.String("schedule", a.cfg.Crawl.Schedule))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	if sched != nil {
		<-sched.Stop().Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	a.Close()
	a.logger.Info("shutdown complete")
	return nil
}

// Close releases all held resources. It is safe to call on a partially
// constructed App.
func (a *App) Close() {
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.logger.Warn("event publisher close failed", zap.Error(err))
		}
	}
	if a.gmail != nil {
		a.gmail.Close()
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
