// Package app assembles the report pipeline from configuration. Both the
// HTTP server and the reportctl CLI build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/arturoeanton/go-commit-reporter/internal/adapter/ai"
	"github.com/arturoeanton/go-commit-reporter/internal/adapter/cache"
	"github.com/arturoeanton/go-commit-reporter/internal/adapter/hosting"
	"github.com/arturoeanton/go-commit-reporter/internal/adapter/notify"
	"github.com/arturoeanton/go-commit-reporter/internal/adapter/queue"
	"github.com/arturoeanton/go-commit-reporter/internal/adapter/store"
	"github.com/arturoeanton/go-commit-reporter/internal/handler"
	"github.com/arturoeanton/go-commit-reporter/internal/middleware"
	"github.com/arturoeanton/go-commit-reporter/internal/port"
	"github.com/arturoeanton/go-commit-reporter/internal/service"
	"github.com/arturoeanton/go-commit-reporter/internal/worker"
	"github.com/arturoeanton/go-commit-reporter/pkg/config"
)

const (
	cachePurgeInterval = time.Hour
	natsMaxReconnects  = 60
)

// App holds the wired services of one process.
type App struct {
	Config   *config.Config
	Registry *service.Registry
	Reports  *service.ReportService
	Jobs     *service.JobService
	Pool     *worker.Pool

	// AuditWriter always has a value; AuditReader is nil without a database.
	AuditWriter middleware.AuditWriter
	AuditReader handler.AuditReader

	queue    port.JobQueue
	pg       *store.PostgresStore
	nats     *notify.NATSNotifier
	notifier port.JobNotifier
}

// New wires adapters and services for cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{Config: cfg}

	gh, err := hosting.NewGitHubProvider(hosting.GitHubConfig{
		Token:            cfg.GitHubToken,
		BaseURL:          cfg.GitHubAPIURL,
		MaxRateLimitWait: cfg.GitHubMaxRateLimitWait,
	})
	if err != nil {
		return nil, err
	}

	summarizer, err := ai.NewSummarizer(cfg.LLMProvider, summarizerEndpoint(cfg))
	if err != nil {
		return nil, err
	}

	var reportCache port.ReportCache
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		pg, err := store.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		slog.Info("using postgres storage", "dsn", cfg.DSN())
		a.pg = pg
		a.queue = pg.JobQueue()
		reportCache = pg.ReportCache()
		a.AuditWriter = pg
		a.AuditReader = pg
	default:
		slog.Info("using in-memory storage", "cache_max_items", cfg.CacheMaxItems)
		a.queue = queue.NewMemoryQueue()
		reportCache = cache.NewMemoryCache(cfg.CacheMaxItems)
		a.AuditWriter = middleware.LogAuditWriter{}
	}

	if cfg.NATSURL != "" {
		nc, err := notify.NewNATSNotifier(notify.NATSConfig{
			URL:           cfg.NATSURL,
			ClientID:      cfg.AppName,
			MaxReconnects: natsMaxReconnects,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.nats = nc
		a.notifier = nc
	} else {
		a.notifier = notify.NewMemoryNotifier()
	}

	a.Registry = service.NewRegistry(service.RegistrySource{
		JSON:  cfg.Repositories,
		URLs:  cfg.RepositoryURLs,
		Names: cfg.RepositoryNames,
	})
	fetcher := service.NewCommitFetcher(gh, cache.NewMetadataStore())
	a.Reports = service.NewReportService(a.Registry, fetcher, summarizer, reportCache, service.ReportConfig{
		CacheTTL: cfg.CacheTTL,
		Language: cfg.ReportLanguage,
	})
	a.Jobs = service.NewJobService(a.queue, a.notifier, service.JobConfig{
		MaxAttempts:  cfg.JobAttempts,
		BackoffDelay: cfg.JobBackoff,
	})
	a.Pool = worker.NewPool(a.queue, a.notifier, a.Reports, worker.Config{
		ID:           workerID(),
		Concurrency:  cfg.WorkerConcurrency,
		PollInterval: cfg.WorkerPollInterval,
		Lease:        cfg.JobLease,
	})

	slog.Info("report pipeline ready",
		"repositories", len(a.Registry.List()),
		"llm_provider", cfg.LLMProvider,
		"llm_model", summarizer.ModelName(),
		"storage", cfg.StorageBackend,
		"nats", cfg.NATSURL != "",
	)
	return a, nil
}

func summarizerEndpoint(cfg *config.Config) ai.EndpointConfig {
	if cfg.LLMProvider == "ollama" {
		return ai.EndpointConfig{
			BaseURL: cfg.OllamaChatURL,
			Model:   cfg.OllamaChatModel,
			Token:   cfg.OllamaChatToken,
			Timeout: cfg.LLMTimeout,
		}
	}
	return ai.EndpointConfig{
		BaseURL: cfg.DeepSeekBaseURL,
		Model:   cfg.DeepSeekModel,
		Token:   cfg.DeepSeekAPIKey,
		Timeout: cfg.LLMTimeout,
	}
}

func workerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

// Queue exposes the job queue backing this process.
func (a *App) Queue() port.JobQueue { return a.queue }

// RunMaintenance purges expired cache rows until ctx is done. It is a no-op
// for the in-memory backend, which expires entries on read.
func (a *App) RunMaintenance(ctx context.Context) {
	if a.pg == nil {
		return
	}
	rc := a.pg.ReportCache()
	ticker := time.NewTicker(cachePurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := rc.PurgeExpired(ctx)
			if err != nil {
				slog.Warn("cache purge failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("purged expired cache entries", "count", n)
			}
		}
	}
}

// Close releases the NATS connection and the database pool.
func (a *App) Close() {
	if a.nats != nil {
		a.nats.Close()
	}
	if a.pg != nil {
		if err := a.pg.Close(); err != nil {
			slog.Warn("closing database", "error", err)
		}
	}
}
