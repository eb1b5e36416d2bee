// Package app initializes and holds long-lived services, acting as the
// dependency injection container for the harvest commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jgourd/leadharvest/internal/api"
	"github.com/jgourd/leadharvest/internal/clock/system"
	"github.com/jgourd/leadharvest/internal/config"
	"github.com/jgourd/leadharvest/internal/discover"
	"github.com/jgourd/leadharvest/internal/extract"
	collyfetcher "github.com/jgourd/leadharvest/internal/fetcher/colly"
	"github.com/jgourd/leadharvest/internal/harvest"
	"github.com/jgourd/leadharvest/internal/logging"
	"github.com/jgourd/leadharvest/internal/metrics"
	"github.com/jgourd/leadharvest/internal/pipeline"
	"github.com/jgourd/leadharvest/internal/pool"
	"github.com/jgourd/leadharvest/internal/progress"
	"github.com/jgourd/leadharvest/internal/progress/sinks"
	pubsubpublisher "github.com/jgourd/leadharvest/internal/publisher/pubsub"
	"github.com/jgourd/leadharvest/internal/search"
	"github.com/jgourd/leadharvest/internal/sink"
	gcsarchive "github.com/jgourd/leadharvest/internal/storage/gcs"
	localarchive "github.com/jgourd/leadharvest/internal/storage/local"
)

// App owns every service needed to run harvests: the logger, the progress
// hub, the pipeline and its sources, the sinks, and the optional ops
// server. Initialization fails fast on any misconfigured service.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	hub      *progress.Hub
	pipeline *pipeline.Pipeline
	server   *http.Server

	closers []func(context.Context) error
}

// New wires the application from configuration.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	metrics.Init()

	a := &App{cfg: cfg, logger: logger}

	a.hub = progress.NewHub(
		progress.Config{Logger: logger},
		sinks.NewLogSink(logger),
		sinks.NewPrometheusSink(),
	)
	a.closers = append(a.closers, a.hub.Close)

	clk := system.New()
	fetcher := harvest.NewRetryingFetcher(
		collyfetcher.New(collyfetcher.Config{
			UserAgent:    cfg.Fetch.UserAgent,
			Timeout:      cfg.Fetch.Timeout,
			MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
			MirrorBase:   cfg.Fetch.MirrorBase,
		}),
		harvest.RetryConfig{
			MaxAttempts:   cfg.Fetch.RetryBudget,
			RateLimitWait: cfg.Fetch.RateLimitWait,
		},
		logger,
	)

	ledger := harvest.NewCreditLedger(cfg.Search.CreditCeiling)

	deps := pipeline.Deps{
		Fetcher: fetcher,
		Cascade: extract.NewCascade(logger),
		Sinks:   nil,
		Hub:     a.hub,
		Clock:   clk,
		Ledger:  ledger,
		Logger:  logger,
	}

	if cfg.Discovery.Enabled {
		deps.Discoverer = discover.New(
			fetcher,
			[]discover.Strategy{
				discover.NewRobotsStrategy(fetcher, cfg.Site.BaseURL),
				discover.NewConventionalStrategy(fetcher, cfg.Site.BaseURL, cfg.Discovery.IndexPaths),
				discover.NewSynthesizedStrategy(cfg.Site.BaseURL, cfg.Discovery.WindowDays, clk),
			},
			discover.Config{
				PathFilters:  cfg.Site.PathFilters,
				MaxDocuments: cfg.Discovery.MaxDocuments,
			},
			logger,
		)
	}

	if cfg.Search.Enabled {
		// A missing key degrades the search source rather than failing the
		// run; the harvester warns and yields nothing on a nil client.
		var client harvest.SearchClient
		if cfg.Search.APIKey == "" {
			logger.Warn("search api key not set, search source will yield nothing")
		} else {
			sitePrefix := cfg.Search.SitePrefix
			if sitePrefix == "" {
				sitePrefix = cfg.Site.BaseURL
			}
			client = search.NewSerpClient(search.SerpConfig{
				BaseURL:    cfg.Search.BaseURL,
				APIKey:     cfg.Search.APIKey,
				SitePrefix: sitePrefix,
			}, logger)
		}
		deps.Harvester = search.NewHarvester(client, ledger, search.Config{
			Queries: cfg.Search.Queries,
			PageCap: cfg.Search.PageCap,
			Delay:   cfg.Search.Delay,
		}, logger)
	}

	if deps.Archive, err = a.buildArchive(ctx, cfg); err != nil {
		return nil, err
	}
	if deps.Sinks, err = a.buildSinks(ctx, cfg); err != nil {
		return nil, err
	}
	if cfg.Publish.ProjectID != "" {
		pub, err := pubsubpublisher.New(ctx, cfg.Publish.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("initialize publisher: %w", err)
		}
		deps.Publisher = pub
		a.closers = append(a.closers, func(context.Context) error { return pub.Close() })
	}

	a.pipeline = pipeline.New(deps, pipeline.Config{
		Pool: pool.Config{
			Workers:       cfg.Pool.Concurrency,
			RequireMarker: cfg.Site.Marker,
		},
		Topic: cfg.Publish.Topic,
	})

	if cfg.Server.Enabled {
		a.server = &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           api.NewServer(a.hub, logger).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("ops server listening", zap.String("addr", cfg.Server.Addr))
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("ops server failed", zap.Error(err))
			}
		}()
	}

	logger.Info("application services initialized",
		zap.Bool("discovery", cfg.Discovery.Enabled),
		zap.Bool("search", cfg.Search.Enabled),
		zap.String("archive", cfg.Archive.Kind),
	)
	return a, nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Run executes one harvest.
func (a *App) Run(ctx context.Context) (harvest.Summary, error) {
	return a.pipeline.Run(ctx)
}

func (a *App) buildArchive(ctx context.Context, cfg config.Config) (harvest.Archive, error) {
	switch cfg.Archive.Kind {
	case "", "none":
		return nil, nil
	case "local":
		archive, err := localarchive.New(cfg.Archive.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("initialize local archive: %w", err)
		}
		return archive, nil
	case "gcs":
		archive, err := gcsarchive.New(ctx, cfg.Archive.Bucket, a.logger)
		if err != nil {
			return nil, fmt.Errorf("initialize gcs archive: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return archive.Close() })
		return archive, nil
	default:
		return nil, fmt.Errorf("unknown archive kind %q", cfg.Archive.Kind)
	}
}

func (a *App) buildSinks(ctx context.Context, cfg config.Config) ([]harvest.LeadSink, error) {
	var out []harvest.LeadSink
	if cfg.Output.CSVPath != "" {
		s, err := sink.NewCSVSink(cfg.Output.CSVPath)
		if err != nil {
			return nil, fmt.Errorf("initialize csv sink: %w", err)
		}
		out = append(out, s)
	}
	if cfg.Output.SQLitePath != "" {
		s, err := sink.NewSQLiteSink(cfg.Output.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite sink: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return s.Close() })
		out = append(out, s)
	}
	if cfg.Output.PostgresDSN != "" {
		s, err := sink.NewPostgresSink(ctx, sink.PostgresConfig{
			DSN:   cfg.Output.PostgresDSN,
			Table: cfg.Output.PostgresTable,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize postgres sink: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { s.Close(); return nil })
		out = append(out, s)
	}
	return out, nil
}

// Close shuts services down in reverse initialization order and flushes
// the logger.
func (a *App) Close(ctx context.Context) {
	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("ops server shutdown failed", zap.Error(err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("service close failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
