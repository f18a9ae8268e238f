// Package exporter runs one search export: it drives the paginated fetch and
// writes the collected repository names to the output file.
package exporter

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/repo-search/pkg/cache"
	"github.com/Sternrassler/repo-search/pkg/client"
	"github.com/Sternrassler/repo-search/pkg/config"
	rserrors "github.com/Sternrassler/repo-search/pkg/errors"
	"github.com/Sternrassler/repo-search/pkg/logging"
	"github.com/Sternrassler/repo-search/pkg/metrics"
	"github.com/Sternrassler/repo-search/pkg/output"
	"github.com/Sternrassler/repo-search/pkg/pagination"
)

var (
	lastRunSuccess = promauto.With(metrics.Registry).NewGauge(prometheus.GaugeOpts{
		Name: "reposearch_last_run_success",
		Help: "1 if the last export run wrote its output file, 0 otherwise",
	})

	lastRunTimestamp = promauto.With(metrics.Registry).NewGauge(prometheus.GaugeOpts{
		Name: "reposearch_last_run_timestamp_seconds",
		Help: "Unix time the last export run finished",
	})

	lastRunItems = promauto.With(metrics.Registry).NewGauge(prometheus.GaugeOpts{
		Name: "reposearch_last_run_items",
		Help: "Repository names written by the last export run",
	})
)

// redisPingTimeout bounds the cache connectivity check.
const redisPingTimeout = 2 * time.Second

// Options carries optional collaborators for Run.
type Options struct {
	// HTTPClient replaces the client's default http.Client.
	HTTPClient *http.Client

	// Gatherer is the metrics source for the textfile (default: metrics.Gatherer).
	Gatherer prometheus.Gatherer
}

// Result summarizes a successful run.
type Result struct {
	Names     []string
	Pages     int
	Total     int
	Truncated bool
	Cached    bool
}

// Run validates cfg, fetches every result page and writes the repository
// names, one per line, to cfg.FilePath.
// The output file is only written when every page was fetched successfully,
// or when an explicit cfg.MaxPages was reached. Every outcome, including an
// invalid configuration, is recorded in cfg.MetricsFile when set.
func Run(ctx context.Context, cfg config.Config, opts Options) (*Result, error) {
	logger := logging.NewLogger(logging.ComponentExporter)
	start := time.Now()

	var res *Result
	err := cfg.Validate()
	if err == nil {
		res, err = run(ctx, cfg, opts, logger)
	}

	lastRunTimestamp.Set(float64(time.Now().Unix()))
	if err != nil {
		lastRunSuccess.Set(0)
		logger.Error().
			Str("error_kind", string(rserrors.KindOf(err))).
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Export failed")
	} else {
		lastRunSuccess.Set(1)
		lastRunItems.Set(float64(len(res.Names)))
		logger.Info().
			Str("output", cfg.FilePath).
			Int("pages", res.Pages).
			Int("items", len(res.Names)).
			Bool("truncated", res.Truncated).
			Dur("duration", time.Since(start)).
			Msg("Export complete")
	}

	if cfg.MetricsFile != "" {
		if werr := metrics.WriteTextfile(cfg.MetricsFile, opts.Gatherer); werr != nil {
			logger.Warn().Err(werr).Str("path", cfg.MetricsFile).Msg("Failed to write metrics file")
		}
	}

	return res, err
}

func run(ctx context.Context, cfg config.Config, opts Options, logger zerolog.Logger) (*Result, error) {
	logger.Info().
		Str("query", cfg.SearchStr).
		Str("output", cfg.FilePath).
		Int("per_page", cfg.PerPage).
		Int("limit", cfg.Limit).
		Msg("Starting export")

	clientCfg := client.DefaultConfig(cfg.SearchStr, cfg.Token)
	clientCfg.BaseURL = cfg.APIBaseURL
	clientCfg.UserAgent = cfg.UserAgent
	clientCfg.Timeout = cfg.Timeout
	clientCfg.CacheTTL = cfg.CacheTTL

	if cfg.RedisURL != "" {
		mgr, closeRedis := connectCache(ctx, cfg.RedisURL, logger)
		if mgr != nil {
			defer closeRedis()
			clientCfg.Cache = mgr
		}
	}

	c, err := client.New(clientCfg)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if opts.HTTPClient != nil {
		c.SetHTTPClient(opts.HTTPClient)
	}

	fetcher := pagination.NewFetcher[client.SearchResult](c, pagination.Config{
		PerPage:  cfg.PerPage,
		MaxPages: cfg.MaxPages,
	})

	results, err := collect(ctx, fetcher, cfg.Limit)
	if err != nil {
		return nil, err
	}

	names := client.FullNames(results)
	if err := output.WriteLines(cfg.FilePath, names); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}

	total, _ := fetcher.Total()
	return &Result{
		Names:     names,
		Pages:     fetcher.Page(),
		Total:     total,
		Truncated: fetcher.Truncated(),
		Cached:    clientCfg.Cache != nil,
	}, nil
}

// collect fetches all results, or only as many pages as the first limit
// results need when limit > 0.
func collect(ctx context.Context, f *pagination.Fetcher[client.SearchResult], limit int) ([]client.SearchResult, error) {
	if limit <= 0 {
		return f.FetchAll(ctx)
	}

	results := make([]client.SearchResult, 0, limit)
	for r, err := range f.All(ctx) {
		if err != nil {
			return nil, err
		}
		results = append(results, r)
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// connectCache opens the Redis page cache. An unreachable cache disables
// caching for the run rather than failing it.
func connectCache(ctx context.Context, redisURL string, logger zerolog.Logger) (*cache.Manager, func()) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("Invalid Redis URL, caching disabled")
		return nil, nil
	}

	rdb := redis.NewClient(opt)
	mgr := cache.NewManager(rdb)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := mgr.Ping(pingCtx); err != nil {
		logger.Warn().Err(err).Str("addr", opt.Addr).Msg("Redis unreachable, caching disabled")
		_ = rdb.Close()
		return nil, nil
	}

	logger.Debug().Str("addr", opt.Addr).Msg("Page cache enabled")
	return mgr, func() { _ = rdb.Close() }
}
