// Package search harvests candidate references from paginated, credit
// metered search sources.
package search

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jgourd/leadharvest/internal/harvest"
)

const (
	defaultPageCap = 5
	defaultDelay   = 2 * time.Second
)

// Config tunes the harvester.
type Config struct {
	// Queries are issued in order against the search source.
	Queries []string
	// PageCap bounds how many pages a single query may consume.
	PageCap int
	// Delay is the politeness interval between issued calls.
	Delay time.Duration
}

func (c Config) withDefaults() Config {
	if c.PageCap <= 0 {
		c.PageCap = defaultPageCap
	}
	if c.Delay <= 0 {
		c.Delay = defaultDelay
	}
	return c
}

// Harvester walks each query page by page, spending from a shared credit
// ledger. The ceiling is checked before every issued call: once the ledger
// is exhausted the whole source stops, mid-query or not. An empty result
// page still costs its credits but ends that query.
type Harvester struct {
	client  harvest.SearchClient
	ledger  *harvest.CreditLedger
	limiter *rate.Limiter
	cfg     Config
	logger  *zap.Logger
}

// NewHarvester builds a harvester over the given client and ledger.
func NewHarvester(client harvest.SearchClient, ledger *harvest.CreditLedger, cfg Config, logger *zap.Logger) *Harvester {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Harvester{
		client:  client,
		ledger:  ledger,
		limiter: rate.NewLimiter(rate.Every(cfg.Delay), 1),
		cfg:     cfg,
		logger:  logger,
	}
}

// Run issues the configured queries and returns the deduplicated links in
// first-seen order. Search failures degrade rather than abort: an auth
// failure ends the whole source, any other failure ends only the query it
// hit. Collected links survive either way.
func (h *Harvester) Run(ctx context.Context) ([]string, error) {
	if h.client == nil {
		h.logger.Warn("search source not configured, skipping harvest")
		return nil, nil
	}

	seen := make(map[string]struct{})
	var out []string

queries:
	for _, query := range h.cfg.Queries {
		for page := 1; page <= h.cfg.PageCap; page++ {
			if h.ledger.Exhausted() {
				h.logger.Info("credit ceiling reached, stopping search harvest",
					zap.Int("used", h.ledger.Used()),
					zap.Int("ceiling", h.ledger.Ceiling()),
				)
				break queries
			}
			if err := h.limiter.Wait(ctx); err != nil {
				return out, err
			}

			result, err := h.client.Search(ctx, query, page)
			if err != nil {
				if harvest.KindOf(err) == harvest.KindAuth {
					h.logger.Error("search source rejected credentials, abandoning harvest",
						zap.String("query", query), zap.Error(err))
					break queries
				}
				h.logger.Warn("search query failed, moving on",
					zap.String("query", query), zap.Int("page", page), zap.Error(err))
				continue queries
			}

			cost := result.Credits
			if cost <= 0 {
				cost = 1
			}
			h.ledger.Spend(cost)

			if len(result.Links) == 0 {
				h.logger.Debug("query ran dry",
					zap.String("query", query), zap.Int("page", page))
				continue queries
			}
			for _, link := range result.Links {
				if _, dup := seen[link]; dup {
					continue
				}
				seen[link] = struct{}{}
				out = append(out, link)
			}
		}
	}

	h.logger.Info("search harvest complete",
		zap.Int("links", len(out)),
		zap.Int("credits_used", h.ledger.Used()),
	)
	return out, nil
}
