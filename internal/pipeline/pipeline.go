// Package pipeline orchestrates one end-to-end harvest run: discovery and
// search produce references, the pool fetches and extracts them, and the
// deduplicated lead batch lands in every configured sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jgourd/leadharvest/internal/discover"
	"github.com/jgourd/leadharvest/internal/extract"
	"github.com/jgourd/leadharvest/internal/harvest"
	"github.com/jgourd/leadharvest/internal/id/runid"
	"github.com/jgourd/leadharvest/internal/metrics"
	"github.com/jgourd/leadharvest/internal/pool"
	"github.com/jgourd/leadharvest/internal/progress"
	"github.com/jgourd/leadharvest/internal/search"
)

// Deps carries the pipeline's collaborators. Discoverer, Harvester,
// Archive, Publisher and Hub are optional; a nil source simply contributes
// no references.
type Deps struct {
	Discoverer *discover.Discoverer
	Harvester  *search.Harvester
	Fetcher    harvest.Fetcher
	Cascade    *extract.Cascade
	Archive    harvest.Archive
	Sinks      []harvest.LeadSink
	Publisher  harvest.Publisher
	Hub        *progress.Hub
	Clock      harvest.Clock
	Ledger     *harvest.CreditLedger
	Logger     *zap.Logger
}

// Config tunes a run.
type Config struct {
	Pool pool.Config
	// Topic is where the completion payload is published, when a publisher
	// is configured.
	Topic string
}

// Pipeline runs harvests. Safe to reuse across runs; each run gets a fresh
// id and a fresh worker pool.
type Pipeline struct {
	deps Deps
	cfg  Config
}

// New builds a Pipeline.
func New(deps Deps, cfg Config) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Pipeline{deps: deps, cfg: cfg}
}

// Run executes one harvest. Source failures degrade: a dead discovery or
// search source logs and contributes nothing. Sink write failures are
// joined into the returned error, but the summary is always valid.
func (p *Pipeline) Run(ctx context.Context) (harvest.Summary, error) {
	runID := runid.New()
	start := p.deps.Clock.Now()
	logger := p.deps.Logger.With(zap.String("run_id", runID.String()))

	p.emit(runID, progress.Event{Stage: progress.StageRunStart})
	logger.Info("harvest run starting")

	discovered := p.discoverReferences(ctx, runID, logger)
	searched := p.searchReferences(ctx, runID, logger)

	refs := unionOrdered(discovered, searched)
	logger.Info("reference set assembled",
		zap.Int("discovered", len(discovered)),
		zap.Int("searched", len(searched)),
		zap.Int("unique", len(refs)),
	)

	runner := pool.New(
		p.deps.Fetcher, p.deps.Cascade, p.deps.Archive, p.deps.Hub,
		p.deps.Clock, runID, p.cfg.Pool, logger,
	)
	outcomes := runner.Run(ctx, refs)

	dedupe := harvest.NewDeduplicator()
	var fetchedOK, fetchedFailed int
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			fetchedFailed++
			continue
		}
		fetchedOK++
		if outcome.Fact.Company == "" {
			continue
		}
		if dedupe.Add(outcome.Fact, p.deps.Clock.Now().UTC()) {
			p.emit(runID, progress.Event{Stage: progress.StageLead, URL: outcome.Fact.URL})
		}
	}

	records := dedupe.Records()
	metrics.AddLeads(len(records))

	var sinkErr error
	for _, sink := range p.deps.Sinks {
		if err := sink.Write(ctx, records); err != nil {
			sinkErr = errors.Join(sinkErr, fmt.Errorf("sink write: %w", err))
		}
	}

	summary := harvest.Summary{
		RunID:         runID.String(),
		Discovered:    len(discovered),
		Searched:      len(searched),
		Unique:        len(refs),
		FetchedOK:     fetchedOK,
		FetchedFailed: fetchedFailed,
		CreditsUsed:   p.creditsUsed(),
		Leads:         len(records),
		Elapsed:       p.deps.Clock.Now().Sub(start),
	}
	p.publishSummary(ctx, logger, summary)
	p.emit(runID, progress.Event{Stage: progress.StageRunDone, Count: summary.Leads})

	logger.Info("harvest run finished",
		zap.Int("leads", summary.Leads),
		zap.Int("fetched_ok", summary.FetchedOK),
		zap.Int("fetched_failed", summary.FetchedFailed),
		zap.Int("credits_used", summary.CreditsUsed),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary, sinkErr
}

func (p *Pipeline) discoverReferences(ctx context.Context, runID uuid.UUID, logger *zap.Logger) []string {
	if p.deps.Discoverer == nil {
		return nil
	}
	refs, err := p.deps.Discoverer.Discover(ctx)
	if err != nil {
		logger.Error("sitemap discovery failed, continuing without it", zap.Error(err))
		return nil
	}
	metrics.AddReferences("discovery", len(refs))
	p.emit(runID, progress.Event{Stage: progress.StageDiscoveryDone, Count: len(refs)})
	return refs
}

func (p *Pipeline) searchReferences(ctx context.Context, runID uuid.UUID, logger *zap.Logger) []string {
	if p.deps.Harvester == nil {
		return nil
	}
	refs, err := p.deps.Harvester.Run(ctx)
	if err != nil {
		logger.Error("search harvest failed, continuing without it", zap.Error(err))
		return nil
	}
	used := p.creditsUsed()
	metrics.AddReferences("search", len(refs))
	metrics.AddCredits(used)
	p.emit(runID, progress.Event{Stage: progress.StageSearchDone, Count: len(refs), Credits: used})
	return refs
}

func (p *Pipeline) publishSummary(ctx context.Context, logger *zap.Logger, summary harvest.Summary) {
	if p.deps.Publisher == nil {
		return
	}
	id, err := p.deps.Publisher.Publish(ctx, p.cfg.Topic, summary)
	if err != nil {
		logger.Warn("summary publish failed", zap.Error(err))
		return
	}
	logger.Debug("summary published", zap.String("message_id", id))
}

func (p *Pipeline) creditsUsed() int {
	if p.deps.Ledger == nil {
		return 0
	}
	return p.deps.Ledger.Used()
}

func (p *Pipeline) emit(runID uuid.UUID, evt progress.Event) {
	if p.deps.Hub == nil {
		return
	}
	evt.RunID = runID
	evt.TS = p.deps.Clock.Now().UTC()
	p.deps.Hub.Emit(evt)
}

// unionOrdered merges reference lists preserving first-seen order.
func unionOrdered(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, ref := range list {
			if _, dup := seen[ref]; dup {
				continue
			}
			seen[ref] = struct{}{}
			out = append(out, ref)
		}
	}
	return out
}
