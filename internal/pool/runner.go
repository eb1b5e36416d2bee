// Package pool fetches and extracts references under a fixed concurrency
// bound.
package pool

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jgourd/leadharvest/internal/extract"
	"github.com/jgourd/leadharvest/internal/harvest"
	"github.com/jgourd/leadharvest/internal/hash/sha256"
	"github.com/jgourd/leadharvest/internal/metrics"
	"github.com/jgourd/leadharvest/internal/progress"
)

const defaultWorkers = 25

// Config tunes the runner.
type Config struct {
	// Workers bounds how many fetches run at once.
	Workers int
	// RequireMarker, when set, rejects pages that do not contain the marker
	// (case-insensitive). Guards against serving mirrors and parked pages
	// that answer 200 with unrelated content.
	RequireMarker string
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	return c
}

// Runner drains a reference list through a fixed-size worker pool. Each
// reference is fetched once, optionally archived, sanity-checked, and run
// through the extraction cascade. Failures are recorded per reference and
// never stop the pool.
type Runner struct {
	fetcher harvest.Fetcher
	cascade *extract.Cascade
	archive harvest.Archive
	hub     *progress.Hub
	clock   harvest.Clock
	runID   uuid.UUID
	cfg     Config
	logger  *zap.Logger

	done  atomic.Int64
	total atomic.Int64
}

// New builds a Runner. archive and hub may be nil.
func New(
	fetcher harvest.Fetcher,
	cascade *extract.Cascade,
	archive harvest.Archive,
	hub *progress.Hub,
	clock harvest.Clock,
	runID uuid.UUID,
	cfg Config,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		fetcher: fetcher,
		cascade: cascade,
		archive: archive,
		hub:     hub,
		clock:   clock,
		runID:   runID,
		cfg:     cfg.withDefaults(),
		logger:  logger,
	}
}

// Progress reports how many references have finished out of the total.
func (r *Runner) Progress() (done, total int64) {
	return r.done.Load(), r.total.Load()
}

// Run processes refs and returns one outcome per reference. Order of the
// returned slice is completion order, not input order. Cancelling the
// context stops feeding new work; in-flight fetches finish on their own
// deadline.
func (r *Runner) Run(ctx context.Context, refs []string) []harvest.FetchOutcome {
	r.total.Store(int64(len(refs)))
	r.done.Store(0)
	if len(refs) == 0 {
		return nil
	}

	work := make(chan string)
	results := make(chan harvest.FetchOutcome, len(refs))

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ref := range work {
				results <- r.process(ctx, ref)
				r.done.Add(1)
			}
		}()
	}

feed:
	for _, ref := range refs {
		select {
		case work <- ref:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()
	close(results)

	out := make([]harvest.FetchOutcome, 0, len(refs))
	for outcome := range results {
		out = append(out, outcome)
	}
	return out
}

func (r *Runner) process(ctx context.Context, ref string) harvest.FetchOutcome {
	r.emit(progress.Event{Stage: progress.StageFetchStart, URL: ref})
	metrics.FetchStarted()
	defer metrics.FetchFinished()

	doc, err := r.fetcher.Fetch(ctx, harvest.FetchRequest{URL: ref})
	if err != nil {
		metrics.RecordFetch("fail")
		r.emit(progress.Event{Stage: progress.StageFetchFail, URL: ref, Note: err.Error()})
		r.logger.Warn("reference fetch failed", zap.String("url", ref), zap.Error(err))
		return harvest.FetchOutcome{URL: ref, Err: err}
	}

	if r.archive != nil {
		name := r.runID.String() + "/" + sha256.Short([]byte(ref)) + ".html"
		if saveErr := r.archive.Save(ctx, name, doc.Body); saveErr != nil {
			r.logger.Warn("raw body archive failed", zap.String("url", ref), zap.Error(saveErr))
		}
	}

	if r.cfg.RequireMarker != "" &&
		!bytes.Contains(bytes.ToLower(doc.Body), bytes.ToLower([]byte(r.cfg.RequireMarker))) {
		err := harvest.Malformed(errors.New("expected page marker missing"))
		metrics.RecordFetch("fail")
		r.emit(progress.Event{Stage: progress.StageFetchFail, URL: ref, Note: err.Error()})
		return harvest.FetchOutcome{URL: ref, Err: err}
	}

	fact := r.cascade.Extract(ref, doc.Body)
	metrics.RecordFetch("ok")
	r.emit(progress.Event{Stage: progress.StageFetchOK, URL: ref})
	return harvest.FetchOutcome{URL: ref, Fact: fact}
}

func (r *Runner) emit(evt progress.Event) {
	if r.hub == nil {
		return
	}
	evt.RunID = r.runID
	evt.TS = r.clock.Now().UTC()
	r.hub.Emit(evt)
}
