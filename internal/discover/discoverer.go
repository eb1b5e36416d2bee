package discover

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jgourd/leadharvest/internal/harvest"
)

const defaultMaxDocuments = 250

// Config tunes the discoverer.
type Config struct {
	// PathFilters keeps only leaf references whose path contains one of
	// these segments. Empty means keep everything.
	PathFilters []string
	// MaxDocuments caps how many index documents one run may expand.
	MaxDocuments int
}

// Discoverer cascades through strategies to find index documents, then
// expands them recursively into a leaf reference set. Index graphs may
// contain cycles; the visited set guarantees each document is expanded at
// most once.
type Discoverer struct {
	fetcher    harvest.Fetcher
	strategies []Strategy
	cfg        Config
	logger     *zap.Logger
}

// New builds a Discoverer over the given strategy cascade.
func New(fetcher harvest.Fetcher, strategies []Strategy, cfg Config, logger *zap.Logger) *Discoverer {
	if cfg.MaxDocuments <= 0 {
		cfg.MaxDocuments = defaultMaxDocuments
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{fetcher: fetcher, strategies: strategies, cfg: cfg, logger: logger}
}

// discoveryState accumulates leaves and gates index expansion so runs
// terminate even when index documents cross-reference each other.
type discoveryState struct {
	visited map[string]struct{}
	leaves  map[string]struct{}
}

// Discover runs the cascade and returns the sorted leaf reference set.
// Strategies are attempted in order; the first to produce any candidate
// suppresses the rest, even if some candidates later fail to fetch.
func (d *Discoverer) Discover(ctx context.Context) ([]string, error) {
	candidates, err := d.candidates(ctx)
	if err != nil {
		return nil, err
	}

	st := &discoveryState{
		visited: make(map[string]struct{}),
		leaves:  make(map[string]struct{}),
	}
	for _, c := range candidates {
		d.expand(ctx, c, st)
	}

	out := make([]string, 0, len(st.leaves))
	for leaf := range st.leaves {
		if d.keep(leaf) {
			out = append(out, leaf)
		}
	}
	sort.Strings(out)

	d.logger.Info("sitemap discovery complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("documents_expanded", len(st.visited)),
		zap.Int("leaves", len(out)),
	)
	return out, nil
}

func (d *Discoverer) candidates(ctx context.Context) ([]string, error) {
	for _, strategy := range d.strategies {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		refs, err := strategy.Candidates(ctx)
		if err != nil {
			d.logger.Warn("discovery strategy failed",
				zap.String("strategy", strategy.Name()),
				zap.Error(err),
			)
			continue
		}
		if len(refs) > 0 {
			d.logger.Info("discovery strategy produced candidates",
				zap.String("strategy", strategy.Name()),
				zap.Int("count", len(refs)),
			)
			return dedupeOrdered(refs), nil
		}
	}
	return nil, nil
}

func (d *Discoverer) expand(ctx context.Context, ref string, st *discoveryState) {
	if ctx.Err() != nil {
		return
	}
	if _, seen := st.visited[ref]; seen {
		return
	}
	if len(st.visited) >= d.cfg.MaxDocuments {
		d.logger.Warn("index expansion cap reached", zap.Int("cap", d.cfg.MaxDocuments))
		return
	}
	st.visited[ref] = struct{}{}

	doc, err := d.fetcher.Fetch(ctx, harvest.FetchRequest{URL: ref, ExpectXML: true})
	if err != nil {
		d.logger.Debug("index document unavailable", zap.String("url", ref), zap.Error(err))
		return
	}

	locs, isIndex, kindKnown := parseLocations(doc.Body)
	for _, loc := range locs {
		if isIndex || (!kindKnown && isNestedIndex(loc)) {
			d.expand(ctx, loc, st)
			continue
		}
		st.leaves[loc] = struct{}{}
	}
}

func (d *Discoverer) keep(leaf string) bool {
	if len(d.cfg.PathFilters) == 0 {
		return true
	}
	for _, f := range d.cfg.PathFilters {
		if strings.Contains(leaf, f) {
			return true
		}
	}
	return false
}

func dedupeOrdered(refs []string) []string {
	seen := make(map[string]struct{}, len(refs))
	out := refs[:0]
	for _, r := range refs {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
