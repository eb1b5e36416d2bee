// Package discover finds sitemap index documents and expands them into leaf
// references, cascading through discovery strategies until one produces
// candidates.
package discover

import (
	"context"
	"fmt"
	"strings"

	"github.com/jgourd/leadharvest/internal/harvest"
)

// Strategy attempts discovery and returns candidate index references, or an
// empty slice when the source yields nothing.
type Strategy interface {
	Name() string
	Candidates(ctx context.Context) ([]string, error)
}

// DefaultIndexPaths are the conventional sitemap locations probed when
// nothing is declared in robots.txt.
var DefaultIndexPaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap-index.xml",
	"/wp-sitemap.xml",
	"/sitemap/sitemap.xml",
	"/sitemap1.xml",
}

// RobotsStrategy reads Sitemap directives from the robots manifest.
type RobotsStrategy struct {
	fetcher harvest.Fetcher
	baseURL string
}

// NewRobotsStrategy builds the declared-index strategy for baseURL.
func NewRobotsStrategy(fetcher harvest.Fetcher, baseURL string) *RobotsStrategy {
	return &RobotsStrategy{fetcher: fetcher, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Name implements Strategy.
func (s *RobotsStrategy) Name() string { return "declared" }

// Candidates fetches robots.txt and collects its Sitemap lines. Relative
// locations are resolved against the base URL.
func (s *RobotsStrategy) Candidates(ctx context.Context) ([]string, error) {
	doc, err := s.fetcher.Fetch(ctx, harvest.FetchRequest{URL: s.baseURL + "/robots.txt"})
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}

	var out []string
	for _, line := range strings.Split(string(doc.Body), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(strings.ToLower(line), "sitemap:") {
			continue
		}
		loc := strings.TrimSpace(line[len("sitemap:"):])
		if loc == "" {
			continue
		}
		if !strings.HasPrefix(loc, "http") {
			loc = s.baseURL + "/" + strings.TrimPrefix(loc, "/")
		}
		out = append(out, loc)
	}
	return out, nil
}

// ConventionalStrategy probes a fixed list of canonical index paths and
// keeps the ones that answer with something sitemap-shaped.
type ConventionalStrategy struct {
	fetcher harvest.Fetcher
	baseURL string
	paths   []string
}

// NewConventionalStrategy builds the canonical-path strategy.
func NewConventionalStrategy(fetcher harvest.Fetcher, baseURL string, paths []string) *ConventionalStrategy {
	if len(paths) == 0 {
		paths = DefaultIndexPaths
	}
	return &ConventionalStrategy{
		fetcher: fetcher,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		paths:   paths,
	}
}

// Name implements Strategy.
func (s *ConventionalStrategy) Name() string { return "conventional" }

// Candidates probes each path; fetch failures just exclude that path.
func (s *ConventionalStrategy) Candidates(ctx context.Context) ([]string, error) {
	var out []string
	for _, p := range s.paths {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		ref := s.baseURL + p
		doc, err := s.fetcher.Fetch(ctx, harvest.FetchRequest{URL: ref, ExpectXML: true})
		if err != nil {
			continue
		}
		if looksLikeSitemap(doc.Body) {
			out = append(out, ref)
		}
	}
	return out, nil
}

// SynthesizedStrategy fabricates date-parameterized index paths going
// backward from today. It never fails and never returns an empty set, which
// guarantees the discoverer terminates with candidates even when every
// earlier strategy is blocked.
type SynthesizedStrategy struct {
	baseURL string
	window  int
	clock   harvest.Clock
}

// NewSynthesizedStrategy builds the fallback strategy covering window days.
func NewSynthesizedStrategy(baseURL string, window int, clock harvest.Clock) *SynthesizedStrategy {
	if window <= 0 {
		window = 30
	}
	return &SynthesizedStrategy{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		window:  window,
		clock:   clock,
	}
}

// Name implements Strategy.
func (s *SynthesizedStrategy) Name() string { return "synthesized" }

// Candidates returns one daily sitemap path per day in the window.
func (s *SynthesizedStrategy) Candidates(_ context.Context) ([]string, error) {
	today := s.clock.Now()
	out := make([]string, 0, s.window)
	for i := 0; i < s.window; i++ {
		day := today.AddDate(0, 0, -i).Format("2006-01-02")
		out = append(out, fmt.Sprintf("%s/sitemap_%s.xml", s.baseURL, day))
	}
	return out, nil
}

func looksLikeSitemap(body []byte) bool {
	head := strings.ToLower(string(body))
	return strings.Contains(head, "<urlset") ||
		strings.Contains(head, "<sitemapindex") ||
		strings.Contains(head, "<?xml")
}

