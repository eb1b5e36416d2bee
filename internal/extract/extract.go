// Package extract pulls company names out of fetched listing pages using a
// cascade of increasingly permissive extractors.
package extract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/jgourd/leadharvest/internal/harvest"
)

// snippetLimit bounds how much of a document the pattern extractors scan.
// Listing pages put the signal in the head and the first screen of markup;
// scanning megabytes of trailing script bundles only invites false matches.
const snippetLimit = 20000

// Match is one extractor's answer.
type Match struct {
	Value string
	// Evidence is the raw text the extractor matched, before cleaning.
	Evidence string
	// Source names the extractor that produced the value.
	Source string
}

// Extractor attempts one strategy against a document snippet.
type Extractor interface {
	Name() string
	Extract(body []byte) (Match, bool)
}

// regexExtractor matches a single capture-group pattern against the snippet.
type regexExtractor struct {
	name    string
	pattern *regexp.Regexp
}

func (e *regexExtractor) Name() string { return e.name }

func (e *regexExtractor) Extract(body []byte) (Match, bool) {
	m := e.pattern.FindSubmatch(body)
	if m == nil {
		return Match{}, false
	}
	value := cleanValue(string(m[1]))
	if value == "" {
		return Match{}, false
	}
	return Match{Value: value, Evidence: strings.TrimSpace(string(m[0])), Source: e.name}, true
}

// NewStructuredOrg matches the hiring organization declared in embedded
// JSON-LD. This is the most trustworthy source: it is machine-written
// metadata, not display copy.
func NewStructuredOrg() Extractor {
	return &regexExtractor{
		name:    "structured_org",
		pattern: regexp.MustCompile(`(?is)"hiringOrganization"\s*:\s*\{[^}]*?"name"\s*:\s*"([^"]+)"`),
	}
}

// NewTitlePipe matches the "<company> | Apply Now" title convention.
func NewTitlePipe() Extractor {
	return &regexExtractor{
		name:    "title_pipe",
		pattern: regexp.MustCompile(`(?i)<title>\s*(.+?)\s*\|\s*Apply\s*Now`),
	}
}

// NewApplyAt matches "Apply for <role> at <company>" display copy.
func NewApplyAt() Extractor {
	return &regexExtractor{
		name:    "apply_at",
		pattern: regexp.MustCompile(`(?i)Apply\s+for\s+[^<>\n]+?\s+at\s+([A-Z][\w&.,'’ -]{1,80}?)\s*[<.!\n]`),
	}
}

// headingFallback takes the first h1 when nothing better matched.
type headingFallback struct{}

// NewHeadingFallback builds the last-resort extractor.
func NewHeadingFallback() Extractor { return headingFallback{} }

func (headingFallback) Name() string { return "heading" }

func (headingFallback) Extract(body []byte) (Match, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Match{}, false
	}
	raw := doc.Find("h1").First().Text()
	value := cleanValue(raw)
	if value == "" {
		return Match{}, false
	}
	return Match{Value: value, Evidence: strings.TrimSpace(raw), Source: "heading"}, true
}

// Cascade runs extractors in declaration order and keeps the first match.
type Cascade struct {
	extractors []Extractor
	logger     *zap.Logger
}

// NewCascade builds a cascade. With no extractors given it uses the default
// chain: structured metadata, then title convention, then display copy,
// then first heading.
func NewCascade(logger *zap.Logger, extractors ...Extractor) *Cascade {
	if len(extractors) == 0 {
		extractors = []Extractor{
			NewStructuredOrg(),
			NewTitlePipe(),
			NewApplyAt(),
			NewHeadingFallback(),
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cascade{extractors: extractors, logger: logger}
}

// Extract runs the cascade. The returned fact has an empty Company when no
// extractor matched; callers decide whether that is a failure.
func (c *Cascade) Extract(url string, body []byte) harvest.ExtractedFact {
	snippet := body
	if len(snippet) > snippetLimit {
		snippet = snippet[:snippetLimit]
	}
	for _, e := range c.extractors {
		if match, ok := e.Extract(snippet); ok {
			c.logger.Debug("extractor matched",
				zap.String("url", url),
				zap.String("extractor", match.Source),
			)
			return harvest.ExtractedFact{URL: url, Company: match.Value, Evidence: match.Evidence}
		}
	}
	return harvest.ExtractedFact{URL: url}
}

// cleanValue collapses whitespace and trims decoration around an extracted
// name.
func cleanValue(v string) string {
	v = strings.Join(strings.Fields(v), " ")
	return strings.Trim(v, " -|–")
}
