// Package harvest defines core types shared across the lead pipeline.
package harvest

import (
	"sort"
	"strings"
	"time"
)

// FetchRequest captures everything needed to retrieve one reference.
type FetchRequest struct {
	URL string
	// ExpectXML enables the challenge-page sanity check: an HTML body where
	// a sitemap was requested is treated as blocked, not as content.
	ExpectXML bool
}

// Document is the result of a successful fetch.
type Document struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
	// Mirrored is true when the body came through the fallback transport.
	Mirrored bool
}

// SearchPage is one page of results from a paginated search source.
type SearchPage struct {
	Query string
	Page  int
	Links []string
	// Credits is the metered cost of the call, independent of result count.
	Credits int
}

// ExtractedFact is the structured value pulled from a fetched document.
// Company is empty when no extractor matched. Evidence holds the raw
// document snippet the company name was pulled from.
type ExtractedFact struct {
	URL      string
	Company  string
	Evidence string
}

// FetchOutcome pairs a reference with either an extracted fact or the
// terminal error that kept it from producing one.
type FetchOutcome struct {
	URL  string
	Fact ExtractedFact
	Err  error
}

// LeadRecord is the pipeline's externally visible output unit.
type LeadRecord struct {
	Company     string    `json:"company_name"`
	URL         string    `json:"source_url"`
	FirstSeenAt time.Time `json:"first_seen_at"`
}

// Key returns the normalized identity used for deduplication and ordering.
func (r LeadRecord) Key() string {
	return strings.ToLower(strings.TrimSpace(r.Company)) + "|" + r.URL
}

// SortRecords orders records by identity key for deterministic output.
func SortRecords(records []LeadRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Key() < records[j].Key()
	})
}

// Summary reports what a pipeline run accomplished.
type Summary struct {
	RunID         string        `json:"run_id"`
	Discovered    int           `json:"discovered"`
	Searched      int           `json:"searched"`
	Unique        int           `json:"unique_references"`
	FetchedOK     int           `json:"fetched_ok"`
	FetchedFailed int           `json:"fetched_failed"`
	CreditsUsed   int           `json:"credits_used"`
	Leads         int           `json:"leads"`
	Elapsed       time.Duration `json:"elapsed"`
}
