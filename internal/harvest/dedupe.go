package harvest

import (
	"sync"
	"time"
)

// Deduplicator folds extracted facts into a canonical lead set keyed by
// normalized company value plus reference. Insertion is idempotent.
type Deduplicator struct {
	mu      sync.Mutex
	records map[string]LeadRecord
}

// NewDeduplicator builds an empty set.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{records: make(map[string]LeadRecord)}
}

// Add inserts a lead built from fact, stamping firstSeen on first sight.
// It returns true when the record was new.
func (d *Deduplicator) Add(fact ExtractedFact, firstSeen time.Time) bool {
	record := LeadRecord{
		Company:     fact.Company,
		URL:         fact.URL,
		FirstSeenAt: firstSeen,
	}
	key := record.Key()

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.records[key]; ok {
		return false
	}
	d.records[key] = record
	return true
}

// Len returns the current number of unique records.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.records)
}

// Records returns the members sorted by identity key so output is
// deterministic given the same inputs.
func (d *Deduplicator) Records() []LeadRecord {
	d.mu.Lock()
	out := make([]LeadRecord, 0, len(d.records))
	for _, r := range d.records {
		out = append(out, r)
	}
	d.mu.Unlock()

	SortRecords(out)
	return out
}
