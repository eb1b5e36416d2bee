// Package sink provides destinations for finished lead batches.
package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jgourd/leadharvest/internal/harvest"
)

var csvHeader = []string{"company_name", "source_url", "first_seen_at"}

// CSVSink writes the lead batch to a single CSV file, replacing any
// previous run's output.
type CSVSink struct {
	path string
}

// NewCSVSink builds a sink targeting path. Parent directories are created
// on first write.
func NewCSVSink(path string) (*CSVSink, error) {
	if path == "" {
		return nil, fmt.Errorf("csv path is required")
	}
	return &CSVSink{path: path}, nil
}

// Write renders the batch. The header row is always present, even for an
// empty batch, so downstream loaders see a stable shape.
func (s *CSVSink) Write(ctx context.Context, records []harvest.LeadRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create csv output: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		row := []string{r.Company, r.URL, r.FirstSeenAt.UTC().Format(time.RFC3339)}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
