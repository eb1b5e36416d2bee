package sinks

import (
	"context"

	"github.com/jgourd/leadharvest/internal/metrics"
	"github.com/jgourd/leadharvest/internal/progress"
)

// PrometheusSink translates progress events into Prometheus collectors.
type PrometheusSink struct{}

// NewPrometheusSink initializes the collectors and returns the sink.
func NewPrometheusSink() *PrometheusSink {
	metrics.Init()
	return &PrometheusSink{}
}

// Consume applies each event to the matching collector.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageDiscoveryDone:
			metrics.AddReferences("sitemap", evt.Count)
		case progress.StageSearchDone:
			metrics.AddReferences("search", evt.Count)
			metrics.AddCredits(evt.Credits)
		case progress.StageFetchStart:
			metrics.FetchStarted()
		case progress.StageFetchOK:
			metrics.FetchFinished()
			metrics.RecordFetch("ok")
		case progress.StageFetchFail:
			metrics.FetchFinished()
			metrics.RecordFetch("failed")
		case progress.StageLead:
			metrics.AddLeads(1)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
