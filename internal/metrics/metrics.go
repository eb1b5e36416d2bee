// Package metrics exposes Prometheus collectors for the harvest pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	harvestReferencesTotal *prometheus.CounterVec
	harvestFetchesTotal    *prometheus.CounterVec
	harvestInFlightFetches prometheus.Gauge
	harvestCreditsUsed     prometheus.Counter
	harvestLeadsTotal      prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		harvestReferencesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_references_total",
				Help: "Total references produced, labeled by source (sitemap, search).",
			},
			[]string{"source"},
		)

		harvestFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_fetches_total",
				Help: "Total page fetches, labeled by outcome (ok, failed).",
			},
			[]string{"outcome"},
		)

		harvestInFlightFetches = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvest_in_flight_fetches",
				Help: "Number of fetches currently in flight.",
			},
		)

		harvestCreditsUsed = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvest_search_credits_used_total",
				Help: "Metered search API credits consumed.",
			},
		)

		harvestLeadsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvest_leads_total",
				Help: "Unique lead records produced.",
			},
		)
	})
}

// AddReferences records references contributed by a source.
func AddReferences(source string, n int) {
	if harvestReferencesTotal == nil || n <= 0 {
		return
	}
	harvestReferencesTotal.WithLabelValues(source).Add(float64(n))
}

// RecordFetch counts one completed fetch by outcome.
func RecordFetch(outcome string) {
	if harvestFetchesTotal == nil {
		return
	}
	harvestFetchesTotal.WithLabelValues(outcome).Inc()
}

// FetchStarted increments the in-flight gauge.
func FetchStarted() {
	if harvestInFlightFetches != nil {
		harvestInFlightFetches.Inc()
	}
}

// FetchFinished decrements the in-flight gauge.
func FetchFinished() {
	if harvestInFlightFetches != nil {
		harvestInFlightFetches.Dec()
	}
}

// AddCredits records metered search spend.
func AddCredits(n int) {
	if harvestCreditsUsed == nil || n <= 0 {
		return
	}
	harvestCreditsUsed.Add(float64(n))
}

// AddLeads records produced lead records.
func AddLeads(n int) {
	if harvestLeadsTotal == nil || n <= 0 {
		return
	}
	harvestLeadsTotal.Add(float64(n))
}
