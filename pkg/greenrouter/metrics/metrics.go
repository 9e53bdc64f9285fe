// Package metrics holds the Prometheus instrumentation of the region router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "green_router"
)

var (
	// RegionGreenScore is the latest green score (gCO2eq/kWh * PUE) per region
	RegionGreenScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "region_green_score",
			Help:      "Latest green score (carbon intensity times PUE) for a region",
		},
		[]string{"region"},
	)

	// RegionLatency is the latest known latency sample per region
	RegionLatency = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "region_latency_ms",
			Help:      "Latest known latency sample for a region in milliseconds",
		},
		[]string{"region"},
	)

	// Decisions counts region selections
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Number of region selections by task mode and selected region",
		},
		[]string{"mode", "region"}, // region is "none" when there were no candidates
	)

	// CarbonSavings is the savings percentage of the latest decision per mode
	CarbonSavings = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "carbon_savings_percent",
			Help:      "Green score improvement of the selected region over the worst candidate",
		},
		[]string{"mode"},
	)

	// ProbeDuration observes successful latency samples
	ProbeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_ms",
			Help:      "Measured round trip time of latency probes in milliseconds",
			Buckets:   prometheus.ExponentialBuckets(5, 2, 10),
		},
	)

	// ProbeFailures counts probes that produced no sample
	ProbeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_failures_total",
			Help:      "Number of latency probes that failed and reported unknown latency",
		},
		[]string{"region"},
	)

	// FetchErrors counts failed region measurement fetches
	FetchErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Number of region measurement fetches that failed after retries",
		},
	)
)

func init() {
	prometheus.MustRegister(RegionGreenScore)
	prometheus.MustRegister(RegionLatency)
	prometheus.MustRegister(Decisions)
	prometheus.MustRegister(CarbonSavings)
	prometheus.MustRegister(ProbeDuration)
	prometheus.MustRegister(ProbeFailures)
	prometheus.MustRegister(FetchErrors)
}
