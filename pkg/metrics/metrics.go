package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchSnapshot = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "relay_monitor",
		Name:      "fetch_snapshot",
		Help:      "Histogram for time to fetch the relay documents",
		Buckets:   prometheus.DefBuckets,
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "relay_monitor",
		Name:      "stage_duration_seconds",
		Help:      "Histogram for time spent in each analysis stage",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	RelaysNormalized = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay_monitor",
		Name:      "relays_normalized",
		Help:      "Relays accepted by the normalizer in the last run",
	})

	RelaysRejected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay_monitor",
		Name:      "relays_rejected",
		Help:      "Relays rejected by the normalizer in the last run",
	})

	OperatorsResolved = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay_monitor",
		Name:      "operators_resolved",
		Help:      "Operators resolved in the last run",
	})

	Runs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay_monitor",
		Name:      "runs_total",
		Help:      "Completed runs by outcome",
	}, []string{"outcome"})

	LastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay_monitor",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last published report",
	})
)

// Stage names.
const (
	StageNormalize    = "normalize"
	StageResolve      = "resolve"
	StageRarity       = "rarity"
	StageReliability  = "reliability"
	StageIntelligence = "intelligence"
	StageScore        = "score"
	StagePublish      = "publish"
)

// Run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)
