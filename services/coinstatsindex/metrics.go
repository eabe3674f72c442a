package coinstatsindex

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusIndexApply      prometheus.Histogram
	prometheusIndexRewind     prometheus.Histogram
	prometheusIndexLookup     prometheus.Histogram
	prometheusIndexBestHeight prometheus.Gauge
	prometheusIndexTxOutputs  prometheus.Gauge
)

var metricsBucketsMilliSeconds = []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

var prometheusMetricsInitialized = false

func initPrometheusMetrics() {
	if prometheusMetricsInitialized {
		return
	}

	prometheusIndexApply = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "coinstatsindex",
			Name:      "apply_duration_millis",
			Help:      "Duration of block apply operations",
			Buckets:   metricsBucketsMilliSeconds,
		},
	)

	prometheusIndexRewind = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "coinstatsindex",
			Name:      "rewind_duration_millis",
			Help:      "Duration of reorg rewind operations",
			Buckets:   metricsBucketsMilliSeconds,
		},
	)

	prometheusIndexLookup = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "coinstatsindex",
			Name:      "lookup_duration_millis",
			Help:      "Duration of snapshot lookups",
			Buckets:   metricsBucketsMilliSeconds,
		},
	)

	prometheusIndexBestHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "coinstatsindex",
			Name:      "best_height",
			Help:      "Height the committed index state corresponds to",
		},
	)

	prometheusIndexTxOutputs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "coinstatsindex",
			Name:      "tx_outputs",
			Help:      "Number of unspent outputs currently represented",
		},
	)

	prometheusMetricsInitialized = true
}
