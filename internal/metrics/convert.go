// Package metrics exposes the Prometheus collectors shared by the API and worker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "webpdf"

var (
	conversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "convert",
			Name:      "conversions_total",
			Help:      "Conversions by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	conversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "convert",
			Name:      "duration_seconds",
			Help:      "Conversion time in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"kind"},
	)

	pagesPerDocument = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "convert",
			Name:      "pages_per_document",
			Help:      "Pages in each produced PDF.",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50},
		},
		[]string{"kind"},
	)

	capturedHeight = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "convert",
			Name:      "captured_height_pixels",
			Help:      "Measured content height of captured pages.",
			Buckets:   prometheus.ExponentialBuckets(1000, 2, 8),
		},
	)

	clippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "convert",
			Name:      "clipped_total",
			Help:      "Captures clipped to the maximum content height.",
		},
	)

	pageCountMismatchTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "convert",
			Name:      "page_count_mismatch_total",
			Help:      "Tiled PDFs whose page count differs from the computed layout.",
		},
	)

	cacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "PDF cache lookups by result.",
		},
		[]string{"result"},
	)
)

// ObserveConversion counts one finished conversion.
func ObserveConversion(kind string, err error, elapsed time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	conversionsTotal.WithLabelValues(kind, outcome).Inc()
	conversionDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func ObservePages(kind string, pages int) {
	if pages > 0 {
		pagesPerDocument.WithLabelValues(kind).Observe(float64(pages))
	}
}

// ObserveCapture records a measured content height and whether it was clipped.
func ObserveCapture(contentHeight int, clipped bool) {
	capturedHeight.Observe(float64(contentHeight))
	if clipped {
		clippedTotal.Inc()
	}
}

func PageCountMismatch() {
	pageCountMismatchTotal.Inc()
}

// CacheResult counts a cache lookup as hit, miss or error.
func CacheResult(result string) {
	cacheRequestsTotal.WithLabelValues(result).Inc()
}
