package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExtractedValues counts identifiers extracted, labeled by rule name.
	ExtractedValues = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pushgate",
		Name:      "extracted_values_total",
		Help:      "Identifier values extracted from alert payloads per rule.",
	}, []string{"rule"})

	// DispatchResults counts per-channel dispatch outcomes.
	DispatchResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pushgate",
		Name:      "dispatch_results_total",
		Help:      "Dispatch attempt outcomes (success, error, skipped).",
	}, []string{"status"})

	// DispatchPasses counts full dispatch passes over incoming payloads.
	DispatchPasses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pushgate",
		Name:      "dispatch_passes_total",
		Help:      "Completed dispatch passes.",
	})

	// SendDuration observes outbound webhook latency per vendor.
	SendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pushgate",
		Name:      "send_duration_seconds",
		Help:      "Latency of outbound webhook sends.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"robot_type"})
)
