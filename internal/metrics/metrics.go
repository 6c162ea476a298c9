package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels detections that produced a finding.
	OutcomeSuccess = "success"
	// OutcomeError labels detections that failed (data or dependency issues).
	OutcomeError = "error"
)

var (
	detectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "channelwatch",
			Name:      "detections_total",
			Help:      "Total number of detection requests handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	detectionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "channelwatch",
			Name:      "detection_seconds",
			Help:      "Detection latency in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 4, 5, 6, 8, 10},
		},
	)

	evidenceUnavailableTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "channelwatch",
			Name:      "evidence_unavailable_total",
			Help:      "Evidence sets that could not be retrieved, partitioned by category.",
		},
		[]string{"category"},
	)
)

// Register attaches channelwatch collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		detectionsTotal,
		detectionDurationSeconds,
		evidenceUnavailableTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveDetection records a detection duration and outcome label.
func ObserveDetection(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	detectionsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	detectionDurationSeconds.Observe(duration.Seconds())
}

// ObserveEvidenceUnavailable counts a category that degraded during correlation.
func ObserveEvidenceUnavailable(category string) {
	evidenceUnavailableTotal.WithLabelValues(category).Inc()
}
