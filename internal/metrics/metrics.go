package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful operations.
	OutcomeSuccess = "success"
	// OutcomeError labels failed operations (malformed input, missing dataset, storage issues).
	OutcomeError = "error"
	// OutcomeEmpty labels analyses that completed with no data.
	OutcomeEmpty = "empty"
)

var (
	extractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_zones",
			Name:      "extractions_total",
			Help:      "Total number of dataset extractions, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	extractionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mirador_zones",
			Name:      "extraction_seconds",
			Help:      "Extraction latency in seconds, ingest included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	datasetEvents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mirador_zones",
			Name:      "dataset_events",
			Help:      "Number of transition events in the active dataset.",
		},
	)

	datasetEntities = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mirador_zones",
			Name:      "dataset_entities",
			Help:      "Number of distinct entities in the active dataset.",
		},
	)

	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_zones",
			Name:      "analyses_total",
			Help:      "Analytics requests served, partitioned by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
)

// Register attaches mirador-zones collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		extractionsTotal,
		extractionDurationSeconds,
		datasetEvents,
		datasetEntities,
		analysesTotal,
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

// ObserveExtraction records an extraction duration and outcome label.
func ObserveExtraction(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	extractionsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	extractionDurationSeconds.Observe(duration.Seconds())
}

// SetDatasetSize publishes the size of the active dataset.
func SetDatasetSize(entities, events int) {
	datasetEntities.Set(float64(entities))
	datasetEvents.Set(float64(events))
}

// ObserveAnalysis counts an analytics request of the given kind.
func ObserveAnalysis(kind, outcome string) {
	switch outcome {
	case OutcomeError, OutcomeEmpty:
	default:
		outcome = OutcomeSuccess
	}
	analysesTotal.WithLabelValues(kind, outcome).Inc()
}
