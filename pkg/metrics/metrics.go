package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	spinnaker = "spinnaker"

	// Storage metrics
	storageRequestDuration = "storage_request_duration_milliseconds"

	// Validation metrics
	validationJobsTotal = "validation_jobs_total"
	validationsTotal    = "validations_total"

	// Events metrics
	eventsTotal = "events_total"

	// Labels
	opLabel      = "op"
	outcomeLabel = "outcome"
	resultLabel  = "result"
	typeLabel    = "type"
)

// Storage hops.
const (
	StorageOpResolve  = "resolve"
	StorageOpDownload = "download"
	StorageOpRange    = "range"
)

// Outcomes of a storage hop.
const (
	OutcomeSuccess   = "success"
	OutcomeTransport = "transport"
	OutcomeShape     = "shape"
	OutcomeDecode    = "decode"
)

// Outcomes of a validation job, from enqueue to commit.
const (
	JobEnqueued  = "enqueued"
	JobRejected  = "rejected"
	JobSkipped   = "skipped"
	JobCompleted = "completed"
	JobStale     = "stale"
	JobFailed    = "failed"
)

var storageBuckets = []float64{10, 50, 100, 500, 1000, 5000, 30000}

/**
* Metrics definition
**/
var storageRequestDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: spinnaker,
		Name:      storageRequestDuration,
		Help:      "time spent on a storage server request partitioned by hop and outcome",
		Buckets:   storageBuckets,
	},
	[]string{opLabel, outcomeLabel},
)

var validationJobsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: spinnaker,
		Name:      validationJobsTotal,
		Help:      "number of validation jobs partitioned by outcome",
	},
	[]string{outcomeLabel},
)

var validationsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: spinnaker,
		Name:      validationsTotal,
		Help:      "number of receipt validations partitioned by result",
	},
	[]string{resultLabel},
)

var eventsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: spinnaker,
		Name:      eventsTotal,
		Help:      "number of events written partitioned by type and outcome",
	},
	[]string{typeLabel, outcomeLabel},
)

func ObserveStorageRequest(op, outcome string, started time.Time) {
	labels := prometheus.Labels{
		opLabel:      op,
		outcomeLabel: outcome,
	}
	storageRequestDurationMetric.With(labels).Observe(float64(time.Since(started).Milliseconds()))
}

func IncreaseValidationJobsMetric(outcome string) {
	validationJobsTotalMetric.With(prometheus.Labels{outcomeLabel: outcome}).Inc()
}

// ValidationJobsCounter returns the counter of a job outcome.
func ValidationJobsCounter(outcome string) prometheus.Counter {
	return validationJobsTotalMetric.With(prometheus.Labels{outcomeLabel: outcome})
}

func IncreaseValidationsMetric(validated bool) {
	result := "invalid"
	if validated {
		result = "validated"
	}
	validationsTotalMetric.With(prometheus.Labels{resultLabel: result}).Inc()
}

func IncreaseEventsMetric(eventType, outcome string) {
	labels := prometheus.Labels{
		typeLabel:    eventType,
		outcomeLabel: outcome,
	}
	eventsTotalMetric.With(labels).Inc()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(storageRequestDurationMetric)
	prometheus.MustRegister(validationJobsTotalMetric)
	prometheus.MustRegister(validationsTotalMetric)
	prometheus.MustRegister(eventsTotalMetric)
}
