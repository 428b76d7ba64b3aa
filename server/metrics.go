package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pharmalnet/dti/version"
)

const metricsNamespace = "pharmalnet"

// Variables declared for metrics.
var (
	JobStartedCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "pipeline",
		Name:      "job_started_total",
		Help:      "Counter of the number of the jobs started.",
	}, []string{"job"})

	JobFailureCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "pipeline",
		Name:      "job_failure_total",
		Help:      "Counter of the number of failed jobs, by error kind.",
	}, []string{"job", "kind"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "pipeline",
		Name:      "job_duration_seconds",
		Help:      "Histogram of the job duration.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"job"})

	HTTPRequestCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Counter of the number of HTTP requests.",
	}, []string{"method", "path", "code"})

	VersionGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "version",
		Help:      "Version info of the service.",
	}, []string{"version", "git_commit", "build_time"})
)

func init() {
	VersionGauge.WithLabelValues(version.Version, version.GitCommit, version.BuildTime).Set(1)
}
