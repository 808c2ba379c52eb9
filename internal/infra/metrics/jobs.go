package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsObservedTotal, jobsFinishedTotal) }

var jobsObservedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "enhance_jobs_status_changes_total",
		Help: "Job status changes observed by watchers, labeled by status.",
	},
	[]string{"status"}, // 'queued', 'processing', 'succeeded', 'failed'
)

var jobsFinishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "enhance_jobs_finished_total",
		Help: "Jobs observed reaching a terminal status.",
	},
	[]string{"status"}, // 'succeeded', 'failed'
)

func IncJobStatusChange(status string) {
	jobsObservedTotal.WithLabelValues(norm(status)).Inc()
}

func IncJobFinished(status string) {
	jobsFinishedTotal.WithLabelValues(norm(status)).Inc()
}
