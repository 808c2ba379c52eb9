package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(uploadsTotal, uploadBytesTotal) }

var uploadsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "enhance_uploads_total",
		Help: "Upload pipeline results, labeled by outcome.",
	},
	[]string{"outcome"}, // 'completed', 'error', 'rejected'
)

var uploadBytesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "enhance_upload_bytes_total",
		Help: "Total bytes successfully uploaded.",
	},
)

func IncUpload(outcome string) {
	uploadsTotal.WithLabelValues(norm(outcome)).Inc()
}

func AddUploadBytes(n int64) {
	uploadBytesTotal.Add(float64(n))
}
