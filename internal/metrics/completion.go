package metrics

import "github.com/prometheus/client_golang/prometheus"

// Chat completion and transcription Prometheus metrics.
var (
	CompletionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragserver",
			Name:      "completion_requests_total",
			Help:      "Total number of chat completion requests",
		},
		[]string{"model", "status"},
	)

	CompletionTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragserver",
			Name:      "completion_tokens_total",
			Help:      "Total number of tokens consumed by chat completions",
		},
		[]string{"model", "type"},
	)

	WhisperRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragserver",
			Name:      "whisper_requests_total",
			Help:      "Total number of audio transcription requests",
		},
		[]string{"status"},
	)
)

var completionMetricsRegistered bool

// RegisterCompletionMetrics registers completion and transcription metrics.
// Must be called once from main.
func RegisterCompletionMetrics() {
	if completionMetricsRegistered {
		return
	}
	prometheus.MustRegister(CompletionRequestsTotal)
	prometheus.MustRegister(CompletionTokensTotal)
	prometheus.MustRegister(WhisperRequestsTotal)
	completionMetricsRegistered = true
}
