// Package metrics holds the Prometheus instrumentation for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector the pipeline updates. Constructing it
// against a fresh registry keeps tests independent of global state.
type Metrics struct {
	ChunksIngested        prometheus.Counter
	IngestedBytes         prometheus.Counter
	TranscriptionFailures prometheus.Counter
	TranscriptionSeconds  prometheus.Histogram
	MeetingsCompleted     prometheus.Counter
	FinalizationSeconds   prometheus.Histogram
	QuestionsAnswered     prometheus.Counter
	AnswerFailures        prometheus.Counter
	RetriedChunks         prometheus.Counter
}

// New registers all pipeline collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChunksIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicemind_chunks_ingested_total",
			Help: "Audio chunks accepted for storage, including re-uploads.",
		}),
		IngestedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicemind_ingested_bytes_total",
			Help: "Raw PCM bytes accepted across all chunks.",
		}),
		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicemind_transcription_failures_total",
			Help: "Chunk transcriptions that failed and were stored empty.",
		}),
		TranscriptionSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicemind_transcription_duration_seconds",
			Help:    "Latency of one chunk transcription call.",
			Buckets: prometheus.DefBuckets,
		}),
		MeetingsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicemind_meetings_completed_total",
			Help: "Meetings finalized with a stitched transcript.",
		}),
		FinalizationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicemind_finalization_duration_seconds",
			Help:    "End-to-end latency of meeting finalization.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		QuestionsAnswered: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicemind_questions_answered_total",
			Help: "Q&A requests answered, including error-annotated answers.",
		}),
		AnswerFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicemind_answer_failures_total",
			Help: "Q&A and finalization prompts where the model backend failed.",
		}),
		RetriedChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicemind_retried_chunks_total",
			Help: "Chunks re-transcribed by the background retry worker.",
		}),
	}
}
