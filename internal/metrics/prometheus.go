package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the transcription service.
type Metrics struct {
	// Job pipeline metrics
	JobsTotal         *prometheus.CounterVec
	JobFailures       *prometheus.CounterVec
	ProcessingSeconds prometheus.Histogram
	AudioSeconds      prometheus.Counter
	Compressions      *prometheus.CounterVec

	// Ledger metrics
	SecondsDebited  prometheus.Counter
	SecondsCredited prometheus.Counter

	// Billing metrics
	PaymentsCompleted *prometheus.CounterVec
}

// New creates all metrics on the given registerer. Tests pass a fresh
// prometheus.NewRegistry so parallel packages never collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sttd_jobs_total",
			Help: "Total number of transcription jobs by terminal outcome",
		}, []string{"outcome"}),
		JobFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sttd_job_failures_total",
			Help: "Total number of failed jobs by reason",
		}, []string{"reason"}),
		ProcessingSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sttd_job_processing_seconds",
			Help:    "Wall time of the transcription call per job",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4 minutes
		}),
		AudioSeconds: factory.NewCounter(prometheus.CounterOpts{
			Name: "sttd_audio_seconds_total",
			Help: "Total seconds of audio successfully transcribed",
		}),
		Compressions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sttd_compressions_total",
			Help: "Total number of oversize inputs sent through the compressor",
		}, []string{"result"}),
		SecondsDebited: factory.NewCounter(prometheus.CounterOpts{
			Name: "sttd_seconds_debited_total",
			Help: "Total seconds debited from user quotas",
		}),
		SecondsCredited: factory.NewCounter(prometheus.CounterOpts{
			Name: "sttd_seconds_credited_total",
			Help: "Total purchased seconds credited to balances",
		}),
		PaymentsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sttd_payments_completed_total",
			Help: "Total number of payment transactions reaching a terminal status",
		}, []string{"status"}),
	}
}

// RecordJob counts a job reaching a terminal outcome.
func (m *Metrics) RecordJob(outcome string) {
	m.JobsTotal.WithLabelValues(outcome).Inc()
}

// RecordFailure counts a failed job by reason.
func (m *Metrics) RecordFailure(reason string) {
	m.JobFailures.WithLabelValues(reason).Inc()
}

// RecordTranscription records a successful transcription call.
func (m *Metrics) RecordTranscription(processingSeconds, audioSeconds float64) {
	m.ProcessingSeconds.Observe(processingSeconds)
	m.AudioSeconds.Add(audioSeconds)
}

// RecordCompression counts one compressor run.
func (m *Metrics) RecordCompression(result string) {
	m.Compressions.WithLabelValues(result).Inc()
}

// RecordDebit adds to the debited seconds counter.
func (m *Metrics) RecordDebit(seconds float64) {
	m.SecondsDebited.Add(seconds)
}

// RecordCredit adds to the credited seconds counter.
func (m *Metrics) RecordCredit(seconds float64) {
	m.SecondsCredited.Add(seconds)
}

// RecordPayment counts a transaction reaching a terminal status.
func (m *Metrics) RecordPayment(status string) {
	m.PaymentsCompleted.WithLabelValues(status).Inc()
}
