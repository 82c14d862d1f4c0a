// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "live_captions"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Stream metrics
	StreamsTotal   *prometheus.CounterVec
	StreamsActive  prometheus.Gauge
	StreamDuration prometheus.Histogram

	// Session metrics
	SessionsStarted prometheus.Counter
	SessionsStopped *prometheus.CounterVec
	SessionsActive  prometheus.Gauge

	// Transcript metrics
	TranscriptsPartial prometheus.Counter
	TranscriptsFinal   prometheus.Counter

	// Display metrics
	FramesEmitted   *prometheus.CounterVec
	FramesDebounced prometheus.Counter
	FramesDropped   *prometheus.CounterVec
	DisplayErrors   *prometheus.CounterVec

	// Saying metrics
	IdiomMatches      *prometheus.CounterVec
	EncountersTotal   *prometheus.CounterVec
	ViewModeSwitches  prometheus.Counter
	DictionaryEntries prometheus.Gauge

	// Side-call metrics
	SideCallErrors  *prometheus.CounterVec
	SideCallLatency *prometheus.HistogramVec

	// Audio metrics
	AudioBytesReceived  prometheus.Counter
	AudioFramesReceived prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// STT metrics
	STTErrors         *prometheus.CounterVec
	STTUtteranceCount prometheus.Counter
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Stream metrics
		StreamsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Total number of gRPC streams started",
		}, []string{"kind"}),
		StreamsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_active",
			Help:      "Number of currently active gRPC streams",
		}),
		StreamDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Duration of gRPC streams in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 900},
		}),

		// Session metrics
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of caption sessions started",
		}),
		SessionsStopped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_stopped_total",
			Help:      "Total number of caption sessions stopped",
		}, []string{"reason"}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active caption sessions",
		}),

		// Transcript metrics
		TranscriptsPartial: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_partial_total",
			Help:      "Total number of partial transcripts received",
		}),
		TranscriptsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of final transcripts received",
		}),

		// Display metrics
		FramesEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_emitted_total",
			Help:      "Total number of caption frames sent to the display",
		}, []string{"kind"}),
		FramesDebounced: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_debounced_total",
			Help:      "Total number of partial frames deferred by the debounce gate",
		}),
		FramesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Total number of caption frames dropped",
		}, []string{"reason"}),
		DisplayErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "display_errors_total",
			Help:      "Total number of display sink failures",
		}, []string{"sink"}),

		// Saying metrics
		IdiomMatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idiom_matches_total",
			Help:      "Total number of sayings found in final transcripts",
		}, []string{"view_mode"}),
		EncountersTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encounters_recorded_total",
			Help:      "Total number of saying encounters recorded",
		}, []string{"status"}),
		ViewModeSwitches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_mode_switches_total",
			Help:      "Total number of voice-commanded view mode switches",
		}),
		DictionaryEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dictionary_entries",
			Help:      "Number of sayings in the loaded dictionary",
		}),

		// Side-call metrics
		SideCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_call_errors_total",
			Help:      "Total number of failed asynchronous side calls",
		}, []string{"kind"}),
		SideCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "side_call_latency_seconds",
			Help:      "Latency of asynchronous side calls in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"kind"}),

		// Audio metrics
		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received",
		}),
		AudioFramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total audio frames received",
		}),

		// Kafka publish metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// STT metrics
		STTErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_errors_total",
			Help:      "Total number of STT errors",
		}, []string{"provider", "error_type"}),
		STTUtteranceCount: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_utterances_total",
			Help:      "Total number of utterances detected",
		}),
	}
}

// RecordStreamStart records a new stream starting.
func (m *Metrics) RecordStreamStart(kind string) {
	m.StreamsTotal.WithLabelValues(kind).Inc()
	m.StreamsActive.Inc()
}

// RecordStreamEnd records a stream ending.
func (m *Metrics) RecordStreamEnd(durationSeconds float64) {
	m.StreamsActive.Dec()
	m.StreamDuration.Observe(durationSeconds)
}

// RecordSessionStarted records a caption session starting.
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionStopped records a caption session ending.
func (m *Metrics) RecordSessionStopped(reason string) {
	m.SessionsStopped.WithLabelValues(reason).Inc()
	m.SessionsActive.Dec()
}

// RecordTranscript records a transcript event received.
func (m *Metrics) RecordTranscript(final bool) {
	if final {
		m.TranscriptsFinal.Inc()
		return
	}
	m.TranscriptsPartial.Inc()
}

// RecordFrameEmitted records a frame handed to the display.
func (m *Metrics) RecordFrameEmitted(final bool) {
	kind := "partial"
	if final {
		kind = "final"
	}
	m.FramesEmitted.WithLabelValues(kind).Inc()
}

// RecordFrameDebounced records a partial frame deferred by the gate.
func (m *Metrics) RecordFrameDebounced() {
	m.FramesDebounced.Inc()
}

// RecordFrameDropped records a frame that never reached the display.
func (m *Metrics) RecordFrameDropped(reason string) {
	m.FramesDropped.WithLabelValues(reason).Inc()
}

// RecordDisplayError records a display sink failure.
func (m *Metrics) RecordDisplayError(sink string) {
	m.DisplayErrors.WithLabelValues(sink).Inc()
}

// RecordIdiomMatch records a saying found in a final transcript.
func (m *Metrics) RecordIdiomMatch(viewMode string) {
	m.IdiomMatches.WithLabelValues(viewMode).Inc()
}

// RecordEncounter records the outcome of an encounter write.
func (m *Metrics) RecordEncounter(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.EncountersTotal.WithLabelValues(status).Inc()
}

// RecordViewModeSwitch records a voice-commanded mode switch.
func (m *Metrics) RecordViewModeSwitch() {
	m.ViewModeSwitches.Inc()
}

// SetDictionarySize records the number of loaded sayings.
func (m *Metrics) SetDictionarySize(n int) {
	m.DictionaryEntries.Set(float64(n))
}

// RecordSideCall records an asynchronous side call.
func (m *Metrics) RecordSideCall(kind string, err error, latencySeconds float64) {
	m.SideCallLatency.WithLabelValues(kind).Observe(latencySeconds)
	if err != nil {
		m.SideCallErrors.WithLabelValues(kind).Inc()
	}
}

// RecordAudioReceived records audio bytes and frames received.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioFramesReceived.Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordSTTError records an STT error.
func (m *Metrics) RecordSTTError(provider, errorType string) {
	m.STTErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordUtterance records an utterance boundary detection.
func (m *Metrics) RecordUtterance() {
	m.STTUtteranceCount.Inc()
}
