package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sink labels for emission metrics
const (
	SinkMIDI   = "midi"
	SinkArtNet = "artnet"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Session metrics
	ActiveSessions  prometheus.Gauge
	SessionsStarted prometheus.Counter
	SessionsStopped *prometheus.CounterVec
	SessionDuration prometheus.Histogram

	// Tick metrics
	Ticks        *prometheus.CounterVec
	TickLateness prometheus.Histogram
	SkippedMIDI  prometheus.Counter

	// Emission metrics
	MessagesSent *prometheus.CounterVec
	SendErrors   *prometheus.CounterVec
	CloseErrors  prometheus.Counter

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Display metrics
	DisplaySubscribers prometheus.Gauge
	DisplayDropped     prometheus.Counter
}

// New creates all metrics and registers them with reg.
// A nil reg registers with the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		// Session metrics
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "timepilot_active_sessions",
			Help: "Number of running sync sessions (0 or 1)",
		}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "timepilot_sessions_started_total",
			Help: "Total number of sync sessions started",
		}),
		SessionsStopped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timepilot_sessions_stopped_total",
				Help: "Total number of sync sessions stopped",
			},
			[]string{"reason"}, // stop, replaced, finished
		),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "timepilot_session_duration_seconds",
			Help:    "Duration of sync sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10s to ~2.8h
		}),

		// Tick metrics
		Ticks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timepilot_ticks_total",
				Help: "Total number of scheduler ticks",
			},
			[]string{"mode"},
		),
		TickLateness: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "timepilot_tick_lateness_seconds",
			Help:    "Delay between the scheduled and actual tick time",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 10), // 0.5ms to ~256ms
		}),
		SkippedMIDI: factory.NewCounter(prometheus.CounterOpts{
			Name: "timepilot_midi_skipped_ticks_total",
			Help: "Ticks with no MIDI output selected",
		}),

		// Emission metrics
		MessagesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timepilot_messages_sent_total",
				Help: "Total number of timecode messages sent",
			},
			[]string{"sink", "kind"}, // kind: quarter, full, timecode
		),
		SendErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timepilot_send_errors_total",
				Help: "Total number of failed sends",
			},
			[]string{"sink"},
		),
		CloseErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "timepilot_sender_close_errors_total",
			Help: "Total number of failed UDP sender closes",
		}),

		// HTTP metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timepilot_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "timepilot_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Display metrics
		DisplaySubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "timepilot_display_subscribers",
			Help: "Number of connected timecode display subscribers",
		}),
		DisplayDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "timepilot_display_dropped_total",
			Help: "Timecode updates dropped for slow subscribers",
		}),
	}

	return m
}

// RecordSessionStart records a session starting
func (m *Metrics) RecordSessionStart() {
	m.ActiveSessions.Inc()
	m.SessionsStarted.Inc()
}

// RecordSessionStop records a session stopping
func (m *Metrics) RecordSessionStop(reason string, durationSeconds float64) {
	m.ActiveSessions.Dec()
	m.SessionsStopped.WithLabelValues(reason).Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordTick records one scheduler tick and how late it fired
func (m *Metrics) RecordTick(mode string, latenessSeconds float64) {
	m.Ticks.WithLabelValues(mode).Inc()
	if latenessSeconds < 0 {
		latenessSeconds = 0
	}
	m.TickLateness.Observe(latenessSeconds)
}

// RecordSent records n messages of a kind delivered to a sink
func (m *Metrics) RecordSent(sink, kind string, n int) {
	if n <= 0 {
		return
	}
	m.MessagesSent.WithLabelValues(sink, kind).Add(float64(n))
}

// RecordSendError records a failed send
func (m *Metrics) RecordSendError(sink string) {
	m.SendErrors.WithLabelValues(sink).Inc()
}

// RecordCloseError records a failed sender close
func (m *Metrics) RecordCloseError() {
	m.CloseErrors.Inc()
}

// RecordMIDISkipped records a tick with no MIDI output
func (m *Metrics) RecordMIDISkipped() {
	m.SkippedMIDI.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, path, m.statusCodeToString(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(durationSeconds)
}

// RecordSubscriberStart records a display subscriber connecting
func (m *Metrics) RecordSubscriberStart() {
	m.DisplaySubscribers.Inc()
}

// RecordSubscriberStop records a display subscriber leaving
func (m *Metrics) RecordSubscriberStop() {
	m.DisplaySubscribers.Dec()
}

// RecordDisplayDropped records an update dropped for a full subscriber
func (m *Metrics) RecordDisplayDropped() {
	m.DisplayDropped.Inc()
}

// statusCodeToString converts an HTTP status code to a string
func (m *Metrics) statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
