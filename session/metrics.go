package session

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rajeevrajeshuni/MentraOS-sub001/metric"
)

const metricsComponent = "session"

// sessionMetrics holds Prometheus metrics for the session engine. All
// callers nil-guard: metrics are optional.
type sessionMetrics struct {
	connectionState   prometheus.Gauge
	messagesReceived  *prometheus.CounterVec
	messagesSent      *prometheus.CounterVec
	binaryDropped     prometheus.Counter
	reconnectAttempts prometheus.Counter
	requestTimeouts   prometheus.Counter
	sendThrottled     prometheus.Counter
	errorsTotal       *prometheus.CounterVec
}

func newSessionMetrics(registry *metric.Registry) (*sessionMetrics, error) {
	m := &sessionMetrics{
		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mentraos",
			Subsystem: "session",
			Name:      "connection_state",
			Help:      "Connection state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting, 4=permanently_failed)",
		}),

		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mentraos",
			Subsystem: "session",
			Name:      "messages_received_total",
			Help:      "Total inbound messages by type discriminant",
		}, []string{"type"}),

		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mentraos",
			Subsystem: "session",
			Name:      "messages_sent_total",
			Help:      "Total outbound messages by type discriminant",
		}, []string{"type"}),

		binaryDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mentraos",
			Subsystem: "session",
			Name:      "binary_frames_dropped_total",
			Help:      "Binary frames dropped because the audio stream was not subscribed",
		}),

		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mentraos",
			Subsystem: "session",
			Name:      "reconnect_attempts_total",
			Help:      "Total reconnection attempts scheduled",
		}),

		requestTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mentraos",
			Subsystem: "session",
			Name:      "request_timeouts_total",
			Help:      "Correlated requests that expired before a reply arrived",
		}),

		sendThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mentraos",
			Subsystem: "session",
			Name:      "send_rate_exceeded_total",
			Help:      "Outbound sends above the advisory rate limit",
		}),

		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mentraos",
			Subsystem: "session",
			Name:      "errors_total",
			Help:      "Total errors surfaced as error events",
		}, []string{"context"}),
	}

	registrations := []struct {
		name      string
		collector prometheus.Collector
	}{
		{"connection_state", m.connectionState},
		{"messages_received_total", m.messagesReceived},
		{"messages_sent_total", m.messagesSent},
		{"binary_frames_dropped_total", m.binaryDropped},
		{"reconnect_attempts_total", m.reconnectAttempts},
		{"request_timeouts_total", m.requestTimeouts},
		{"send_rate_exceeded_total", m.sendThrottled},
		{"errors_total", m.errorsTotal},
	}
	for _, reg := range registrations {
		if err := registry.Register(metricsComponent, reg.name, reg.collector); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *sessionMetrics) setState(state ConnectionState) {
	if m == nil {
		return
	}
	m.connectionState.Set(float64(state))
}

func (m *sessionMetrics) received(msgType string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(msgType).Inc()
}

func (m *sessionMetrics) sent(msgType string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(msgType).Inc()
}

func (m *sessionMetrics) droppedBinary() {
	if m == nil {
		return
	}
	m.binaryDropped.Inc()
}

func (m *sessionMetrics) reconnectScheduled() {
	if m == nil {
		return
	}
	m.reconnectAttempts.Inc()
}

func (m *sessionMetrics) requestTimedOut() {
	if m == nil {
		return
	}
	m.requestTimeouts.Inc()
}

func (m *sessionMetrics) throttled() {
	if m == nil {
		return
	}
	m.sendThrottled.Inc()
}

func (m *sessionMetrics) errored(context string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(context).Inc()
}
