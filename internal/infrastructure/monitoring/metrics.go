package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so components can run without a registry.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// WebSocket server metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// Widget rendering metrics
	Renders          *prometheus.CounterVec
	ProviderDuration prometheus.Histogram

	// Image proxy metrics
	ImageRequests  *prometheus.CounterVec
	ImageEvictions prometheus.Counter

	// Widget client metrics
	ClientTicks        prometheus.Counter
	ClientRefreshes    prometheus.Counter
	ClientNotConnected prometheus.Counter
	ClientUnresponsive prometheus.Counter
	ClientMessages     *prometheus.CounterVec
	ClientLiveness     prometheus.Gauge
	ClientState        prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "widget_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "widget_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// WebSocket server metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "widget_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "widget_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		// Widget rendering metrics
		Renders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "widget_renders_total",
				Help: "Widget fragments rendered, by outcome",
			},
			[]string{"status"},
		),
		ProviderDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "widget_provider_duration_seconds",
				Help:    "Status provider lookup duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),

		// Image proxy metrics
		ImageRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "widget_image_proxy_requests_total",
				Help: "Image proxy requests, by cache result",
			},
			[]string{"result"},
		),
		ImageEvictions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "widget_image_proxy_evictions_total",
				Help: "Cached images removed for age",
			},
		),

		// Widget client metrics
		ClientTicks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "widget_client_ticks_total",
				Help: "Refresh ticks executed",
			},
		),
		ClientRefreshes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "widget_client_refreshes_total",
				Help: "Refresh requests written to the stream",
			},
		),
		ClientNotConnected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "widget_client_not_connected_total",
				Help: "Ticks skipped because no stream handle existed",
			},
		),
		ClientUnresponsive: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "widget_client_unresponsive_total",
				Help: "Ticks that flagged the server as not responding",
			},
		),
		ClientMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "widget_client_messages_total",
				Help: "Inbound messages, by parse result",
			},
			[]string{"result"},
		),
		ClientLiveness: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "widget_client_liveness_counter",
				Help: "Ticks since the last inbound message",
			},
		),
		ClientState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "widget_client_state",
				Help: "Connection state (0 disconnected, 1 connecting, 2 connected, 3 closed)",
			},
		),
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// RecordRender records one render attempt and how long the provider took.
func (m *Metrics) RecordRender(status string, providerTime time.Duration) {
	if m == nil {
		return
	}
	m.Renders.WithLabelValues(status).Inc()
	m.ProviderDuration.Observe(providerTime.Seconds())
}

// RecordImageRequest records an image proxy request ("hit", "miss", "error").
func (m *Metrics) RecordImageRequest(result string) {
	if m == nil {
		return
	}
	m.ImageRequests.WithLabelValues(result).Inc()
}

// AddImageEvictions records removed cache files.
func (m *Metrics) AddImageEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ImageEvictions.Add(float64(n))
}

// RecordTick records a client tick and the counter value after it.
func (m *Metrics) RecordTick(liveness int) {
	if m == nil {
		return
	}
	m.ClientTicks.Inc()
	m.ClientLiveness.Set(float64(liveness))
}

// IncRefreshes counts a refresh request written to the stream.
func (m *Metrics) IncRefreshes() {
	if m == nil {
		return
	}
	m.ClientRefreshes.Inc()
}

// IncNotConnected counts a tick skipped for lack of a stream.
func (m *Metrics) IncNotConnected() {
	if m == nil {
		return
	}
	m.ClientNotConnected.Inc()
}

// IncUnresponsive counts a tick that flagged the server as not responding.
func (m *Metrics) IncUnresponsive() {
	if m == nil {
		return
	}
	m.ClientUnresponsive.Inc()
}

// RecordClientMessage records an inbound message ("ok" or "malformed").
func (m *Metrics) RecordClientMessage(result string) {
	if m == nil {
		return
	}
	m.ClientMessages.WithLabelValues(result).Inc()
	if result == "ok" {
		m.ClientLiveness.Set(0)
	}
}

// SetClientState publishes the numeric connection state.
func (m *Metrics) SetClientState(state int) {
	if m == nil {
		return
	}
	m.ClientState.Set(float64(state))
}
