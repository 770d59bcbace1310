package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for a mesh node.
type Metrics struct {
	FramesReceived     *prometheus.CounterVec // labels: opcode
	FramesSent         *prometheus.CounterVec // labels: opcode
	TransportErrors    *prometheus.CounterVec // labels: direction={receive,send}
	CalibrationSamples *prometheus.CounterVec // labels: result
	Heartbeats         *prometheus.CounterVec // labels: outcome={applied,unknown_peer,malformed,invalid_frame}
	RegistryFull       prometheus.Counter
	NodeRunning        prometheus.Gauge

	// Registry state.
	KnownNodes         prometheus.Gauge
	CalibratedNodes    prometheus.Gauge
	AverageTemperature prometheus.Gauge
	EstimatedDistance  *prometheus.GaugeVec // labels: address

	// Publishing.
	MessageSize      prometheus.Histogram
	MessageTruncated prometheus.Counter

	// Sensor hub.
	SensorHubRequests *prometheus.CounterVec // labels: outcome={success,error}
	SensorHubDuration prometheus.Histogram
}

// NewMetrics creates and registers all node metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.FramesReceived,
		m.FramesSent,
		m.TransportErrors,
		m.CalibrationSamples,
		m.Heartbeats,
		m.RegistryFull,
		m.NodeRunning,
		m.KnownNodes,
		m.CalibratedNodes,
		m.AverageTemperature,
		m.EstimatedDistance,
		m.MessageSize,
		m.MessageTruncated,
		m.SensorHubRequests,
		m.SensorHubDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mesh_node",
			Name:      "frames_received_total",
			Help:      "Frames delivered by the transport, by opcode.",
		}, []string{"opcode"}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mesh_node",
			Name:      "frames_sent_total",
			Help:      "Frames handed to the transport, by opcode.",
		}, []string{"opcode"}),
		TransportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mesh_node",
			Name:      "transport_errors_total",
			Help:      "Transport failures by direction.",
		}, []string{"direction"}),
		CalibrationSamples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mesh_node",
			Name:      "calibration_samples_total",
			Help:      "Calibration samples submitted, by result.",
		}, []string{"result"}),
		Heartbeats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mesh_node",
			Name:      "heartbeats_received_total",
			Help:      "Peer heartbeats by outcome.",
		}, []string{"outcome"}),
		RegistryFull: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mesh_node",
			Name:      "registry_full_total",
			Help:      "Peers rejected because the registry is full.",
		}),
		NodeRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mesh_node",
			Name:      "running",
			Help:      "1 when the node loop is active, 0 when shut down.",
		}),
		KnownNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mesh_node",
			Name:      "known_peers",
			Help:      "Peers in the registry.",
		}),
		CalibratedNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mesh_node",
			Name:      "calibrated_peers",
			Help:      "Peers with a calibrated distance reference.",
		}),
		AverageTemperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mesh_node",
			Name:      "average_temperature_celsius",
			Help:      "Mean temperature of this node and every known peer.",
		}),
		EstimatedDistance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mesh_node",
			Name:      "estimated_distance_meters",
			Help:      "Estimated distance to each calibrated peer.",
		}, []string{"address"}),
		MessageSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mesh_node",
			Name:      "status_message_bytes",
			Help:      "Size of published status messages.",
			Buckets:   []float64{16, 32, 64, 96, 128, 160, 203},
		}),
		MessageTruncated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mesh_node",
			Name:      "status_message_truncated_total",
			Help:      "Published status messages that dropped neighbors to fit.",
		}),
		SensorHubRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mesh_node",
			Name:      "sensorhub_requests_total",
			Help:      "Sensor hub reading requests by outcome.",
		}, []string{"outcome"}),
		SensorHubDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mesh_node",
			Name:      "sensorhub_request_duration_seconds",
			Help:      "Latency of sensor hub reading requests.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
