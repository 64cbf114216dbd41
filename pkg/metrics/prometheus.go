package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector with Prometheus metrics.
type PrometheusCollector struct {
	packetsTotal       prometheus.Counter
	packetBytes        prometheus.Histogram
	linesDecodedTotal  *prometheus.CounterVec
	linesRejectedTotal prometheus.Counter
	readErrorsTotal    prometheus.Counter
	verificationsTotal *prometheus.CounterVec
	verificationWait   *prometheus.HistogramVec
}

// NewPrometheusCollector creates a PrometheusCollector and registers its
// metrics with reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		packetsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mockstatsd_packets_received_total",
			Help: "Total number of UDP datagrams received.",
		}),
		packetBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mockstatsd_packet_size_bytes",
			Help:    "Size of received datagrams in bytes.",
			Buckets: []float64{64, 256, 512, 1432, 8192, 65535},
		}),
		linesDecodedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mockstatsd_lines_decoded_total",
			Help: "Total number of metric lines decoded.",
		}, []string{"type"}),
		linesRejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mockstatsd_lines_rejected_total",
			Help: "Total number of malformed or unsupported lines skipped.",
		}),
		readErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mockstatsd_read_errors_total",
			Help: "Total number of socket read errors.",
		}),
		verificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mockstatsd_verifications_total",
			Help: "Total number of verifications by mode and result.",
		}, []string{"mode", "result"}),
		verificationWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mockstatsd_verification_wait_seconds",
			Help:    "Time verifications spent waiting.",
			Buckets: []float64{0.001, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}, []string{"mode"}),
	}

	reg.MustRegister(
		c.packetsTotal,
		c.packetBytes,
		c.linesDecodedTotal,
		c.linesRejectedTotal,
		c.readErrorsTotal,
		c.verificationsTotal,
		c.verificationWait,
	)

	return c
}

// PacketReceived implements Collector.
func (c *PrometheusCollector) PacketReceived(bytes int) {
	c.packetsTotal.Inc()
	c.packetBytes.Observe(float64(bytes))
}

// LinesDecoded implements Collector.
func (c *PrometheusCollector) LinesDecoded(metricType string, n int) {
	c.linesDecodedTotal.WithLabelValues(metricType).Add(float64(n))
}

// LinesRejected implements Collector.
func (c *PrometheusCollector) LinesRejected(n int) {
	c.linesRejectedTotal.Add(float64(n))
}

// ReadError implements Collector.
func (c *PrometheusCollector) ReadError() {
	c.readErrorsTotal.Inc()
}

// VerificationCompleted implements Collector.
func (c *PrometheusCollector) VerificationCompleted(mode string, passed bool, elapsed time.Duration) {
	result := "fail"
	if passed {
		result = "pass"
	}
	c.verificationsTotal.WithLabelValues(mode, result).Inc()
	c.verificationWait.WithLabelValues(mode).Observe(elapsed.Seconds())
}
