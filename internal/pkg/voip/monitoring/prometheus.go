package monitoring

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "voipfilter"

// Metrics holds the Prometheus collectors of one filter run. Each run owns
// its own registry so that repeated runs in one process, and tests, never
// collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	recordsRead     *prometheus.CounterVec
	nonIPv4         prometheus.Counter
	datagrams       *prometheus.CounterVec
	sipMessages     *prometheus.CounterVec
	matched         *prometheus.CounterVec
	rtpPackets      *prometheus.CounterVec
	recordsEmitted  prometheus.Counter
	bytesEmitted    prometheus.Counter
	sourceErrors    *prometheus.CounterVec
	abandonedGroups prometheus.Counter
	mediaPorts      prometheus.Gauge
	sourceDurations *prometheus.HistogramVec
}

// NewMetrics creates and registers the run's collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		recordsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_read_total",
			Help:      "Capture records read, by source",
		}, []string{"source"}),
		nonIPv4: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_non_ipv4_total",
			Help:      "Capture records skipped because the link payload is not IPv4",
		}),
		datagrams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_total",
			Help:      "Transport payloads delivered by the reassembler",
		}, []string{"kind"}),
		sipMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sip_messages_total",
			Help:      "SIP messages seen on the signalling port, by request method",
		}, []string{"method"}),
		matched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_matched_total",
			Help:      "UDP datagrams matched to the filtered call",
		}, []string{"via"}),
		rtpPackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rtp_packets_total",
			Help:      "Matched media datagrams that decode as RTP, by payload type",
		}, []string{"payload_type"}),
		recordsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_emitted_total",
			Help:      "Capture records written to the output",
		}),
		bytesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_emitted_total",
			Help:      "Bytes written to the output, global header included",
		}),
		sourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Sources abandoned because of a format error, by error kind",
		}, []string{"kind"}),
		abandonedGroups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragment_groups_abandoned_total",
			Help:      "Incomplete IPv4 fragment groups dropped at the end of a source",
		}),
		mediaPorts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "media_ports_learned",
			Help:      "RTP ports learned from SDP bodies of matched calls",
		}),
		sourceDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_duration_seconds",
			Help:      "Time spent draining one capture source",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.recordsRead,
		m.nonIPv4,
		m.datagrams,
		m.sipMessages,
		m.matched,
		m.recordsEmitted,
		m.bytesEmitted,
		m.rtpPackets,
		m.sourceErrors,
		m.abandonedGroups,
		m.mediaPorts,
		m.sourceDurations,
	)
	return m
}

// Registry exposes the run's registry, for gathering or tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordRead(source string) {
	m.recordsRead.WithLabelValues(source).Inc()
}

func (m *Metrics) NonIPv4() {
	m.nonIPv4.Inc()
}

// Datagram counts one delivered payload; reassembled tells the two kinds
// apart.
func (m *Metrics) Datagram(reassembled bool) {
	kind := "direct"
	if reassembled {
		kind = "reassembled"
	}
	m.datagrams.WithLabelValues(kind).Inc()
}

// SIPMessage counts a signalling message. Responses have an empty method.
func (m *Metrics) SIPMessage(method string) {
	if method == "" {
		method = "response"
	}
	m.sipMessages.WithLabelValues(method).Inc()
}

// Matched counts a matched datagram; via is "sip" or "media".
func (m *Metrics) Matched(via string) {
	m.matched.WithLabelValues(via).Inc()
}

func (m *Metrics) RTPPacket(payloadType string) {
	m.rtpPackets.WithLabelValues(payloadType).Inc()
}

func (m *Metrics) RecordEmitted(bytes int) {
	m.recordsEmitted.Inc()
	m.bytesEmitted.Add(float64(bytes))
}

func (m *Metrics) SourceError(kind string) {
	m.sourceErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) FragmentGroupsAbandoned(n int) {
	m.abandonedGroups.Add(float64(n))
}

func (m *Metrics) SetMediaPorts(n int) {
	m.mediaPorts.Set(float64(n))
}

// SourceDone observes how long a source took; result is "ok" or "error".
func (m *Metrics) SourceDone(d time.Duration, result string) {
	m.sourceDurations.WithLabelValues(result).Observe(d.Seconds())
}

// WriteTextfile writes the registry in the text exposition format, the
// way the node_exporter textfile collector expects it.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
