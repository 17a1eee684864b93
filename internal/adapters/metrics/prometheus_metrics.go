// Package metrics provides Prometheus implementations of the junction metrics reporters.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sufield/junction/internal/core/domain"
	"github.com/sufield/junction/internal/core/ports"
)

const namespace = "junction"

var (
	_ ports.DirectoryMetrics = (*PrometheusMetrics)(nil)
	_ ports.BarrierMetrics   = (*PrometheusMetrics)(nil)
	_ ports.PortMetrics      = (*PrometheusMetrics)(nil)
)

// PrometheusMetrics implements the directory, barrier, port and gateway
// reporters on one registry.
type PrometheusMetrics struct {
	directoryRequests    *prometheus.CounterVec
	directoryConnections prometheus.Gauge

	barrierArrivals   prometheus.Counter
	barrierDuplicates prometheus.Counter
	barrierRounds     prometheus.Counter
	barrierRoundSize  prometheus.Gauge
	barrierLeft       prometheus.Counter

	portConnects    *prometheus.CounterVec
	portDisconnects *prometheus.CounterVec

	gatewayRequests *prometheus.CounterVec
}

// NewPrometheusMetrics registers the junction collectors on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		directoryRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directory_requests_total",
			Help:      "Total number of directory commands handled",
		}, []string{"command", "outcome"}),
		directoryConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "directory_connections_active",
			Help:      "Number of participant connections currently served by the directory",
		}),
		barrierArrivals: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "barrier_arrivals_total",
			Help:      "Total number of registrations that arrived at the barrier",
		}),
		barrierDuplicates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "barrier_duplicate_registrations_total",
			Help:      "Total number of registrations ignored because the id was already waiting",
		}),
		barrierRounds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "barrier_rounds_total",
			Help:      "Total number of barrier rounds released",
		}),
		barrierRoundSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "barrier_last_round_participants",
			Help:      "Number of participants resumed by the last released round",
		}),
		barrierLeft: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "barrier_participants_left_total",
			Help:      "Total number of participants whose connection ended",
		}),
		portConnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "port_connects_total",
			Help:      "Total number of port connection attempts",
		}, []string{"kind", "remote", "result"}),
		portDisconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "port_disconnects_total",
			Help:      "Total number of port disconnections",
		}, []string{"kind"}),
		gatewayRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Total number of port gateway calls served",
		}, []string{"method", "code"}),
	}
}

// RecordRequest records one directory command and its outcome.
func (m *PrometheusMetrics) RecordRequest(command, outcome string) {
	m.directoryRequests.WithLabelValues(command, outcome).Inc()
}

// ConnectionOpened records a new directory participant connection.
func (m *PrometheusMetrics) ConnectionOpened() {
	m.directoryConnections.Inc()
}

// ConnectionClosed records the end of a directory participant connection.
func (m *PrometheusMetrics) ConnectionClosed() {
	m.directoryConnections.Dec()
}

// RecordArrival records a barrier registration.
func (m *PrometheusMetrics) RecordArrival() {
	m.barrierArrivals.Inc()
}

// RecordDuplicate records an ignored duplicate registration.
func (m *PrometheusMetrics) RecordDuplicate() {
	m.barrierDuplicates.Inc()
}

// RecordRelease records a released round.
func (m *PrometheusMetrics) RecordRelease(participants int) {
	m.barrierRounds.Inc()
	m.barrierRoundSize.Set(float64(participants))
}

// ParticipantLeft records a barrier participant whose connection ended.
func (m *PrometheusMetrics) ParticipantLeft() {
	m.barrierLeft.Inc()
}

// RecordConnect records a connection attempt.
func (m *PrometheusMetrics) RecordConnect(kind domain.PortKind, remote bool, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.portConnects.WithLabelValues(kind.String(), strconv.FormatBool(remote), result).Inc()
}

// RecordDisconnect records a disconnection.
func (m *PrometheusMetrics) RecordDisconnect(kind domain.PortKind) {
	m.portDisconnects.WithLabelValues(kind.String()).Inc()
}

// IncGatewayRequest records one gateway call and its status code.
func (m *PrometheusMetrics) IncGatewayRequest(method, code string) {
	m.gatewayRequests.WithLabelValues(method, code).Inc()
}
