// Package monitor counts the traffic of the symmetric fabric and the calls
// made to each collective algorithm. Everything is exported to prometheus.
package monitor

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	egressBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kungfu_shmem_egress_bytes_total",
		Help: "Bytes written to remote PEs by put operations",
	}, []string{"pe"})

	ingressBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kungfu_shmem_ingress_bytes_total",
		Help: "Bytes read from remote PEs by get operations",
	}, []string{"pe"})

	atomicOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kungfu_shmem_atomic_ops_total",
		Help: "Remote atomic operations issued",
	}, []string{"pe"})

	collectiveCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kungfu_shmem_collective_calls_total",
		Help: "Collective calls by operation and algorithm",
	}, []string{"op", "algo"})

	collectiveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kungfu_shmem_collective_duration_seconds",
		Help:    "Collective call duration by operation and algorithm",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
	}, []string{"op", "algo"})
)

// NetMetrics counts the traffic issued by each PE.
type NetMetrics struct {
	egress  *accumulatorGroup
	ingress *accumulatorGroup
	atomics *accumulatorGroup
}

func NewNetMetrics() *NetMetrics {
	return &NetMetrics{
		egress:  newAccumulatorGroup("egress", egressBytes),
		ingress: newAccumulatorGroup("ingress", ingressBytes),
		atomics: newAccumulatorGroup("atomics", atomicOps),
	}
}

func (m *NetMetrics) Egress(pe int, n int) {
	m.egress.getOrCreate(pe).Add(int64(n))
}

func (m *NetMetrics) Ingress(pe int, n int) {
	m.ingress.getOrCreate(pe).Add(int64(n))
}

func (m *NetMetrics) Atomic(pe int) {
	m.atomics.getOrCreate(pe).Add(1)
}

func (m *NetMetrics) EgressOf(pe int) int64 {
	return m.egress.get(pe)
}

func (m *NetMetrics) IngressOf(pe int) int64 {
	return m.ingress.get(pe)
}

func (m *NetMetrics) AtomicsOf(pe int) int64 {
	return m.atomics.get(pe)
}

// Totals returns the bytes put, the bytes got and the atomics issued by all PEs.
func (m *NetMetrics) Totals() (int64, int64, int64) {
	return m.egress.total(), m.ingress.total(), m.atomics.total()
}

func (m *NetMetrics) WriteTo(w io.Writer) {
	m.egress.WriteTo(w)
	m.ingress.WriteTo(w)
	m.atomics.WriteTo(w)
}

// ObserveCollective records one call of algo implementing op.
func ObserveCollective(op, algo string, d time.Duration) {
	collectiveCalls.WithLabelValues(op, algo).Inc()
	collectiveDuration.WithLabelValues(op, algo).Observe(d.Seconds())
}
