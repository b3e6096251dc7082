package queue

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds prometheus collectors for one queue instance.
type Metrics struct {
	depth       prometheus.Gauge
	memoryBytes prometheus.Gauge
	enqueued    *prometheus.CounterVec
	dequeued    prometheus.Counter
	rejections  prometheus.Counter
}

// NewMetrics creates queue collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "repolens_queue_depth",
			Help: "Current number of messages in the queue.",
		}),
		memoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "repolens_queue_memory_bytes",
			Help: "Aggregate footprint of queued messages in bytes.",
		}),
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "repolens_queue_enqueued_total",
			Help: "Messages accepted by the queue, by producer.",
		}, []string{"producer"}),
		dequeued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "repolens_queue_dequeued_total",
			Help: "Messages removed from the queue.",
		}),
		rejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "repolens_queue_rejections_total",
			Help: "Enqueue attempts rejected because a limit would be exceeded.",
		}),
	}

	reg.MustRegister(m.depth, m.memoryBytes, m.enqueued, m.dequeued, m.rejections)

	return m
}
