package broker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "delaybroker"

// Metrics collects broker counters. A nil *Metrics records nothing.
type Metrics struct {
	published     prometheus.Counter
	publishFailed prometheus.Counter
	delivered     prometheus.Counter
	persistFailed prometheus.Counter
	notifyFailed  prometheus.Counter
	queueDepth    prometheus.Gauge
	delay         prometheus.Histogram
}

// NewMetrics creates the broker collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Messages persisted and enqueued.",
		}),
		publishFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Publish calls rejected because persistence failed.",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_delivered_total",
			Help:      "Messages stamped as delivered by a worker.",
		}),
		persistFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_persist_failures_total",
			Help:      "Delivered messages whose updated state could not be saved.",
		}),
		notifyFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observer_failures_total",
			Help:      "Observer notifications that returned an error or panicked.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Messages waiting to be dequeued.",
		}),
		delay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_delay_seconds",
			Help:      "Delay applied before delivery.",
			Buckets:   []float64{0, .01, .1, .5, 1, 2, 5, 10, 30},
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.published,
			m.publishFailed,
			m.delivered,
			m.persistFailed,
			m.notifyFailed,
			m.queueDepth,
			m.delay,
		)
	}

	return m
}

func (m *Metrics) incPublished() {
	if m != nil {
		m.published.Inc()
	}
}

func (m *Metrics) incPublishFailed() {
	if m != nil {
		m.publishFailed.Inc()
	}
}

func (m *Metrics) observeDelivered(d time.Duration) {
	if m != nil {
		m.delivered.Inc()
		m.delay.Observe(d.Seconds())
	}
}

func (m *Metrics) incPersistFailed() {
	if m != nil {
		m.persistFailed.Inc()
	}
}

func (m *Metrics) addNotifyFailed(n int) {
	if m != nil {
		m.notifyFailed.Add(float64(n))
	}
}

func (m *Metrics) setDepth(n int) {
	if m != nil {
		m.queueDepth.Set(float64(n))
	}
}
