package signalbus

import (
	"reflect"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "signalbus"

// Metrics holds the bus collectors. A nil *Metrics records nothing.
type Metrics struct {
	published   *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
	failures    *prometheus.CounterVec
	subscribers *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "published_total",
			Help:      "Number of signals published, by signal type.",
		}, []string{"signal"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "deliveries_total",
			Help:      "Number of handler invocations, by signal type.",
		}, []string{"signal"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "handler_errors_total",
			Help:      "Number of handler invocations that returned an error or panicked.",
		}, []string{"signal"}),
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "subscribers",
			Help:      "Number of handlers currently subscribed, by signal type.",
		}, []string{"signal"}),
	}
	for _, c := range []prometheus.Collector{m.published, m.deliveries, m.failures, m.subscribers} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "signalbus: register metrics")
		}
	}
	return m, nil
}

func (m *Metrics) observePublish(signalType reflect.Type) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(signalType.String()).Inc()
}

func (m *Metrics) observeDelivery(signalType reflect.Type) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(signalType.String()).Inc()
}

func (m *Metrics) observeFailure(signalType reflect.Type) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(signalType.String()).Inc()
}

func (m *Metrics) setSubscribers(signalType reflect.Type, count int) {
	if m == nil {
		return
	}
	m.subscribers.WithLabelValues(signalType.String()).Set(float64(count))
}
