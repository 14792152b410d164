// Package observe exports the outward event feed of a run to external
// monitoring: Prometheus metrics and an MQTT event stream. Both types are
// feed sinks and depend only on the trace package.
package observe

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dtnsim/dtnsim/sim/trace"
)

// Collector bundles the Prometheus metrics of one run and updates them from
// the event feed.
type Collector struct {
	gatherer prometheus.Gatherer

	Events          *prometheus.CounterVec
	Drops           *prometheus.CounterVec
	ConnectionsUp   prometheus.Gauge
	SimulatedTime   prometheus.Gauge
	DeliveryLatency prometheus.Histogram
	DeliveryHops    prometheus.Histogram
}

// NewCollector registers the simulator metrics against reg, defaulting to the
// global Prometheus registry when nil. Registering twice against the same
// registry returns the existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	events, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dtnsim_events_total",
		Help: "Outward simulation events, labeled by kind.",
	}, []string{"kind"}), "dtnsim_events_total")
	if err != nil {
		return nil, err
	}
	drops, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dtnsim_drops_total",
		Help: "Message copies removed from a buffer, labeled by reason.",
	}, []string{"reason"}), "dtnsim_drops_total")
	if err != nil {
		return nil, err
	}
	up, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dtnsim_connections_up",
		Help: "Connections currently up.",
	}), "dtnsim_connections_up")
	if err != nil {
		return nil, err
	}
	clock, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dtnsim_simulated_time_seconds",
		Help: "Simulation clock of the most recent event.",
	}), "dtnsim_simulated_time_seconds")
	if err != nil {
		return nil, err
	}
	latency, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dtnsim_delivery_latency_seconds",
		Help:    "Simulated seconds from message creation to first delivery.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	}), "dtnsim_delivery_latency_seconds")
	if err != nil {
		return nil, err
	}
	hops, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dtnsim_delivery_hops",
		Help:    "Hop count of delivered messages.",
		Buckets: prometheus.LinearBuckets(1, 1, 10),
	}), "dtnsim_delivery_hops")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:        gatherer,
		Events:          events,
		Drops:           drops,
		ConnectionsUp:   up,
		SimulatedTime:   clock,
		DeliveryLatency: latency,
		DeliveryHops:    hops,
	}, nil
}

// Emit updates the metrics from one feed record.
func (c *Collector) Emit(rec trace.Record) {
	if c == nil {
		return
	}
	c.Events.WithLabelValues(string(rec.Kind)).Inc()
	c.SimulatedTime.Set(rec.Time)
	switch rec.Kind {
	case trace.ConnectionUp:
		c.ConnectionsUp.Inc()
	case trace.ConnectionDown:
		c.ConnectionsUp.Dec()
	case trace.MessageDropped:
		c.Drops.WithLabelValues(rec.Reason).Inc()
	case trace.MessageExpired:
		c.Drops.WithLabelValues("expired").Inc()
	case trace.MessageDelivered:
		c.DeliveryLatency.Observe(rec.Time - rec.Created)
		c.DeliveryHops.Observe(float64(rec.Hops))
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, g prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return g, nil
}
