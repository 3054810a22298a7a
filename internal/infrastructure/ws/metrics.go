package ws

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Metrics holds the relay's prometheus collectors. Gauges are set by the
// Reporter from registry snapshots; counters are bumped by the emitter.
type Metrics struct {
	Connections     prometheus.Gauge
	Sessions        prometheus.Gauge
	Rooms           prometheus.Gauge
	EventsDelivered prometheus.Counter
	EventsDropped   prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relay",
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Number of live WebSocket connections.",
		}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relay",
			Subsystem: "ws",
			Name:      "sessions",
			Help:      "Number of distinct authenticated user sessions.",
		}),
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relay",
			Subsystem: "ws",
			Name:      "rooms",
			Help:      "Number of rooms with at least one member.",
		}),
		EventsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "ws",
			Name:      "events_delivered_total",
			Help:      "Envelopes queued for delivery to subscribers.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "ws",
			Name:      "events_dropped_total",
			Help:      "Envelopes dropped because a subscriber could not keep up.",
		}),
	}
}

func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.Connections, m.Sessions, m.Rooms, m.EventsDelivered, m.EventsDropped)
}

// Reporter periodically snapshots registry sizes and publishes them to the
// observability stack. It only reads shared state and never affects
// connection handling.
type Reporter struct {
	registry *Registry
	metrics  *Metrics
	logger   *zap.SugaredLogger
	interval time.Duration
}

func NewReporter(core *Core, metrics *Metrics, logger *zap.SugaredLogger, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reporter{
		registry: core.registry,
		metrics:  metrics,
		logger:   logger,
		interval: interval,
	}
}

// Run reports on a fixed interval until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *Reporter) report() {
	stats := r.registry.Stats()

	r.metrics.Connections.Set(float64(stats.Connections))
	r.metrics.Sessions.Set(float64(stats.Sessions))
	r.metrics.Rooms.Set(float64(stats.Rooms))

	r.logger.Infow("relay snapshot",
		"connections", stats.Connections,
		"sessions", stats.Sessions,
		"rooms", stats.Rooms,
	)
}
