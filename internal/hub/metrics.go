package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the real-time tier.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	DistinctUsers     prometheus.Gauge
	EventsInbound     *prometheus.CounterVec
	BroadcastsTotal   prometheus.Counter
	DroppedDeliveries prometheus.Counter
	AuthFailures      prometheus.Counter
	FanoutDuration    prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "loftwire_active_connections",
			Help: "Number of live WebSocket connections.",
		}),
		DistinctUsers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "loftwire_distinct_users",
			Help: "Number of users with at least one live connection.",
		}),
		EventsInbound: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loftwire_events_inbound_total",
			Help: "Inbound client events by event name.",
		}, []string{"event"}),
		BroadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "loftwire_broadcasts_total",
			Help: "Room broadcasts performed.",
		}),
		DroppedDeliveries: factory.NewCounter(prometheus.CounterOpts{
			Name: "loftwire_dropped_deliveries_total",
			Help: "Deliveries abandoned because a client egress buffer stayed full.",
		}),
		AuthFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "loftwire_auth_failures_total",
			Help: "WebSocket upgrade attempts rejected at the gatekeeper.",
		}),
		FanoutDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "loftwire_fanout_duration_seconds",
			Help:    "Wall time of the persist-and-broadcast pipeline per message.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
