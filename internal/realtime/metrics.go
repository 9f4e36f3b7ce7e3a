package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	ConnectionsActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stream_connections_active",
		Help: "Currently registered stream connections per audience",
	}, []string{"audience"})
	EventsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_events_sent_total",
		Help: "Total events pushed onto stream connections",
	}, []string{"event"})
	SendFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stream_send_failures_total",
		Help: "Total per-connection push failures",
	})
	SnapshotReplaySize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stream_snapshot_replay_orders",
		Help:    "Orders replayed per snapshot on connect",
		Buckets: prometheus.ExponentialBuckets(1, 2, 8),
	})
)

func init() {
	prometheus.MustRegister(ConnectionsActive, EventsSent, SendFailures, SnapshotReplaySize)
}
