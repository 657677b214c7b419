// Package metrics provides Prometheus metrics for the offline agent.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "news_offline"

var (
	// QueueItemsTotal counts queue items by drain outcome.
	QueueItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_items_total",
			Help:      "Sync queue items processed, by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// DrainDuration measures complete drain passes.
	DrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "drain_duration_seconds",
			Help:      "Duration of sync queue drains in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// QueueDepth is the number of undelivered items after the last drain.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of undelivered sync queue items",
		},
	)

	// ReadsTotal counts read-through results by entity and source.
	ReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reads_total",
			Help:      "Read-through results by entity and source (remote, cache, miss)",
		},
		[]string{"entity", "source"},
	)

	// EvictionsTotal counts records removed by cache maintenance.
	EvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Records removed by cache maintenance, by collection and reason",
		},
		[]string{"collection", "reason"},
	)

	// Online is 1 while the connectivity monitor reports online.
	Online = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online",
			Help:      "Connectivity state (1 = online, 0 = offline)",
		},
	)

	// RemoteRequestsTotal counts RPC calls by procedure and result class.
	RemoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_requests_total",
			Help:      "Remote procedure calls by procedure and result",
		},
		[]string{"procedure", "result"},
	)
)

// RecordItem records the outcome of one queue item.
func RecordItem(operation, outcome string) {
	QueueItemsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordRead records where a read-through result came from.
func RecordRead(entity, source string) {
	ReadsTotal.WithLabelValues(entity, source).Inc()
}

// RecordEvictions adds n removed records.
func RecordEvictions(collection, reason string, n int) {
	if n > 0 {
		EvictionsTotal.WithLabelValues(collection, reason).Add(float64(n))
	}
}

// SetOnline updates the connectivity gauge.
func SetOnline(online bool) {
	if online {
		Online.Set(1)
		return
	}
	Online.Set(0)
}
