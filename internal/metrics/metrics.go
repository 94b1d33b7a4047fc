package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsPublishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emberhook_events_published_total",
			Help: "Total number of events published.",
		},
	)

	FanoutEnqueueFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emberhook_fanout_enqueue_failures_total",
			Help: "Total number of fan-out targets that could not be enqueued.",
		},
		[]string{"kind"}, // webhook, plugin
	)

	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emberhook_deliveries_total",
			Help: "Total number of webhook deliveries by status.",
		},
		[]string{"status"}, // delivered, failed, dead
	)

	DeliveryLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "emberhook_delivery_latency_seconds",
			Help:    "Latency of outbound webhook delivery attempts.",
			Buckets: prometheus.DefBuckets,
		},
	)

	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emberhook_retries_total",
			Help: "Total number of delivery retries by reason.",
		},
		[]string{"reason"}, // e.g. http_5xx, timeout, network, other
	)

	DLQTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emberhook_dlq_total",
			Help: "Total number of deliveries moved to DLQ by reason.",
		},
		[]string{"reason"},
	)

	PluginInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emberhook_plugin_invocations_total",
			Help: "Total number of plugin action invocations by plugin and outcome.",
		},
		[]string{"plugin", "status"}, // status: ok, error, skipped
	)

	WorkerBacklog = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "emberhook_worker_backlog",
			Help: "Depth of the delivery worker channel.",
		},
	)

	TopicDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "emberhook_nsq_topic_depth",
			Help: "Depth per NSQ topic and channel.",
		},
		[]string{"topic", "channel"},
	)
)

func MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		EventsPublishedTotal,
		FanoutEnqueueFailures,
		DeliveriesTotal,
		DeliveryLatency,
		RetriesTotal,
		DLQTotal,
		PluginInvocationsTotal,
		WorkerBacklog,
		TopicDepth,
	)
}

// RecordEventPublished counts one accepted dispatch call.
func RecordEventPublished() {
	EventsPublishedTotal.Inc()
}

// RecordEnqueueFailure counts a fan-out target that could not be queued.
func RecordEnqueueFailure(kind string) {
	FanoutEnqueueFailures.WithLabelValues(kind).Inc()
}

// RecordDelivery counts one delivery attempt outcome and its latency.
func RecordDelivery(status string, latency time.Duration) {
	DeliveriesTotal.WithLabelValues(status).Inc()
	if latency > 0 {
		DeliveryLatency.Observe(latency.Seconds())
	}
}

// RecordRetry counts one requeued delivery by failure reason.
func RecordRetry(reason string) {
	RetriesTotal.WithLabelValues(reason).Inc()
}

// RecordDLQ counts one dead-lettered delivery by reason.
func RecordDLQ(reason string) {
	DLQTotal.WithLabelValues(reason).Inc()
}

// RecordPluginInvocation counts one plugin handler invocation outcome.
func RecordPluginInvocation(plugin, status string) {
	PluginInvocationsTotal.WithLabelValues(plugin, status).Inc()
}

// UpdateWorkerBacklog sets the delivery worker channel depth gauge.
func UpdateWorkerBacklog(depth float64) {
	WorkerBacklog.Set(depth)
}

// UpdateTopicDepth sets the per-topic/channel depth gauge.
func UpdateTopicDepth(topic, channel string, depth float64) {
	TopicDepth.WithLabelValues(topic, channel).Set(depth)
}
