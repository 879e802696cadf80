// Package metrics provides Prometheus metrics for the synchronization
// engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	groupsMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "framesync",
		Subsystem: "sync",
		Name:      "groups_matched_total",
		Help:      "Total synchronized groups emitted",
	}, []string{"pipeline"})

	messagesMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "framesync",
		Subsystem: "sync",
		Name:      "messages_matched_total",
		Help:      "Total messages that left their buffer inside a group",
	}, []string{"pipeline", "stream"})

	messagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "framesync",
		Subsystem: "sync",
		Name:      "messages_dropped_total",
		Help:      "Total messages dropped without a match",
	}, []string{"pipeline", "stream", "reason"})

	groupSpread = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "framesync",
		Subsystem: "sync",
		Name:      "group_spread_seconds",
		Help:      "Largest pairwise timestamp difference inside emitted groups",
		Buckets:   []float64{.0005, .001, .002, .005, .01, .017, .033, .05, .1},
	}, []string{"pipeline"})

	bufferDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "framesync",
		Subsystem: "sync",
		Name:      "buffer_depth",
		Help:      "Messages currently buffered per stream",
	}, []string{"pipeline", "stream"})
)

// RecordGroup records one emitted group and its member streams.
func RecordGroup(pipeline string, streams []string, spreadSeconds float64) {
	groupsMatched.WithLabelValues(pipeline).Inc()
	groupSpread.WithLabelValues(pipeline).Observe(spreadSeconds)
	for _, stream := range streams {
		messagesMatched.WithLabelValues(pipeline, stream).Inc()
	}
}

// RecordDrop records one dropped message.
func RecordDrop(pipeline, stream, reason string) {
	messagesDropped.WithLabelValues(pipeline, stream, reason).Inc()
}

// SetBufferDepth sets the current buffer depth for a stream.
func SetBufferDepth(pipeline, stream string, depth int) {
	bufferDepth.WithLabelValues(pipeline, stream).Set(float64(depth))
}

// DeletePipelineMetrics removes all metrics for a pipeline, e.g. after a
// configuration reload removed it.
func DeletePipelineMetrics(pipeline string) {
	groupsMatched.DeletePartialMatch(prometheus.Labels{"pipeline": pipeline})
	messagesMatched.DeletePartialMatch(prometheus.Labels{"pipeline": pipeline})
	messagesDropped.DeletePartialMatch(prometheus.Labels{"pipeline": pipeline})
	groupSpread.DeletePartialMatch(prometheus.Labels{"pipeline": pipeline})
	bufferDepth.DeletePartialMatch(prometheus.Labels{"pipeline": pipeline})
}
