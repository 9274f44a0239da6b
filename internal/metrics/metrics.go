// Package metrics exposes self-metrics for the telemetry pipeline: how many
// hits were handed to the transport, how many deliveries failed, and how
// many sends were suppressed by the enablement policy. They exist so a host
// that already scrapes Prometheus can see whether its own telemetry is
// flowing.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/telemetrykit/usage/internal/logging"
)

const namespace = "usage"

// Pipeline holds the counters for one telemetry session. A nil *Pipeline is
// valid and counts nothing.
type Pipeline struct {
	sent       *prometheus.CounterVec
	failed     *prometheus.CounterVec
	suppressed *prometheus.CounterVec
}

// NewPipeline creates the pipeline counters and registers them with reg.
// A registration failure (for example a duplicate registration) is logged
// and otherwise ignored: the counters still count, they are just not
// exported. Returns nil when reg is nil.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	if reg == nil {
		return nil
	}

	p := &Pipeline{
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hits_sent_total",
			Help:      "Hits successfully delivered to the collection endpoint.",
		}, []string{"hit_type"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hits_failed_total",
			Help:      "Hits whose delivery failed and was dropped.",
		}, []string{"hit_type"}),
		suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hits_suppressed_total",
			Help:      "Sends suppressed because telemetry is disabled.",
		}, []string{"hit_type"}),
	}

	for _, c := range []prometheus.Collector{p.sent, p.failed, p.suppressed} {
		if err := reg.Register(c); err != nil {
			logging.LogDebug(fmt.Sprintf("pipeline metric registration failed: %v", err))
		}
	}
	return p
}

// Sent counts one successful delivery of the given hit type.
func (p *Pipeline) Sent(hitType string) {
	if p != nil {
		p.sent.WithLabelValues(hitType).Inc()
	}
}

// Failed counts one failed delivery of the given hit type.
func (p *Pipeline) Failed(hitType string) {
	if p != nil {
		p.failed.WithLabelValues(hitType).Inc()
	}
}

// Suppressed counts one send suppressed by the enablement policy.
func (p *Pipeline) Suppressed(hitType string) {
	if p != nil {
		p.suppressed.WithLabelValues(hitType).Inc()
	}
}
