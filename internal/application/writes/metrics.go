package writes

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts write outcomes. A nil *Metrics records nothing.
type Metrics struct {
	Writes  *prometheus.CounterVec
	Replays *prometheus.CounterVec
	Pending prometheus.Gauge
	Failed  prometheus.Gauge
}

// NewMetrics registers the write-path collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Writes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "outreach_writes_total",
			Help: "Document writes by outcome (applied, queued, failed)",
		}, []string{"outcome"}),
		Replays: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "outreach_write_replays_total",
			Help: "Replay attempts of queued writes by outcome (succeeded, retrying, failed)",
		}, []string{"outcome"}),
		Pending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "outreach_writes_pending",
			Help: "Queued writes waiting for replay",
		}),
		Failed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "outreach_writes_failed",
			Help: "Queued writes that permanently failed",
		}),
	}
}

func (m *Metrics) write(outcome string) {
	if m != nil {
		m.Writes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) replay(outcome string) {
	if m != nil {
		m.Replays.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) setBacklog(pending, failed int) {
	if m != nil {
		m.Pending.Set(float64(pending))
		m.Failed.Set(float64(failed))
	}
}
