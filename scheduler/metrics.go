package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomePanicked  = "panicked"
	outcomeCanceled  = "canceled"
)

// Metrics exports queue activity. A nil *Metrics records nothing.
type Metrics struct {
	Tasks         *prometheus.CounterVec
	FlushDuration *prometheus.HistogramVec
	Pending       *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg when it
// is not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bindparty",
			Subsystem: "scheduler",
			Name:      "tasks_total",
			Help:      "Tasks executed or canceled, by priority and outcome.",
		}, []string{"priority", "outcome"}),
		FlushDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bindparty",
			Subsystem: "scheduler",
			Name:      "flush_duration_seconds",
			Help:      "Duration of one flush pass, by priority.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"priority"}),
		Pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bindparty",
			Subsystem: "scheduler",
			Name:      "pending_tasks",
			Help:      "Live tasks waiting in a queue, by priority.",
		}, []string{"priority"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Tasks, m.FlushDuration, m.Pending} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) task(p Priority, outcome string) {
	if m == nil {
		return
	}
	m.Tasks.WithLabelValues(p.String(), outcome).Inc()
}

func (m *Metrics) flush(p Priority, d time.Duration) {
	if m == nil {
		return
	}
	m.FlushDuration.WithLabelValues(p.String()).Observe(d.Seconds())
}

func (m *Metrics) pending(p Priority, n int) {
	if m == nil {
		return
	}
	m.Pending.WithLabelValues(p.String()).Set(float64(n))
}
