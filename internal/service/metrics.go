package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the learner gauges exported on /metrics.
type Metrics struct {
	task        prometheus.Gauge
	featureDim  prometheus.Gauge
	headClasses prometheus.Gauge
	adapterSets prometheus.Gauge
	taskOpen    prometheus.Gauge
	tasksTotal  prometheus.Counter
}

// NewMetrics creates the learner metrics and registers them with reg when
// reg is non-nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "incnet",
			Subsystem: "learner",
			Name:      name,
			Help:      help,
		})
	}
	m := &Metrics{
		task:        gauge("task", "Index of the newest task, -1 before the first"),
		featureDim:  gauge("feature_dim", "Width of the feature vector the cumulative head consumes"),
		headClasses: gauge("head_classes", "Output width of the cumulative head"),
		adapterSets: gauge("adapter_sets", "Committed adapter sets"),
		taskOpen:    gauge("task_open", "1 while a task is open"),
		tasksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "incnet",
			Subsystem: "learner",
			Name:      "tasks_total",
			Help:      "Total number of tasks begun",
		}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.task, m.featureDim, m.headClasses, m.adapterSets, m.taskOpen, m.tasksTotal} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}
