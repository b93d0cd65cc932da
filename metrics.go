package tandem

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors returns Prometheus collectors that report the state of this
// runtime. They read the runtime's counters at scrape time.
func (r *Runtime) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "tandem_workers",
				Help: "Number of workers in the pool",
			},
			func() float64 {
				return float64(r.Size())
			}),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "tandem_running_workers",
				Help: "Number of workers currently executing a task",
			},
			func() float64 {
				return float64(r.RunningWorkers())
			}),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "tandem_waiting_tasks",
				Help: "Number of submitted tasks that have not started yet",
			},
			func() float64 {
				return float64(r.WaitingTasks())
			}),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "tandem_submitted_tasks_total",
				Help: "Number of tasks submitted to the pool",
			},
			func() float64 {
				return float64(r.SubmittedTasks())
			}),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "tandem_successful_tasks_total",
				Help: "Number of tasks that ran to completion",
			},
			func() float64 {
				return float64(r.SuccessfulTasks())
			}),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "tandem_failed_tasks_total",
				Help: "Number of tasks that panicked",
			},
			func() float64 {
				return float64(r.FailedTasks())
			}),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "tandem_dropped_tasks_total",
				Help: "Number of tasks rejected because the runtime was stopped",
			},
			func() float64 {
				return float64(r.DroppedTasks())
			}),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "tandem_race_dropped_candidates_total",
				Help: "Number of race candidates never submitted because of admission control",
			},
			func() float64 {
				return float64(r.DroppedCandidates())
			}),
		&binCollector{bins: r.bins},
	}
}

// RegisterMetrics registers the runtime's collectors with reg.
func (r *Runtime) RegisterMetrics(reg prometheus.Registerer) error {
	for _, collector := range r.Collectors() {
		if err := reg.Register(collector); err != nil {
			return fmt.Errorf("registering runtime metrics: %w", err)
		}
	}
	return nil
}

var binSecondsDesc = prometheus.NewDesc(
	"tandem_bin_seconds_total",
	"Accumulated task time per duration bin, in seconds",
	[]string{"bin"},
	nil,
)

// binCollector exports one counter series per duration bin.
type binCollector struct {
	bins *Bins
}

func (c *binCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- binSecondsDesc
}

func (c *binCollector) Collect(ch chan<- prometheus.Metric) {
	for _, name := range c.bins.Names() {
		ch <- prometheus.MustNewConstMetric(binSecondsDesc, prometheus.CounterValue, c.bins.Duration(name).Seconds(), name)
	}
}
