package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Save results.
const (
	SaveOK     = "ok"
	SaveFailed = "error"
)

// SchedulerCollector exposes tick-scheduler and autosave metrics.
type SchedulerCollector struct {
	gatherer prometheus.Gatherer

	TickWork     prometheus.Histogram
	Overruns     prometheus.Counter
	SaveDuration prometheus.Histogram
	Saves        *prometheus.CounterVec
}

// NewSchedulerCollector registers scheduler metrics against the provided registerer.
func NewSchedulerCollector(reg prometheus.Registerer) (*SchedulerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	work := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "netexpanse_scheduler_tick_work_seconds",
		Help:    "Time the scheduler spent in tick listeners per tick.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1},
	})
	work, err := registerHistogram(reg, work, "netexpanse_scheduler_tick_work_seconds")
	if err != nil {
		return nil, err
	}

	overruns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netexpanse_scheduler_overruns_total",
		Help: "Real-time ticks whose listeners ran longer than the tick interval.",
	})
	overruns, err = registerCounter(reg, overruns, "netexpanse_scheduler_overruns_total")
	if err != nil {
		return nil, err
	}

	saveDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "netexpanse_save_duration_seconds",
		Help:    "Duration of save-game writes.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	})
	saveDuration, err = registerHistogram(reg, saveDuration, "netexpanse_save_duration_seconds")
	if err != nil {
		return nil, err
	}

	saves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netexpanse_saves_total",
		Help: "Save-game writes, labeled by result.",
	}, []string{"result"})
	saves, err = registerCounterVec(reg, saves, "netexpanse_saves_total")
	if err != nil {
		return nil, err
	}

	return &SchedulerCollector{
		gatherer:     gatherer,
		TickWork:     work,
		Overruns:     overruns,
		SaveDuration: saveDuration,
		Saves:        saves,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SchedulerCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveTickWork records how long one tick's listeners ran.
func (c *SchedulerCollector) ObserveTickWork(d time.Duration) {
	if c == nil || c.TickWork == nil {
		return
	}
	c.TickWork.Observe(d.Seconds())
}

// TickOverrun increments the overrun counter.
func (c *SchedulerCollector) TickOverrun() {
	if c == nil || c.Overruns == nil {
		return
	}
	c.Overruns.Inc()
}

// ObserveSave records one save attempt.
func (c *SchedulerCollector) ObserveSave(d time.Duration, err error) {
	if c == nil {
		return
	}
	result := SaveOK
	if err != nil {
		result = SaveFailed
	}
	if c.Saves != nil {
		c.Saves.WithLabelValues(result).Inc()
	}
	if c.SaveDuration != nil {
		c.SaveDuration.Observe(d.Seconds())
	}
}
