package index

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "wordindex"
	metricsSubsystem = "index"
)

// metrics are the counters updated by the scheduler. Gauges that mirror
// current state are read at scrape time by collector.
type metrics struct {
	applied      *prometheus.CounterVec
	coalesced    prometheus.Counter
	redispatched prometheus.Counter
	declined     prometheus.Counter
	passes       *prometheus.CounterVec
}

func newMetrics() *metrics {
	return &metrics{
		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "tasks_applied_total",
			Help:      "Index tasks applied by the scheduler.",
		}, []string{"kind"}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "syncs_coalesced_total",
			Help:      "File syncs folded into a pass already in flight.",
		}),
		redispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "passes_redispatched_total",
			Help:      "Passes dispatched again because the file changed while processing.",
		}),
		declined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "pool_declined_total",
			Help:      "Times the worker pool declined a staged file.",
		}),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "passes_finished_total",
			Help:      "Processing passes reported finished, by result.",
		}, []string{"result"}),
	}
}

// collector exposes the manager's counters plus point-in-time gauges.
type collector struct {
	m *Manager

	queueDepth *prometheus.Desc
	stagedNow  *prometheus.Desc
	files      *prometheus.Desc
	words      *prometheus.Desc
}

func newCollector(m *Manager) *collector {
	return &collector{
		m: m,
		queueDepth: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, metricsSubsystem, "queue_depth"),
			"Tasks waiting in the queue, by priority group.",
			[]string{"group"}, nil,
		),
		stagedNow: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, metricsSubsystem, "staged_files"),
			"Files waiting for a free worker.",
			nil, nil,
		),
		files: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, metricsSubsystem, "files"),
			"File records, by state.",
			[]string{"state"}, nil,
		),
		words: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, metricsSubsystem, "words"),
			"Distinct indexed words.",
			nil, nil,
		),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	c.m.metrics.applied.Describe(ch)
	c.m.metrics.coalesced.Describe(ch)
	c.m.metrics.redispatched.Describe(ch)
	c.m.metrics.declined.Describe(ch)
	c.m.metrics.passes.Describe(ch)
	ch <- c.queueDepth
	ch <- c.stagedNow
	ch <- c.files
	ch <- c.words
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	c.m.metrics.applied.Collect(ch)
	c.m.metrics.coalesced.Collect(ch)
	c.m.metrics.redispatched.Collect(ch)
	c.m.metrics.declined.Collect(ch)
	c.m.metrics.passes.Collect(ch)

	depth := c.m.QueueLen()
	for g := Group(0); g < numGroups; g++ {
		ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(depth[g]), g.String())
	}
	ch <- prometheus.MustNewConstMetric(c.stagedNow, prometheus.GaugeValue, float64(c.m.Staged()))

	st := c.m.store.Stats()
	ch <- prometheus.MustNewConstMetric(c.files, prometheus.GaugeValue, float64(st.Valid), "valid")
	ch <- prometheus.MustNewConstMetric(c.files, prometheus.GaugeValue, float64(st.Processing), "processing")
	ch <- prometheus.MustNewConstMetric(c.files, prometheus.GaugeValue, float64(st.Invalid), "invalid")
	ch <- prometheus.MustNewConstMetric(c.words, prometheus.GaugeValue, float64(st.Words))
}
