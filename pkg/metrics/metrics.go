package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var HistogramBuckets = []float64{
	// fast
	5, 10, 25, 50, 75, 100, 150, 200, 300, 400, 500,
	// medium
	750, 1000, 1500, 2000,
	// slow, mostly roll-forward batches
	3000, 5000, 10000, 30000, 60000, 120000, 300000,
}

// Metric is a definition for the name, description, type, ID, and
// prometheus.Collector type (i.e. CounterVec, Summary, etc) of each metric
type Metric struct {
	MetricCollector prometheus.Collector
	ID              string
	Name            string
	Description     string
	Type            string
	Args            []string
}

// NewMetric associates prometheus.Collector based on Metric.Type
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	switch m.Type {
	case "counter_vec":
		return prometheus.NewCounterVec(prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description}, m.Args)
	case "counter":
		return prometheus.NewCounter(prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description})
	case "gauge_vec":
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description}, m.Args)
	case "gauge":
		return prometheus.NewGauge(prometheus.GaugeOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description})
	case "histogram_vec":
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description, Buckets: HistogramBuckets}, m.Args)
	case "histogram":
		return prometheus.NewHistogram(prometheus.HistogramOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description, Buckets: HistogramBuckets})
	case "summary_vec":
		return prometheus.NewSummaryVec(prometheus.SummaryOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description}, m.Args)
	case "summary":
		return prometheus.NewSummary(prometheus.SummaryOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description})
	}
	return nil
}

var MetricsBusinessProcess = &Metric{
	ID:          "bpDur",
	Name:        "bp_dur",
	Description: "process latency in milliseconds",
	Type:        "histogram_vec",
	Args:        []string{"type", "subtype"},
}

var MetricsRollforwardOutcome = &Metric{
	ID:          "rfOutcome",
	Name:        "rollforward_subscriptions_total",
	Description: "Subscriptions touched by the roll-forward job, by transition and outcome.",
	Type:        "counter_vec",
	Args:        []string{"transition", "outcome"},
}

var MetricsRollforwardLastRun = &Metric{
	ID:          "rfLastRun",
	Name:        "rollforward_last_run_timestamp_seconds",
	Description: "Unix time of the last completed roll-forward run.",
	Type:        "gauge",
}

const (
	RefererKey = "X-Referer"

	subsystem = "subscriptions"
)

// Business holds the domain metrics recorded by services.
type Business struct {
	process     *prometheus.HistogramVec
	rollforward *prometheus.CounterVec
	lastRun     prometheus.Gauge
}

// NewBusiness registers the business metrics on reg. A nil reg uses the
// default registerer.
func NewBusiness(reg prometheus.Registerer) (*Business, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	b := &Business{
		process:     NewMetric(MetricsBusinessProcess, subsystem).(*prometheus.HistogramVec),
		rollforward: NewMetric(MetricsRollforwardOutcome, subsystem).(*prometheus.CounterVec),
		lastRun:     NewMetric(MetricsRollforwardLastRun, subsystem).(prometheus.Gauge),
	}
	for _, c := range []prometheus.Collector{b.process, b.rollforward, b.lastRun} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// ObserveProcess records the latency of a business process started at start.
func (b *Business) ObserveProcess(typ, subtype string, start time.Time) {
	if b == nil {
		return
	}
	b.process.WithLabelValues(typ, subtype).Observe(MillisecondsSince(start))
}

func (b *Business) RollforwardOutcome(transition, outcome string, n int) {
	if b == nil || n == 0 {
		return
	}
	b.rollforward.WithLabelValues(transition, outcome).Add(float64(n))
}

func (b *Business) RollforwardFinished(at time.Time) {
	if b == nil {
		return
	}
	b.lastRun.Set(float64(at.Unix()))
}

func MillisecondsSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
