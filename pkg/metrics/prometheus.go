package metrics

// Gin request metrics, originally based on github.com/zsais/go-gin-prometheus
// with the push gateway dropped and logging moved to zap.

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var reqCnt = &Metric{
	ID:          "reqCnt",
	Name:        "req_total",
	Description: "How many HTTP requests processed, partitioned by status code and HTTP method.",
	Type:        "counter_vec",
	Args:        []string{"code", "method", "url", "ref"},
}

var reqDur = &Metric{
	ID:          "reqDur",
	Name:        "req_dur_ms",
	Description: "The HTTP request latencies in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"code", "method", "url", "ref"},
}

var resSz = &Metric{
	ID:          "resSz",
	Name:        "resp_sz_bytes",
	Description: "The HTTP response sizes in bytes.",
	Type:        "summary_vec",
	Args:        []string{"code", "method", "url", "ref"},
}

var reqSz = &Metric{
	ID:          "reqSz",
	Name:        "req_sz_bytes",
	Description: "The HTTP request sizes in bytes.",
	Type:        "summary_vec",
	Args:        []string{"code", "method", "url", "ref"},
}

const defaultMetricPath = "/metrics"

// URLLabelFn maps a request to its "url" label. Use the route template
// (c.FullPath()) to keep cardinality bounded on parameterised routes.
type URLLabelFn func(c *gin.Context) string

// Prometheus contains the request metrics and the registry serving them.
type Prometheus struct {
	reqCnt       *prometheus.CounterVec
	reqDur       *prometheus.HistogramVec
	reqSz, resSz *prometheus.SummaryVec

	MetricsPath string
	urlLabel    URLLabelFn
	gatherer    prometheus.Gatherer
	log         *zap.SugaredLogger
}

type Options struct {
	Subsystem   string
	MetricsPath string
	URLLabel    URLLabelFn
	// Registry defaults to the prometheus default registry.
	Registry *prometheus.Registry
	Logger   *zap.SugaredLogger
}

func NewPrometheus(opts Options) *Prometheus {
	p := &Prometheus{
		MetricsPath: opts.MetricsPath,
		urlLabel:    opts.URLLabel,
		log:         opts.Logger,
	}
	if p.MetricsPath == "" {
		p.MetricsPath = defaultMetricPath
	}
	if p.urlLabel == nil {
		p.urlLabel = func(c *gin.Context) string {
			if fp := c.FullPath(); fp != "" {
				return fp
			}
			return "unmatched"
		}
	}
	if p.log == nil {
		p.log = zap.NewNop().Sugar()
	}

	var reg prometheus.Registerer = prometheus.DefaultRegisterer
	p.gatherer = prometheus.DefaultGatherer
	if opts.Registry != nil {
		reg, p.gatherer = opts.Registry, opts.Registry
	}

	p.reqCnt = p.register(reg, reqCnt, opts.Subsystem).(*prometheus.CounterVec)
	p.reqDur = p.register(reg, reqDur, opts.Subsystem).(*prometheus.HistogramVec)
	p.resSz = p.register(reg, resSz, opts.Subsystem).(*prometheus.SummaryVec)
	p.reqSz = p.register(reg, reqSz, opts.Subsystem).(*prometheus.SummaryVec)
	return p
}

// register returns the already registered collector when the same metric was
// registered before, so tests and restarts in one process do not panic.
func (p *Prometheus) register(reg prometheus.Registerer, m *Metric, subsystem string) prometheus.Collector {
	c := NewMetric(m, subsystem)
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		p.log.Errorw("metric could not be registered", "metric", m.Name, "err", err)
	}
	m.MetricCollector = c
	return c
}

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

// Router builds the engine exposed on the separate metrics listener.
func (p *Prometheus) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET(p.MetricsPath, gin.WrapH(p.Handler()))
	return r
}

// HandlerFunc is the gin middleware recording request metrics.
func (p *Prometheus) HandlerFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == p.MetricsPath {
			c.Next()
			return
		}

		start := time.Now()
		reqSize := computeApproximateRequestSize(c.Request)

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		url := p.urlLabel(c)
		ref := c.Request.Header.Get(RefererKey)

		p.reqDur.WithLabelValues(status, c.Request.Method, url, ref).Observe(MillisecondsSince(start))
		p.reqCnt.WithLabelValues(status, c.Request.Method, url, ref).Inc()
		p.reqSz.WithLabelValues(status, c.Request.Method, url, ref).Observe(float64(reqSize))
		p.resSz.WithLabelValues(status, c.Request.Method, url, ref).Observe(float64(c.Writer.Size()))
	}
}

func computeApproximateRequestSize(r *http.Request) int {
	s := 0
	if r.URL != nil {
		s = len(r.URL.Path)
	}
	s += len(r.Method)
	s += len(r.Proto)
	for name, values := range r.Header {
		s += len(name)
		for _, value := range values {
			s += len(value)
		}
	}
	s += len(r.Host)
	if r.ContentLength != -1 {
		s += int(r.ContentLength)
	}
	return s
}
