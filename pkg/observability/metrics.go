package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/extract"
	"github.com/ajitpratap0/jira-extract/pkg/pagination"
)

const namespace = "jira_extract"

// Recorder exports extraction metrics to Prometheus. It implements the
// observer hooks of the retry policy, the pagination controller, the
// extraction job and the HTTP client.
type Recorder struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retries         *prometheus.CounterVec
	pages           prometheus.Counter
	pageRecords     prometheus.Histogram
	jobs            *prometheus.CounterVec
	rows            *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	rss             prometheus.Gauge
	cpu             prometheus.Gauge
}

// NewRecorder creates a recorder on its own registry, which also carries
// the Go runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Jira API requests by method, host and status code",
		}, []string{"method", "host", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of Jira API requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		}, []string{"method", "host"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retried operations by error type",
		}, []string{"error_type"}),
		pages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Search result pages handled",
		}),
		pageRecords: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "page_records",
			Help:      "Records per search result page",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),
		jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Finished extraction jobs by mode and status",
		}, []string{"mode", "status"}),
		rows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows delivered to sinks by mode",
		}, []string{"mode"}),
		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of extraction jobs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"mode"}),
		rss: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resource",
			Name:      "rss_bytes",
			Help:      "Resident set size sampled at the last snapshot",
		}),
		cpu: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resource",
			Name:      "cpu_percent",
			Help:      "CPU usage sampled at the last snapshot",
		}),
	}
}

// Registry returns the registry metrics are registered on.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveRequest implements clients.RequestObserver.
func (r *Recorder) ObserveRequest(method, host string, status int, duration time.Duration, err error) {
	code := strconv.Itoa(status)
	if err != nil && status == 0 {
		code = "error"
	}
	r.requests.WithLabelValues(method, host, code).Inc()
	r.requestDuration.WithLabelValues(method, host).Observe(duration.Seconds())
}

// OnRetry implements retry.Observer.
func (r *Recorder) OnRetry(_ int, _ time.Duration, err error) {
	r.retries.WithLabelValues(string(errors.TypeOf(err))).Inc()
}

// OnPage implements pagination.PageObserver.
func (r *Recorder) OnPage(_ pagination.PageCursor, records int) {
	r.pages.Inc()
	r.pageRecords.Observe(float64(records))
}

// OnJobDone implements extract.Observer.
func (r *Recorder) OnJobDone(report *extract.Report, err error) {
	mode := string(report.Mode)
	status := "success"
	if err != nil {
		status = string(errors.TypeOf(err))
	}
	r.jobs.WithLabelValues(mode, status).Inc()
	r.rows.WithLabelValues(mode).Add(float64(report.Rows))
	r.jobDuration.WithLabelValues(mode).Observe(report.Duration.Seconds())
}

// SetResources records a resource snapshot.
func (r *Recorder) SetResources(u ResourceUsage) {
	r.rss.Set(float64(u.RSSBytes))
	r.cpu.Set(u.CPUPercent)
}
