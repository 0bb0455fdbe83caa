package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs       *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	suspicious *prometheus.GaugeVec
	flaggedIPs prometheus.Gauge
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker and returns err untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// SetSuspicious replaces the per-IP failure gauge with the latest scan result.
func (m *Metrics) SetSuspicious(flagged map[string]int) {
	if m == nil {
		return
	}
	m.suspicious.Reset()
	for ip, count := range flagged {
		m.suspicious.WithLabelValues(ip).Set(float64(count))
	}
	m.flaggedIPs.Set(float64(len(flagged)))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "facturia_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "facturia_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "facturia_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	suspicious := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "facturia_audit_suspicious_failures",
		Help: "Failed operations per flagged IP address in the last scanned day.",
	}, []string{"ip"})
	flagged := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "facturia_audit_suspicious_ips",
		Help: "Number of IP addresses flagged by the last suspicious activity scan.",
	})
	registerer.MustRegister(runs, failures, duration, suspicious, flagged)
	return &Metrics{runs: runs, failures: failures, duration: duration, suspicious: suspicious, flaggedIPs: flagged}
}
