package metrics

import (
	"strconv"
	"time"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "render"

// Metrics holds the Prometheus collectors for the render pipeline. It
// satisfies the orchestrator and cache observer hooks.
type Metrics struct {
	activeJobs      prometheus.Gauge
	jobsTotal       *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	cacheEvictions  prometheus.Counter
	batchesStarted  prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpRequestTime *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "active_jobs",
			Help:      "Jobs currently holding a provider slot",
		}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "jobs_total",
			Help:      "Finished render jobs by outcome",
		}, []string{"status", "source"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "job_duration_seconds",
			Help:      "Wall time of render jobs",
			Buckets:   []float64{1, 5, 15, 30, 60, 90, 120, 180, 300},
		}, []string{"status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Render cache lookups by result",
		}, []string{"result"}),
		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries removed by LRU or TTL",
		}),
		batchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "batches_started_total",
			Help:      "Batches accepted by the orchestrator",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"path", "method", "status"}),
		httpRequestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method", "status"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.activeJobs, m.jobsTotal, m.jobDuration,
			m.cacheLookups, m.cacheEvictions, m.batchesStarted,
			m.httpRequests, m.httpRequestTime,
		)
	}
	return m
}

func (m *Metrics) BatchStarted(jobs int) {
	m.batchesStarted.Inc()
}

func (m *Metrics) JobStarted() {
	m.activeJobs.Inc()
}

func (m *Metrics) JobFinished(status domain.JobStatus, d time.Duration, fromCache bool) {
	m.activeJobs.Dec()
	source := "provider"
	if fromCache {
		source = "cache"
	}
	m.jobsTotal.WithLabelValues(string(status), source).Inc()
	m.jobDuration.WithLabelValues(string(status)).Observe(d.Seconds())
}

func (m *Metrics) CacheHit() {
	m.cacheLookups.WithLabelValues("hit").Inc()
}

func (m *Metrics) CacheMiss() {
	m.cacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) CacheEvicted(n int) {
	m.cacheEvictions.Add(float64(n))
}

// GinMiddleware instruments requests by route pattern
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// route pattern keeps label cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.httpRequests.WithLabelValues(path, c.Request.Method, status).Inc()
		m.httpRequestTime.WithLabelValues(path, c.Request.Method, status).Observe(time.Since(start).Seconds())
	}
}
