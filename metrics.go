package httpdispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics bundles the Manager's Prometheus instruments, grounded on
// felipecampolina-FCReverseProxy/internal/metrics/metrics.go's
// package-level-vecs-plus-helper-methods style. Each Manager registers its
// own metrics instance, so Managers given distinct registerers via
// WithPrometheusRegisterer don't collide; two Managers registering with
// the same registry (including the default one) use the same metric
// names, and the second registration panics.
type metrics struct {
	queueDepth     *prometheus.GaugeVec
	cacheResult    *prometheus.CounterVec
	retries        *prometheus.CounterVec
	redirects      prometheus.Counter
	workDuration   prometheus.Histogram
}

func newMetrics(registerer prometheus.Registerer) *metrics {
	m := &metrics{
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "httpdispatch_queue_depth",
			Help: "Current number of Works in each internal queue.",
		}, []string{"queue"}),
		cacheResult: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpdispatch_cache_result_total",
			Help: "Cache consultation outcomes during submission.",
		}, []string{"result"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpdispatch_retries_total",
			Help: "Retries scheduled by kind.",
		}, []string{"kind"}),
		redirects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "httpdispatch_redirects_total",
			Help: "Redirects followed.",
		}),
		workDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "httpdispatch_work_duration_seconds",
			Help:    "Wall-clock time from submission to terminal state.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if registerer != nil {
		registerer.MustRegister(m.queueDepth, m.cacheResult, m.retries, m.redirects, m.workDuration)
	}
	return m
}

func (m *metrics) setQueueDepth(queue string, n int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(queue).Set(float64(n))
}

func (m *metrics) observeCacheResult(result string) {
	if m == nil {
		return
	}
	m.cacheResult.WithLabelValues(result).Inc()
}

func (m *metrics) observeRetry(kind string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(kind).Inc()
}

func (m *metrics) observeRedirect() {
	if m == nil {
		return
	}
	m.redirects.Inc()
}

func (m *metrics) observeWorkDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.workDuration.Observe(d.Seconds())
}
