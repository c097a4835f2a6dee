package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MonitorCollector instruments the upgrade monitor engine.
type MonitorCollector struct {
	releasesResolved   prometheus.Counter
	latestReleaseTime  *prometheus.GaugeVec
	feedErrors         prometheus.Counter
	verdictsUpdated    prometheus.Counter
	verdictsNotUpdated prometheus.Counter
	rosterSize         prometheus.Gauge
	passDuration       prometheus.Histogram
}

func NewMonitorCollector() *MonitorCollector {

	mc := &MonitorCollector{

		releasesResolved: promauto.NewCounter(prometheus.CounterOpts{
			Name:      "resolved_total",
			Namespace: namespaceMonitor,
			Subsystem: subsystemRelease,
			Help:      "number of times a new latest release was resolved",
		}),

		latestReleaseTime: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name:      "latest_published_seconds",
			Namespace: namespaceMonitor,
			Subsystem: subsystemRelease,
			Help:      "publish time of the latest resolved release as a unix timestamp",
		}, []string{LabelVersion}),

		feedErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name:      "feed_errors_total",
			Namespace: namespaceMonitor,
			Subsystem: subsystemRelease,
			Help:      "number of failed calls to the upstream release feed",
		}),

		verdictsUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Name:      "verdicts_updated_total",
			Namespace: namespaceMonitor,
			Subsystem: subsystemCandidate,
			Help:      "number of updated verdicts written",
		}),

		verdictsNotUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Name:      "verdicts_not_updated_total",
			Namespace: namespaceMonitor,
			Subsystem: subsystemCandidate,
			Help:      "number of not-updated verdicts written",
		}),

		rosterSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name:      "roster_size",
			Namespace: namespaceMonitor,
			Subsystem: subsystemCandidate,
			Help:      "number of candidates evaluated in the last pass",
		}),

		passDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:      "pass_duration_seconds",
			Namespace: namespaceMonitor,
			Subsystem: subsystemCandidate,
			Help:      "duration of evaluation passes",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
	}

	return mc
}

func (mc *MonitorCollector) ReleaseResolved(version string, publishedAt time.Time) {
	mc.releasesResolved.Inc()
	mc.latestReleaseTime.With(prometheus.Labels{LabelVersion: version}).
		Set(float64(publishedAt.Unix()))
}

func (mc *MonitorCollector) FeedError() {
	mc.feedErrors.Inc()
}

func (mc *MonitorCollector) CandidateUpdated() {
	mc.verdictsUpdated.Inc()
}

func (mc *MonitorCollector) CandidateNotUpdated() {
	mc.verdictsNotUpdated.Inc()
}

func (mc *MonitorCollector) EvaluationComplete(candidates int, duration time.Duration) {
	mc.rosterSize.Set(float64(candidates))
	mc.passDuration.Observe(duration.Seconds())
}
