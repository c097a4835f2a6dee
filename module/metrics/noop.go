package metrics

import (
	"time"
)

// NoopCollector implements the metrics interfaces with no operations, for
// tests and tools that do not report metrics.
type NoopCollector struct{}

func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (nc *NoopCollector) ReleaseResolved(version string, publishedAt time.Time)     {}
func (nc *NoopCollector) FeedError()                                                {}
func (nc *NoopCollector) CandidateUpdated()                                         {}
func (nc *NoopCollector) CandidateNotUpdated()                                      {}
func (nc *NoopCollector) EvaluationComplete(candidates int, duration time.Duration) {}
