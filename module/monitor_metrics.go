package module

import (
	"time"
)

// MonitorMetrics exposes instrumentation for the upgrade monitor engine.
type MonitorMetrics interface {

	// ReleaseResolved is called when a new latest release has been resolved.
	ReleaseResolved(version string, publishedAt time.Time)

	// FeedError is called when a call to the upstream release feed fails.
	FeedError()

	// CandidateUpdated is called when an "updated" verdict is written.
	CandidateUpdated()

	// CandidateNotUpdated is called when a "not updated" verdict is written.
	CandidateNotUpdated()

	// EvaluationComplete is called at the end of each evaluation pass with the
	// roster size and the pass duration.
	EvaluationComplete(candidates int, duration time.Duration)
}
