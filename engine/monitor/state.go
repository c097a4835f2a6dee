package monitor

import (
	"sync"

	"github.com/stakeops/upgrade-monitor/model/release"
)

// LatestRelease holds the process-wide cached resolved release. It is an
// explicit, injectable holder rather than package state, so tests can seed
// and inspect it and multiple monitors (one per client family) can run in the
// same process without interference.
//
// The resolver is the only writer; the evaluator must tolerate reading nil.
type LatestRelease struct {
	mu  sync.RWMutex
	rel *release.Release
}

func NewLatestRelease() *LatestRelease {
	return &LatestRelease{}
}

// Get returns the cached release, or nil if none has been resolved yet.
func (l *LatestRelease) Get() *release.Release {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rel
}

// Set replaces the cached release.
func (l *LatestRelease) Set(rel *release.Release) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rel = rel
}
