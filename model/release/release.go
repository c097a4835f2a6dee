// Package release contains the domain entities of the upgrade monitor: raw
// tagged releases as reported by the upstream feed, the resolved latest
// release the monitor tracks, and the monitored candidate nodes.
package release

import (
	"fmt"
	"strings"
	"time"
)

// Tagged is a single published release as reported by the upstream feed.
// It is transient input to release resolution and is never persisted.
type Tagged struct {
	TagName     string
	PublishedAt time.Time
}

// Release is the resolved latest client release the monitor compares
// candidates against. Name holds the normalized version string extracted
// from the winning tag (no prefix, no leading "v").
type Release struct {
	Name        string
	PublishedAt time.Time
}

// Candidate is a monitored node from the roster. Version is the version
// string the node itself reports, which may not be a clean semver. Updated
// is the last compliance verdict recorded for the node.
type Candidate struct {
	Name    string
	Version string
	Updated bool
}

// ParseCandidate parses a roster entry of the form "name@version". The
// version part may be empty for a node that has not reported one yet; such a
// candidate can never be judged compliant until a version arrives.
func ParseCandidate(entry string) (*Candidate, error) {
	name, version, ok := strings.Cut(entry, "@")
	if !ok {
		return nil, fmt.Errorf("expected entry of the form name@version (%s)", entry)
	}
	if name == "" {
		return nil, fmt.Errorf("roster entry has empty name (%s)", entry)
	}
	return &Candidate{
		Name:    name,
		Version: version,
	}, nil
}
