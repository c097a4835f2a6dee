package unittest

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/stakeops/upgrade-monitor/model/release"
)

// ReleaseFixture returns a resolved release with a random patch version,
// published an hour ago.
func ReleaseFixture(opts ...func(*release.Release)) *release.Release {
	rel := &release.Release{
		Name:        fmt.Sprintf("1.15.%d", rand.Intn(100)),
		PublishedAt: time.Now().UTC().Add(-time.Hour),
	}
	for _, opt := range opts {
		opt(rel)
	}
	return rel
}

// WithReleaseName sets the version name of a release fixture.
func WithReleaseName(name string) func(*release.Release) {
	return func(rel *release.Release) {
		rel.Name = name
	}
}

// WithPublishedAt sets the publish instant of a release fixture.
func WithPublishedAt(publishedAt time.Time) func(*release.Release) {
	return func(rel *release.Release) {
		rel.PublishedAt = publishedAt
	}
}

// CandidateFixture returns a roster entry with a random name, reporting the
// given version.
func CandidateFixture(opts ...func(*release.Candidate)) *release.Candidate {
	candidate := &release.Candidate{
		Name:    fmt.Sprintf("validator-%d", rand.Intn(1_000_000)),
		Version: "1.15.0",
		Updated: false,
	}
	for _, opt := range opts {
		opt(candidate)
	}
	return candidate
}

// WithVersion sets the reported version of a candidate fixture.
func WithVersion(version string) func(*release.Candidate) {
	return func(candidate *release.Candidate) {
		candidate.Version = version
	}
}

// WithUpdated sets the last recorded verdict of a candidate fixture.
func WithUpdated(updated bool) func(*release.Candidate) {
	return func(candidate *release.Candidate) {
		candidate.Updated = updated
	}
}

// TaggedReleaseFixture returns an upstream feed entry for the given tag.
func TaggedReleaseFixture(tagName string, publishedAt time.Time) release.Tagged {
	return release.Tagged{
		TagName:     tagName,
		PublishedAt: publishedAt,
	}
}
