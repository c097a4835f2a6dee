package storage

import (
	"github.com/stakeops/upgrade-monitor/model/release"
)

// Releases represents persistent storage for the latest resolved client release.
type Releases interface {

	// Store records the given release as the latest known release. It is
	// idempotent and overwrites any previously stored release.
	Store(rel *release.Release) error

	// Latest retrieves the latest recorded release.
	// Returns storage.ErrNotFound if no release has been recorded yet.
	Latest() (*release.Release, error)
}
