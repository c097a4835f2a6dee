package storage

import (
	"github.com/stakeops/upgrade-monitor/model/release"
)

// Candidates represents persistent storage for the roster of monitored nodes
// and their compliance verdicts.
type Candidates interface {

	// Insert adds a new candidate to the roster.
	// Returns storage.ErrAlreadyExists if the candidate is already present.
	Insert(candidate *release.Candidate) error

	// Store inserts or replaces a candidate in the roster.
	Store(candidate *release.Candidate) error

	// ByName retrieves a candidate by its name.
	// Returns storage.ErrNotFound if the candidate is not in the roster.
	ByName(name string) (*release.Candidate, error)

	// All returns a snapshot of the full roster.
	All() ([]*release.Candidate, error)

	// MarkUpdated records an "updated" compliance verdict for the candidate.
	// Returns storage.ErrNotFound if the candidate is not in the roster.
	MarkUpdated(name string) error

	// MarkNotUpdated records a "not updated" compliance verdict for the candidate.
	// Returns storage.ErrNotFound if the candidate is not in the roster.
	MarkNotUpdated(name string) error

	// Remove deletes a candidate from the roster.
	// Returns storage.ErrNotFound if the candidate is not in the roster.
	Remove(name string) error
}
