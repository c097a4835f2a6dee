package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/stakeops/upgrade-monitor/model/release"
)

// InsertCandidate adds a new roster entry for the candidate. It fails with
// storage.ErrAlreadyExists if the candidate is already in the roster.
func InsertCandidate(candidate *release.Candidate) func(*badger.Txn) error {
	return insert(makePrefix(codeCandidate, candidate.Name), candidate)
}

// UpsertCandidate inserts or replaces the roster entry for the candidate.
func UpsertCandidate(candidate *release.Candidate) func(*badger.Txn) error {
	return upsert(makePrefix(codeCandidate, candidate.Name), candidate)
}

// UpdateCandidate replaces the roster entry for an existing candidate.
func UpdateCandidate(candidate *release.Candidate) func(*badger.Txn) error {
	return update(makePrefix(codeCandidate, candidate.Name), candidate)
}

// RetrieveCandidate retrieves the roster entry for the candidate with the
// given name.
func RetrieveCandidate(name string, candidate *release.Candidate) func(*badger.Txn) error {
	return retrieve(makePrefix(codeCandidate, name), candidate)
}

// RemoveCandidate removes the candidate with the given name from the roster.
func RemoveCandidate(name string) func(*badger.Txn) error {
	return remove(makePrefix(codeCandidate, name))
}

// TraverseCandidates iterates over the full roster, invoking the handler for
// each candidate.
func TraverseCandidates(handle func(candidate *release.Candidate) error) func(*badger.Txn) error {
	create := func() interface{} {
		return &release.Candidate{}
	}
	return traverse(makePrefix(codeCandidate), create, func(entity interface{}) error {
		return handle(entity.(*release.Candidate))
	})
}
