package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/stakeops/upgrade-monitor/model/release"
	"github.com/stakeops/upgrade-monitor/storage/badger/operation"
)

// Candidates implements persistent storage for the roster of monitored nodes
// on top of badger.
type Candidates struct {
	db *badger.DB
}

func NewCandidates(db *badger.DB) *Candidates {
	return &Candidates{db: db}
}

func (c *Candidates) Insert(candidate *release.Candidate) error {
	return operation.RetryOnConflict(c.db.Update, operation.InsertCandidate(candidate))
}

func (c *Candidates) Store(candidate *release.Candidate) error {
	return operation.RetryOnConflict(c.db.Update, operation.UpsertCandidate(candidate))
}

func (c *Candidates) ByName(name string) (*release.Candidate, error) {
	var candidate release.Candidate
	err := c.db.View(operation.RetrieveCandidate(name, &candidate))
	if err != nil {
		return nil, err
	}
	return &candidate, nil
}

func (c *Candidates) All() ([]*release.Candidate, error) {
	var candidates []*release.Candidate
	err := c.db.View(operation.TraverseCandidates(func(candidate *release.Candidate) error {
		candidates = append(candidates, candidate)
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("could not traverse candidates: %w", err)
	}
	return candidates, nil
}

func (c *Candidates) MarkUpdated(name string) error {
	return c.mark(name, true)
}

func (c *Candidates) MarkNotUpdated(name string) error {
	return c.mark(name, false)
}

func (c *Candidates) Remove(name string) error {
	return operation.RetryOnConflict(c.db.Update, operation.RemoveCandidate(name))
}

// mark records a compliance verdict for the candidate within a single
// transaction, so a concurrent roster write cannot be lost.
func (c *Candidates) mark(name string, updated bool) error {
	return operation.RetryOnConflict(c.db.Update, func(tx *badger.Txn) error {
		var candidate release.Candidate
		err := operation.RetrieveCandidate(name, &candidate)(tx)
		if err != nil {
			return fmt.Errorf("could not retrieve candidate: %w", err)
		}
		candidate.Updated = updated
		return operation.UpdateCandidate(&candidate)(tx)
	})
}
