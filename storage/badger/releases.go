package badger

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/stakeops/upgrade-monitor/model/release"
	"github.com/stakeops/upgrade-monitor/storage/badger/operation"
)

// Releases implements persistent storage for the latest resolved client
// release on top of badger.
type Releases struct {
	db *badger.DB
}

func NewReleases(db *badger.DB) *Releases {
	return &Releases{db: db}
}

func (r *Releases) Store(rel *release.Release) error {
	return operation.RetryOnConflict(r.db.Update, operation.UpsertLatestRelease(rel))
}

func (r *Releases) Latest() (*release.Release, error) {
	var rel release.Release
	err := r.db.View(operation.RetrieveLatestRelease(&rel))
	if err != nil {
		return nil, err
	}
	return &rel, nil
}
