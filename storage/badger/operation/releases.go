package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/stakeops/upgrade-monitor/model/release"
)

// UpsertLatestRelease records the given release as the latest known one,
// overwriting any previous record.
func UpsertLatestRelease(rel *release.Release) func(*badger.Txn) error {
	return upsert(makePrefix(codeLatestRelease), rel)
}

// RetrieveLatestRelease retrieves the latest recorded release.
func RetrieveLatestRelease(rel *release.Release) func(*badger.Txn) error {
	return retrieve(makePrefix(codeLatestRelease), rel)
}
