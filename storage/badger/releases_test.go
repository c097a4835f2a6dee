package badger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/require"

	"github.com/stakeops/upgrade-monitor/storage"
	bstorage "github.com/stakeops/upgrade-monitor/storage/badger"
	"github.com/stakeops/upgrade-monitor/utils/unittest"
)

func TestReleasesLatestNonExist(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := bstorage.NewReleases(db)

		_, err := store.Latest()
		require.Error(t, err)
		require.True(t, errors.Is(err, storage.ErrNotFound))
	})
}

func TestReleasesStoreLatest(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := bstorage.NewReleases(db)

		expected := unittest.ReleaseFixture(unittest.WithReleaseName("1.15.2"))
		err := store.Store(expected)
		require.NoError(t, err)

		actual, err := store.Latest()
		require.NoError(t, err)
		require.Equal(t, expected.Name, actual.Name)
		require.True(t, expected.PublishedAt.Equal(actual.PublishedAt))
	})
}

// storing again must overwrite, the record is a singleton
func TestReleasesStoreIdempotent(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := bstorage.NewReleases(db)

		first := unittest.ReleaseFixture(unittest.WithReleaseName("1.15.1"))
		require.NoError(t, store.Store(first))
		require.NoError(t, store.Store(first))

		second := unittest.ReleaseFixture(
			unittest.WithReleaseName("1.15.2"),
			unittest.WithPublishedAt(time.Now().UTC()),
		)
		require.NoError(t, store.Store(second))

		actual, err := store.Latest()
		require.NoError(t, err)
		require.Equal(t, "1.15.2", actual.Name)
	})
}
