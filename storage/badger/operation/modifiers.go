package operation

import (
	"errors"

	"github.com/dgraph-io/badger/v2"

	"github.com/stakeops/upgrade-monitor/storage"
)

// SkipDuplicates turns storage.ErrAlreadyExists from the wrapped operation
// into a no-op, for writes that are allowed to lose against an earlier one.
func SkipDuplicates(op func(*badger.Txn) error) func(tx *badger.Txn) error {
	return func(tx *badger.Txn) error {
		err := op(tx)
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil
		}
		return err
	}
}

// RetryOnConflict retries the given transaction function until it completes
// without a badger conflict.
func RetryOnConflict(action func(func(*badger.Txn) error) error, op func(tx *badger.Txn) error) error {
	for {
		err := action(op)
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}
