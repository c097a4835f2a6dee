// Package feed declares the upstream release-data collaborator consumed by
// release resolution. Implementations own their transport concerns (retries,
// authentication, rate limits); the monitor only consumes the release list.
package feed

import (
	"context"

	"github.com/stakeops/upgrade-monitor/model/release"
)

// ReleaseFeed returns the published releases of the monitored upstream
// project. No ordering of the returned list is guaranteed.
type ReleaseFeed interface {
	ListReleases(ctx context.Context) ([]release.Tagged, error)
}
