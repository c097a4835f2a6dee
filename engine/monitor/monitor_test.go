package monitor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakeops/upgrade-monitor/model/release"
	"github.com/stakeops/upgrade-monitor/module/metrics"
	"github.com/stakeops/upgrade-monitor/storage"
	bstorage "github.com/stakeops/upgrade-monitor/storage/badger"
	"github.com/stakeops/upgrade-monitor/utils/unittest"
)

// fakeFeed is a scripted release feed.
type fakeFeed struct {
	mu     sync.Mutex
	tagged []release.Tagged
	err    error
	calls  int
}

func (f *fakeFeed) ListReleases(ctx context.Context) ([]release.Tagged, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.tagged, nil
}

func (f *fakeFeed) set(tagged []release.Tagged, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tagged = tagged
	f.err = err
}

// countingReleases counts writes to the release record.
type countingReleases struct {
	storage.Releases
	stores int
}

func (c *countingReleases) Store(rel *release.Release) error {
	c.stores++
	return c.Releases.Store(rel)
}

// countingCandidates counts verdict writes per candidate.
type countingCandidates struct {
	storage.Candidates
	updated    map[string]int
	notUpdated map[string]int
}

func newCountingCandidates(delegate storage.Candidates) *countingCandidates {
	return &countingCandidates{
		Candidates: delegate,
		updated:    make(map[string]int),
		notUpdated: make(map[string]int),
	}
}

func (c *countingCandidates) MarkUpdated(name string) error {
	c.updated[name]++
	return c.Candidates.MarkUpdated(name)
}

func (c *countingCandidates) MarkNotUpdated(name string) error {
	c.notUpdated[name]++
	return c.Candidates.MarkNotUpdated(name)
}

// harness wires a monitor engine against badger-backed storage and a
// scripted feed.
type harness struct {
	engine     *Engine
	feed       *fakeFeed
	releases   *countingReleases
	candidates *countingCandidates
}

func runWithHarness(t *testing.T, cfg Config, f func(*harness)) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		if cfg.TagPrefix == "" {
			cfg.TagPrefix = "polkadot-v"
		}

		fakeFeed := &fakeFeed{}
		releases := &countingReleases{Releases: bstorage.NewReleases(db)}
		candidates := newCountingCandidates(bstorage.NewCandidates(db))

		eng, err := New(
			unittest.Logger(),
			metrics.NewNoopCollector(),
			fakeFeed,
			releases,
			candidates,
			NewLatestRelease(),
			cfg,
		)
		require.NoError(t, err)

		f(&harness{
			engine:     eng,
			feed:       fakeFeed,
			releases:   releases,
			candidates: candidates,
		})
	})
}

func tags(publishedAt time.Time, names ...string) []release.Tagged {
	tagged := make([]release.Tagged, 0, len(names))
	for _, name := range names {
		tagged = append(tagged, release.Tagged{TagName: name, PublishedAt: publishedAt})
	}
	return tagged
}

func TestResolveFiltersClientFamily(t *testing.T) {
	runWithHarness(t, Config{Grace: time.Hour}, func(h *harness) {
		publishedAt := time.Now().UTC()
		h.feed.set(tags(publishedAt,
			"polkadot-v1.2.0",
			"polkadot-parachain-v1.2.0",
			"other-v9.9.9",
		), nil)

		resolved, err := h.engine.ResolveLatestRelease()
		require.NoError(t, err)
		require.NotNil(t, resolved)
		assert.Equal(t, "1.2.0", resolved.Name)
		assert.True(t, publishedAt.Equal(resolved.PublishedAt))
	})
}

func TestResolvePicksNumericMaximum(t *testing.T) {
	runWithHarness(t, Config{Grace: time.Hour}, func(h *harness) {
		publishedAt := time.Now().UTC()
		h.feed.set(tags(publishedAt,
			"polkadot-v1.0.0",
			"polkadot-v1.2.3",
			"polkadot-v1.2.10",
		), nil)

		resolved, err := h.engine.ResolveLatestRelease()
		require.NoError(t, err)
		require.NotNil(t, resolved)
		// numeric, not lexicographic: 1.2.10 > 1.2.3
		assert.Equal(t, "1.2.10", resolved.Name)
	})
}

func TestResolvePicksNumericMaximumNinePatch(t *testing.T) {
	runWithHarness(t, Config{Grace: time.Hour}, func(h *harness) {
		h.feed.set(tags(time.Now().UTC(),
			"polkadot-v1.2.9",
			"polkadot-v1.2.10",
		), nil)

		resolved, err := h.engine.ResolveLatestRelease()
		require.NoError(t, err)
		require.NotNil(t, resolved)
		assert.Equal(t, "1.2.10", resolved.Name)
	})
}

func TestResolveNoNewReleaseIdempotent(t *testing.T) {
	runWithHarness(t, Config{Grace: time.Hour}, func(h *harness) {
		h.feed.set(tags(time.Now().UTC(), "polkadot-v1.15.2"), nil)

		first, err := h.engine.ResolveLatestRelease()
		require.NoError(t, err)
		require.NotNil(t, first)

		second, err := h.engine.ResolveLatestRelease()
		require.NoError(t, err)
		assert.Nil(t, second, "unchanged release list must yield no new release")

		// cached state is untouched
		assert.Equal(t, first, h.engine.LatestRelease().Get())

		// the sighting is recorded in storage on every successful resolution
		assert.Equal(t, 2, h.releases.stores)
	})
}

func TestResolveFeedFailure(t *testing.T) {
	runWithHarness(t, Config{Grace: time.Hour}, func(h *harness) {
		h.feed.set(nil, fmt.Errorf("api unavailable"))

		resolved, err := h.engine.ResolveLatestRelease()
		require.Error(t, err)
		assert.Nil(t, resolved)
		assert.Nil(t, h.engine.LatestRelease().Get())
		assert.Zero(t, h.releases.stores)
	})
}

func TestResolveEmptyFilteredList(t *testing.T) {
	runWithHarness(t, Config{Grace: time.Hour}, func(h *harness) {
		h.feed.set(tags(time.Now().UTC(), "polkadot-parachain-v1.2.0"), nil)

		resolved, err := h.engine.ResolveLatestRelease()
		require.NoError(t, err)
		assert.Nil(t, resolved)
		assert.Zero(t, h.releases.stores)
	})
}

// Edge case, preserved deliberately: when the best-sorted candidate tag has
// no extractable MAJOR.MINOR.PATCH triple the whole resolution yields no
// release, with no fallback to the next-best tag.
func TestResolveWinningTagWithoutTripleNoFallback(t *testing.T) {
	runWithHarness(t, Config{Grace: time.Hour}, func(h *harness) {
		h.feed.set(tags(time.Now().UTC(),
			"polkadot-v1.14.0",
			// sorts highest but is not a strict triple
			"polkadot-v1.15",
		), nil)

		resolved, err := h.engine.ResolveLatestRelease()
		require.NoError(t, err)
		assert.Nil(t, resolved)
		assert.Nil(t, h.engine.LatestRelease().Get(), "no fallback to the next-best tag")
		assert.Zero(t, h.releases.stores)
	})
}

func seedCandidate(t *testing.T, h *harness, candidate *release.Candidate) {
	require.NoError(t, h.candidates.Store(candidate))
}

func seedLatest(h *harness, name string, publishedAt time.Time) {
	h.engine.LatestRelease().Set(&release.Release{Name: name, PublishedAt: publishedAt})
}

func fixClock(h *harness, now time.Time) {
	h.engine.now = func() time.Time { return now }
}

func requireVerdict(t *testing.T, h *harness, name string, updated bool) {
	candidate, err := h.candidates.ByName(name)
	require.NoError(t, err)
	assert.Equal(t, updated, candidate.Updated)
}

func TestEnsureUpgradesCompliantCandidate(t *testing.T) {
	runWithHarness(t, Config{Grace: time.Hour}, func(h *harness) {
		publishedAt := time.Now().UTC().Add(-2 * time.Hour)
		seedLatest(h, "1.15.2", publishedAt)
		seedCandidate(t, h, &release.Candidate{Name: "alice", Version: "1.15.2", Updated: false})

		require.NoError(t, h.engine.EnsureUpgrades())

		requireVerdict(t, h, "alice", true)
		assert.Equal(t, 1, h.candidates.updated["alice"])
	})
}

// a candidate already flagged updated whose version still satisfies the
// latest release must not produce another write
func TestEnsureUpgradesAlreadyCompliantNoWrite(t *testing.T) {
	runWithHarness(t, Config{Grace: time.Hour}, func(h *harness) {
		seedLatest(h, "1.15.2", time.Now().UTC().Add(-2*time.Hour))
		seedCandidate(t, h, &release.Candidate{Name: "alice", Version: "1.16.0", Updated: true})

		require.NoError(t, h.engine.EnsureUpgrades())

		assert.Zero(t, h.candidates.updated["alice"])
		assert.Zero(t, h.candidates.notUpdated["alice"])
		requireVerdict(t, h, "alice", true)
	})
}

func TestEnsureUpgradesGraceOnePatchBehind(t *testing.T) {
	grace := time.Hour
	publishedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("within grace", func(t *testing.T) {
		runWithHarness(t, Config{Grace: grace}, func(h *harness) {
			seedLatest(h, "1.15.1", publishedAt)
			seedCandidate(t, h, &release.Candidate{Name: "bob", Version: "1.15.0", Updated: false})
			fixClock(h, publishedAt.Add(grace/2))

			require.NoError(t, h.engine.EnsureUpgrades())

			requireVerdict(t, h, "bob", true)
		})
	})

	t.Run("at grace expiry", func(t *testing.T) {
		runWithHarness(t, Config{Grace: grace}, func(h *harness) {
			seedLatest(h, "1.15.1", publishedAt)
			seedCandidate(t, h, &release.Candidate{Name: "bob", Version: "1.15.0", Updated: true})
			fixClock(h, publishedAt.Add(grace))

			require.NoError(t, h.engine.EnsureUpgrades())

			requireVerdict(t, h, "bob", false)
			assert.Equal(t, 1, h.candidates.notUpdated["bob"])
		})
	})
}

// one minor version behind is more than one patch away, so the grace window
// does not apply
func TestEnsureUpgradesGraceDoesNotCoverMinorDeficit(t *testing.T) {
	grace := time.Hour
	publishedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	runWithHarness(t, Config{Grace: grace}, func(h *harness) {
		seedLatest(h, "1.15.0", publishedAt)
		seedCandidate(t, h, &release.Candidate{Name: "carol", Version: "1.14.0", Updated: false})
		fixClock(h, publishedAt.Add(grace/2))

		require.NoError(t, h.engine.EnsureUpgrades())

		requireVerdict(t, h, "carol", false)
	})
}

func TestEnsureUpgradesUnparsableVersion(t *testing.T) {
	t.Run("previously compliant is revoked once", func(t *testing.T) {
		runWithHarness(t, Config{Grace: time.Hour}, func(h *harness) {
			seedLatest(h, "1.15.2", time.Now().UTC())
			seedCandidate(t, h, &release.Candidate{Name: "dave", Version: "unknown", Updated: true})

			require.NoError(t, h.engine.EnsureUpgrades())

			requireVerdict(t, h, "dave", false)
			assert.Equal(t, 1, h.candidates.notUpdated["dave"])
		})
	})

	t.Run("never compliant produces no state change", func(t *testing.T) {
		runWithHarness(t, Config{Grace: time.Hour}, func(h *harness) {
			seedLatest(h, "1.15.2", time.Now().UTC())
			seedCandidate(t, h, &release.Candidate{Name: "erin", Version: "unknown", Updated: false})

			require.NoError(t, h.engine.EnsureUpgrades())

			assert.Zero(t, h.candidates.updated["erin"])
			assert.Zero(t, h.candidates.notUpdated["erin"])
		})
	})
}

// the release name may carry build metadata after a hyphen, which is
// discarded before the comparison
func TestEnsureUpgradesReleaseNameWithMetadata(t *testing.T) {
	runWithHarness(t, Config{Grace: time.Hour}, func(h *harness) {
		seedLatest(h, "1.15.2-rc1", time.Now().UTC().Add(-2*time.Hour))
		seedCandidate(t, h, &release.Candidate{Name: "frank", Version: "1.15.2", Updated: false})

		require.NoError(t, h.engine.EnsureUpgrades())

		requireVerdict(t, h, "frank", true)
	})
}

// without a cached release the evaluator resolves lazily before the pass
func TestEnsureUpgradesResolvesLazily(t *testing.T) {
	runWithHarness(t, Config{Grace: time.Hour}, func(h *harness) {
		publishedAt := time.Now().UTC().Add(-2 * time.Hour)
		h.feed.set(tags(publishedAt, "polkadot-v1.15.2"), nil)
		seedCandidate(t, h, &release.Candidate{Name: "grace", Version: "1.15.2", Updated: false})

		require.NoError(t, h.engine.EnsureUpgrades())

		require.NotNil(t, h.engine.LatestRelease().Get())
		requireVerdict(t, h, "grace", true)
		assert.Equal(t, 1, h.feed.calls)
	})
}

// with no cached release and a failing feed the pass degrades: previously
// compliant candidates lose their verdict, others are skipped
func TestEnsureUpgradesDegradesWithoutRelease(t *testing.T) {
	runWithHarness(t, Config{Grace: time.Hour}, func(h *harness) {
		h.feed.set(nil, fmt.Errorf("api unavailable"))
		seedCandidate(t, h, &release.Candidate{Name: "heidi", Version: "1.15.2", Updated: true})
		seedCandidate(t, h, &release.Candidate{Name: "ivan", Version: "1.15.2", Updated: false})

		require.NoError(t, h.engine.EnsureUpgrades())

		requireVerdict(t, h, "heidi", false)
		assert.Zero(t, h.candidates.updated["ivan"])
		assert.Zero(t, h.candidates.notUpdated["ivan"])
	})
}

func TestEngineLifecycle(t *testing.T) {
	runWithHarness(t, Config{
		Grace:           time.Hour,
		ScanInterval:    5 * time.Millisecond,
		ResolveInterval: 5 * time.Millisecond,
	}, func(h *harness) {
		h.feed.set(tags(time.Now().UTC().Add(-time.Hour), "polkadot-v1.15.2"), nil)
		seedCandidate(t, h, &release.Candidate{Name: "alice", Version: "1.15.2", Updated: false})

		<-h.engine.Ready()

		require.Eventually(t, func() bool {
			return h.engine.Passes() > 0
		}, time.Second, 5*time.Millisecond)

		<-h.engine.Done()

		requireVerdict(t, h, "alice", true)
	})
}
