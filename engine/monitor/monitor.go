// Package monitor implements the upgrade-compliance engine. It tracks the
// latest published release of the monitored client family and classifies
// every candidate in the roster as updated or not updated, allowing a
// one-patch-version deficit during a configured grace window after a release
// is published.
package monitor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	gosemver "github.com/coreos/go-semver/semver"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/stakeops/upgrade-monitor/engine"
	"github.com/stakeops/upgrade-monitor/feed"
	"github.com/stakeops/upgrade-monitor/model/release"
	"github.com/stakeops/upgrade-monitor/module"
	"github.com/stakeops/upgrade-monitor/storage"
	"github.com/stakeops/upgrade-monitor/utils/semver"
)

// defaultScanInterval is how often the evaluation pass runs when no interval
// is configured.
const defaultScanInterval = 5 * time.Minute

// defaultResolveInterval is how often the upstream feed is polled for a new
// release when no interval is configured.
const defaultResolveInterval = 15 * time.Minute

// Config holds the evaluation policy and scheduling parameters of the engine.
type Config struct {
	// TagPrefix identifies the monitored client family within the upstream
	// tag namespace, e.g. "polkadot-v". Tags without the prefix are ignored.
	TagPrefix string

	// Grace is how long after a release's publish instant a candidate at most
	// one patch version behind is still considered compliant.
	Grace time.Duration

	// ScanInterval is the period of the evaluation pass.
	ScanInterval time.Duration

	// ResolveInterval is the period of upstream release polling.
	ResolveInterval time.Duration
}

// Engine is the upgrade monitor engine. It periodically resolves the latest
// upstream release and evaluates the candidate roster against it.
type Engine struct {
	unit    *engine.Unit
	log     zerolog.Logger
	metrics module.MonitorMetrics

	feed       feed.ReleaseFeed
	releases   storage.Releases
	candidates storage.Candidates

	// latest is the injectable holder for the cached resolved release.
	latest *LatestRelease

	cfg Config

	// now is read once per evaluation pass so a single pass is internally
	// consistent. Injectable for tests.
	now func() time.Time

	passes *atomic.Uint64
}

// New creates a new upgrade monitor engine.
func New(
	log zerolog.Logger,
	metrics module.MonitorMetrics,
	releaseFeed feed.ReleaseFeed,
	releases storage.Releases,
	candidates storage.Candidates,
	latest *LatestRelease,
	cfg Config,
) (*Engine, error) {

	if cfg.TagPrefix == "" {
		return nil, fmt.Errorf("tag prefix must be set")
	}
	if cfg.Grace < 0 {
		return nil, fmt.Errorf("grace duration must not be negative (%s)", cfg.Grace)
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = defaultScanInterval
	}
	if cfg.ResolveInterval <= 0 {
		cfg.ResolveInterval = defaultResolveInterval
	}
	if latest == nil {
		latest = NewLatestRelease()
	}

	e := &Engine{
		unit:       engine.NewUnit(),
		log:        log.With().Str("engine", "monitor").Str("tag_prefix", cfg.TagPrefix).Logger(),
		metrics:    metrics,
		feed:       releaseFeed,
		releases:   releases,
		candidates: candidates,
		latest:     latest,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
		passes:     atomic.NewUint64(0),
	}

	return e, nil
}

// Ready returns a ready channel that is closed once the engine has fully
// started, with the periodic check loop running.
func (e *Engine) Ready() <-chan struct{} {
	e.unit.Launch(e.checkLoop)
	return e.unit.Ready()
}

// Done returns a done channel that is closed once the engine has fully
// stopped.
func (e *Engine) Done() <-chan struct{} {
	return e.unit.Done()
}

// LatestRelease returns the holder for the cached resolved release.
func (e *Engine) LatestRelease() *LatestRelease {
	return e.latest
}

// Passes returns the number of completed evaluation passes.
func (e *Engine) Passes() uint64 {
	return e.passes.Load()
}

// checkLoop periodically polls the upstream feed and runs evaluation passes.
func (e *Engine) checkLoop() {
	resolve := time.NewTicker(e.cfg.ResolveInterval)
	scan := time.NewTicker(e.cfg.ScanInterval)

CheckLoop:
	for {
		// give the quit channel a priority to be selected
		select {
		case <-e.unit.Quit():
			break CheckLoop
		default:
		}

		select {
		case <-e.unit.Quit():
			break CheckLoop
		case <-resolve.C:
			_, err := e.ResolveLatestRelease()
			if err != nil {
				e.log.Err(err).Msg("could not resolve latest release")
			}
		case <-scan.C:
			err := e.EnsureUpgrades()
			if err != nil {
				e.log.Err(err).Msg("could not complete evaluation pass")
			}
		}
	}

	resolve.Stop()
	scan.Stop()
}

// ResolveLatestRelease fetches the upstream release list, retains only the
// tags of the monitored client family, and resolves the highest version among
// them. On successful extraction the release is recorded in storage,
// regardless of whether it changed. The cached state is only replaced when
// the resolved version differs from it, in which case the new release is
// returned; otherwise the first return value is nil ("no new release").
//
// A feed failure is returned as an error so callers can distinguish it from
// "no new release"; both leave the cached state untouched. A winning tag
// without an extractable MAJOR.MINOR.PATCH triple yields a warning and no
// release; there is deliberately no fallback to the next-best tag.
func (e *Engine) ResolveLatestRelease() (*release.Release, error) {

	tagged, err := e.feed.ListReleases(e.unit.Ctx())
	if err != nil {
		e.metrics.FeedError()
		return nil, fmt.Errorf("could not list upstream releases: %w", err)
	}

	// retain only the tags of the monitored client family
	var matching []release.Tagged
	for _, tag := range tagged {
		if strings.HasPrefix(tag.TagName, e.cfg.TagPrefix) {
			matching = append(matching, tag)
		}
	}
	if len(matching) == 0 {
		e.log.Debug().Int("upstream_tags", len(tagged)).Msg("no releases for monitored client family")
		return nil, nil
	}

	// order by numeric version; the sort is stable so ties between tags that
	// normalize to the same version resolve deterministically for a given
	// input ordering
	sort.SliceStable(matching, func(i, j int) bool {
		a := strings.TrimPrefix(matching[i].TagName, e.cfg.TagPrefix)
		b := strings.TrimPrefix(matching[j].TagName, e.cfg.TagPrefix)
		return semver.Compare(a, b) < 0
	})
	best := matching[len(matching)-1]

	triple, ok := semver.ExtractTriple(best.TagName)
	if !ok {
		e.log.Warn().Str("tag", best.TagName).Msg("winning tag has no extractable version triple")
		return nil, nil
	}

	resolved := &release.Release{
		Name:        triple,
		PublishedAt: best.PublishedAt,
	}

	// record the sighting even when the version is unchanged
	err = e.releases.Store(resolved)
	if err != nil {
		return nil, fmt.Errorf("could not persist latest release: %w", err)
	}

	cached := e.latest.Get()
	if cached != nil && cached.Name == resolved.Name {
		// no new release
		return nil, nil
	}

	e.latest.Set(resolved)
	e.metrics.ReleaseResolved(resolved.Name, resolved.PublishedAt)
	e.log.Info().
		Str("version", resolved.Name).
		Time("published_at", resolved.PublishedAt).
		Msg("new latest release resolved")

	return resolved, nil
}

// EnsureUpgrades runs one evaluation pass over the candidate roster,
// recording a compliance verdict for every candidate whose state changes
// under the policy. If no release is cached yet, resolution is attempted once
// first; the pass then proceeds with whatever cached state exists.
func (e *Engine) EnsureUpgrades() error {

	if e.latest.Get() == nil {
		_, err := e.ResolveLatestRelease()
		if err != nil {
			// degrade to evaluating with no cached release
			e.log.Warn().Err(err).Msg("could not resolve release before evaluation pass")
		}
	}

	candidates, err := e.candidates.All()
	if err != nil {
		return fmt.Errorf("could not read candidate roster: %w", err)
	}

	// the clock is read once so the grace comparison is consistent across the
	// whole pass
	now := e.now()
	started := time.Now()

	latest := e.latest.Get()
	var latestVersion *gosemver.Version
	if latest != nil {
		// discard build metadata after a hyphen before coercing
		name, _, _ := strings.Cut(latest.Name, "-")
		latestVersion, err = semver.Coerce(name)
		if err != nil {
			e.log.Warn().Err(err).Str("release", latest.Name).Msg("cached release has no coercible version")
		}
	}

	var result *multierror.Error
	for _, candidate := range candidates {
		err := e.evaluate(candidate, latest, latestVersion, now)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("could not evaluate candidate %s: %w", candidate.Name, err))
		}
	}

	e.passes.Inc()
	e.metrics.EvaluationComplete(len(candidates), time.Since(started))

	return result.ErrorOrNil()
}

// evaluate classifies a single candidate against the cached latest release
// and writes the verdict when the policy calls for one.
func (e *Engine) evaluate(
	candidate *release.Candidate,
	latest *release.Release,
	latestVersion *gosemver.Version,
	now time.Time,
) error {

	log := e.log.With().
		Str("candidate", candidate.Name).
		Str("reported_version", candidate.Version).
		Logger()

	nodeVersion, err := semver.Coerce(candidate.Version)
	if err != nil || latestVersion == nil {
		// no usable comparison; a candidate that was previously compliant
		// loses its verdict, one that never was produces no state change
		if !candidate.Updated {
			return nil
		}
		log.Info().Msg("no comparable versions, revoking updated verdict")
		e.metrics.CandidateNotUpdated()
		return e.candidates.MarkNotUpdated(candidate.Name)
	}

	if nodeVersion.Compare(*latestVersion) >= 0 {
		if candidate.Updated {
			// already compliant, avoid a redundant write
			return nil
		}
		log.Info().Str("latest", latestVersion.String()).Msg("candidate runs latest release")
		e.metrics.CandidateUpdated()
		return e.candidates.MarkUpdated(candidate.Name)
	}

	// candidate is behind; within the grace window a deficit of at most one
	// patch version still counts as compliant
	if latest != nil && now.Before(latest.PublishedAt.Add(e.cfg.Grace)) {
		nextPatch := semver.NextPatch(*nodeVersion)
		if nextPatch.Compare(*latestVersion) >= 0 {
			log.Info().
				Str("latest", latestVersion.String()).
				Msg("candidate one patch behind within grace window")
			e.metrics.CandidateUpdated()
			return e.candidates.MarkUpdated(candidate.Name)
		}
	}

	log.Info().Str("latest", latestVersion.String()).Msg("candidate has not upgraded")
	e.metrics.CandidateNotUpdated()
	return e.candidates.MarkNotUpdated(candidate.Name)
}
