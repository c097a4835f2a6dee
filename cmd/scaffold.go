package cmd

import (
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/stakeops/upgrade-monitor/model/release"
	"github.com/stakeops/upgrade-monitor/module"
	"github.com/stakeops/upgrade-monitor/storage"
	bstorage "github.com/stakeops/upgrade-monitor/storage/badger"
)

type BaseConfig struct {
	Roster      []string
	Timeout     time.Duration
	datadir     string
	level       string
	metricsPort uint
}

type namedModuleFn struct {
	fn   func(*MonitorNodeBuilder) error
	name string
}

type namedComponentFn struct {
	fn   func(*MonitorNodeBuilder) (module.ReadyDoneAware, error)
	name string
}

type namedDoneObject struct {
	ob   module.ReadyDoneAware
	name string
}

// MonitorNodeBuilder assembles a monitor process: flags, logger, database,
// storage, and the ready/done-aware components, started in registration
// order and stopped in reverse on an interrupt signal.
type MonitorNodeBuilder struct {
	BaseConfig
	flags       *pflag.FlagSet
	name        string
	Logger      zerolog.Logger
	DB          *badger.DB
	Releases    storage.Releases
	Candidates  storage.Candidates
	MetricsPort uint
	modules     []namedModuleFn
	components  []namedComponentFn
	doneObject  []namedDoneObject
	sig         chan os.Signal
}

func MonitorNode(name string) *MonitorNodeBuilder {

	builder := &MonitorNodeBuilder{
		BaseConfig: BaseConfig{},
		flags:      pflag.CommandLine,
		name:       name,
	}

	builder.baseFlags()

	return builder
}

func (mnb *MonitorNodeBuilder) baseFlags() {
	mnb.flags.StringVarP(&mnb.BaseConfig.datadir, "datadir", "d", "data", "directory to store the monitor state")
	mnb.flags.StringVarP(&mnb.BaseConfig.level, "loglevel", "l", "info", "level for logging output")
	mnb.flags.UintVarP(&mnb.BaseConfig.metricsPort, "metricport", "m", 8080, "port for the metrics server")
	mnb.flags.DurationVarP(&mnb.BaseConfig.Timeout, "timeout", "t", 1*time.Minute, "how long to wait for components to start and stop")
	mnb.flags.StringSliceVarP(&mnb.BaseConfig.Roster, "candidates", "c", nil, "roster entries of the form name@version to seed the candidate store")
}

// ExtraFlags enables binding additional flags beyond those defined in BaseConfig.
func (mnb *MonitorNodeBuilder) ExtraFlags(f func(*pflag.FlagSet)) *MonitorNodeBuilder {
	f(mnb.flags)
	return mnb
}

// Module enables setting up dependencies of the engine with the builder context.
func (mnb *MonitorNodeBuilder) Module(name string, f func(*MonitorNodeBuilder) error) *MonitorNodeBuilder {
	mnb.modules = append(mnb.modules, namedModuleFn{
		fn:   f,
		name: name,
	})
	return mnb
}

// Component adds a new component to the node that conforms to the
// ReadyDoneAware interface. Components are started in registration order and
// stopped in reverse.
func (mnb *MonitorNodeBuilder) Component(name string, f func(*MonitorNodeBuilder) (module.ReadyDoneAware, error)) *MonitorNodeBuilder {
	mnb.components = append(mnb.components, namedComponentFn{
		fn:   f,
		name: name,
	})
	return mnb
}

// MustNot asserts that the given error is nil and returns a fatal log event
// otherwise.
func (mnb *MonitorNodeBuilder) MustNot(err error) *zerolog.Event {
	if err != nil {
		return mnb.Logger.Fatal().Err(err)
	}
	return nil
}

func (mnb *MonitorNodeBuilder) initLogger() {
	// configure logger with standard level and UTC timestamp
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	log := zerolog.New(os.Stderr).With().Timestamp().Str("node", mnb.name).Logger()

	log.Info().Msgf("%s starting up", mnb.name)

	// parse config log level and apply to logger
	lvl, err := zerolog.ParseLevel(strings.ToLower(mnb.BaseConfig.level))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid log level")
	}
	log = log.Level(lvl)

	mnb.Logger = log
	mnb.MetricsPort = mnb.BaseConfig.metricsPort
}

func (mnb *MonitorNodeBuilder) initDatabase() {
	db, err := badger.Open(badger.DefaultOptions(mnb.BaseConfig.datadir).WithLogger(nil))
	if err != nil {
		mnb.MustNot(err).Msg("could not open key-value store")
	}
	mnb.DB = db
}

func (mnb *MonitorNodeBuilder) initStorage() {
	mnb.Releases = bstorage.NewReleases(mnb.DB)
	mnb.Candidates = bstorage.NewCandidates(mnb.DB)
}

// initRoster seeds the candidate store with the configured roster entries.
// Entries already in the store keep their recorded version and verdict.
func (mnb *MonitorNodeBuilder) initRoster() {
	for _, entry := range mnb.BaseConfig.Roster {
		candidate, err := release.ParseCandidate(entry)
		mnb.MustNot(err).Str("entry", entry).Msg("could not parse roster entry")

		err = mnb.Candidates.Insert(candidate)
		if errors.Is(err, storage.ErrAlreadyExists) {
			continue
		}
		mnb.MustNot(err).Str("entry", entry).Msg("could not seed roster entry")

		mnb.Logger.Info().Str("candidate", candidate.Name).Msg("roster entry added")
	}
}

func (mnb *MonitorNodeBuilder) handleModule(v namedModuleFn) {
	err := v.fn(mnb)
	if err != nil {
		mnb.MustNot(err).Msg("module " + v.name + " initialization failed")
	}
	mnb.Logger.Info().Msg(v.name + " initialized")
}

func (mnb *MonitorNodeBuilder) handleComponent(v namedComponentFn) {

	readyAware, err := v.fn(mnb)
	if err != nil {
		mnb.MustNot(err).Msg("component " + v.name + " initialization failed")
	}

	select {
	case <-readyAware.Ready():
		mnb.Logger.Info().Msg(v.name + " ready")
	case <-time.After(mnb.BaseConfig.Timeout):
		mnb.Logger.Fatal().Msg("could not start " + v.name)
	case <-mnb.sig:
		mnb.Logger.Warn().Msg(v.name + " start aborted")
		os.Exit(1)
	}

	mnb.doneObject = append(mnb.doneObject, namedDoneObject{
		readyAware, v.name,
	})
}

func (mnb *MonitorNodeBuilder) handleDoneObject(v namedDoneObject) {
	mnb.Logger.Info().Msg("stopping " + v.name)

	select {
	case <-v.ob.Done():
		mnb.Logger.Info().Msg(v.name + " shutdown complete")
	case <-time.After(mnb.BaseConfig.Timeout):
		mnb.Logger.Fatal().Msg("could not stop " + v.name)
	case <-mnb.sig:
		mnb.Logger.Warn().Msg(v.name + " stop aborted")
		os.Exit(1)
	}
}

// Run initiates all common components (logger, database, storage) and then
// starts each component. It also sets up a channel to gracefully shut down
// the started components on an interrupt signal.
func (mnb *MonitorNodeBuilder) Run() {

	// initialize signal catcher
	mnb.sig = make(chan os.Signal, 1)
	signal.Notify(mnb.sig, os.Interrupt, syscall.SIGTERM)

	// parse configuration parameters
	pflag.Parse()

	mnb.initLogger()

	mnb.initDatabase()

	mnb.initStorage()

	mnb.initRoster()

	for _, f := range mnb.modules {
		mnb.handleModule(f)
	}

	for _, f := range mnb.components {
		mnb.handleComponent(f)
	}

	mnb.Logger.Info().Msgf("%s startup complete", mnb.name)

	<-mnb.sig

	mnb.Logger.Info().Msgf("%s shutting down", mnb.name)

	for i := len(mnb.doneObject) - 1; i >= 0; i-- {
		mnb.handleDoneObject(mnb.doneObject[i])
	}

	err := mnb.DB.Close()
	if err != nil {
		mnb.Logger.Error().Err(err).Msg("could not close key-value store")
	}

	mnb.Logger.Info().Msgf("%s shutdown complete", mnb.name)

	os.Exit(0)
}
